package identity

import "errors"

// Sentinel error kinds (stable for errors.Is and for mapping to API status codes).
var (
	ErrInvalidInput = errors.New("invalid_input")
	ErrNotFound     = errors.New("not_found")
	ErrConflict     = errors.New("conflict")

	// ErrPersistenceUnavailable means the backing store cannot be reached.
	// At startup it is fatal.
	ErrPersistenceUnavailable = errors.New("persistence_unavailable")
)
