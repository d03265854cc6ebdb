package token

import "errors"

// Public, stable errors for callers.
var (
	ErrSecretTooShort  = errors.New("token secret too short")
	ErrSecretMalformed = errors.New("token secret malformed")
)
