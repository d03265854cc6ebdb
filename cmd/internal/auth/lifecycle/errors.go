package lifecycle

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is the single failure surfaced for any rejected credential, token or session.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidCredentials is returned by Login for both unknown users and wrong passwords.
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrUnauthorized)

	// ErrConflict is returned by Register when the username is taken.
	ErrConflict = errors.New("conflict")

	// ErrInvalidInput is returned for missing fields or a password the policy rejects.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInternal wraps hashing and persistence failures.
	ErrInternal = errors.New("internal error")
)

// denial is an authentication failure whose reason is only for logs.
type denial struct{ reason string }

func (d denial) Error() string { return "denied: " + d.reason }

func deny(reason string) error { return denial{reason: reason} }

func internal(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrInternal, op, err)
}
