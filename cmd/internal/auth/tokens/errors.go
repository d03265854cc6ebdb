package tokens

import "errors"

var (
	// ErrSignatureInvalid covers forged, tampered, malformed and wrong-algorithm tokens.
	ErrSignatureInvalid = errors.New("token signature invalid")

	// ErrExpired is returned for a correctly signed token past its exp.
	ErrExpired = errors.New("token expired")
)
