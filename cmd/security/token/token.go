package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// MinSecretBytes is the smallest amount of entropy accepted for a signing secret.
const MinSecretBytes = 64

var enc = base64.RawURLEncoding

// NewSecret returns n random bytes encoded as base64url without padding.
func NewSecret(n int) (string, error) {
	if n < MinSecretBytes {
		return "", fmt.Errorf("%w: %d bytes, need at least %d", ErrSecretTooShort, n, MinSecretBytes)
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return enc.EncodeToString(b), nil
}

// DecodeSecret returns the raw key bytes of a secret made by NewSecret.
func DecodeSecret(s string) ([]byte, error) {
	b, err := enc.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, ErrSecretMalformed
	}
	if len(b) < MinSecretBytes {
		return nil, ErrSecretTooShort
	}
	return b, nil
}

// Fingerprint is a short, non-reversible label for a secret, safe to log.
func Fingerprint(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:6])
}
