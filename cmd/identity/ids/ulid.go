// Package ids generates the identifiers stored by the identity layer.
//
// Users are keyed by ULID (sortable, 26 chars). Sessions are keyed by a
// random UUIDv4 so that a session id leaks nothing about creation order.
package ids

import (
	"crypto/rand"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewUserID returns a new ULID string (26 chars) stamped with now.
func NewUserID(now time.Time) (string, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}

	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// IsUserID reports whether s parses as a ULID.
func IsUserID(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}

// NewSessionID returns a random (v4) UUID in canonical form.
func NewSessionID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// IsSessionID reports whether s is a canonical UUID string.
func IsSessionID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
