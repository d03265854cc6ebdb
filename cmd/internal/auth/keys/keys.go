// Package keys reads and provisions the per-user pair of token signing secrets.
package keys

import (
	"context"
	"errors"
	"fmt"
	"time"

	"authsrv/cmd/identity"
	"authsrv/cmd/security/token"
)

var (
	// ErrKeyNotFound means the user has no signing keys.
	ErrKeyNotFound = errors.New("signing key not found")

	// ErrKeyAlreadyProvisioned means Provision found an existing pair and left it alone.
	ErrKeyAlreadyProvisioned = errors.New("signing keys already provisioned")
)

// Store binds key operations to a persistence handle, which may be a
// transaction view handed out by identity.Store.InTx.
type Store struct {
	q           identity.Queries
	secretBytes int
	now         func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithSecretBytes sets the entropy of newly provisioned secrets.
// Values below token.MinSecretBytes are raised to the minimum.
func WithSecretBytes(n int) Option {
	return func(s *Store) { s.secretBytes = max(n, token.MinSecretBytes) }
}

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New returns a Store over q.
func New(q identity.Queries, opts ...Option) *Store {
	s := &Store{
		q:           q,
		secretBytes: token.MinSecretBytes,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AccessSecret returns the raw bytes used to sign the user's access tokens.
func (s *Store) AccessSecret(ctx context.Context, userID string) ([]byte, error) {
	enc, err := s.q.AccessSecret(ctx, userID)
	return decode("keys.AccessSecret", enc, err)
}

// RefreshSecret returns the raw bytes used to sign the user's refresh tokens.
func (s *Store) RefreshSecret(ctx context.Context, userID string) ([]byte, error) {
	enc, err := s.q.RefreshSecret(ctx, userID)
	return decode("keys.RefreshSecret", enc, err)
}

func decode(op, enc string, err error) ([]byte, error) {
	if err != nil {
		if identity.IsNotFound(err) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	b, err := token.DecodeSecret(enc)
	if err != nil {
		return nil, fmt.Errorf("%s: stored secret: %w", op, err)
	}
	return b, nil
}

// Provision generates and stores two distinct secrets for userID.
// An existing pair is never overwritten.
func (s *Store) Provision(ctx context.Context, userID string) error {
	access, err := token.NewSecret(s.secretBytes)
	if err != nil {
		return fmt.Errorf("keys.Provision: access secret: %w", err)
	}

	var refresh string
	for refresh == "" || refresh == access {
		if refresh, err = token.NewSecret(s.secretBytes); err != nil {
			return fmt.Errorf("keys.Provision: refresh secret: %w", err)
		}
	}

	err = s.q.InsertKeys(ctx, identity.SigningKeys{
		UserID:        userID,
		AccessSecret:  access,
		RefreshSecret: refresh,
		CreatedAt:     s.now(),
	})
	switch {
	case err == nil:
		return nil
	case identity.IsConflict(err):
		return ErrKeyAlreadyProvisioned
	default:
		return fmt.Errorf("keys.Provision: %w", err)
	}
}
