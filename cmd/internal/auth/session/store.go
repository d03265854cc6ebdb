package session

import (
	"context"
	"fmt"
	"time"

	"authsrv/cmd/identity"
	"authsrv/cmd/identity/ids"
)

// Store creates, resolves and deletes sessions on top of identity.Queries.
type Store struct {
	q   identity.Queries
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore binds a Store to q, which may be a transaction view.
func NewStore(q identity.Queries, opts ...Option) *Store {
	s := &Store{q: q, now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create records a new session for userID and returns its id.
func (s *Store) Create(ctx context.Context, userID string, dev Device) (string, error) {
	id, err := ids.NewSessionID()
	if err != nil {
		return "", fmt.Errorf("session.Create: %w", err)
	}

	err = s.q.InsertSession(ctx, identity.Session{
		ID:        id,
		UserID:    userID,
		CreatedAt: s.now(),
		UserAgent: dev.UserAgent,
		IP:        dev.IP,
		Device:    dev.Label,
	})
	if err != nil {
		return "", fmt.Errorf("session.Create: %w", err)
	}
	return id, nil
}

// CurrentSessionID returns the user's most recently created session.
func (s *Store) CurrentSessionID(ctx context.Context, userID string) (string, error) {
	id, err := s.q.LatestSessionFor(ctx, userID)
	if err != nil {
		if identity.IsNotFound(err) {
			return "", ErrNoActiveSession
		}
		return "", fmt.Errorf("session.CurrentSessionID: %w", err)
	}
	return id, nil
}

// OwnerOf returns the user id that owns sessionID.
func (s *Store) OwnerOf(ctx context.Context, sessionID string) (string, error) {
	owner, err := s.q.SessionOwner(ctx, sessionID)
	return owner, ownerErr("session.OwnerOf", err)
}

// LockOwner is OwnerOf plus a row lock held until the enclosing transaction
// ends, so a concurrent Revoke waits for it.
func (s *Store) LockOwner(ctx context.Context, sessionID string) (string, error) {
	owner, err := s.q.LockSessionOwner(ctx, sessionID)
	return owner, ownerErr("session.LockOwner", err)
}

func ownerErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case identity.IsNotFound(err):
		return ErrUnknownSession
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// Revoke deletes sessionID. It reports false when there was nothing to delete.
func (s *Store) Revoke(ctx context.Context, sessionID string) (bool, error) {
	ok, err := s.q.DeleteSession(ctx, sessionID)
	if err != nil {
		return false, fmt.Errorf("session.Revoke: %w", err)
	}
	return ok, nil
}
