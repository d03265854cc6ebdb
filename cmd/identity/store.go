package identity

import (
	"context"
	"net"
	"time"
)

// Credential is a registered user's login record.
// PasswordHash is an encoded Argon2id hash and never the password itself.
type Credential struct {
	UserID       string
	Username     string
	PasswordHash string
	Email        string
	CreatedAt    time.Time
}

// NewCredential describes a credential to insert.
type NewCredential struct {
	Username     string
	PasswordHash string
	Email        string
	Now          time.Time
}

// SigningKeys is the per-user pair of token signing secrets.
// Both values are encoded random key material and must differ.
type SigningKeys struct {
	UserID        string
	AccessSecret  string
	RefreshSecret string
	CreatedAt     time.Time
}

// Session is one logical login. Its existence is what keeps refresh tokens usable.
type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time

	// Client context captured at login.
	UserAgent string
	IP        net.IP
	Device    string
}

// Queries is the narrow persistence surface used by the auth core.
// It is satisfied both by a Store and by the transactional view handed to InTx.
type Queries interface {
	FindCredential(ctx context.Context, username string) (Credential, error)
	CredentialByID(ctx context.Context, userID string) (Credential, error)
	InsertCredential(ctx context.Context, in NewCredential) (userID string, err error)

	AccessSecret(ctx context.Context, userID string) (string, error)
	RefreshSecret(ctx context.Context, userID string) (string, error)
	InsertKeys(ctx context.Context, keys SigningKeys) error

	InsertSession(ctx context.Context, s Session) error
	LatestSessionFor(ctx context.Context, userID string) (string, error)
	SessionOwner(ctx context.Context, sessionID string) (string, error)

	// LockSessionOwner is SessionOwner plus a row lock held until the
	// surrounding transaction ends. Outside InTx it behaves like SessionOwner.
	LockSessionOwner(ctx context.Context, sessionID string) (string, error)

	DeleteSession(ctx context.Context, sessionID string) (bool, error)
}

// Store is the identity persistence boundary.
type Store interface {
	Queries

	// InTx runs fn against a transactional view. fn's error rolls everything back.
	InTx(ctx context.Context, fn func(q Queries) error) error

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error
}
