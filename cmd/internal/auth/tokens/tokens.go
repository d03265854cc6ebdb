package tokens

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SecretSource yields raw per-user signing secrets.
type SecretSource interface {
	AccessSecret(ctx context.Context, userID string) ([]byte, error)
	RefreshSecret(ctx context.Context, userID string) ([]byte, error)
}

// SessionLocator finds the session a plain IssueRefresh binds to.
type SessionLocator interface {
	CurrentSessionID(ctx context.Context, userID string) (string, error)
}

var (
	accessMethod  = jwt.SigningMethodHS256
	refreshMethod = jwt.SigningMethodHS512
)

// Issuer signs and validates tokens with per-user secrets.
type Issuer struct {
	cfg      Config
	secrets  SecretSource
	sessions SessionLocator
	now      func() time.Time
}

// Option configures an Issuer.
type Option func(*Issuer)

// WithClock overrides the time source used for iat, exp and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) { i.now = now }
}

// New returns an Issuer. sessions may be nil if IssueRefresh is never called.
func New(cfg Config, secrets SecretSource, sessions SessionLocator, opts ...Option) *Issuer {
	i := &Issuer{
		cfg:      cfg,
		secrets:  secrets,
		sessions: sessions,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// IssueAccess signs an access token for u with u's access secret.
func (i *Issuer) IssueAccess(ctx context.Context, u User) (Token, error) {
	key, err := i.secrets.AccessSecret(ctx, u.ID)
	if err != nil {
		return Token{}, err
	}

	now := i.now()
	claims := AccessClaims{
		Username:         u.Username,
		RegisteredClaims: registered(now, now.Add(i.cfg.AccessTTL)),
	}
	return sign(accessMethod, claims, key)
}

// ValidateAccess checks raw against userID's access secret and returns its claims.
func (i *Issuer) ValidateAccess(ctx context.Context, raw, userID string) (AccessClaims, error) {
	key, err := i.secrets.AccessSecret(ctx, userID)
	if err != nil {
		return AccessClaims{}, err
	}

	var claims AccessClaims
	if err := parse(raw, &claims, accessMethod, key); err != nil {
		return AccessClaims{}, err
	}
	if err := i.checkExpiry(claims.ExpiresAt); err != nil {
		return AccessClaims{}, err
	}
	return claims, nil
}

// IssueRefresh binds a refresh token to u's current session.
func (i *Issuer) IssueRefresh(ctx context.Context, u User) (Token, error) {
	if i.sessions == nil {
		return Token{}, errors.New("tokens: no session locator configured")
	}
	sid, err := i.sessions.CurrentSessionID(ctx, u.ID)
	if err != nil {
		return Token{}, err
	}
	return i.IssueRefreshFor(ctx, u, sid)
}

// IssueRefreshFor binds a refresh token to sessionID.
func (i *Issuer) IssueRefreshFor(ctx context.Context, u User, sessionID string) (Token, error) {
	key, err := i.secrets.RefreshSecret(ctx, u.ID)
	if err != nil {
		return Token{}, err
	}

	now := i.now()
	rc := registered(now, now.Add(i.cfg.RefreshTTL))
	rc.Subject = u.Username
	return sign(refreshMethod, RefreshClaims{SessionID: sessionID, RegisteredClaims: rc}, key)
}

// ParseRefresh checks raw against userID's refresh secret and returns its claims.
// It does not check whether the session still exists.
func (i *Issuer) ParseRefresh(ctx context.Context, raw, userID string) (RefreshClaims, error) {
	key, err := i.secrets.RefreshSecret(ctx, userID)
	if err != nil {
		return RefreshClaims{}, err
	}

	var claims RefreshClaims
	if err := parse(raw, &claims, refreshMethod, key); err != nil {
		return RefreshClaims{}, err
	}
	if err := i.checkExpiry(claims.ExpiresAt); err != nil {
		return RefreshClaims{}, err
	}
	return claims, nil
}

// ValidateRefresh reports (true, nil) for a live token, (false, nil) for a
// correctly signed but expired one, and (false, err) for anything else.
// Session liveness is not checked.
func (i *Issuer) ValidateRefresh(ctx context.Context, raw, userID string) (bool, error) {
	_, err := i.ParseRefresh(ctx, raw, userID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrExpired):
		return false, nil
	default:
		return false, err
	}
}

func (i *Issuer) checkExpiry(exp *jwt.NumericDate) error {
	if exp == nil {
		return ErrSignatureInvalid
	}
	if i.now().After(exp.Time) {
		return ErrExpired
	}
	return nil
}

func registered(now, exp time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
}

func sign(method jwt.SigningMethod, claims jwt.Claims, key []byte) (Token, error) {
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return Token{}, err
	}
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		return Token{}, fmt.Errorf("tokens: sign: %w", err)
	}
	return Token{Value: s, ExpiresAt: exp.Time}, nil
}

// parse verifies the signature only. Expiry is checked by the caller against
// the injected clock.
func parse(raw string, claims jwt.Claims, method jwt.SigningMethod, key []byte) error {
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return key, nil },
		jwt.WithValidMethods([]string{method.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSignatureInvalid, err)
	}
	return nil
}
