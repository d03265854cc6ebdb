package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"authsrv/cmd/identity"
	"authsrv/cmd/internal/auth/cookie"
	"authsrv/cmd/internal/auth/keys"
	"authsrv/cmd/internal/auth/session"
	"authsrv/cmd/internal/auth/tokens"
	"authsrv/cmd/internal/metrics"
	"authsrv/cmd/security/password"
	"authsrv/cmd/security/token"
)

// Config is everything the flows need besides their collaborators.
type Config struct {
	Tokens      tokens.Config
	Cookies     cookie.Transport
	SecretBytes int
}

// DefaultConfig returns the standard token lifetimes and host-wide cookies.
func DefaultConfig() Config {
	return Config{
		Tokens:      tokens.DefaultConfig(),
		Cookies:     cookie.DefaultTransport(),
		SecretBytes: token.MinSecretBytes,
	}
}

// Orchestrator runs the authentication flows.
type Orchestrator struct {
	store   identity.Store
	hasher  *password.Hasher
	cfg     Config
	log     *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithLogger(log *slog.Logger) Option {
	return func(o *Orchestrator) {
		if log != nil {
			o.log = log
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithClock overrides the time source for sessions and tokens.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New returns an Orchestrator backed by store.
func New(store identity.Store, hasher *password.Hasher, cfg Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:  store,
		hasher: hasher,
		cfg:    cfg,
		log:    slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Cookies returns the cookie transport the flows use.
func (o *Orchestrator) Cookies() cookie.Transport { return o.cfg.Cookies }

func (o *Orchestrator) issuer(q identity.Queries) *tokens.Issuer {
	return tokens.New(o.cfg.Tokens, keys.New(q), session.NewStore(q, session.WithClock(o.now)), tokens.WithClock(o.now))
}

// Issued is the result of Login and Refresh.
type Issued struct {
	UserID    string
	Username  string
	SessionID string
	Access    tokens.Token
	Refresh   tokens.Token
	// Cookies are Set-Cookie header values ready to be written.
	Cookies []string
}

// RegisterInput is the payload of Register.
type RegisterInput struct {
	Username string
	Password string
	Email    string
}

// Register creates a credential and its signing keys in one transaction.
func (o *Orchestrator) Register(ctx context.Context, in RegisterInput) (identity.Credential, error) {
	const op = "register"

	username := strings.TrimSpace(in.Username)
	if username == "" || in.Password == "" {
		o.metrics.Outcome(op, "invalid_input")
		return identity.Credential{}, ErrInvalidInput
	}
	if err := identity.CheckCredentialInput(username, in.Email); err != nil {
		o.metrics.Outcome(op, "invalid_input")
		return identity.Credential{}, errors.Join(ErrInvalidInput, err)
	}

	switch _, err := o.store.FindCredential(ctx, username); {
	case err == nil:
		o.metrics.Outcome(op, "conflict")
		return identity.Credential{}, ErrConflict
	case identity.IsInvalidInput(err):
		o.metrics.Outcome(op, "invalid_input")
		return identity.Credential{}, ErrInvalidInput
	case !identity.IsNotFound(err):
		o.metrics.Outcome(op, "error")
		return identity.Credential{}, internal(op, err)
	}

	start := time.Now()
	hash, err := o.hasher.Hash(ctx, in.Password)
	o.metrics.ObserveHashing(time.Since(start))
	if err != nil {
		if password.IsPolicyViolation(err) {
			o.metrics.Outcome(op, "invalid_input")
			return identity.Credential{}, errors.Join(ErrInvalidInput, err)
		}
		o.metrics.Outcome(op, "error")
		return identity.Credential{}, internal(op, err)
	}

	var cred identity.Credential
	err = o.store.InTx(ctx, func(q identity.Queries) error {
		userID, err := q.InsertCredential(ctx, identity.NewCredential{
			Username:     username,
			PasswordHash: hash,
			Email:        in.Email,
			Now:          o.now(),
		})
		if err != nil {
			return err
		}
		if err := keys.New(q, keys.WithSecretBytes(o.cfg.SecretBytes), keys.WithClock(o.now)).Provision(ctx, userID); err != nil {
			return err
		}
		cred, err = q.CredentialByID(ctx, userID)
		return err
	})
	switch {
	case err == nil:
	case identity.IsConflict(err):
		// Lost a race with a concurrent registration of the same name.
		o.metrics.Outcome(op, "conflict")
		return identity.Credential{}, ErrConflict
	case identity.IsInvalidInput(err):
		o.metrics.Outcome(op, "invalid_input")
		return identity.Credential{}, errors.Join(ErrInvalidInput, err)
	default:
		o.metrics.Outcome(op, "error")
		return identity.Credential{}, internal(op, err)
	}

	o.metrics.Outcome(op, "ok")
	o.log.Info("auth.register.ok", "user_id", cred.UserID)
	return cred, nil
}

// LoginInput is the payload of Login.
type LoginInput struct {
	Username string
	Password string
	Device   session.Device
}

// Login verifies credentials, opens a session and issues tokens bound to it.
func (o *Orchestrator) Login(ctx context.Context, in LoginInput) (Issued, error) {
	const op = "login"

	cred, err := o.store.FindCredential(ctx, strings.TrimSpace(in.Username))
	switch {
	case err == nil:
	case identity.IsNotFound(err) || identity.IsInvalidInput(err):
		// Burn the same hashing work as a real check so timing does not reveal the miss.
		start := time.Now()
		o.hasher.VerifyDummy(ctx, in.Password)
		o.metrics.ObserveHashing(time.Since(start))
		return Issued{}, o.loginFailed("unknown user")
	default:
		o.metrics.Outcome(op, "error")
		return Issued{}, internal(op, err)
	}

	start := time.Now()
	ok := o.hasher.Verify(ctx, in.Password, cred.PasswordHash)
	o.metrics.ObserveHashing(time.Since(start))
	if !ok {
		if err := ctx.Err(); err != nil {
			o.metrics.Outcome(op, "error")
			return Issued{}, internal(op, err)
		}
		return Issued{}, o.loginFailed("wrong password")
	}

	u := tokens.User{ID: cred.UserID, Username: cred.Username}
	var issued Issued
	err = o.store.InTx(ctx, func(q identity.Queries) error {
		sid, err := session.NewStore(q, session.WithClock(o.now)).Create(ctx, u.ID, in.Device)
		if err != nil {
			return err
		}
		issued, err = o.issue(ctx, q, u, sid)
		return err
	})
	if err != nil {
		o.metrics.Outcome(op, "error")
		return Issued{}, internal(op, err)
	}

	c := o.cfg.Cookies
	issued.Cookies = []string{
		c.EncodeUntil(cookie.AccessCookie, issued.Access.Value, issued.Access.ExpiresAt),
		c.EncodeUntil(cookie.RefreshCookie, issued.Refresh.Value, issued.Refresh.ExpiresAt),
		// No expiry: the session row decides how long the id stays usable, and
		// Refresh does not rewrite this cookie.
		c.Encode(cookie.SessionCookie, issued.SessionID),
	}

	o.metrics.Outcome(op, "ok")
	o.log.Info("auth.login.ok", "user_id", u.ID, "session_fp", token.Fingerprint(issued.SessionID), "device", in.Device.Label)
	return issued, nil
}

func (o *Orchestrator) loginFailed(reason string) error {
	o.metrics.Outcome("login", "invalid_credentials")
	o.log.Debug("auth.login.fail", "reason", reason)
	return ErrInvalidCredentials
}

func (o *Orchestrator) issue(ctx context.Context, q identity.Queries, u tokens.User, sid string) (Issued, error) {
	iss := o.issuer(q)
	access, err := iss.IssueAccess(ctx, u)
	if err != nil {
		return Issued{}, err
	}
	refresh, err := iss.IssueRefreshFor(ctx, u, sid)
	if err != nil {
		return Issued{}, err
	}
	return Issued{
		UserID:    u.ID,
		Username:  u.Username,
		SessionID: sid,
		Access:    access,
		Refresh:   refresh,
	}, nil
}

// Authorize is the request guard. It reads the access token and session id
// from r's cookies and validates the token with the session owner's key.
func (o *Orchestrator) Authorize(ctx context.Context, r *http.Request) (tokens.AccessClaims, error) {
	claims, _, err := o.authorize(ctx, r)
	return claims, err
}

func (o *Orchestrator) authorize(ctx context.Context, r *http.Request) (tokens.AccessClaims, string, error) {
	const op = "authorize"

	raw, err := o.cfg.Cookies.Decode(r, cookie.AccessCookie)
	if err != nil {
		return tokens.AccessClaims{}, "", o.reject(op, deny("missing access cookie"))
	}
	sid, err := o.cfg.Cookies.Decode(r, cookie.SessionCookie)
	if err != nil {
		return tokens.AccessClaims{}, "", o.reject(op, deny("missing session cookie"))
	}

	owner, err := session.NewStore(o.store).OwnerOf(ctx, sid)
	if err != nil {
		return tokens.AccessClaims{}, "", o.reject(op, classify(err))
	}
	claims, err := o.issuer(o.store).ValidateAccess(ctx, raw, owner)
	if err != nil {
		return tokens.AccessClaims{}, "", o.reject(op, classify(err))
	}
	return claims, sid, nil
}

// Logout revokes the caller's session and returns cookies that clear all
// three auth cookies. The access token itself stays valid until it expires.
func (o *Orchestrator) Logout(ctx context.Context, r *http.Request) ([]string, error) {
	const op = "logout"

	claims, sid, err := o.authorize(ctx, r)
	if err != nil {
		return nil, err
	}

	deleted, err := session.NewStore(o.store).Revoke(ctx, sid)
	if err != nil {
		o.metrics.Outcome(op, "error")
		return nil, internal(op, err)
	}

	o.metrics.Outcome(op, "ok")
	o.log.Info("auth.logout.ok", "session_fp", token.Fingerprint(sid), "username", claims.Username, "deleted", deleted)

	c := o.cfg.Cookies
	return []string{
		c.Expire(cookie.AccessCookie),
		c.Expire(cookie.RefreshCookie),
		c.Expire(cookie.SessionCookie),
	}, nil
}

// Refresh trades a refresh token for a new access and refresh token on the
// same session. The session is row-locked from the liveness check until the
// new tokens are issued.
func (o *Orchestrator) Refresh(ctx context.Context, r *http.Request) (Issued, error) {
	const op = "refresh"

	raw, err := o.cfg.Cookies.Decode(r, cookie.RefreshCookie)
	if err != nil {
		return Issued{}, o.reject(op, deny("missing refresh cookie"))
	}
	sid, err := o.cfg.Cookies.Decode(r, cookie.SessionCookie)
	if err != nil {
		return Issued{}, o.reject(op, deny("missing session cookie"))
	}

	var issued Issued
	err = o.store.InTx(ctx, func(q identity.Queries) error {
		owner, err := session.NewStore(q).LockOwner(ctx, sid)
		if err != nil {
			return classify(err)
		}
		claims, err := o.issuer(q).ParseRefresh(ctx, raw, owner)
		if err != nil {
			return classify(err)
		}
		if claims.SessionID != sid {
			return deny("refresh token bound to another session")
		}
		cred, err := q.CredentialByID(ctx, owner)
		if err != nil {
			return classify(err)
		}
		if claims.Subject != cred.Username {
			return deny("refresh token subject mismatch")
		}

		issued, err = o.issue(ctx, q, tokens.User{ID: owner, Username: cred.Username}, sid)
		return err
	})
	if err != nil {
		return Issued{}, o.reject(op, err)
	}

	c := o.cfg.Cookies
	issued.Cookies = []string{
		c.EncodeUntil(cookie.AccessCookie, issued.Access.Value, issued.Access.ExpiresAt),
		c.EncodeUntil(cookie.RefreshCookie, issued.Refresh.Value, issued.Refresh.ExpiresAt),
	}

	o.metrics.Outcome(op, "ok")
	o.log.Info("auth.refresh.ok", "user_id", issued.UserID, "session_fp", token.Fingerprint(sid))
	return issued, nil
}

// classify turns the errors that mean "not authenticated" into a denial and
// leaves everything else alone.
func classify(err error) error {
	switch {
	case errors.Is(err, session.ErrUnknownSession):
		return deny("unknown session")
	case errors.Is(err, tokens.ErrExpired):
		return deny("token expired")
	case errors.Is(err, tokens.ErrSignatureInvalid):
		return deny("token signature invalid")
	case errors.Is(err, keys.ErrKeyNotFound):
		return deny("signing key not found")
	case identity.IsNotFound(err):
		return deny("credential not found")
	}
	return err
}

func (o *Orchestrator) reject(op string, err error) error {
	var d denial
	if errors.As(err, &d) {
		o.metrics.Outcome(op, "unauthorized")
		o.log.Debug("auth."+op+".fail", "reason", d.reason)
		return ErrUnauthorized
	}
	o.metrics.Outcome(op, "error")
	o.log.Error("auth."+op+".error", "err", err)
	return internal(op, err)
}
