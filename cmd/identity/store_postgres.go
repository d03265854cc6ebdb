package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"authsrv/cmd/identity/ids"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store over PostgreSQL.
//
// The pgx pool is owned by the caller; this store never closes it.
// Schema and table identifiers are quoted via pgx.Identifier.
type PostgresStore struct {
	pgQueries
	pool *pgxpool.Pool
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema used by the store (default "public").
// The schema name is validated to be a legal PostgreSQL identifier.
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("identity: empty schema")
		}
		if !pgIdentIsValid(schema) {
			return fmt.Errorf("identity: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{pool: pool}
	st.schema = "public"
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("identity: nil pool")
	}
	st.db = pool
	return st, nil
}

// Schema returns the schema the store reads and writes.
func (s *PostgresStore) Schema() string { return s.schema }

// Ping acquires a connection and round-trips to the server.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return OpError{Op: "identity.Ping", Kind: ErrPersistenceUnavailable, Err: err}
	}
	return nil
}

// InTx runs fn inside a READ COMMITTED transaction.
func (s *PostgresStore) InTx(ctx context.Context, fn func(q Queries) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return OpError{Op: "identity.InTx", Kind: ErrPersistenceUnavailable, Err: err}
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(pgQueries{db: tx, schema: s.schema}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// pgQuerier is the subset shared by *pgxpool.Pool and pgx.Tx.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// pgQueries implements Queries against either the pool or a transaction.
type pgQueries struct {
	db     pgQuerier
	schema string
}

func (q pgQueries) table(name string) string { return pgIdent(q.schema, name) }

func (q pgQueries) FindCredential(ctx context.Context, username string) (Credential, error) {
	const op = "identity.FindCredential"

	norm := NormalizeUsername(username)
	if norm == "" {
		return Credential{}, invalid(op, "missing username")
	}
	if err := checkText(op, "username", strings.TrimSpace(username), MaxUsernameLen); err != nil {
		return Credential{}, err
	}

	var c Credential
	err := q.db.QueryRow(ctx,
		`SELECT user_id, username, password_hash, email, created_at
		   FROM `+q.table("users")+`
		  WHERE username_norm = $1`,
		norm,
	).Scan(&c.UserID, &c.Username, &c.PasswordHash, &c.Email, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Credential{}, NotFoundError{Op: op, Resource: "credential"}
		}
		return Credential{}, err
	}
	return c, nil
}

func (q pgQueries) CredentialByID(ctx context.Context, userID string) (Credential, error) {
	const op = "identity.CredentialByID"

	if strings.TrimSpace(userID) == "" {
		return Credential{}, invalid(op, "missing user_id")
	}

	var c Credential
	err := q.db.QueryRow(ctx,
		`SELECT user_id, username, password_hash, email, created_at
		   FROM `+q.table("users")+`
		  WHERE user_id = $1`,
		userID,
	).Scan(&c.UserID, &c.Username, &c.PasswordHash, &c.Email, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Credential{}, NotFoundError{Op: op, Resource: "credential"}
		}
		return Credential{}, err
	}
	return c, nil
}

func (q pgQueries) InsertCredential(ctx context.Context, in NewCredential) (string, error) {
	const op = "identity.InsertCredential"

	username := strings.TrimSpace(in.Username)
	if username == "" {
		return "", invalid(op, "missing username")
	}
	if err := CheckCredentialInput(username, in.Email); err != nil {
		return "", err
	}
	if in.PasswordHash == "" {
		return "", invalid(op, "missing password hash")
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	userID, err := ids.NewUserID(now)
	if err != nil {
		return "", err
	}

	_, err = q.db.Exec(ctx,
		`INSERT INTO `+q.table("users")+` (
		     user_id, username, username_norm, password_hash, email, created_at
		   ) VALUES ($1, $2, $3, $4, $5, $6)`,
		userID,
		username,
		NormalizeUsername(username),
		in.PasswordHash,
		strings.TrimSpace(in.Email),
		now,
	)
	if err != nil {
		if field, ok := pgClassifyUniqueViolation(err); ok {
			return "", ConflictError{Op: op, Field: field}
		}
		if pgIsDataException(err) {
			return "", OpError{Op: op, Kind: ErrInvalidInput, Err: err}
		}
		return "", err
	}
	return userID, nil
}

func (q pgQueries) AccessSecret(ctx context.Context, userID string) (string, error) {
	return q.secret(ctx, "identity.AccessSecret", "access_secret", userID)
}

func (q pgQueries) RefreshSecret(ctx context.Context, userID string) (string, error) {
	return q.secret(ctx, "identity.RefreshSecret", "refresh_secret", userID)
}

// secret reads one column of signing_keys. column is always a constant from this file.
func (q pgQueries) secret(ctx context.Context, op, column, userID string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", invalid(op, "missing user_id")
	}

	var v string
	err := q.db.QueryRow(ctx,
		`SELECT `+pgx.Identifier{column}.Sanitize()+`
		   FROM `+q.table("signing_keys")+`
		  WHERE user_id = $1`,
		userID,
	).Scan(&v)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", NotFoundError{Op: op, Resource: "signing_keys"}
		}
		return "", err
	}
	return v, nil
}

func (q pgQueries) InsertKeys(ctx context.Context, keys SigningKeys) error {
	const op = "identity.InsertKeys"

	if strings.TrimSpace(keys.UserID) == "" {
		return invalid(op, "missing user_id")
	}
	if keys.AccessSecret == "" || keys.RefreshSecret == "" {
		return invalid(op, "missing secret")
	}
	if keys.AccessSecret == keys.RefreshSecret {
		return invalid(op, "access and refresh secrets must differ")
	}

	now := keys.CreatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}

	_, err := q.db.Exec(ctx,
		`INSERT INTO `+q.table("signing_keys")+` (user_id, access_secret, refresh_secret, created_at)
		 VALUES ($1, $2, $3, $4)`,
		keys.UserID, keys.AccessSecret, keys.RefreshSecret, now,
	)
	if err != nil {
		if _, ok := pgClassifyUniqueViolation(err); ok {
			return ConflictError{Op: op, Field: "signing_keys"}
		}
		if pgIsForeignKeyViolation(err) {
			return NotFoundError{Op: op, Resource: "credential"}
		}
		return err
	}
	return nil
}

func (q pgQueries) InsertSession(ctx context.Context, s Session) error {
	const op = "identity.InsertSession"

	if !ids.IsSessionID(s.ID) {
		return invalid(op, "invalid session_id")
	}
	if strings.TrimSpace(s.UserID) == "" {
		return invalid(op, "missing user_id")
	}

	now := s.CreatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var ipVal any
	if s.IP != nil {
		ipVal = s.IP.String()
	}

	_, err := q.db.Exec(ctx,
		`INSERT INTO `+q.table("sessions")+` (
		     session_id, user_id, created_at, user_agent, ip, device
		   ) VALUES ($1, $2, $3, $4, $5, $6)`,
		s.ID,
		s.UserID,
		now,
		nullIfEmpty(s.UserAgent),
		ipVal,
		nullIfEmpty(s.Device),
	)
	if err != nil {
		if _, ok := pgClassifyUniqueViolation(err); ok {
			return ConflictError{Op: op, Field: "session_id"}
		}
		if pgIsForeignKeyViolation(err) {
			return NotFoundError{Op: op, Resource: "credential"}
		}
		return err
	}
	return nil
}

func (q pgQueries) LatestSessionFor(ctx context.Context, userID string) (string, error) {
	const op = "identity.LatestSessionFor"

	if strings.TrimSpace(userID) == "" {
		return "", invalid(op, "missing user_id")
	}

	var id string
	err := q.db.QueryRow(ctx,
		`SELECT session_id::text
		   FROM `+q.table("sessions")+`
		  WHERE user_id = $1
		  ORDER BY created_at DESC, seq DESC
		  LIMIT 1`,
		userID,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", NotFoundError{Op: op, Resource: "session"}
		}
		return "", err
	}
	return id, nil
}

func (q pgQueries) SessionOwner(ctx context.Context, sessionID string) (string, error) {
	return q.sessionOwner(ctx, "identity.SessionOwner", sessionID, false)
}

func (q pgQueries) LockSessionOwner(ctx context.Context, sessionID string) (string, error) {
	return q.sessionOwner(ctx, "identity.LockSessionOwner", sessionID, true)
}

func (q pgQueries) sessionOwner(ctx context.Context, op, sessionID string, lock bool) (string, error) {
	// A malformed id cannot name a row; it is reported like a missing one.
	if !ids.IsSessionID(sessionID) {
		return "", NotFoundError{Op: op, Resource: "session"}
	}

	sql := `SELECT user_id FROM ` + q.table("sessions") + ` WHERE session_id = $1`
	if lock {
		sql += ` FOR UPDATE`
	}

	var userID string
	if err := q.db.QueryRow(ctx, sql, sessionID).Scan(&userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", NotFoundError{Op: op, Resource: "session"}
		}
		return "", err
	}
	return userID, nil
}

func (q pgQueries) DeleteSession(ctx context.Context, sessionID string) (bool, error) {
	if !ids.IsSessionID(sessionID) {
		return false, nil
	}

	ct, err := q.db.Exec(ctx,
		`DELETE FROM `+q.table("sessions")+` WHERE session_id = $1`,
		sessionID,
	)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func nullIfEmpty(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return s
}

// pgIdentIsValid checks if a string is a safe Postgres identifier.
func pgIdentIsValid(s string) bool {
	return pgIdentRe.MatchString(s)
}

// pgIdent safely quotes a schema-qualified identifier: "schema"."name".
func pgIdent(schema, name string) string {
	return pgx.Identifier{schema, name}.Sanitize()
}

func pgIsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23503" // foreign_key_violation
}

func pgClassifyUniqueViolation(err error) (field string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	if pgErr.Code != "23505" { // unique_violation
		return "", false
	}

	c := strings.ToLower(strings.TrimSpace(pgErr.ConstraintName))
	switch c {
	case "uq_users_username_norm":
		return "username", true
	case "signing_keys_pkey":
		return "signing_keys", true
	case "sessions_pkey":
		return "session_id", true
	default:
		switch {
		case strings.Contains(c, "username"):
			return "username", true
		case strings.Contains(c, "signing"):
			return "signing_keys", true
		default:
			return "unique", true
		}
	}
}

// pgIsDataException reports SQLSTATE class 22, e.g. a value too long for its
// column (22001) or a byte sequence the encoding rejects (22021).
func pgIsDataException(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "22")
}
