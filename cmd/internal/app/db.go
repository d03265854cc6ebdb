package app

import (
	"context"
	"errors"
	"time"

	"authsrv/cmd/identity"

	"github.com/jackc/pgx/v5/pgxpool"
)

var errNoDatabaseURL = errors.New("DATABASE_URL (or DATABASE_ADDRESS) is required for postgres storage")

// NewDBPool builds a pgxpool and validates connectivity. It does not migrate.
// A server that cannot be reached is reported as identity.ErrPersistenceUnavailable.
func NewDBPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	const op = "app.NewDBPool"

	if cfg.DatabaseURL == "" {
		return nil, errNoDatabaseURL
	}
	pcfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	if cfg.DBMaxConns > 0 {
		pcfg.MaxConns = cfg.DBMaxConns
	}
	if cfg.DBMinConns >= 0 && cfg.DBMinConns <= pcfg.MaxConns {
		pcfg.MinConns = cfg.DBMinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, identity.OpError{Op: op, Kind: identity.ErrPersistenceUnavailable, Err: err}
	}

	if err := PingDB(ctx, pool, 3*time.Second); err != nil {
		pool.Close()
		return nil, identity.OpError{Op: op, Kind: identity.ErrPersistenceUnavailable, Err: err}
	}

	return pool, nil
}

// PingDB checks if we can acquire a connection within timeout.
func PingDB(parent context.Context, pool *pgxpool.Pool, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	conn.Release()
	return nil
}
