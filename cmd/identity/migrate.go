package identity

import (
	"context"
	"fmt"

	"authsrv/cmd/identity/migrations"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// Migrate creates schema if needed and applies every pending migration.
// It returns the number of migrations applied.
func Migrate(ctx context.Context, pool *pgxpool.Pool, schema string) (int, error) {
	p, err := newMigrator(ctx, pool, schema)
	if err != nil {
		return 0, err
	}
	defer func() { _ = p.Close() }()

	res, err := p.Up(ctx)
	if err != nil {
		return len(res), fmt.Errorf("identity: migrate up: %w", err)
	}
	return len(res), nil
}

// Reset rolls back every applied migration, dropping all identity tables.
// Callers normally follow it with Migrate.
func Reset(ctx context.Context, pool *pgxpool.Pool, schema string) error {
	p, err := newMigrator(ctx, pool, schema)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	if _, err := p.DownTo(ctx, 0); err != nil {
		return fmt.Errorf("identity: migrate reset: %w", err)
	}
	return nil
}

// newMigrator opens a database/sql handle pinned to schema via search_path,
// so the unqualified DDL in migrations lands in the right place.
func newMigrator(ctx context.Context, pool *pgxpool.Pool, schema string) (*goose.Provider, error) {
	if pool == nil {
		return nil, fmt.Errorf("identity: nil pool")
	}
	if schema == "" {
		schema = "public"
	}
	if !pgIdentIsValid(schema) {
		return nil, fmt.Errorf("identity: invalid schema identifier")
	}

	if _, err := pool.Exec(ctx, `CREATE SCHEMA IF NOT EXISTS `+pgx.Identifier{schema}.Sanitize()); err != nil {
		return nil, fmt.Errorf("identity: create schema: %w", err)
	}

	connCfg := pool.Config().ConnConfig.Copy()
	if connCfg.RuntimeParams == nil {
		connCfg.RuntimeParams = map[string]string{}
	}
	connCfg.RuntimeParams["search_path"] = schema

	db := stdlib.OpenDB(*connCfg)
	p, err := goose.NewProvider(goose.DialectPostgres, db, migrations.FS)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("identity: goose provider: %w", err)
	}
	return p, nil
}
