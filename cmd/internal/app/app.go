// Package app wires the authsrv runtime: config, logging, storage, throttling
// and the HTTP routes that expose the authentication flows.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"authsrv/cmd/identity"
	authapi "authsrv/cmd/internal/auth/api"
	"authsrv/cmd/internal/auth/cookie"
	"authsrv/cmd/internal/auth/lifecycle"
	"authsrv/cmd/internal/auth/tokens"
	"authsrv/cmd/internal/metrics"
	"authsrv/cmd/security/password"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// App owns every long-lived resource of the server.
type App struct {
	cfg Config
	log Logger

	store identity.Store
	pool  *pgxpool.Pool

	redis   *redis.Client
	limiter Limiter

	metrics    *metrics.Metrics
	flows      *lifecycle.Orchestrator
	auth       *authapi.Handler
	trustProxy bool
}

// New constructs a fully wired App. With postgres storage the database must
// be reachable; otherwise the returned error wraps identity.ErrPersistenceUnavailable.
func New(ctx context.Context, cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	}

	pwCfg, err := password.FromEnv()
	if err != nil {
		return nil, err
	}
	tokCfg, err := tokens.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	apiCfg := authapi.LoadConfigFromEnv()

	a := &App{
		cfg:        cfg,
		log:        log,
		metrics:    metrics.New(),
		trustProxy: apiCfg.TrustProxy,
	}

	if err := a.openStore(ctx); err != nil {
		return nil, err
	}

	if cfg.RedisURL != "" {
		client, err := newRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.redis = client
		a.limiter = NewRedisLimiter(client, cfg.ThrottleLimit, cfg.ThrottleWindow)
		log.Info("throttle.enabled", "limit", cfg.ThrottleLimit, "window", cfg.ThrottleWindow.String())
	}

	hasher := password.NewHasher(pwCfg, cfg.HashWorkers)
	a.flows = lifecycle.New(a.store, hasher,
		lifecycle.Config{
			Tokens:      tokCfg,
			Cookies:     cookie.TransportFromEnv(),
			SecretBytes: cfg.SecretBytes,
		},
		lifecycle.WithLogger(log),
		lifecycle.WithMetrics(a.metrics),
	)

	a.auth, err = authapi.NewHandler(log, a.flows, apiCfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) openStore(ctx context.Context) error {
	switch a.cfg.Storage {
	case StorageMemory:
		a.log.Warn("db.disabled.inmemory_store", "note", "state is lost on restart")
		a.store = identity.NewMemoryStore()
		return nil
	case StoragePostgres:
	default:
		return fmt.Errorf("unknown AUTH_STORAGE %q", a.cfg.Storage)
	}

	pool, err := NewDBPool(ctx, a.cfg)
	if err != nil {
		return err
	}
	st, err := identity.NewPostgresStore(pool, identity.WithSchema(a.cfg.DBSchema))
	if err != nil {
		pool.Close()
		return err
	}
	a.pool = pool
	a.store = st
	a.log.Info("db.enabled.postgres_store", "schema", st.Schema())
	return nil
}

// Migrate applies pending schema migrations. With reset, every table is
// dropped first. It is a no-op for the in-memory store.
func (a *App) Migrate(ctx context.Context, reset bool) error {
	if a.pool == nil {
		return nil
	}
	if reset {
		a.log.Warn("db.reset", "schema", a.cfg.DBSchema)
		if err := identity.Reset(ctx, a.pool, a.cfg.DBSchema); err != nil {
			return err
		}
	}
	n, err := identity.Migrate(ctx, a.pool, a.cfg.DBSchema)
	if err != nil {
		return err
	}
	a.log.Info("db.migrate", "applied", n)
	return nil
}

// Serve starts the HTTP server and blocks until ctx is cancelled or the
// listener fails, then shuts down gracefully.
func (a *App) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "storage", a.cfg.Storage, "throttle", a.limiter != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("server.fail", "err", err)
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.log.Info("server.stop", "reason", context.Cause(gctx))

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), nonZeroDuration(a.cfg.ShutdownTimeout, 10*time.Second))
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.log.Error("server.shutdown.fail", "err", err)
			return err
		}
		return nil
	})

	err := g.Wait()
	a.log.Info("server.stopped")
	return err
}

// Close releases the database pool and the Redis client.
func (a *App) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Error("redis.close.fail", "err", err)
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
