package app

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
)

type runFlags struct {
	clearDatabase bool
	migrateOnly   bool
	seedUser      string
	seedEmail     string
}

func parseFlags(args []string) (runFlags, error) {
	var f runFlags
	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	fs.BoolVar(&f.clearDatabase, "clear-database", false, "drop all tables and re-run migrations before serving")
	fs.BoolVar(&f.migrateOnly, "migrate-only", false, "apply migrations and exit")
	fs.StringVar(&f.seedUser, "seed-user", "", "register this user at startup (password from AUTH_SEED_PASSWORD or prompt)")
	fs.StringVar(&f.seedEmail, "seed-email", "", "email for -seed-user")
	if err := fs.Parse(args); err != nil {
		return runFlags{}, err
	}
	if fs.NArg() > 0 {
		return runFlags{}, errors.New("unexpected arguments: " + strings.Join(fs.Args(), " "))
	}
	return f, nil
}

// Run is the CLI entrypoint used by cmd/authsrv.
// It returns an error instead of calling os.Exit to keep defers effective.
func Run(args []string) error {
	f, err := parseFlags(args)
	if err != nil {
		return err
	}

	printBanner(os.Stderr)

	cfg := LoadConfig()
	log := NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	if err := ValidateSecurityConfig(cfg); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := New(ctx, cfg, log)
	if err != nil {
		log.Error("startup.fail", "err", err)
		return err
	}
	defer a.Close()

	if err := a.Migrate(ctx, f.clearDatabase); err != nil {
		return err
	}
	if f.migrateOnly {
		return nil
	}

	if f.seedUser != "" {
		pw, err := seedPassword(cfg, os.Stdin, os.Stderr)
		if err != nil {
			return err
		}
		if err := a.SeedUser(ctx, f.seedUser, f.seedEmail, pw); err != nil {
			return err
		}
	}

	return a.Serve(ctx)
}
