package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"authsrv/cmd/internal/auth/lifecycle"

	"golang.org/x/term"
)

var errNoSeedPassword = errors.New("seed: AUTH_SEED_PASSWORD is not set and stdin is not a terminal")

// SeedUser registers username unless it already exists.
func (a *App) SeedUser(ctx context.Context, username, email, password string) error {
	cred, err := a.flows.Register(ctx, lifecycle.RegisterInput{
		Username: username,
		Password: password,
		Email:    email,
	})
	switch {
	case err == nil:
		a.log.Info("seed.created", "user_id", cred.UserID, "username", cred.Username)
		return nil
	case errors.Is(err, lifecycle.ErrConflict):
		a.log.Info("seed.exists", "username", username)
		return nil
	default:
		return fmt.Errorf("seed user: %w", err)
	}
}

// seedPassword takes the password from config, or prompts on in without echo.
func seedPassword(cfg Config, in *os.File, out io.Writer) (string, error) {
	if cfg.SeedPassword != "" {
		return cfg.SeedPassword, nil
	}

	fd := int(in.Fd()) // #nosec G115 -- file descriptors fit in int.
	if !term.IsTerminal(fd) {
		return "", errNoSeedPassword
	}

	_, _ = fmt.Fprint(out, "Password for seed user: ")
	b, err := term.ReadPassword(fd)
	_, _ = fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("seed: read password: %w", err)
	}
	pw := strings.TrimRight(string(b), "\r\n")
	if pw == "" {
		return "", errors.New("seed: empty password")
	}
	return pw, nil
}
