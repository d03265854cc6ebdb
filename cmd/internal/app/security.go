package app

import (
	"errors"
	"fmt"
	"net/url"

	"authsrv/cmd/security/token"
)

// ValidateSecurityConfig rejects configurations that would weaken the service.
// It runs before any resource is opened.
func ValidateSecurityConfig(cfg Config) error {
	var errs []error

	if cfg.SecretBytes < token.MinSecretBytes {
		errs = append(errs, fmt.Errorf(
			"security policy: AUTH_SIGNING_SECRET_BYTES=%d is below the minimum of %d",
			cfg.SecretBytes, token.MinSecretBytes))
	}

	switch cfg.Storage {
	case StoragePostgres:
		if cfg.DatabaseURL == "" {
			errs = append(errs, errNoDatabaseURL)
		}
	case StorageMemory:
	default:
		errs = append(errs, fmt.Errorf("AUTH_STORAGE must be %q or %q, got %q", StoragePostgres, StorageMemory, cfg.Storage))
	}

	if cfg.RedisURL != "" {
		u, err := url.Parse(cfg.RedisURL)
		if err != nil || (u.Scheme != "redis" && u.Scheme != "rediss") {
			errs = append(errs, errors.New("AUTH_REDIS_URL must be a redis:// or rediss:// URL"))
		}
	}

	return errors.Join(errs...)
}
