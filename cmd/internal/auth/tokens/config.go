package tokens

import (
	"errors"
	"os"
	"time"
)

// ErrConfig is returned for invalid configuration.
var ErrConfig = errors.New("invalid token config")

// Config holds token lifetimes.
type Config struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// DefaultConfig returns one hour for access tokens and one day for refresh tokens.
func DefaultConfig() Config {
	return Config{
		AccessTTL:  time.Hour,
		RefreshTTL: 24 * time.Hour,
	}
}

// LoadConfigFromEnv reads AUTH_ACCESS_TTL and AUTH_REFRESH_TTL on top of
// DefaultConfig. Durations use Go syntax ("90m", "24h").
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("AUTH_ACCESS_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.AccessTTL = d
	}

	if v := os.Getenv("AUTH_REFRESH_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.RefreshTTL = d
	}

	// A refresh token that dies before the access token it renews is useless.
	if cfg.RefreshTTL < cfg.AccessTTL {
		return Config{}, ErrConfig
	}

	return cfg, nil
}
