package app

import (
	"net"
	"net/url"
	"runtime"
	"strings"
	"time"

	"authsrv/cmd/security/token"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config contains all runtime configuration loaded from environment variables.
// Per-component settings (password policy, token lifetimes, cookies, API limits)
// are loaded by their own packages.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	MaxHeaderBytes    int

	Storage     string
	DatabaseURL string
	DBSchema    string
	DBMaxConns  int32
	DBMinConns  int32

	// RedisURL enables request throttling when set.
	RedisURL       string
	ThrottleLimit  int
	ThrottleWindow time.Duration

	SecretBytes  int
	HashWorkers  int
	SeedPassword string
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr: net.JoinHostPort(
			EnvString("AUTH_SERVER_ADDRESS", "0.0.0.0"),
			EnvString("AUTH_SERVER_PORT", "8080"),
		),
		LogLevel:  EnvString("AUTH_LOG_LEVEL", "info"),
		LogFormat: EnvString("AUTH_LOG_FORMAT", "json"),

		ReadHeaderTimeout: EnvDuration("AUTH_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("AUTH_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("AUTH_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("AUTH_HTTP_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout:   EnvDuration("AUTH_SHUTDOWN_TIMEOUT", 10*time.Second),
		MaxHeaderBytes:    EnvInt("AUTH_HTTP_MAX_HEADER_BYTES", 1<<20),

		Storage:     strings.ToLower(EnvString("AUTH_STORAGE", StoragePostgres)),
		DatabaseURL: databaseURL(),
		DBSchema:    EnvString("AUTH_DB_SCHEMA", "public"),
		DBMaxConns:  EnvInt32("AUTH_DB_MAX_CONNS", 7),
		DBMinConns:  EnvInt32("AUTH_DB_MIN_CONNS", 0),

		RedisURL:       EnvString("AUTH_REDIS_URL", ""),
		ThrottleLimit:  EnvInt("REQUEST_THROTTLING_LIMIT", 120),
		ThrottleWindow: EnvDuration("AUTH_THROTTLE_WINDOW", time.Minute),

		SecretBytes:  EnvInt("AUTH_SIGNING_SECRET_BYTES", token.MinSecretBytes),
		HashWorkers:  EnvInt("AUTH_HASH_WORKERS", runtime.NumCPU()),
		SeedPassword: EnvString("AUTH_SEED_PASSWORD", ""),
	}
}

// databaseURL prefers DATABASE_URL and otherwise assembles a DSN from the
// DATABASE_ADDRESS/PORT/NAME/USER/PASSWORD parts. It returns "" when neither is set.
func databaseURL() string {
	if dsn := EnvString("DATABASE_URL", ""); dsn != "" {
		return dsn
	}
	host := EnvString("DATABASE_ADDRESS", "")
	if host == "" {
		return ""
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(host, EnvString("DATABASE_PORT", "5432")),
		Path:   "/" + EnvString("DATABASE_NAME", "postgres"),
	}
	user := EnvString("DATABASE_USER", "")
	if pass := EnvString("DATABASE_PASSWORD", ""); pass != "" {
		u.User = url.UserPassword(user, pass)
	} else if user != "" {
		u.User = url.User(user)
	}
	if mode := EnvString("DATABASE_SSLMODE", ""); mode != "" {
		u.RawQuery = url.Values{"sslmode": []string{mode}}.Encode()
	}
	return u.String()
}
