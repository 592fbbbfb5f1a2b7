// Package config loads and validates console configuration from env and an
// optional .env file using Viper.
package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

// Config holds settings shared by the console server and the client core.
type Config struct {
	// Addr is the address consoled listens on (e.g. :8080).
	Addr string `mapstructure:"CONSOLE_ADDR"`
	// APIBaseURL is the base URL the client core prefixes onto API path suffixes.
	APIBaseURL string `mapstructure:"CONSOLE_API_BASE_URL"`
	// Production selects the cookie session strategy and disables dev affordances.
	Production bool `mapstructure:"CONSOLE_PRODUCTION"`
	// MockAPIEnabled routes client requests through the in-process mock backend.
	MockAPIEnabled bool `mapstructure:"CONSOLE_MOCK_API"`
	// SessionFile is where the dev-only persisted session record is written.
	SessionFile string `mapstructure:"CONSOLE_SESSION_FILE"`
	// AuthJWTSecret signs session cookies. Required in production.
	AuthJWTSecret string `mapstructure:"CONSOLE_AUTH_JWT_SECRET"`
	// PGDSN is the Postgres DSN for the users directory; empty selects the
	// in-memory directory seeded with the reference accounts.
	PGDSN string `mapstructure:"CONSOLE_PG_DSN"`
	// RedisAddr backs refresh token revocation; empty selects the in-memory store.
	RedisAddr string `mapstructure:"CONSOLE_REDIS_ADDR"`
	// LogLevel is the minimum emitted log severity (debug|info|warn|error).
	LogLevel string `mapstructure:"CONSOLE_LOG_LEVEL"`
	// HTTPTimeout bounds every client round trip, e.g. "15s". The original UI
	// left requests unbounded; a timeout surfaces as a NETWORK error instead.
	HTTPTimeout string `mapstructure:"CONSOLE_HTTP_TIMEOUT"`
	// AuthRateBurst / AuthRatePerSec throttle the login and refresh endpoints.
	AuthRateBurst  int `mapstructure:"CONSOLE_AUTH_RATE_BURST"`
	AuthRatePerSec int `mapstructure:"CONSOLE_AUTH_RATE_PER_SEC"`
}

// devJWTSecret keeps local development working without configuration.
const devJWTSecret = "dev-secret-change-me"

// Load reads .env (if present), then builds and validates Config from the
// environment. Env vars override .env values.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore missing .env (e.g. in CI)

	v.AutomaticEnv()

	v.SetDefault("CONSOLE_ADDR", ":8080")
	v.SetDefault("CONSOLE_API_BASE_URL", "/api")
	v.SetDefault("CONSOLE_PRODUCTION", false)
	v.SetDefault("CONSOLE_MOCK_API", false)
	v.SetDefault("CONSOLE_SESSION_FILE", ".console-session.json")
	v.SetDefault("CONSOLE_AUTH_JWT_SECRET", "")
	v.SetDefault("CONSOLE_PG_DSN", "")
	v.SetDefault("CONSOLE_REDIS_ADDR", "")
	v.SetDefault("CONSOLE_LOG_LEVEL", "info")
	v.SetDefault("CONSOLE_HTTP_TIMEOUT", "15s")
	v.SetDefault("CONSOLE_AUTH_RATE_BURST", 30)
	v.SetDefault("CONSOLE_AUTH_RATE_PER_SEC", 10)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.Addr == "" {
		return nil, errors.New("config: CONSOLE_ADDR must be set")
	}
	if cfg.AuthJWTSecret == "" {
		if cfg.Production {
			return nil, errors.New("config: CONSOLE_AUTH_JWT_SECRET is required in production")
		}
		cfg.AuthJWTSecret = devJWTSecret
	}
	if cfg.Production && cfg.MockAPIEnabled {
		return nil, errors.New("config: CONSOLE_MOCK_API must not be enabled in production")
	}

	return &cfg, nil
}

// UsesCookieAuth reports whether the deployment runs the cookie session
// strategy. Production always does; dev does unless the mock backend is on.
func (c *Config) UsesCookieAuth() bool {
	return c.Production || !c.MockAPIEnabled
}

// CanPersistSession reports whether the client may cache the session durably.
// Credentials never reach durable storage outside the dev/mock configuration.
func (c *Config) CanPersistSession() bool {
	return !c.Production && c.MockAPIEnabled
}

// RequestTimeout parses HTTPTimeout. Returns 15s if unset or invalid.
func (c *Config) RequestTimeout() time.Duration {
	d, err := time.ParseDuration(c.HTTPTimeout)
	if err != nil || d <= 0 {
		return 15 * time.Second
	}
	return d
}
