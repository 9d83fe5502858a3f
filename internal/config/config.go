// Package config loads catalogd settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"

	"github.com/ggoodman/drinks-catalog-go/auth"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Config is decoded from the environment. Defaults are provided via tags.
type Config struct {
	// Addr is the listen address. ENV: CATALOG_ADDR
	Addr string `env:"CATALOG_ADDR,default=127.0.0.1:5000"`
	// Realm is advertised in WWW-Authenticate challenges. ENV: CATALOG_REALM
	Realm string `env:"CATALOG_REALM,default=drinks"`
	// PublicURL enables RFC 9728 metadata for this URL. ENV: CATALOG_PUBLIC_URL
	PublicURL string `env:"CATALOG_PUBLIC_URL"`

	Auth  AuthConfig
	Store StoreConfig

	// LogLevel is one of debug, info, warn, error. ENV: LOG_LEVEL
	LogLevel string `env:"LOG_LEVEL,default=info"`
	// LogFormat is json or text. ENV: LOG_FORMAT
	LogFormat string `env:"LOG_FORMAT,default=json"`
}

type AuthConfig struct {
	Issuer string `env:"AUTH_ISSUER"`
	// Audience may list several values separated by commas.
	Audience string `env:"AUTH_AUDIENCE"`
	// JWKSURL skips OIDC discovery when set.
	JWKSURL string `env:"AUTH_JWKS_URL"`
	// JWKSFile reads keys from disk and reloads them on change.
	JWKSFile     string        `env:"AUTH_JWKS_FILE"`
	AllowedAlgs  string        `env:"AUTH_ALLOWED_ALGS,default=RS256"`
	Leeway       time.Duration `env:"AUTH_LEEWAY,default=0s"`
	FetchTimeout time.Duration `env:"AUTH_FETCH_TIMEOUT,default=5s"`
}

type StoreConfig struct {
	Backend        string `env:"CATALOG_STORE,default=memory"`
	RedisAddr      string `env:"REDIS_ADDR,default=localhost:6379"`
	RedisKeyPrefix string `env:"REDIS_KEY_PREFIX,default=catalog:"`
	DatabaseURL    string `env:"DATABASE_URL"`
}

// Load decodes and validates the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate returns an error if required settings are missing or inconsistent.
func (c *Config) Validate() error {
	if c.Auth.Issuer == "" {
		return errors.New("config: AUTH_ISSUER is required")
	}
	if len(c.Audiences()) == 0 {
		return errors.New("config: AUTH_AUDIENCE is required")
	}
	if c.Auth.JWKSURL != "" && c.Auth.JWKSFile != "" {
		return errors.New("config: AUTH_JWKS_URL and AUTH_JWKS_FILE are mutually exclusive")
	}
	switch c.Store.Backend {
	case StoreMemory, StoreRedis:
	case StorePostgres:
		if c.Store.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL is required for the postgres store")
		}
	default:
		return fmt.Errorf("config: unknown CATALOG_STORE %q", c.Store.Backend)
	}
	if _, err := c.level(); err != nil {
		return err
	}
	return nil
}

// Audiences splits AUTH_AUDIENCE.
func (c *Config) Audiences() []string { return splitList(c.Auth.Audience) }

// Security builds the gate configuration. JWKSURL is empty when the key set
// location must be discovered.
func (c *Config) Security() auth.SecurityConfig {
	return auth.SecurityConfig{
		Issuer:       c.Auth.Issuer,
		Audiences:    c.Audiences(),
		AllowedAlgs:  splitList(c.Auth.AllowedAlgs),
		JWKSURL:      c.Auth.JWKSURL,
		JWKSFile:     c.Auth.JWKSFile,
		Leeway:       c.Auth.Leeway,
		FetchTimeout: c.Auth.FetchTimeout,
	}
}

// NeedsDiscovery reports whether the key set location comes from OIDC
// discovery.
func (c *Config) NeedsDiscovery() bool { return c.Auth.JWKSURL == "" && c.Auth.JWKSFile == "" }

// Logger builds the process logger writing to w.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	lvl, _ := c.level()
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(c.LogFormat, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func (c *Config) level() (slog.Level, error) {
	var lvl slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("config: invalid LOG_LEVEL %q", c.LogLevel)
	}
	return lvl, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
