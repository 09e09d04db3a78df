// Package config loads and validates application configuration from
// environment variables and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration values for the API server.
// Priority: ENV > YAML > defaults (env-default tags).
type Config struct {
	// Port is the TCP port the HTTP server listens on.
	Port string `yaml:"port" env:"PORT" env-default:"8080"`

	// DatabaseURL is the Postgres connection string. Required.
	DatabaseURL string `yaml:"database_url" env:"DATABASE_URL"`

	// LogLevel controls the minimum log level.
	// Valid values: debug, info, warn, error.
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`

	// CORSOriginsRaw is the comma-separated list behind CORSOrigins.
	CORSOriginsRaw string `yaml:"cors_origins" env:"CORS_ORIGINS" env-default:"http://localhost:5173"`

	// CORSOrigins is the list of allowed cross-origin request origins,
	// parsed from CORSOriginsRaw by Validate.
	CORSOrigins []string `yaml:"-" env:"-"`

	// JWTSecret is the HS256 key shared with the identity provider. Required,
	// at least 32 characters.
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`

	JWTIssuer string `yaml:"jwt_issuer" env:"JWT_ISSUER" env-default:"trip-timeline"`

	// AccessTokenTTL only matters for tokens minted locally (tripctl, tests).
	AccessTokenTTL time.Duration `yaml:"access_token_ttl" env:"ACCESS_TOKEN_TTL" env-default:"1h"`

	// StorageDir is where photo assets are kept.
	StorageDir string `yaml:"storage_dir" env:"STORAGE_DIR" env-default:"./data/trip-photos"`

	// PublicBaseURL prefixes public photo URLs.
	PublicBaseURL string `yaml:"public_base_url" env:"PUBLIC_BASE_URL" env-default:"http://localhost:8080"`

	// MaxBodyBytes caps request bodies; photo uploads are the largest.
	MaxBodyBytes int64 `yaml:"max_body_bytes" env:"MAX_BODY_BYTES" env-default:"10485760"`

	// PageCacheSize is the number of shared trip pages kept in memory.
	PageCacheSize int `yaml:"page_cache_size" env:"PAGE_CACHE_SIZE" env-default:"256"`

	// FeedBuffer is the per-subscriber event buffer of the change feed hub.
	FeedBuffer int `yaml:"feed_buffer" env:"FEED_BUFFER" env-default:"64"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// Load reads configuration and returns a validated Config.
// The YAML file path comes from CONFIG_PATH; without it only the environment
// and defaults are used.
func Load() (Config, error) {
	var cfg Config

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: read env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: validate: %w", err)
	}
	return cfg, nil
}

// Validate checks required values and derives parsed fields. Load calls it.
func (c *Config) Validate() error {
	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("required environment variables not set: %s", strings.Join(missing, ", "))
	}

	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters (got %d)", len(c.JWTSecret))
	}
	if c.MaxBodyBytes <= 0 {
		return errors.New("MAX_BODY_BYTES must be > 0")
	}
	if c.PageCacheSize <= 0 {
		return errors.New("PAGE_CACHE_SIZE must be > 0")
	}
	if c.FeedBuffer <= 0 {
		return errors.New("FEED_BUFFER must be > 0")
	}

	c.CORSOrigins = splitCSV(c.CORSOriginsRaw)
	return nil
}

// splitCSV splits a comma-separated string into a trimmed slice, ignoring empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}
