// Package config loads application configuration from the environment,
// with an optional .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"musicsearch/gequbao"
	"musicsearch/library"
)

// Config is the process-wide configuration, read-only after Load.
type Config struct {
	// Upstream music site
	BaseURL            string
	UserAgent          string
	HTTPTimeout        time.Duration
	ResolveConcurrency int
	MaxResults         int

	// Response cache
	CacheEnabled bool
	CacheDir     string
	CacheTTL     time.Duration

	// Saved-tracks library
	LibraryDBPath   string
	LibraryAutosave bool

	// Logging
	LogLevel string
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first if present.
func Load() (*Config, error) {
	// Missing .env is fine; real deployments use plain env vars.
	_ = godotenv.Load()

	cfg := &Config{
		BaseURL:            getEnv("MUSIC_BASE_URL", gequbao.DefaultBaseURL),
		UserAgent:          getEnv("MUSIC_USER_AGENT", gequbao.DefaultUserAgent),
		HTTPTimeout:        getEnvDuration("MUSIC_HTTP_TIMEOUT", gequbao.DefaultTimeout),
		ResolveConcurrency: getEnvInt("MUSIC_RESOLVE_CONCURRENCY", gequbao.DefaultResolveConcurrency),
		MaxResults:         getEnvInt("MUSIC_MAX_RESULTS", gequbao.DefaultMaxResults),
		CacheEnabled:       getEnvBool("CACHE_ENABLED", true),
		CacheDir:           getEnv("CACHE_DIR", ""),
		CacheTTL:           getEnvDuration("CACHE_TTL", gequbao.DefaultCacheTTL),
		LibraryDBPath:      getEnv("LIBRARY_DB_PATH", library.DefaultDBPath),
		LibraryAutosave:    getEnvBool("LIBRARY_AUTOSAVE", false),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("MUSIC_BASE_URL must not be empty")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("MUSIC_HTTP_TIMEOUT must be positive, got %v", c.HTTPTimeout)
	}
	if c.ResolveConcurrency <= 0 {
		return fmt.Errorf("MUSIC_RESOLVE_CONCURRENCY must be positive, got %d", c.ResolveConcurrency)
	}
	if c.MaxResults <= 0 {
		return fmt.Errorf("MUSIC_MAX_RESULTS must be positive, got %d", c.MaxResults)
	}
	return nil
}

// ClientConfig maps the configuration onto the gequbao client's settings.
func (c *Config) ClientConfig() gequbao.Config {
	return gequbao.Config{
		BaseURL:            c.BaseURL,
		UserAgent:          c.UserAgent,
		Timeout:            c.HTTPTimeout,
		ResolveConcurrency: c.ResolveConcurrency,
		MaxResults:         c.MaxResults,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
