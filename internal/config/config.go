// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Storage backends selectable with STORE_BACKEND.
const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// Config holds all configuration values for the API server.
// Values are populated by Load from environment variables.
type Config struct {
	// Port is the TCP port the HTTP server listens on. Defaults to "8080".
	Port string

	// LogLevel controls the minimum log level. Defaults to "info".
	// Valid values: debug, info, warn, error.
	LogLevel string

	// CORSOrigins is the list of allowed cross-origin request origins.
	// Defaults to ["http://localhost:5173"] (Vite dev server).
	// Set CORS_ORIGINS to a comma-separated list to override.
	CORSOrigins []string

	// Backend is one of BackendPostgres, BackendRedis or BackendMemory.
	// Defaults to postgres when DATABASE_URL is set, memory otherwise.
	Backend string

	// DatabaseURL is the Postgres connection string. Required for postgres.
	DatabaseURL string

	// RedisURL is a redis:// URL. Required for redis.
	RedisURL string

	// MigrateOnStart runs pending migrations before serving. Postgres only.
	MigrateOnStart bool

	// MaxBodyBytes caps request bodies. Defaults to 1 MiB.
	MaxBodyBytes int64

	// ConnectRetries is how many times connecting the store is retried with
	// exponential backoff before serve gives up. Defaults to 5.
	ConnectRetries int
}

// Load reads configuration from environment variables and returns a Config.
// Returns an error naming every variable that is missing or malformed.
func Load() (Config, error) {
	cfg := Config{
		Port:        getEnv("PORT", "8080"),
		LogLevel:    strings.ToLower(getEnv("LOG_LEVEL", "info")),
		CORSOrigins: splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),
	}

	var problems []string

	if _, err := strconv.ParseUint(cfg.Port, 10, 16); err != nil {
		problems = append(problems, fmt.Sprintf("PORT: %q is not a valid port", cfg.Port))
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		problems = append(problems, fmt.Sprintf("LOG_LEVEL: %q is not one of debug, info, warn, error", cfg.LogLevel))
	}

	defaultBackend := BackendMemory
	if cfg.DatabaseURL != "" {
		defaultBackend = BackendPostgres
	}
	cfg.Backend = strings.ToLower(getEnv("STORE_BACKEND", defaultBackend))
	switch cfg.Backend {
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			problems = append(problems, "DATABASE_URL: required when STORE_BACKEND=postgres")
		}
	case BackendRedis:
		if cfg.RedisURL == "" {
			problems = append(problems, "REDIS_URL: required when STORE_BACKEND=redis")
		}
	case BackendMemory:
	default:
		problems = append(problems, fmt.Sprintf("STORE_BACKEND: %q is not one of postgres, redis, memory", cfg.Backend))
	}

	var err error
	if cfg.MigrateOnStart, err = strconv.ParseBool(getEnv("MIGRATE_ON_START", "false")); err != nil {
		problems = append(problems, fmt.Sprintf("MIGRATE_ON_START: %q is not a boolean", os.Getenv("MIGRATE_ON_START")))
	}
	if cfg.MaxBodyBytes, err = strconv.ParseInt(getEnv("MAX_BODY_BYTES", "1048576"), 10, 64); err != nil || cfg.MaxBodyBytes < 1 {
		problems = append(problems, fmt.Sprintf("MAX_BODY_BYTES: %q is not a positive integer", os.Getenv("MAX_BODY_BYTES")))
	}
	if cfg.ConnectRetries, err = strconv.Atoi(getEnv("CONNECT_RETRIES", "5")); err != nil || cfg.ConnectRetries < 0 {
		problems = append(problems, fmt.Sprintf("CONNECT_RETRIES: %q is not a non-negative integer", os.Getenv("CONNECT_RETRIES")))
	}

	if len(problems) > 0 {
		return Config{}, fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}

	return cfg, nil
}

// SlogLevel returns LogLevel as a slog.Level. Load has already validated it.
func (c Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// getEnv returns the value of the environment variable named by key,
// or fallback if the variable is not set or is empty.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
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
