// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Backend names a storage implementation.
type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
)

// Config holds everything the server needs to start.
type Config struct {
	// Port is the TCP port the HTTP server listens on.
	Port string

	// Backend selects the storage implementation.
	Backend Backend

	// SQLitePath is the database file path when Backend is sqlite.
	SQLitePath string

	// PostgresDSN is the connection string when Backend is postgres.
	PostgresDSN string

	// PlanSearchBudget bounds the settlement planner's exhaustive search.
	// Zero selects the built-in default.
	PlanSearchBudget int

	// EventBuffer is the capacity of the audit-event queue.
	EventBuffer int

	// LogFormat is "text" or "json".
	LogFormat string
}

// Load reads configuration from the environment, applying defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Backend:     Backend(getEnv("LEDGER_BACKEND", string(BackendMemory))),
		SQLitePath:  getEnv("SQLITE_PATH", "data/tally.db"),
		PostgresDSN: os.Getenv("POSTGRES_DSN"),
		LogFormat:   getEnv("LOG_FORMAT", "text"),
	}

	var err error
	if cfg.PlanSearchBudget, err = getEnvInt("PLAN_SEARCH_BUDGET", 0); err != nil {
		return nil, err
	}
	if cfg.EventBuffer, err = getEnvInt("EVENT_BUFFER", 0); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMemory, BackendSQLite:
	case BackendPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required when LEDGER_BACKEND is %q", BackendPostgres)
		}
	default:
		return fmt.Errorf("unknown LEDGER_BACKEND %q", c.Backend)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("unknown LOG_FORMAT %q", c.LogFormat)
	}
	if c.PlanSearchBudget < 0 {
		return fmt.Errorf("PLAN_SEARCH_BUDGET must not be negative")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}
