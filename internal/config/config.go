package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds process configuration read from BUDGETCORE_* environment
// variables.
type Config struct {
	DBPath         string        `env:"BUDGETCORE_DB"`
	SearchDebounce time.Duration `env:"BUDGETCORE_SEARCH_DEBOUNCE" envDefault:"300ms"`
	LogUseCases    bool          `env:"BUDGETCORE_LOG_USE_CASES" envDefault:"false"`
	LogLevel       string        `env:"BUDGETCORE_LOG_LEVEL" envDefault:"warn"`

	// Tracing is opt-in: spans are exported only when an endpoint is set.
	OTelEndpoint    string `env:"BUDGETCORE_OTEL_ENDPOINT"`
	OTelServiceName string `env:"BUDGETCORE_OTEL_SERVICE_NAME" envDefault:"budgetctl"`
}

// Load parses the environment and fills in the default database path
// (~/.budgetcore/budgetcore.db).
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.DBPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("finding home directory: %w", err)
		}
		cfg.DBPath = filepath.Join(home, ".budgetcore", "budgetcore.db")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values the process cannot run with.
func (c Config) Validate() error {
	if c.SearchDebounce < 0 {
		return fmt.Errorf("BUDGETCORE_SEARCH_DEBOUNCE must not be negative, got %s", c.SearchDebounce)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Level returns the slog level named by LogLevel.
func (c Config) Level() slog.Level {
	lvl, _ := parseLevel(c.LogLevel)
	return lvl
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("BUDGETCORE_LOG_LEVEL: unknown level %q", s)
}
