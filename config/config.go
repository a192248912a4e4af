// Package config loads the settings of a library session from .env files,
// the environment and command-line overrides.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"library-circulation/library"
)

const (
	EnvDriver   = "LIBRARY_DRIVER"
	EnvDSN      = "LIBRARY_DSN"
	EnvLogLevel = "LIBRARY_LOG_LEVEL"
	EnvLoanDays = "LIBRARY_LOAN_DAYS"

	DefaultDSN      = "library.db"
	DefaultLogLevel = "info"
	DefaultLoanDays = 14
)

// Config is the resolved configuration of one session.
type Config struct {
	Driver   string
	DSN      string
	LogLevel string
	LoanDays int
}

// Load reads .env and .env.local (without overriding variables already set)
// and builds a Config from the environment.
func Load() (Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() (Config, error) {
	cfg := Config{
		Driver:   getenv(EnvDriver, library.DriverSQLite),
		DSN:      getenv(EnvDSN, DefaultDSN),
		LogLevel: getenv(EnvLogLevel, DefaultLogLevel),
		LoanDays: DefaultLoanDays,
	}
	if v := os.Getenv(EnvLoanDays); v != "" {
		days, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", EnvLoanDays, err)
		}
		cfg.LoanDays = days
	}
	return cfg, nil
}

// Validate rejects settings a session cannot start with.
func (c Config) Validate() error {
	if !slices.Contains(library.Drivers, c.Driver) {
		return fmt.Errorf("unsupported driver %q (want one of %s)", c.Driver, strings.Join(library.Drivers, ", "))
	}
	if strings.TrimSpace(c.DSN) == "" {
		return fmt.Errorf("dsn must not be empty")
	}
	if c.LoanDays <= 0 {
		return fmt.Errorf("loan days must be positive, got %d", c.LoanDays)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// LoanPeriod converts LoanDays into a duration.
func (c Config) LoanPeriod() time.Duration {
	return time.Duration(c.LoanDays) * 24 * time.Hour
}

// ParseLevel maps debug, info, warn and error onto slog levels.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
