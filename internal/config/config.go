// Package config loads ledger settings from a .env file and the process
// environment. CLI flags are applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/mangobank/ledger/internal/transfer"
)

// Backend names.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Environment variable names.
const (
	EnvBackend         = "LEDGER_BACKEND"
	EnvDB              = "LEDGER_DB"
	EnvPostgresDSN     = "LEDGER_POSTGRES_DSN"
	EnvMaxRetries      = "LEDGER_MAX_RETRIES"
	EnvTransferTimeout = "LEDGER_TRANSFER_TIMEOUT"
	EnvLogLevel        = "LEDGER_LOG_LEVEL"
)

// Config holds every runtime setting.
type Config struct {
	Backend         string
	DBPath          string
	PostgresDSN     string
	MaxRetries      int
	TransferTimeout time.Duration
	LogLevel        slog.Level
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Backend:         BackendSQLite,
		DBPath:          "ledger.db",
		MaxRetries:      transfer.DefaultMaxRetries,
		TransferTimeout: transfer.DefaultTimeout,
		LogLevel:        slog.LevelInfo,
	}
}

// Load reads the given .env files (".env" when none are named) and then
// the environment. Missing files are fine; malformed values are not.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				slog.Debug("no env file, relying on process environment", "file", f)
				continue
			}
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from lookup, starting from Default.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	if v, ok := lookup(EnvBackend); ok && v != "" {
		cfg.Backend = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := lookup(EnvDB); ok && v != "" {
		cfg.DBPath = v
	}
	if v, ok := lookup(EnvPostgresDSN); ok {
		cfg.PostgresDSN = v
	}
	if v, ok := lookup(EnvMaxRetries); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return Config{}, fmt.Errorf("%s: want a non-negative integer, got %q", EnvMaxRetries, v)
		}
		cfg.MaxRetries = n
	}
	if v, ok := lookup(EnvTransferTimeout); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return Config{}, fmt.Errorf("%s: want a duration like 5s, got %q", EnvTransferTimeout, v)
		}
		cfg.TransferTimeout = d
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return Config{}, fmt.Errorf("%s: %w", EnvLogLevel, err)
		}
	}

	return cfg, cfg.Validate()
}

// Validate checks that the settings are usable together.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendSQLite:
		if c.DBPath == "" {
			return fmt.Errorf("sqlite backend needs a database path (%s)", EnvDB)
		}
	case BackendPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("postgres backend needs a DSN (%s)", EnvPostgresDSN)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown backend %q (want %s, %s or %s)", c.Backend, BackendSQLite, BackendPostgres, BackendMemory)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative")
	}
	return nil
}

// TransferOptions returns the engine options the config implies.
func (c Config) TransferOptions() []transfer.Option {
	return []transfer.Option{
		transfer.WithMaxRetries(c.MaxRetries),
		transfer.WithTimeout(c.TransferTimeout),
	}
}
