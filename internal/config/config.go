package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"schemachain/internal/backend"
)

type Config struct {
	HTTPAddress    string
	LogLevel       string
	Backend        backend.ID
	DatabaseDSN    string
	MigrationsPath string
	LedgerTable    string
}

func Load() (Config, error) {
	cfg := Config{
		HTTPAddress:    getEnv("SCHEMACHAIN_HTTP_ADDR", ":8080"),
		LogLevel:       getEnv("SCHEMACHAIN_LOG_LEVEL", "info"),
		Backend:        backend.ID(strings.ToLower(os.Getenv("SCHEMACHAIN_DB_BACKEND"))),
		DatabaseDSN:    os.Getenv("SCHEMACHAIN_DB_DSN"),
		MigrationsPath: os.Getenv("SCHEMACHAIN_MIGRATIONS_PATH"),
		LedgerTable:    getEnv("SCHEMACHAIN_LEDGER_TABLE", "schemachain_migrations"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Backend == "" {
		return errors.New("SCHEMACHAIN_DB_BACKEND is required")
	}
	if !knownBackend(c.Backend) {
		return fmt.Errorf("SCHEMACHAIN_DB_BACKEND must be one of %s", strings.Join(backendNames(), ", "))
	}
	if c.DatabaseDSN == "" {
		return errors.New("SCHEMACHAIN_DB_DSN is required")
	}
	if c.MigrationsPath == "" {
		return errors.New("SCHEMACHAIN_MIGRATIONS_PATH is required")
	}
	return nil
}

func knownBackend(id backend.ID) bool {
	for _, known := range backend.IDs() {
		if id == known {
			return true
		}
	}
	return false
}

func backendNames() []string {
	ids := backend.IDs()
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
