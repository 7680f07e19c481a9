// Package cli holds the expensetracker commands and the bootstrap steps
// they share.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"expensetracker/internal/config"
	"expensetracker/internal/log"
	"expensetracker/internal/storage"
)

// LoadEnvFile loads .env for local development. A missing file is fine.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the root logger and makes it the slog default.
func SetupLogger(level string) *log.Logger {
	logger := log.New(log.Config{
		Level:     log.ParseLevel(level),
		Component: log.ComponentApp,
		Output:    os.Stdout,
	})
	log.SetDefault(logger)
	return logger
}

// LoadConfig reads the environment and validates it.
func LoadConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// OpenStorage opens the persistence substrate selected by PERSIST_BACKEND.
func OpenStorage(ctx context.Context, cfg *config.Config, logger *log.Logger) (storage.KV, error) {
	kv, err := storage.Open(ctx, storage.Options{
		Backend:       cfg.PersistBackend,
		SQLitePath:    cfg.SQLiteDBPath,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", cfg.PersistBackend, err)
	}
	logger.WithComponent(log.ComponentStorage).Info("Storage ready", log.FieldBackend, cfg.PersistBackend)
	return kv, nil
}
