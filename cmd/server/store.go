package main

import (
	"context"
	"fmt"

	"github.com/mmynk/smartsplit/internal/config"
	"github.com/mmynk/smartsplit/internal/storage"
	"github.com/mmynk/smartsplit/internal/storage/postgres"
	"github.com/mmynk/smartsplit/internal/storage/sqlite"
)

// openStore connects the configured backend. Both run pending migrations.
func openStore(ctx context.Context, cfg config.DBConfig) (storage.Store, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		store, err := sqlite.New(ctx, cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize sqlite storage: %w", err)
		}
		return store, nil
	case config.DriverPostgres:
		store, err := postgres.New(ctx, cfg.DSN, cfg.MaxConns)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize postgres storage: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}
