package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/uday68/commandgrid-sub003/internal/config"
	"github.com/uday68/commandgrid-sub003/internal/storage"
	"github.com/uday68/commandgrid-sub003/internal/storage/memory"
	"github.com/uday68/commandgrid-sub003/internal/storage/postgres"
	"github.com/uday68/commandgrid-sub003/internal/storage/redis"
	"github.com/uday68/commandgrid-sub003/internal/storage/sqlite"
)

// openStore opens the configured snapshot store.
func openStore(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (storage.Store, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		logger.Info("opening sqlite store", "path", cfg.SQLite.Path)
		s, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return s, nil

	case config.DriverPostgres:
		logger.Info("connecting to database",
			"host", cfg.Postgres.Host,
			"port", cfg.Postgres.Port,
			"database", cfg.Postgres.Name,
		)
		s, err := postgres.Open(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return s, nil

	case config.DriverRedis:
		logger.Info("connecting to redis", "addr", cfg.Redis.Addr, "db", cfg.Redis.DB)
		s, err := redis.Open(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("open redis store: %w", err)
		}
		return s, nil

	case config.DriverMemory:
		logger.Warn("using in-memory store, offline queue will not survive restarts")
		return memory.New(), nil

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}
