package core

import (
	"context"
	"fmt"

	memstatus "seqtrack/internal/infra/persistence/memory"
	"seqtrack/internal/infra/persistence/postgres"
	"seqtrack/internal/infra/persistence/sqlite"
	"seqtrack/internal/status"
)

// StorageDriver identifies a status store backend.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / dry runs)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// StorageConfig selects the status store.
type StorageConfig struct {
	Driver      StorageDriver `mapstructure:"driver"`
	SQLitePath  string        `mapstructure:"sqlite_path"`
	PostgresDSN string        `mapstructure:"postgres_dsn"`
}

// OpenStatusStore opens the configured status store, sqlite when unset.
func OpenStatusStore(ctx context.Context, cfg StorageConfig) (status.Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = StorageSQLite
	}
	switch driver {
	case StorageMemory:
		return memstatus.NewStore(), nil
	case StorageSQLite:
		return sqlite.NewStore(cfg.SQLitePath)
	case StoragePostgres:
		return postgres.NewStore(ctx, cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
