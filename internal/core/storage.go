package core

import (
	"fmt"
	"os"
	"strings"

	memory "provcore/internal/infra/persistence/memory"
	"provcore/internal/infra/persistence/postgres"
	"provcore/internal/infra/persistence/sqlite"
	"provcore/pkg/domain"
)

// Storage driver selection and connection settings come from the
// environment so deployments pick a backend without code changes.
const (
	EnvStorageDriver = "PROVCORE_STORAGE_DRIVER"
	EnvSQLitePath    = "PROVCORE_SQLITE_PATH"
	EnvPostgresDSN   = "PROVCORE_POSTGRES_DSN"
	EnvAdmin         = "PROVCORE_ADMIN"

	StorageDriverMemory   = "memory"
	StorageDriverSQLite   = "sqlite"
	StorageDriverPostgres = "postgres"

	defaultAdmin      = "admin"
	defaultSQLitePath = "provcore.db"
)

// OpenPersistentStoreFromEnv builds the backend named by
// PROVCORE_STORAGE_DRIVER. An unset or empty driver selects the in-memory
// store.
func OpenPersistentStoreFromEnv(engine *domain.RulesEngine) (domain.PersistentStore, error) {
	return OpenPersistentStore(os.Getenv(EnvStorageDriver), engine)
}

// StorageDriverFromEnv returns the driver named by the environment, or
// fallback when it is unset.
func StorageDriverFromEnv(fallback string) string {
	if v := strings.TrimSpace(os.Getenv(EnvStorageDriver)); v != "" {
		return v
	}
	return fallback
}

// OpenPersistentStore builds the named storage backend. Connection settings
// and the administrator identity come from the environment.
func OpenPersistentStore(driver string, engine *domain.RulesEngine) (domain.PersistentStore, error) {
	admin := domain.Identity(envOrDefault(EnvAdmin, defaultAdmin))
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", StorageDriverMemory:
		return memory.NewStore(admin, engine), nil
	case StorageDriverSQLite:
		store, err := sqlite.NewStore(envOrDefault(EnvSQLitePath, defaultSQLitePath), admin, engine)
		if err != nil {
			return nil, err
		}
		return store, nil
	case StorageDriverPostgres:
		store, err := postgres.NewStore(os.Getenv(EnvPostgresDSN), admin, engine)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", driver)
	}
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
