package core

import (
	"fmt"
	"os"

	"assetcore/internal/infra/persistence/memory"
	"assetcore/internal/infra/persistence/postgres"
	"assetcore/internal/infra/persistence/sqlite"
	"assetcore/pkg/domain"
)

// Convenience aliases so collaborators outside the domain package can name
// the persistence contracts without importing it directly.
type (
	PersistentStore = domain.PersistentStore
	Transaction     = domain.Transaction
	TransactionView = domain.TransactionView
)

// Storage driver selection. This file is the only place in the package that
// touches concrete persistence backends.
const (
	StorageDriverMemory   = "memory"
	StorageDriverSQLite   = "sqlite"
	StorageDriverPostgres = "postgres"
)

// OpenPersistentStore selects and opens a persistent store from environment
// configuration.
//
//	ASSETCORE_STORAGE_DRIVER: memory|sqlite|postgres (default memory)
//	ASSETCORE_SQLITE_PATH: database file when driver=sqlite
//	ASSETCORE_POSTGRES_DSN: connection string when driver=postgres
func OpenPersistentStore(engine *domain.RulesEngine) (PersistentStore, error) {
	driver := os.Getenv("ASSETCORE_STORAGE_DRIVER")
	if driver == "" {
		driver = StorageDriverMemory
	}
	switch driver {
	case StorageDriverMemory:
		return memory.NewStore(engine), nil
	case StorageDriverSQLite:
		return sqlite.NewStore(os.Getenv("ASSETCORE_SQLITE_PATH"), engine)
	case StorageDriverPostgres:
		return postgres.NewStore(os.Getenv("ASSETCORE_POSTGRES_DSN"), engine)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}

// NewInMemoryService wires a service over a fresh in-memory store with the
// default rule set and authorizer configuration. Primarily used by tests and
// local tooling.
func NewInMemoryService(cfg WorkflowConfig, opts ...ServiceOption) (*Service, error) {
	if cfg.Strategy == "" {
		cfg = DefaultWorkflowConfig()
	}
	authz, err := NewAuthorizer(cfg)
	if err != nil {
		return nil, err
	}
	store := memory.NewStore(NewDefaultRulesEngine())
	return NewService(store, authz, opts...), nil
}
