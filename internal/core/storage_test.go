package core

import (
	"context"
	"path/filepath"
	"testing"

	"provcore/internal/infra/persistence/sqlite"
)

func TestOpenPersistentStoreFromEnvDefaultsToMemory(t *testing.T) {
	t.Setenv(EnvStorageDriver, "")
	t.Setenv(EnvAdmin, "root")

	store, err := OpenPersistentStoreFromEnv(nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if store.Admin() != "root" {
		t.Fatalf("admin %s, want root", store.Admin())
	}
}

func TestOpenPersistentStoreFromEnvSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	t.Setenv(EnvStorageDriver, StorageDriverSQLite)
	t.Setenv(EnvSQLitePath, path)
	t.Setenv(EnvAdmin, "")

	store, err := OpenPersistentStoreFromEnv(nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	s, ok := store.(*sqlite.Store)
	if !ok {
		t.Fatalf("expected sqlite store, got %T", store)
	}
	defer func() { _ = s.Close() }()
	if s.Path() != path {
		t.Fatalf("path %s, want %s", s.Path(), path)
	}
	if store.Admin() != "admin" {
		t.Fatalf("admin %s, want default admin", store.Admin())
	}
}

func TestStorageDriverFromEnv(t *testing.T) {
	t.Setenv(EnvStorageDriver, "")
	if got := StorageDriverFromEnv(StorageDriverSQLite); got != StorageDriverSQLite {
		t.Fatalf("driver %q, want fallback sqlite", got)
	}

	t.Setenv(EnvStorageDriver, StorageDriverMemory)
	if got := StorageDriverFromEnv(StorageDriverSQLite); got != StorageDriverMemory {
		t.Fatalf("driver %q, want memory", got)
	}

	t.Setenv(EnvStorageDriver, "  ")
	if got := StorageDriverFromEnv(StorageDriverMemory); got != StorageDriverMemory {
		t.Fatalf("driver %q, want fallback for blank value", got)
	}
}

func TestOpenPersistentStoreByName(t *testing.T) {
	t.Setenv(EnvAdmin, "root")
	store, err := OpenPersistentStore(StorageDriverMemory, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if store.Admin() != "root" {
		t.Fatalf("admin %s, want root", store.Admin())
	}
}

func TestOpenPersistentStoreFromEnvRejectsUnknownDriver(t *testing.T) {
	t.Setenv(EnvStorageDriver, "etcd")
	if _, err := OpenPersistentStoreFromEnv(nil); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}

func TestServiceOverSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	ctx := context.Background()

	store, err := sqlite.NewStore(path, admin, NewDefaultRulesEngine())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	svc := NewService(store)
	admit(t, svc, "alice")
	uid := mintAndCreate(t, svc, "alice", "sheet")
	if _, _, err := svc.AddOperation(ctx, "alice", uid, "op1"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Reopen and confirm the full state survived the restart.
	reopened, err := sqlite.NewStore(path, admin, NewDefaultRulesEngine())
	if err != nil {
		t.Fatalf("reopen sqlite: %v", err)
	}
	defer func() { _ = reopened.Close() }()
	svc = NewService(reopened)

	if !svc.IsManager(ctx, "alice") {
		t.Fatalf("role lost across restart")
	}
	product, ops, err := svc.GetProduct(ctx, uid)
	if err != nil {
		t.Fatalf("get after restart: %v", err)
	}
	if !product.HasManager("alice") {
		t.Fatalf("product managers lost across restart: %v", product.Managers)
	}
	if len(ops) != 1 || ops[0].InformationHash != "op1" {
		t.Fatalf("operations lost across restart: %v", ops)
	}
	if events := svc.Events(ctx); len(events) != 4 {
		t.Fatalf("event journal lost across restart: %d events", len(events))
	}
}
