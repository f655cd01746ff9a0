// Package sqlite provides a SQLite-backed persistent ledger store. It reuses
// the in-memory implementation for transactional semantics and snapshots the
// full state to a single table of JSON buckets after every successful
// transaction.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"provcore/internal/infra/persistence/memory"
	"provcore/pkg/domain"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

// Store persists ledger state to SQLite while reusing the in-memory
// implementation for transactions.
type Store struct {
	*memory.Store
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewStore constructs a snapshotting SQLite-backed persistent store. When a
// prior snapshot exists its administrator identity wins over admin.
func NewStore(path string, admin domain.Identity, engine *domain.RulesEngine) (*Store, error) {
	if path == "" {
		path = "provcore.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create state table: %w", err)
	}
	mem := memory.NewStore(admin, engine)
	s := &Store{Store: mem, db: db, path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

const (
	bucketAdmin      = "admin"
	bucketRequests   = "requests"
	bucketRoles      = "roles"
	bucketProducts   = "products"
	bucketOperations = "operations"
	bucketCounters   = "uid_counters"
	bucketEvents     = "events"
)

var buckets = []string{bucketAdmin, bucketRequests, bucketRoles, bucketProducts, bucketOperations, bucketCounters, bucketEvents}

func (s *Store) load() error {
	rows, err := s.db.Query(`SELECT bucket, payload FROM state`)
	if err != nil {
		return fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()

	snapshot := memory.Snapshot{}
	found := false
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		found = true
		if err := decodeBucket(&snapshot, bucket, payload); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate state: %w", err)
	}
	if !found {
		return nil
	}
	s.ImportState(snapshot)
	return nil
}

func decodeBucket(snapshot *memory.Snapshot, bucket string, payload []byte) error {
	var err error
	switch bucket {
	case bucketAdmin:
		err = json.Unmarshal(payload, &snapshot.Admin)
	case bucketRequests:
		err = json.Unmarshal(payload, &snapshot.Requests)
	case bucketRoles:
		err = json.Unmarshal(payload, &snapshot.Roles)
	case bucketProducts:
		err = json.Unmarshal(payload, &snapshot.Products)
	case bucketOperations:
		err = json.Unmarshal(payload, &snapshot.Operations)
	case bucketCounters:
		err = json.Unmarshal(payload, &snapshot.UIDCounters)
	case bucketEvents:
		err = json.Unmarshal(payload, &snapshot.Events)
	}
	if err != nil {
		return fmt.Errorf("decode %s: %w", bucket, err)
	}
	return nil
}

func encodeBucket(snapshot memory.Snapshot, bucket string) ([]byte, error) {
	switch bucket {
	case bucketAdmin:
		return json.Marshal(snapshot.Admin)
	case bucketRequests:
		return json.Marshal(snapshot.Requests)
	case bucketRoles:
		return json.Marshal(snapshot.Roles)
	case bucketProducts:
		return json.Marshal(snapshot.Products)
	case bucketOperations:
		return json.Marshal(snapshot.Operations)
	case bucketCounters:
		return json.Marshal(snapshot.UIDCounters)
	case bucketEvents:
		return json.Marshal(snapshot.Events)
	}
	return nil, fmt.Errorf("unknown bucket %s", bucket)
}

func (s *Store) persist() (retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.ExportState()
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, bucket := range buckets {
		data, err := encodeBucket(snapshot, bucket)
		if err != nil {
			retErr = err
			return retErr
		}
		if _, err = tx.Exec(`INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`, bucket, data); err != nil {
			retErr = fmt.Errorf("upsert %s: %w", bucket, err)
			return retErr
		}
	}
	return tx.Commit()
}

// RunInTransaction applies fn within a transaction, then snapshots state to
// SQLite if successful.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	res, err := s.Store.RunInTransaction(ctx, fn)
	if err != nil {
		return res, err
	}
	if pErr := s.persist(); pErr != nil {
		return res, pErr
	}
	return res, nil
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }
