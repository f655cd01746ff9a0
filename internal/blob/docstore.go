package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"provcore/pkg/domain"
)

// DocumentStore layers content addressing over a Store: a document's key is
// the hex digest of its bytes, which is exactly the information hash the
// ledger records. Fetching by hash therefore verifies integrity for free.
type DocumentStore struct {
	store Store
}

// NewDocumentStore wraps store with content addressing.
func NewDocumentStore(store Store) *DocumentStore {
	return &DocumentStore{store: store}
}

// Put stores payload under its digest and returns the digest as a ledger
// hash. Storing the same payload twice is a no-op that returns the same
// hash.
func (d *DocumentStore) Put(ctx context.Context, payload []byte, opts PutOptions) (domain.Hash, error) {
	digest := domain.HashBytes(payload)
	key := string(digest)
	if _, err := d.store.Head(ctx, key); err == nil {
		return digest, nil
	}
	if _, err := d.store.Put(ctx, key, bytes.NewReader(payload), opts); err != nil {
		return "", err
	}
	return digest, nil
}

// Get fetches the document recorded under hash and verifies that its bytes
// still match the digest.
func (d *DocumentStore) Get(ctx context.Context, hash domain.Hash) ([]byte, error) {
	_, rc, err := d.store.Get(ctx, string(hash))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	payload, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	if domain.HashBytes(payload) != hash {
		return nil, fmt.Errorf("document %s failed integrity check", hash)
	}
	return payload, nil
}

// Hashes returns the digests of every stored document, ascending.
func (d *DocumentStore) Hashes(ctx context.Context) ([]domain.Hash, error) {
	infos, err := d.store.List(ctx, "")
	if err != nil {
		return nil, err
	}
	hashes := make([]domain.Hash, 0, len(infos))
	for _, info := range infos {
		hashes = append(hashes, domain.Hash(info.Key))
	}
	return hashes, nil
}

// DownloadURL returns a time-limited URL for fetching the document recorded
// under hash. Backends without URL support return ErrUnsupported.
func (d *DocumentStore) DownloadURL(ctx context.Context, hash domain.Hash, expiry time.Duration) (string, error) {
	if _, err := d.store.Head(ctx, string(hash)); err != nil {
		return "", fmt.Errorf("document %s not stored: %w", hash, err)
	}
	return d.store.PresignURL(ctx, string(hash), SignedURLOptions{Expiry: expiry})
}

// Exists reports whether a document for hash is stored.
func (d *DocumentStore) Exists(ctx context.Context, hash domain.Hash) bool {
	_, err := d.store.Head(ctx, string(hash))
	return err == nil
}

// Driver returns the underlying backend driver.
func (d *DocumentStore) Driver() Driver { return d.store.Driver() }
