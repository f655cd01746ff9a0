package blob

import (
	"context"
	"io"
	"strings"
	"testing"
)

// driverUnderTest exercises the Store contract shared by the memory and
// filesystem drivers.
func driverUnderTest(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	info, err := store.Put(ctx, "docs/a.txt", strings.NewReader("alpha"), PutOptions{ContentType: "text/plain", Metadata: map[string]string{"kind": "sheet"}})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Key != "docs/a.txt" || info.Size != 5 {
		t.Fatalf("unexpected info %+v", info)
	}

	// Create-only semantics.
	if _, err := store.Put(ctx, "docs/a.txt", strings.NewReader("alpha"), PutOptions{}); err == nil {
		t.Fatalf("duplicate put must fail")
	}

	got, rc, err := store.Get(ctx, "docs/a.txt")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	data, err := io.ReadAll(rc)
	_ = rc.Close()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "alpha" {
		t.Fatalf("content %q, want alpha", data)
	}
	if got.ContentType != "text/plain" || got.Metadata["kind"] != "sheet" {
		t.Fatalf("metadata lost: %+v", got)
	}

	head, err := store.Head(ctx, "docs/a.txt")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if head.Size != 5 {
		t.Fatalf("head size %d, want 5", head.Size)
	}

	if _, err := store.Put(ctx, "docs/b.txt", strings.NewReader("beta"), PutOptions{}); err != nil {
		t.Fatalf("put b: %v", err)
	}
	if _, err := store.Put(ctx, "other/c.txt", strings.NewReader("gamma"), PutOptions{}); err != nil {
		t.Fatalf("put c: %v", err)
	}
	infos, err := store.List(ctx, "docs/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 2 || infos[0].Key != "docs/a.txt" || infos[1].Key != "docs/b.txt" {
		t.Fatalf("list %v, want the two docs/ keys ascending", infos)
	}

	existed, err := store.Delete(ctx, "docs/a.txt")
	if err != nil || !existed {
		t.Fatalf("delete: existed=%v err=%v", existed, err)
	}
	existed, err = store.Delete(ctx, "docs/a.txt")
	if err != nil || existed {
		t.Fatalf("second delete: existed=%v err=%v", existed, err)
	}
	if _, err := store.Head(ctx, "docs/a.txt"); err == nil {
		t.Fatalf("head must fail after delete")
	}
}

func TestMemoryStore(t *testing.T) {
	store := NewMemory()
	if store.Driver() != DriverMemory {
		t.Fatalf("driver %s, want memory", store.Driver())
	}
	driverUnderTest(t, store)
}

func TestFilesystemStore(t *testing.T) {
	store, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("new filesystem store: %v", err)
	}
	if store.Driver() != DriverFilesystem {
		t.Fatalf("driver %s, want fs", store.Driver())
	}
	driverUnderTest(t, store)
}

func TestFilesystemStoreRejectsTraversal(t *testing.T) {
	store, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("new filesystem store: %v", err)
	}
	ctx := context.Background()
	for _, key := range []string{"", "../escape", "/abs", "a/../../b"} {
		if _, err := store.Put(ctx, key, strings.NewReader("x"), PutOptions{}); err == nil {
			t.Fatalf("key %q must be rejected", key)
		}
	}
}

func TestPresignURL(t *testing.T) {
	ctx := context.Background()

	mem := NewMemory()
	if _, err := mem.PresignURL(ctx, "k", SignedURLOptions{}); err != ErrUnsupported {
		t.Fatalf("memory presign err %v, want ErrUnsupported", err)
	}

	fsStore, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("new filesystem store: %v", err)
	}
	url, err := fsStore.PresignURL(ctx, "docs/a.txt", SignedURLOptions{})
	if err != nil {
		t.Fatalf("fs presign: %v", err)
	}
	if !strings.Contains(url, "docs/a.txt") {
		t.Fatalf("url %q missing key", url)
	}
	if _, err := fsStore.PresignURL(ctx, "docs/a.txt", SignedURLOptions{Method: "PUT"}); err != ErrUnsupported {
		t.Fatalf("fs PUT presign err %v, want ErrUnsupported", err)
	}
}

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()

	t.Setenv("PROVCORE_BLOB_DRIVER", "memory")
	store, err := Open(ctx)
	if err != nil {
		t.Fatalf("open memory: %v", err)
	}
	if store.Driver() != DriverMemory {
		t.Fatalf("driver %s, want memory", store.Driver())
	}

	t.Setenv("PROVCORE_BLOB_DRIVER", "fs")
	t.Setenv("PROVCORE_BLOB_FS_ROOT", t.TempDir())
	store, err = Open(ctx)
	if err != nil {
		t.Fatalf("open fs: %v", err)
	}
	if store.Driver() != DriverFilesystem {
		t.Fatalf("driver %s, want fs", store.Driver())
	}

	t.Setenv("PROVCORE_BLOB_DRIVER", "carrier-pigeon")
	if _, err := Open(ctx); err == nil {
		t.Fatalf("unknown driver must be rejected")
	}

	t.Setenv("PROVCORE_BLOB_DRIVER", "s3")
	t.Setenv("PROVCORE_BLOB_S3_BUCKET", "")
	if _, err := Open(ctx); err == nil {
		t.Fatalf("s3 without a bucket must be rejected")
	}
}
