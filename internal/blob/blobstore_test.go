package blob

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	if store.Driver() != DriverMemory {
		t.Fatalf("driver = %s", store.Driver())
	}

	meta := map[string]string{"asset_id": "a1"}
	info, err := store.Put(ctx, "archives/a1/job.json", strings.NewReader(`{"ok":true}`), PutOptions{ContentType: "application/json", Metadata: meta})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != int64(len(`{"ok":true}`)) || info.ContentType != "application/json" {
		t.Fatalf("info = %+v", info)
	}

	// Put is create-only.
	if _, err := store.Put(ctx, "archives/a1/job.json", strings.NewReader("x"), PutOptions{}); err == nil {
		t.Fatal("expected duplicate put to fail")
	}

	// Mutating the caller's metadata map must not leak into the store.
	meta["asset_id"] = "tampered"
	head, err := store.Head(ctx, "archives/a1/job.json")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if head.Metadata["asset_id"] != "a1" {
		t.Fatalf("metadata aliased: %+v", head.Metadata)
	}

	gotInfo, rc, err := store.Get(ctx, "archives/a1/job.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != `{"ok":true}` || gotInfo.Key != "archives/a1/job.json" {
		t.Fatalf("get returned %q %+v", body, gotInfo)
	}

	if _, err := store.PresignURL(ctx, "archives/a1/job.json", SignedURLOptions{}); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("presign err = %v", err)
	}

	ok, err := store.Delete(ctx, "archives/a1/job.json")
	if err != nil || !ok {
		t.Fatalf("delete = %v, %v", ok, err)
	}
	ok, err = store.Delete(ctx, "archives/a1/job.json")
	if err != nil || ok {
		t.Fatalf("second delete = %v, %v", ok, err)
	}
	if _, _, err := store.Get(ctx, "archives/a1/job.json"); err == nil {
		t.Fatal("expected get after delete to fail")
	}
}

func TestMemoryStoreListOrderedByKey(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	for _, key := range []string{"archives/a2/z.csv", "archives/a1/b.json", "archives/a1/a.json", "other/x"} {
		if _, err := store.Put(ctx, key, strings.NewReader("data"), PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	infos, err := store.List(ctx, "archives/a1/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 2 || infos[0].Key != "archives/a1/a.json" || infos[1].Key != "archives/a1/b.json" {
		t.Fatalf("list = %+v", infos)
	}
	all, err := store.List(ctx, "")
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 blobs, got %d", len(all))
	}
}

func TestFilesystemStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("new filesystem: %v", err)
	}
	if store.Driver() != DriverFilesystem {
		t.Fatalf("driver = %s", store.Driver())
	}

	info, err := store.Put(ctx, "archives/a1/job.csv", strings.NewReader("tx_id,status\n"), PutOptions{ContentType: "text/csv", Metadata: map[string]string{"entries": "1"}})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.ETag == "" || info.Size != int64(len("tx_id,status\n")) {
		t.Fatalf("info = %+v", info)
	}
	if _, err := store.Put(ctx, "archives/a1/job.csv", strings.NewReader("x"), PutOptions{}); err == nil {
		t.Fatal("expected duplicate put to fail")
	}

	head, err := store.Head(ctx, "archives/a1/job.csv")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if head.ContentType != "text/csv" || head.Metadata["entries"] != "1" || head.ETag != info.ETag {
		t.Fatalf("head = %+v", head)
	}

	got, rc, err := store.Get(ctx, "archives/a1/job.csv")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != "tx_id,status\n" || got.URL == "" {
		t.Fatalf("get = %q %+v", body, got)
	}

	url, err := store.PresignURL(ctx, "archives/a1/job.csv", SignedURLOptions{Method: "GET"})
	if err != nil || !strings.Contains(url, "archives/a1/job.csv") {
		t.Fatalf("presign = %q, %v", url, err)
	}
	if _, err := store.PresignURL(ctx, "archives/a1/job.csv", SignedURLOptions{Method: "PUT"}); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("put presign err = %v", err)
	}

	infos, err := store.List(ctx, "archives/")
	if err != nil || len(infos) != 1 || infos[0].Key != "archives/a1/job.csv" {
		t.Fatalf("list = %+v, %v", infos, err)
	}

	ok, err := store.Delete(ctx, "archives/a1/job.csv")
	if err != nil || !ok {
		t.Fatalf("delete = %v, %v", ok, err)
	}
	if ok, _ := store.Delete(ctx, "archives/a1/job.csv"); ok {
		t.Fatal("second delete should report missing")
	}
}

func TestFilesystemStoreRejectsTraversalKeys(t *testing.T) {
	ctx := context.Background()
	store, err := NewFilesystem(filepath.Join(t.TempDir(), "nested", "root"))
	if err != nil {
		t.Fatalf("new filesystem: %v", err)
	}
	for _, key := range []string{"", "  ", "../escape", "a/../../escape", "/abs/path"} {
		if _, err := store.Put(ctx, key, strings.NewReader("x"), PutOptions{}); err == nil {
			t.Fatalf("expected key %q to be rejected", key)
		}
	}
}

func TestOpenSelectsDriverFromEnv(t *testing.T) {
	ctx := context.Background()

	t.Setenv("ASSETCORE_BLOB_DRIVER", "memory")
	store, err := Open(ctx)
	if err != nil {
		t.Fatalf("open memory: %v", err)
	}
	if store.Driver() != DriverMemory {
		t.Fatalf("driver = %s", store.Driver())
	}

	t.Setenv("ASSETCORE_BLOB_DRIVER", "fs")
	t.Setenv("ASSETCORE_BLOB_FS_ROOT", t.TempDir())
	store, err = Open(ctx)
	if err != nil {
		t.Fatalf("open fs: %v", err)
	}
	if store.Driver() != DriverFilesystem {
		t.Fatalf("driver = %s", store.Driver())
	}

	t.Setenv("ASSETCORE_BLOB_DRIVER", "gcs")
	if _, err := Open(ctx); err == nil {
		t.Fatal("expected unknown driver error")
	}

	t.Setenv("ASSETCORE_BLOB_DRIVER", "s3")
	t.Setenv("ASSETCORE_BLOB_S3_BUCKET", "")
	if _, err := Open(ctx); err == nil {
		t.Fatal("expected missing bucket error")
	}
}
