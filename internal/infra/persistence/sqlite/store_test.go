package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"assetcore/internal/infra/persistence/sqlite"
	"assetcore/pkg/domain"
)

func TestSQLiteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	store, err := sqlite.NewStore(path, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ctx := context.Background()

	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, err := tx.CreateAsset(domain.Asset{ID: "a1", Description: "cargo", Status: domain.StatusPending, OwnerOrg: "org1"}); err != nil {
			return err
		}
		return tx.PutPrivateDetails(domain.PrivateDetails{ID: "a1", AppraisedValue: 900}, []string{"org1"})
	}); err != nil {
		t.Fatalf("transaction: %v", err)
	}
	if err := store.DB().Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := sqlite.NewStore(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.DB().Close() }()

	asset, ok := reopened.GetAsset("a1")
	if !ok || asset.Status != domain.StatusPending {
		t.Fatalf("asset not restored: %+v ok=%v", asset, ok)
	}
	details, err := reopened.GetPrivateDetails("a1", "org1")
	if err != nil || details.AppraisedValue != 900 {
		t.Fatalf("private details not restored: %+v err=%v", details, err)
	}
	entries, err := reopened.History("a1")
	if err != nil || len(entries) != 1 {
		t.Fatalf("history not restored: %d entries err=%v", len(entries), err)
	}

	// sequence continues after restart
	if _, err := reopened.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateAsset(domain.Asset{ID: "a2", Status: domain.StatusPending, OwnerOrg: "org1"})
		return err
	}); err != nil {
		t.Fatalf("post-restart transaction: %v", err)
	}
	next, err := reopened.History("a2")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if next[0].TxID[:9] != "00000002-" {
		t.Fatalf("sequence restarted after reopen: %s", next[0].TxID)
	}
}

func TestSQLitePersistFailureRollsBackMemory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	store, err := sqlite.NewStore(path, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ctx := context.Background()
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateAsset(domain.Asset{ID: "a1", Status: domain.StatusPending, OwnerOrg: "org1"})
		return err
	}); err != nil {
		t.Fatalf("transaction: %v", err)
	}

	// With the database gone the snapshot cannot be written; the in-memory
	// commit must be undone so callers never read state the file lacks.
	if err := store.DB().Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateAsset(domain.Asset{ID: "a2", Status: domain.StatusPending, OwnerOrg: "org1"})
		return err
	}); err == nil {
		t.Fatal("expected snapshot error with closed database")
	}
	if _, ok := store.GetAsset("a2"); ok {
		t.Fatal("rolled-back asset still visible in memory")
	}
	if _, ok := store.GetAsset("a1"); !ok {
		t.Fatal("earlier committed asset lost during rollback")
	}
	if _, err := store.History("a2"); err == nil {
		t.Fatal("rolled-back asset left history behind")
	}
}

func TestSQLiteDefaultPathAndAccessors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "state.db")
	store, err := sqlite.NewStore(path, nil)
	if err != nil {
		t.Fatalf("open with nested dirs: %v", err)
	}
	defer func() { _ = store.DB().Close() }()
	if store.Path() != path {
		t.Fatalf("unexpected path %s", store.Path())
	}
	if store.DB() == nil {
		t.Fatal("expected live db handle")
	}
}

func TestSQLiteFailClosedSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	store, err := sqlite.NewStore(path, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ctx := context.Background()
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, err := tx.CreateAsset(domain.Asset{ID: "a1", Status: domain.StatusPending, OwnerOrg: "org1"}); err != nil {
			return err
		}
		return tx.PutPrivateDetails(domain.PrivateDetails{ID: "a1", AppraisedValue: 1}, []string{"org1"})
	}); err != nil {
		t.Fatalf("transaction: %v", err)
	}
	_ = store.DB().Close()

	reopened, err := sqlite.NewStore(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.DB().Close() }()
	if _, err := reopened.GetPrivateDetails("a1", "org2"); err == nil {
		t.Fatal("visibility scope lost across restart")
	}
}
