package core_test

import (
	"context"
	"testing"

	"assetcore/internal/core"
)

func TestAuditTrailRecordsSuccessAndFailure(t *testing.T) {
	log := core.NewMemoryAuditLog()
	svc := newTestService(t, core.WithAuditRecorder(log))
	ctx := context.Background()

	if _, err := svc.CreateAsset(ctx, owner, core.CreateAssetInput{ID: "a1", Description: "cargo"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.ApproveAsset(ctx, outsider, "a1"); err == nil {
		t.Fatal("expected denial")
	}

	entries := log.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 audit entries, got %d", len(entries))
	}

	created := entries[0]
	if created.Operation != "create_asset" || created.Status != core.AuditStatusSuccess {
		t.Fatalf("create entry = %+v", created)
	}
	if created.Actor != owner.ID || created.Org != owner.Org || created.EntityID != "a1" {
		t.Fatalf("create entry actor fields = %+v", created)
	}

	denied := entries[1]
	if denied.Operation != "approve_asset" || denied.Status != core.AuditStatusFailure {
		t.Fatalf("denied entry = %+v", denied)
	}
	if denied.Error == "" {
		t.Fatal("denied entry missing error detail")
	}
	if denied.Actor != outsider.ID || denied.Org != outsider.Org {
		t.Fatalf("denied entry actor fields = %+v", denied)
	}
}

func TestQueriesAreNotAudited(t *testing.T) {
	log := core.NewMemoryAuditLog()
	svc := newTestService(t, core.WithAuditRecorder(log))
	ctx := context.Background()

	if _, err := svc.CreateAsset(ctx, owner, core.CreateAssetInput{ID: "a1"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.GetAsset(ctx, "a1"); err != nil {
		t.Fatalf("get: %v", err)
	}
	if _, err := svc.ListAssets(ctx, false); err != nil {
		t.Fatalf("list: %v", err)
	}

	if got := len(log.Entries()); got != 1 {
		t.Fatalf("expected only the mutation audited, got %d entries", got)
	}
}
