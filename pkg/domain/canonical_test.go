package domain

import (
	"testing"
	"time"
)

func TestFingerprintDeterministicAcrossMapOrder(t *testing.T) {
	a := PrivateDetails{ID: "asset-1", AppraisedValue: 1200, Attributes: map[string]string{"grade": "A", "origin": "plant-7"}}
	b := PrivateDetails{ID: "asset-1", AppraisedValue: 1200, Attributes: map[string]string{"origin": "plant-7", "grade": "A"}}

	fa, err := Fingerprint(a)
	if err != nil {
		t.Fatalf("fingerprint a: %v", err)
	}
	fb, err := Fingerprint(b)
	if err != nil {
		t.Fatalf("fingerprint b: %v", err)
	}
	if fa != fb {
		t.Fatalf("expected identical fingerprints, got %s vs %s", fa, fb)
	}
}

func TestFingerprintChangesWithContent(t *testing.T) {
	base := PrivateDetails{ID: "asset-1", AppraisedValue: 1200}
	changed := PrivateDetails{ID: "asset-1", AppraisedValue: 1300}

	fa, err := Fingerprint(base)
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	fb, err := Fingerprint(changed)
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	if fa == fb {
		t.Fatal("expected fingerprints to differ when content differs")
	}
}

func TestNormalizeApprovalsSortsByRole(t *testing.T) {
	now := time.Now().UTC()
	approvals := []Approval{
		{Role: "inspector", Org: "org2", ApprovedAt: now},
		{Role: "certifier", Org: "org3", ApprovedAt: now},
	}
	normalized := NormalizeApprovals(approvals)
	if normalized[0].Role != "certifier" || normalized[1].Role != "inspector" {
		t.Fatalf("unexpected order: %+v", normalized)
	}
	// input slice is left untouched
	if approvals[0].Role != "inspector" {
		t.Fatalf("input mutated: %+v", approvals)
	}
}

func TestNormalizeApprovalsOrderIndependentSerialization(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	first := Asset{ID: "a", Status: StatusApproved, Approvals: NormalizeApprovals([]Approval{
		{Role: "inspector", Org: "org2", ApprovedAt: now},
		{Role: "certifier", Org: "org3", ApprovedAt: now},
	})}
	second := Asset{ID: "a", Status: StatusApproved, Approvals: NormalizeApprovals([]Approval{
		{Role: "certifier", Org: "org3", ApprovedAt: now},
		{Role: "inspector", Org: "org2", ApprovedAt: now},
	})}

	fa, err := Fingerprint(first)
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	fb, err := Fingerprint(second)
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	if fa != fb {
		t.Fatal("approval arrival order leaked into canonical serialization")
	}
}
