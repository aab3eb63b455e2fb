package domain

import (
	"strings"
	"testing"
)

func TestErrorMessages(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{NotFoundError{Entity: EntityAsset, ID: "a1"}, "asset a1 not found"},
		{AlreadyExistsError{Entity: EntityAsset, ID: "a1"}, "asset a1 already exists"},
		{UnauthorizedError{Org: "org9", Capability: CapabilityApprove}, "org org9 not authorized for approve"},
		{UnauthorizedError{Org: "org9", Capability: CapabilityReadPrivate, Reason: "outside scope"}, "outside scope"},
		{InvalidStateError{ID: "a1", Status: StatusActive, Operation: "approve"}, "approve not allowed in state ACTIVE"},
		{DuplicateApprovalError{ID: "a1", Role: "inspector"}, "role inspector already approved"},
		{IntegrityError{Entity: EntityPrivateDetails, ID: "a1"}, "private_details a1 failed fingerprint verification"},
		{ValidationError{Field: "id", Reason: "must not be empty"}, "invalid id"},
	}
	for _, tc := range cases {
		if !strings.Contains(tc.err.Error(), tc.want) {
			t.Errorf("error %T = %q, want substring %q", tc.err, tc.err.Error(), tc.want)
		}
	}
}

func TestResultHasBlocking(t *testing.T) {
	var r Result
	if r.HasBlocking() {
		t.Fatal("empty result should not block")
	}
	r.Merge(Result{Violations: []Violation{{Rule: "x", Severity: SeverityWarn}}})
	if r.HasBlocking() {
		t.Fatal("warn severity should not block")
	}
	r.Merge(Result{Violations: []Violation{{Rule: "y", Severity: SeverityBlock}}})
	if !r.HasBlocking() {
		t.Fatal("expected blocking result")
	}
	if len(r.Violations) != 2 {
		t.Fatalf("expected merged violations, got %d", len(r.Violations))
	}
}

func TestAssetHelpers(t *testing.T) {
	a := Asset{Status: StatusPartiallyApproved, Approvals: []Approval{{Role: "inspector", Org: "org2"}}}
	if !a.ApprovedBy("inspector") {
		t.Fatal("expected inspector approval")
	}
	if a.ApprovedBy("certifier") {
		t.Fatal("unexpected certifier approval")
	}
	if a.Terminal() {
		t.Fatal("partially approved is not terminal")
	}
	a.Status = StatusActive
	if !a.Terminal() {
		t.Fatal("active is terminal")
	}
	a.Status = StatusDeleted
	if !a.Terminal() {
		t.Fatal("deleted is terminal")
	}
}
