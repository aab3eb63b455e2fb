// Package domain defines the persistent entities, lifecycle states, caller
// identity, error taxonomy, and rule evaluation primitives used by assetcore.
package domain

import (
	"time"
)

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityAsset identifies the public asset record.
	EntityAsset EntityType = "asset"
	// EntityPrivateDetails identifies the restricted-visibility detail record.
	EntityPrivateDetails EntityType = "private_details"
)

// AssetStatus represents the canonical asset lifecycle states.
type AssetStatus string

// Canonical lifecycle states. PENDING is the initial state; ACTIVE and DELETED
// are terminal.
const (
	StatusPending           AssetStatus = "PENDING"
	StatusPartiallyApproved AssetStatus = "PARTIALLY_APPROVED"
	StatusApproved          AssetStatus = "APPROVED"
	StatusActive            AssetStatus = "ACTIVE"
	StatusRejected          AssetStatus = "REJECTED"
	StatusDeleted           AssetStatus = "DELETED"
)

// Role names an identity category recognised by the workflow. The owner role
// is fixed; approver roles are deployment configuration.
type Role string

// RoleOwner is the identity category entitled to create, submit, resubmit,
// activate, and delete an asset.
const RoleOwner Role = "owner"

// Capability names an action class the access-control evaluator grants or
// denies for a resolved role.
type Capability string

// Workflow capabilities checked before every mutating operation.
const (
	CapabilityOwn         Capability = "own"
	CapabilityApprove     Capability = "approve"
	CapabilityReject      Capability = "reject"
	CapabilityReadPrivate Capability = "read_private"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Approval records a single approval vote cast by one of the designated
// approver roles. Approvals are unique per role and kept sorted by role so
// that serialization is order-independent.
type Approval struct {
	Role       Role      `json:"role"`
	Org        string    `json:"org"`
	ApprovedAt time.Time `json:"approved_at"`
}

// Asset is the public workflow record, keyed by ID in world state.
type Asset struct {
	ID                 string      `json:"id"`
	Description        string      `json:"description"`
	Status             AssetStatus `json:"status"`
	Approvals          []Approval  `json:"approvals"`
	Creator            string      `json:"creator"`
	OwnerOrg           string      `json:"owner_org"`
	Submitted          bool        `json:"submitted"`
	RejectionReason    string      `json:"rejection_reason,omitempty"`
	PrivateDetailsHash string      `json:"private_details_hash,omitempty"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

// ApprovedBy reports whether the given role has already cast an approval.
func (a Asset) ApprovedBy(role Role) bool {
	for _, approval := range a.Approvals {
		if approval.Role == role {
			return true
		}
	}
	return false
}

// Terminal reports whether the asset is in a terminal lifecycle state.
func (a Asset) Terminal() bool {
	return a.Status == StatusActive || a.Status == StatusDeleted
}

// PrivateDetails holds the sensitive fields of an asset, stored in a
// restricted collection readable only by the organizations in its visibility
// scope. None of these fields ever appear in the public record; the public
// record carries only the canonical fingerprint.
type PrivateDetails struct {
	ID             string            `json:"id"`
	AppraisedValue int64             `json:"appraised_value"`
	Contact        string            `json:"contact,omitempty"`
	Notes          string            `json:"notes,omitempty"`
	Attributes     map[string]string `json:"attributes,omitempty"`
}

// HistoryEntry is one committed mutation of a public record, produced by
// replaying the store's append-only per-key log. Entries are ordered oldest
// first; Snapshot is the canonical serialization of the record as of that
// commit.
type HistoryEntry struct {
	TxID      string    `json:"tx_id"`
	Timestamp time.Time `json:"timestamp"`
	Snapshot  []byte    `json:"snapshot"`
	IsDelete  bool      `json:"is_delete"`
}

// Change describes a mutation applied to an entity during a transaction. The
// Before snapshot is absent for creates.
type Change struct {
	Entity EntityType
	Action Action
	Before Snapshot
	After  Snapshot
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate the mutations captured in the audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	// ActionDelete indicates an entity was logically removed.
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by rules"
}
