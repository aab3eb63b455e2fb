package core

import (
	"context"
	"sync"
	"time"

	"assetcore/pkg/domain"
)

// AuditStatus describes the outcome recorded for an audited operation.
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusFailure AuditStatus = "failure"
)

// AuditEntry captures one audited workflow operation. Entries are emitted for
// every mutating operation regardless of outcome, so the audit trail shows
// denied and failed attempts alongside committed ones.
type AuditEntry struct {
	ID        string            `json:"id"`
	Operation string            `json:"operation"`
	Actor     string            `json:"actor"`
	Org       string            `json:"org"`
	Entity    domain.EntityType `json:"entity"`
	EntityID  string            `json:"entity_id"`
	Action    domain.Action     `json:"action"`
	Status    AuditStatus       `json:"status"`
	Error     string            `json:"error,omitempty"`
	Duration  time.Duration     `json:"duration"`
	Timestamp time.Time         `json:"timestamp"`
}

// AuditRecorder receives audit entries from the service. Implementations must
// be safe for concurrent use.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

type noopAuditRecorder struct{}

func (noopAuditRecorder) Record(context.Context, AuditEntry) {}

// MemoryAuditLog retains audit entries in memory, oldest first.
type MemoryAuditLog struct {
	mu      sync.Mutex
	entries []AuditEntry
}

// NewMemoryAuditLog constructs an empty in-memory audit log.
func NewMemoryAuditLog() *MemoryAuditLog {
	return &MemoryAuditLog{}
}

// Record appends the entry to the log.
func (l *MemoryAuditLog) Record(_ context.Context, entry AuditEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
}

// Entries returns a copy of the recorded entries.
func (l *MemoryAuditLog) Entries() []AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]AuditEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// auditOperation describes the entity and action an operation maps to in the
// audit trail. Operations without metadata are not audited.
type auditOperation struct {
	entity domain.EntityType
	action domain.Action
}

var auditedOperations = map[string]auditOperation{
	"create_asset":       {entity: domain.EntityAsset, action: domain.ActionCreate},
	"submit_asset":       {entity: domain.EntityAsset, action: domain.ActionUpdate},
	"update_description": {entity: domain.EntityAsset, action: domain.ActionUpdate},
	"approve_asset":      {entity: domain.EntityAsset, action: domain.ActionUpdate},
	"reject_asset":       {entity: domain.EntityAsset, action: domain.ActionUpdate},
	"resubmit_asset":     {entity: domain.EntityAsset, action: domain.ActionUpdate},
	"activate_asset":     {entity: domain.EntityAsset, action: domain.ActionUpdate},
	"delete_asset":       {entity: domain.EntityAsset, action: domain.ActionDelete},
}
