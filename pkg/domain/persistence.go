package domain

import "context"

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope. Mutations to the public record and the
// private record made in the same transaction commit together or not at all.
type Transaction interface {
	Snapshot() TransactionView
	CreateAsset(Asset) (Asset, error)
	UpdateAsset(id string, mutator func(*Asset) error) (Asset, error)
	PutPrivateDetails(details PrivateDetails, scope []string) error
	FindAsset(id string) (Asset, bool)
}

// TransactionView provides read-only access to snapshot data for rules and
// queries.
type TransactionView interface {
	ListAssets() []Asset
	FindAsset(id string) (Asset, bool)
}

// PersistentStore is a minimal abstraction over durable backends. Reads see
// only committed state; History replays the append-only per-key change log.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetAsset(id string) (Asset, bool)
	ListAssets() []Asset
	// GetPrivateDetails fails closed: callers whose organization is outside
	// the stored visibility scope receive UnauthorizedError even though the
	// bytes exist underneath.
	GetPrivateDetails(id, callerOrg string) (PrivateDetails, error)
	History(id string) ([]HistoryEntry, error)
}
