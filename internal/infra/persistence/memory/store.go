// Package memory provides an in-memory implementation of the core persistence
// store used for tests and ephemeral environments. It is also the canonical
// transactional engine: the sqlite and postgres stores embed it and snapshot
// its state after every successful commit.
package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"assetcore/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain
// persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Asset aliases domain.Asset for in-memory persistence operations.
	Asset = domain.Asset
	// PrivateDetails aliases domain.PrivateDetails.
	PrivateDetails = domain.PrivateDetails
	// HistoryEntry aliases domain.HistoryEntry captured per commit.
	HistoryEntry = domain.HistoryEntry
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
	// PersistentStore aliases the domain.PersistentStore abstraction.
	PersistentStore = domain.PersistentStore
)

// PrivateRecord pairs a private detail record with its visibility scope. The
// scope is authoritative: reads outside it fail closed at this layer.
type PrivateRecord struct {
	Details PrivateDetails `json:"details"`
	Scope   []string       `json:"scope"`
}

// InScope reports whether org may read the record.
func (r PrivateRecord) InScope(org string) bool {
	for _, member := range r.Scope {
		if member == org {
			return true
		}
	}
	return false
}

type memoryState struct {
	assets  map[string]Asset
	private map[string]PrivateRecord
}

// Snapshot captures a point-in-time clone of the store state, including the
// append-only history log, for external persistence.
type Snapshot struct {
	Assets  map[string]Asset          `json:"assets"`
	Private map[string]PrivateRecord  `json:"private"`
	History map[string][]HistoryEntry `json:"history"`
	Seq     uint64                    `json:"seq"`
}

func newMemoryState() memoryState {
	return memoryState{
		assets:  make(map[string]Asset),
		private: make(map[string]PrivateRecord),
	}
}

func (s memoryState) clone() memoryState {
	cloned := newMemoryState()
	for k, v := range s.assets {
		cloned.assets[k] = cloneAsset(v)
	}
	for k, v := range s.private {
		cloned.private[k] = clonePrivateRecord(v)
	}
	return cloned
}

func cloneAsset(a Asset) Asset {
	cp := a
	cp.Approvals = append([]domain.Approval(nil), a.Approvals...)
	return cp
}

func clonePrivateRecord(r PrivateRecord) PrivateRecord {
	cp := r
	cp.Scope = append([]string(nil), r.Scope...)
	if r.Details.Attributes != nil {
		attrs := make(map[string]string, len(r.Details.Attributes))
		for k, v := range r.Details.Attributes {
			attrs[k] = v
		}
		cp.Details.Attributes = attrs
	}
	return cp
}

func cloneHistory(entries []HistoryEntry) []HistoryEntry {
	out := make([]HistoryEntry, len(entries))
	for i, e := range entries {
		cp := e
		cp.Snapshot = append([]byte(nil), e.Snapshot...)
		out[i] = cp
	}
	return out
}

// Store provides an in-memory transactional store for the core domain with an
// append-only per-key history log populated on commit.
type Store struct {
	mu      sync.RWMutex
	state   memoryState
	history map[string][]HistoryEntry
	seq     uint64
	engine  *RulesEngine
	nowFn   func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:   newMemoryState(),
		history: make(map[string][]HistoryEntry),
		engine:  engine,
		nowFn:   func() time.Time { return time.Now().UTC() },
	}
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot := Snapshot{
		Assets:  make(map[string]Asset, len(s.state.assets)),
		Private: make(map[string]PrivateRecord, len(s.state.private)),
		History: make(map[string][]HistoryEntry, len(s.history)),
		Seq:     s.seq,
	}
	for k, v := range s.state.assets {
		snapshot.Assets[k] = cloneAsset(v)
	}
	for k, v := range s.state.private {
		snapshot.Private[k] = clonePrivateRecord(v)
	}
	for k, v := range s.history {
		snapshot.History[k] = cloneHistory(v)
	}
	return snapshot
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := newMemoryState()
	for k, v := range snapshot.Assets {
		state.assets[k] = cloneAsset(v)
	}
	for k, v := range snapshot.Private {
		state.private[k] = clonePrivateRecord(v)
	}
	history := make(map[string][]HistoryEntry, len(snapshot.History))
	for k, v := range snapshot.History {
		history[k] = cloneHistory(v)
	}
	s.state = state
	s.history = history
	s.seq = snapshot.Seq
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// SetNowFunc overrides the store clock; intended for tests that need
// deterministic commit timestamps.
func (s *Store) SetNowFunc(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn != nil {
		s.nowFn = fn
	}
}

type transaction struct {
	store   *Store
	state   memoryState
	changes []Change
	now     time.Time
}

type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

// ListAssets returns all assets in the snapshot, sorted by id so iteration
// order is deterministic across replicas.
func (v transactionView) ListAssets() []Asset {
	out := make([]Asset, 0, len(v.state.assets))
	for _, a := range v.state.assets {
		out = append(out, cloneAsset(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// FindAsset retrieves an asset by id from the snapshot.
func (v transactionView) FindAsset(id string) (Asset, bool) {
	a, ok := v.state.assets[id]
	if !ok {
		return Asset{}, false
	}
	return cloneAsset(a), true
}

// RunInTransaction executes fn within a transactional copy of the store state.
// On success the pending change set is evaluated by the rules engine, then
// committed together with its history entries; on any error nothing is
// observable to a subsequent read.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	s.appendHistory(tx)
	return result, nil
}

// appendHistory converts the committed change set into per-key history
// entries. The tx reference is the commit sequence plus a digest of the
// change payloads, so replicas applying the same commit order produce
// identical references.
func (s *Store) appendHistory(tx *transaction) {
	if len(tx.changes) == 0 {
		return
	}
	s.seq++
	txID := commitRef(s.seq, tx.changes)
	for _, change := range tx.changes {
		if change.Entity != domain.EntityAsset {
			continue
		}
		snapshot := change.After.Raw()
		isDelete := false
		if snapshot != nil {
			var a Asset
			if err := json.Unmarshal(snapshot, &a); err == nil && a.Status == domain.StatusDeleted {
				isDelete = true
			}
		}
		id := assetIDFromPayload(change)
		if id == "" {
			continue
		}
		s.history[id] = append(s.history[id], HistoryEntry{
			TxID:      txID,
			Timestamp: tx.now,
			Snapshot:  snapshot,
			IsDelete:  isDelete,
		})
	}
}

func assetIDFromPayload(change Change) string {
	raw := change.After.Raw()
	if raw == nil {
		raw = change.Before.Raw()
	}
	if raw == nil {
		return ""
	}
	var a Asset
	if err := json.Unmarshal(raw, &a); err != nil {
		return ""
	}
	return a.ID
}

func commitRef(seq uint64, changes []Change) string {
	h := sha256.New()
	for _, change := range changes {
		h.Write([]byte(change.Entity))
		h.Write([]byte(change.Action))
		h.Write(change.Before.Raw())
		h.Write(change.After.Raw())
	}
	return fmt.Sprintf("%08d-%s", seq, hex.EncodeToString(h.Sum(nil))[:16])
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	view := newTransactionView(&snapshot)
	return fn(view)
}

// GetAsset returns the committed public record for id.
func (s *Store) GetAsset(id string) (Asset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.state.assets[id]
	if !ok {
		return Asset{}, false
	}
	return cloneAsset(a), true
}

// ListAssets returns all committed public records sorted by id.
func (s *Store) ListAssets() []Asset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Asset, 0, len(s.state.assets))
	for _, a := range s.state.assets {
		out = append(out, cloneAsset(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GetPrivateDetails returns the restricted record for id. The read fails
// closed: a caller organization outside the stored visibility scope receives
// UnauthorizedError even though the bytes exist underneath. There is no
// application-level fallback path.
func (s *Store) GetPrivateDetails(id, callerOrg string) (PrivateDetails, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.state.private[id]
	if !ok {
		return PrivateDetails{}, domain.NotFoundError{Entity: domain.EntityPrivateDetails, ID: id}
	}
	if !rec.InScope(callerOrg) {
		return PrivateDetails{}, domain.UnauthorizedError{
			Org:        callerOrg,
			Capability: domain.CapabilityReadPrivate,
			Reason:     "organization not in visibility scope",
		}
	}
	return clonePrivateRecord(rec).Details, nil
}

// History replays the append-only per-key change log for id, oldest first.
func (s *Store) History(id string) ([]HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries, ok := s.history[id]
	if !ok {
		return nil, domain.NotFoundError{Entity: domain.EntityAsset, ID: id}
	}
	return cloneHistory(entries), nil
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// FindAsset exposes asset lookup within the transaction scope.
func (tx *transaction) FindAsset(id string) (Asset, bool) {
	a, ok := tx.state.assets[id]
	if !ok {
		return Asset{}, false
	}
	return cloneAsset(a), true
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// CreateAsset stores a new public record within the transaction.
func (tx *transaction) CreateAsset(a Asset) (Asset, error) {
	if a.ID == "" {
		return Asset{}, domain.ValidationError{Field: "id", Reason: "must not be empty"}
	}
	if _, exists := tx.state.assets[a.ID]; exists {
		return Asset{}, domain.AlreadyExistsError{Entity: domain.EntityAsset, ID: a.ID}
	}
	a.CreatedAt = tx.now
	a.UpdatedAt = tx.now
	a.Approvals = domain.NormalizeApprovals(a.Approvals)
	tx.state.assets[a.ID] = cloneAsset(a)
	after, err := domain.SnapshotOf(cloneAsset(a))
	if err != nil {
		return Asset{}, err
	}
	tx.recordChange(Change{Entity: domain.EntityAsset, Action: domain.ActionCreate, After: after})
	return cloneAsset(a), nil
}

// UpdateAsset mutates a public record using the provided mutator function.
// Timestamps are assigned by the store, never by the caller.
func (tx *transaction) UpdateAsset(id string, mutator func(*Asset) error) (Asset, error) {
	current, ok := tx.state.assets[id]
	if !ok {
		return Asset{}, domain.NotFoundError{Entity: domain.EntityAsset, ID: id}
	}
	before, err := domain.SnapshotOf(cloneAsset(current))
	if err != nil {
		return Asset{}, err
	}
	if err := mutator(&current); err != nil {
		return Asset{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	current.Approvals = domain.NormalizeApprovals(current.Approvals)
	tx.state.assets[id] = cloneAsset(current)
	after, err := domain.SnapshotOf(cloneAsset(current))
	if err != nil {
		return Asset{}, err
	}
	action := domain.ActionUpdate
	if current.Status == domain.StatusDeleted {
		action = domain.ActionDelete
	}
	tx.recordChange(Change{Entity: domain.EntityAsset, Action: action, Before: before, After: after})
	return cloneAsset(current), nil
}

// PutPrivateDetails writes the restricted record and its visibility scope in
// the same atomic scope as any public-record mutation made by the caller. The
// change entry carries only the canonical fingerprint, never the content.
func (tx *transaction) PutPrivateDetails(details PrivateDetails, scope []string) error {
	if details.ID == "" {
		return domain.ValidationError{Field: "id", Reason: "must not be empty"}
	}
	if len(scope) == 0 {
		return domain.ValidationError{Field: "scope", Reason: "must name at least one organization"}
	}
	hash, err := domain.Fingerprint(details)
	if err != nil {
		return err
	}
	action := domain.ActionCreate
	if _, exists := tx.state.private[details.ID]; exists {
		action = domain.ActionUpdate
	}
	scoped := append([]string(nil), scope...)
	sort.Strings(scoped)
	tx.state.private[details.ID] = clonePrivateRecord(PrivateRecord{Details: details, Scope: scoped})
	after, err := domain.SnapshotOf(struct {
		ID    string   `json:"id"`
		Hash  string   `json:"hash"`
		Scope []string `json:"scope"`
	}{ID: details.ID, Hash: hash, Scope: scoped})
	if err != nil {
		return err
	}
	tx.recordChange(Change{Entity: domain.EntityPrivateDetails, Action: action, After: after})
	return nil
}
