// Package archive exports committed asset history trails as immutable
// artifacts in a blob store. Exports run asynchronously on a single worker so
// that long history replays never block workflow operations.
package archive

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"assetcore/internal/blob"
	"assetcore/pkg/domain"
)

// Format identifies an artifact encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// Status describes the lifecycle stage of an export request.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Artifact captures a stored history artifact.
type Artifact struct {
	Key         string            `json:"key"`
	Format      Format            `json:"format"`
	ContentType string            `json:"content_type"`
	SizeBytes   int64             `json:"size_bytes"`
	URL         string            `json:"url,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Record tracks an export request and resulting artifacts.
type Record struct {
	ID          string     `json:"id"`
	AssetID     string     `json:"asset_id"`
	Formats     []Format   `json:"formats"`
	Status      Status     `json:"status"`
	Error       string     `json:"error,omitempty"`
	Artifacts   []Artifact `json:"artifacts,omitempty"`
	RequestedBy string     `json:"requested_by"`
	Reason      string     `json:"reason,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Input represents an enqueue request for the worker.
type Input struct {
	AssetID     string
	Formats     []Format
	RequestedBy string
	Reason      string
}

// HistorySource supplies the committed history the worker exports. The
// workflow service satisfies this.
type HistorySource interface {
	AssetHistory(ctx context.Context, id string) ([]domain.HistoryEntry, error)
}

// AuditLogger records archive audit entries.
type AuditLogger interface {
	Record(ctx context.Context, entry AuditEntry)
}

// AuditEntry captures audit trail metadata for exports.
type AuditEntry struct {
	ID         string            `json:"id"`
	Action     string            `json:"action"`
	Actor      string            `json:"actor"`
	AssetID    string            `json:"asset_id"`
	Status     Status            `json:"status"`
	Reason     string            `json:"reason,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// Worker executes history exports asynchronously.
type Worker struct {
	source HistorySource
	store  blob.Store
	audit  AuditLogger

	queue chan task
	mu    sync.RWMutex
	jobs  map[string]*Record

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type task struct {
	id    string
	input Input
}

// NewWorker constructs an export worker over the given history source and
// blob store.
func NewWorker(source HistorySource, store blob.Store, audit AuditLogger) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		source: source,
		store:  store,
		audit:  audit,
		queue:  make(chan task, 32),
		jobs:   make(map[string]*Record),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins processing export requests.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop signals the worker to halt and waits for completion.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case t := <-w.queue:
			w.process(t)
		}
	}
}

// Enqueue schedules an export job and returns the queued record.
func (w *Worker) Enqueue(ctx context.Context, input Input) (Record, error) {
	if w.source == nil {
		return Record{}, fmt.Errorf("history source not configured")
	}
	if strings.TrimSpace(input.AssetID) == "" {
		return Record{}, fmt.Errorf("asset id required")
	}

	formats := input.Formats
	if len(formats) == 0 {
		formats = []Format{FormatJSON, FormatCSV}
	}
	uniq := make([]Format, 0, len(formats))
	seen := make(map[Format]struct{})
	for _, format := range formats {
		if _, dup := seen[format]; dup {
			continue
		}
		if format != FormatJSON && format != FormatCSV {
			return Record{}, fmt.Errorf("unsupported archive format %s", format)
		}
		uniq = append(uniq, format)
		seen[format] = struct{}{}
	}

	id := newID()
	now := time.Now().UTC()
	record := Record{
		ID:          id,
		AssetID:     input.AssetID,
		Formats:     uniq,
		Status:      StatusQueued,
		RequestedBy: input.RequestedBy,
		Reason:      input.Reason,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	w.mu.Lock()
	w.jobs[id] = &record
	queued := record.copy()
	w.mu.Unlock()

	w.recordAudit(ctx, input.AssetID, input.RequestedBy, StatusQueued, input.Reason, nil)

	select {
	case w.queue <- task{id: id, input: input}:
	default:
		return Record{}, fmt.Errorf("archive queue full")
	}
	return queued, nil
}

// Get returns a snapshot of the export record.
func (w *Worker) Get(id string) (Record, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	record, ok := w.jobs[id]
	if !ok {
		return Record{}, false
	}
	return record.copy(), true
}

func (w *Worker) process(t task) {
	w.updateStatus(t.id, StatusRunning, "")

	entries, err := w.source.AssetHistory(w.ctx, t.input.AssetID)
	if err != nil {
		w.fail(t.id, fmt.Sprintf("load history: %v", err))
		return
	}

	record, ok := w.Get(t.id)
	if !ok {
		return
	}
	artifacts := make([]Artifact, 0, len(record.Formats))
	for _, format := range record.Formats {
		payload, contentType, err := materialize(format, t.input.AssetID, entries)
		if err != nil {
			w.fail(t.id, err.Error())
			return
		}
		key := fmt.Sprintf("archives/%s/%s.%s", t.input.AssetID, t.id, format)
		info, err := w.store.Put(w.ctx, key, bytes.NewReader(payload), blob.PutOptions{
			ContentType: contentType,
			Metadata:    map[string]string{"asset_id": t.input.AssetID, "entries": strconv.Itoa(len(entries))},
		})
		if err != nil {
			w.fail(t.id, fmt.Sprintf("store artifact: %v", err))
			return
		}
		artifacts = append(artifacts, Artifact{
			Key:         info.Key,
			Format:      format,
			ContentType: contentType,
			SizeBytes:   info.Size,
			URL:         info.URL,
			Metadata:    info.Metadata,
			CreatedAt:   info.LastModified,
		})
	}
	w.complete(t.id, artifacts)
}

func (w *Worker) updateStatus(id string, status Status, message string) {
	now := time.Now().UTC()
	w.mu.Lock()
	record, ok := w.jobs[id]
	if ok {
		record.Status = status
		record.Error = message
		record.UpdatedAt = now
	}
	var assetID, actor string
	if ok {
		assetID, actor = record.AssetID, record.RequestedBy
	}
	w.mu.Unlock()
	w.recordAudit(w.ctx, assetID, actor, status, "", nil)
}

func (w *Worker) complete(id string, artifacts []Artifact) {
	now := time.Now().UTC()
	w.mu.Lock()
	record, ok := w.jobs[id]
	if ok {
		record.Status = StatusSucceeded
		record.Error = ""
		record.Artifacts = artifacts
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	var assetID, actor string
	if ok {
		assetID, actor = record.AssetID, record.RequestedBy
	}
	w.mu.Unlock()
	w.recordAudit(w.ctx, assetID, actor, StatusSucceeded, "", map[string]string{"artifacts": strconv.Itoa(len(artifacts))})
}

func (w *Worker) fail(id, reason string) {
	now := time.Now().UTC()
	w.mu.Lock()
	record, ok := w.jobs[id]
	if ok {
		record.Status = StatusFailed
		record.Error = reason
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	var assetID, actor string
	if ok {
		assetID, actor = record.AssetID, record.RequestedBy
	}
	w.mu.Unlock()
	w.recordAudit(w.ctx, assetID, actor, StatusFailed, "", map[string]string{"error": reason})
}

func (w *Worker) recordAudit(ctx context.Context, assetID, actor string, status Status, reason string, md map[string]string) {
	if w.audit == nil {
		return
	}
	w.audit.Record(ctx, AuditEntry{
		ID:         newID(),
		Action:     "history_archive",
		Actor:      actor,
		AssetID:    assetID,
		Status:     status,
		Reason:     reason,
		Metadata:   md,
		OccurredAt: time.Now().UTC(),
	})
}

// historyRow is the flattened CSV/JSON projection of one history entry.
type historyRow struct {
	TxID        string             `json:"tx_id"`
	Timestamp   time.Time          `json:"timestamp"`
	Status      domain.AssetStatus `json:"status"`
	Description string             `json:"description"`
	IsDelete    bool               `json:"is_delete"`
}

func flatten(entries []domain.HistoryEntry) ([]historyRow, error) {
	rows := make([]historyRow, 0, len(entries))
	for _, entry := range entries {
		var asset domain.Asset
		if len(entry.Snapshot) > 0 {
			if err := json.Unmarshal(entry.Snapshot, &asset); err != nil {
				return nil, fmt.Errorf("decode history snapshot: %w", err)
			}
		}
		rows = append(rows, historyRow{
			TxID:        entry.TxID,
			Timestamp:   entry.Timestamp,
			Status:      asset.Status,
			Description: asset.Description,
			IsDelete:    entry.IsDelete,
		})
	}
	return rows, nil
}

func materialize(format Format, assetID string, entries []domain.HistoryEntry) ([]byte, string, error) {
	rows, err := flatten(entries)
	if err != nil {
		return nil, "", err
	}
	switch format {
	case FormatJSON:
		payload, err := json.Marshal(struct {
			AssetID string       `json:"asset_id"`
			Entries []historyRow `json:"entries"`
		}{AssetID: assetID, Entries: rows})
		if err != nil {
			return nil, "", fmt.Errorf("marshal json: %w", err)
		}
		return payload, "application/json", nil
	case FormatCSV:
		buf := &bytes.Buffer{}
		writer := csv.NewWriter(buf)
		if err := writer.Write([]string{"tx_id", "timestamp", "status", "description", "is_delete"}); err != nil {
			return nil, "", err
		}
		for _, row := range rows {
			rec := []string{
				row.TxID,
				row.Timestamp.UTC().Format(time.RFC3339Nano),
				string(row.Status),
				row.Description,
				strconv.FormatBool(row.IsDelete),
			}
			if err := writer.Write(rec); err != nil {
				return nil, "", err
			}
		}
		writer.Flush()
		if err := writer.Error(); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "text/csv", nil
	default:
		return nil, "", fmt.Errorf("unsupported archive format %s", format)
	}
}

func (r Record) copy() Record {
	dup := r
	dup.Formats = append([]Format(nil), r.Formats...)
	if len(r.Artifacts) > 0 {
		dup.Artifacts = append([]Artifact(nil), r.Artifacts...)
	}
	return dup
}

func newID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return fmt.Sprintf("%x", b[:])
}

// MemoryAuditLog captures audit entries in-memory for assertions.
type MemoryAuditLog struct {
	mu      sync.Mutex
	entries []AuditEntry
}

// Record stores an audit entry.
func (l *MemoryAuditLog) Record(_ context.Context, entry AuditEntry) {
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()
}

// Entries returns a defensive copy of recorded audit entries.
func (l *MemoryAuditLog) Entries() []AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]AuditEntry, len(l.entries))
	copy(out, l.entries)
	return out
}
