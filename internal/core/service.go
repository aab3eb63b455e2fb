// Package core implements the multi-party asset approval workflow: the
// lifecycle state machine, access-control evaluation, transaction rules, and
// the observability seams around every operation.
package core

import (
	"context"
	"fmt"
	"sort"
	"time"

	"assetcore/pkg/domain"
)

// Service coordinates the asset approval workflow over a persistent store.
// Every mutating operation follows the same shape: validate input, then inside
// a single store transaction load the record, authorize the caller, and apply
// the change, so the status check and the write cannot be split by a
// concurrent commit. Loading precedes authorization: a missing record reports
// NotFound even when the caller also lacks the capability.
type Service struct {
	store   domain.PersistentStore
	authz   *Authorizer
	logger  Logger
	audit   AuditRecorder
	metrics MetricsRecorder
	tracer  Tracer
	clock   Clock
}

// ServiceOption customizes optional service collaborators.
type ServiceOption func(*Service)

// WithLogger wires a logger implementation.
func WithLogger(logger Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAuditRecorder wires an audit sink for operation outcomes.
func WithAuditRecorder(recorder AuditRecorder) ServiceOption {
	return func(s *Service) {
		if recorder != nil {
			s.audit = recorder
		}
	}
}

// WithMetrics wires a metrics recorder.
func WithMetrics(recorder MetricsRecorder) ServiceOption {
	return func(s *Service) {
		if recorder != nil {
			s.metrics = recorder
		}
	}
}

// WithTracer wires a tracer.
func WithTracer(tracer Tracer) ServiceOption {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithClock overrides the time source, primarily for deterministic tests.
func WithClock(clock Clock) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewService constructs a workflow service over the given store and
// authorizer. All observability collaborators default to no-ops.
func NewService(store domain.PersistentStore, authz *Authorizer, opts ...ServiceOption) *Service {
	s := &Service{
		store:   store,
		authz:   authz,
		logger:  noopLogger{},
		audit:   noopAuditRecorder{},
		metrics: noopMetricsRecorder{},
		tracer:  noopTracer{},
		clock:   systemClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateAssetInput carries the fields for asset creation. Details, when
// present, are written to the restricted collection in the same transaction
// and only their fingerprint appears on the public record.
type CreateAssetInput struct {
	ID          string
	Description string
	Details     *PrivateDetailsInput
}

// PrivateDetailsInput carries the sensitive fields supplied at creation.
// ShareWith lists counterparty organizations granted read access in addition
// to the owner organization.
type PrivateDetailsInput struct {
	AppraisedValue int64
	Contact        string
	Notes          string
	Attributes     map[string]string
	ShareWith      []string
}

// ResubmitAssetInput optionally revises the description while returning a
// rejected asset to the pending state.
type ResubmitAssetInput struct {
	Description *string
}

// DeleteAssetInput carries the elevated confirmation required to delete an
// active asset.
type DeleteAssetInput struct {
	Confirm bool
}

// CreateAsset registers a new asset in the PENDING state with an empty
// approval set. When private details are supplied they are stored in the
// restricted collection atomically with the public record.
func (s *Service) CreateAsset(ctx context.Context, caller domain.Identity, input CreateAssetInput) (domain.Asset, error) {
	var created domain.Asset
	err := s.run(ctx, "create_asset", caller, input.ID, func(ctx context.Context) error {
		if input.ID == "" {
			return domain.ValidationError{Field: "id", Reason: "must not be empty"}
		}
		if input.Details != nil && input.Details.AppraisedValue <= 0 {
			return domain.ValidationError{Field: "appraised_value", Reason: "must be positive"}
		}
		asset := domain.Asset{
			ID:          input.ID,
			Description: input.Description,
			Status:      domain.StatusPending,
			Approvals:   []domain.Approval{},
			Creator:     caller.ID,
			OwnerOrg:    caller.Org,
		}
		var details *domain.PrivateDetails
		if input.Details != nil {
			details = &domain.PrivateDetails{
				ID:             input.ID,
				AppraisedValue: input.Details.AppraisedValue,
				Contact:        input.Details.Contact,
				Notes:          input.Details.Notes,
				Attributes:     input.Details.Attributes,
			}
			hash, err := domain.Fingerprint(*details)
			if err != nil {
				return err
			}
			asset.PrivateDetailsHash = hash
		}
		_, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			if _, exists := tx.FindAsset(input.ID); exists {
				return domain.AlreadyExistsError{Entity: domain.EntityAsset, ID: input.ID}
			}
			if _, err := s.authz.Authorize(caller, domain.CapabilityOwn); err != nil {
				return err
			}
			stored, err := tx.CreateAsset(asset)
			if err != nil {
				return err
			}
			if details != nil {
				scope := append([]string{caller.Org}, input.Details.ShareWith...)
				if err := tx.PutPrivateDetails(*details, scope); err != nil {
					return err
				}
			}
			created = stored
			return nil
		})
		return err
	})
	return created, err
}

// SubmitAsset marks a pending asset as explicitly submitted for review. The
// operation is idempotent: submitting an already-submitted pending asset
// succeeds without producing a new commit.
func (s *Service) SubmitAsset(ctx context.Context, caller domain.Identity, id string) (domain.Asset, error) {
	var result domain.Asset
	err := s.run(ctx, "submit_asset", caller, id, func(ctx context.Context) error {
		_, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			asset, ok := tx.FindAsset(id)
			if !ok {
				return domain.NotFoundError{Entity: domain.EntityAsset, ID: id}
			}
			if _, err := s.authz.Authorize(caller, domain.CapabilityOwn); err != nil {
				return err
			}
			if err := requireOwner(asset, caller); err != nil {
				return err
			}
			if asset.Status != domain.StatusPending {
				return domain.InvalidStateError{ID: id, Status: asset.Status, Operation: "submit"}
			}
			if asset.Submitted {
				result = asset
				return nil
			}
			updated, err := tx.UpdateAsset(id, func(a *domain.Asset) error {
				a.Submitted = true
				return nil
			})
			if err != nil {
				return err
			}
			result = updated
			return nil
		})
		return err
	})
	return result, err
}

// UpdateDescription revises the free-text description. Edits are allowed only
// while the asset is still pending.
func (s *Service) UpdateDescription(ctx context.Context, caller domain.Identity, id, description string) (domain.Asset, error) {
	var result domain.Asset
	err := s.run(ctx, "update_description", caller, id, func(ctx context.Context) error {
		_, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			asset, ok := tx.FindAsset(id)
			if !ok {
				return domain.NotFoundError{Entity: domain.EntityAsset, ID: id}
			}
			if _, err := s.authz.Authorize(caller, domain.CapabilityOwn); err != nil {
				return err
			}
			if err := requireOwner(asset, caller); err != nil {
				return err
			}
			if asset.Status != domain.StatusPending {
				return domain.InvalidStateError{ID: id, Status: asset.Status, Operation: "update_description"}
			}
			updated, err := tx.UpdateAsset(id, func(a *domain.Asset) error {
				a.Description = description
				return nil
			})
			if err != nil {
				return err
			}
			result = updated
			return nil
		})
		return err
	})
	return result, err
}

// ApproveAsset casts the caller's approval vote. The first designated role
// moves the asset to PARTIALLY_APPROVED; once both designated roles have
// approved, in either order, the asset becomes APPROVED. A repeat vote by the
// same role fails with DuplicateApprovalError and changes nothing.
func (s *Service) ApproveAsset(ctx context.Context, caller domain.Identity, id string) (domain.Asset, error) {
	var result domain.Asset
	err := s.run(ctx, "approve_asset", caller, id, func(ctx context.Context) error {
		_, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			if _, ok := tx.FindAsset(id); !ok {
				return domain.NotFoundError{Entity: domain.EntityAsset, ID: id}
			}
			role, err := s.authz.Authorize(caller, domain.CapabilityApprove)
			if err != nil {
				return err
			}
			updated, err := tx.UpdateAsset(id, func(a *domain.Asset) error {
				if a.Status != domain.StatusPending && a.Status != domain.StatusPartiallyApproved {
					return domain.InvalidStateError{ID: id, Status: a.Status, Operation: "approve"}
				}
				if a.ApprovedBy(role) {
					return domain.DuplicateApprovalError{ID: id, Role: role}
				}
				a.Approvals = append(a.Approvals, domain.Approval{
					Role:       role,
					Org:        caller.Org,
					ApprovedAt: s.clock.Now(),
				})
				a.Status = domain.StatusPartiallyApproved
				if approvedByAll(*a, s.authz.cfg.ApproverRoles) {
					a.Status = domain.StatusApproved
				}
				return nil
			})
			if err != nil {
				return err
			}
			result = updated
			return nil
		})
		return err
	})
	return result, err
}

// RejectAsset vetoes an in-review asset with a mandatory reason. Rejection
// clears all accumulated approvals so a later resubmission starts over.
func (s *Service) RejectAsset(ctx context.Context, caller domain.Identity, id, reason string) (domain.Asset, error) {
	var result domain.Asset
	err := s.run(ctx, "reject_asset", caller, id, func(ctx context.Context) error {
		if reason == "" {
			return domain.ValidationError{Field: "reason", Reason: "must not be empty"}
		}
		_, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			if _, ok := tx.FindAsset(id); !ok {
				return domain.NotFoundError{Entity: domain.EntityAsset, ID: id}
			}
			if _, err := s.authz.Authorize(caller, domain.CapabilityReject); err != nil {
				return err
			}
			updated, err := tx.UpdateAsset(id, func(a *domain.Asset) error {
				if a.Status != domain.StatusPending && a.Status != domain.StatusPartiallyApproved {
					return domain.InvalidStateError{ID: id, Status: a.Status, Operation: "reject"}
				}
				a.Status = domain.StatusRejected
				a.RejectionReason = reason
				a.Approvals = nil
				a.Submitted = false
				return nil
			})
			if err != nil {
				return err
			}
			result = updated
			return nil
		})
		return err
	})
	return result, err
}

// ResubmitAsset returns a rejected asset to PENDING with an empty approval
// set, clearing the rejection reason and optionally revising the description.
func (s *Service) ResubmitAsset(ctx context.Context, caller domain.Identity, id string, input ResubmitAssetInput) (domain.Asset, error) {
	var result domain.Asset
	err := s.run(ctx, "resubmit_asset", caller, id, func(ctx context.Context) error {
		_, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			asset, ok := tx.FindAsset(id)
			if !ok {
				return domain.NotFoundError{Entity: domain.EntityAsset, ID: id}
			}
			if _, err := s.authz.Authorize(caller, domain.CapabilityOwn); err != nil {
				return err
			}
			if err := requireOwner(asset, caller); err != nil {
				return err
			}
			updated, err := tx.UpdateAsset(id, func(a *domain.Asset) error {
				if a.Status != domain.StatusRejected {
					return domain.InvalidStateError{ID: id, Status: a.Status, Operation: "resubmit"}
				}
				a.Status = domain.StatusPending
				a.RejectionReason = ""
				a.Approvals = nil
				a.Submitted = false
				if input.Description != nil {
					a.Description = *input.Description
				}
				return nil
			})
			if err != nil {
				return err
			}
			result = updated
			return nil
		})
		return err
	})
	return result, err
}

// ActivateAsset moves a fully approved asset into service.
func (s *Service) ActivateAsset(ctx context.Context, caller domain.Identity, id string) (domain.Asset, error) {
	var result domain.Asset
	err := s.run(ctx, "activate_asset", caller, id, func(ctx context.Context) error {
		_, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			asset, ok := tx.FindAsset(id)
			if !ok {
				return domain.NotFoundError{Entity: domain.EntityAsset, ID: id}
			}
			if _, err := s.authz.Authorize(caller, domain.CapabilityOwn); err != nil {
				return err
			}
			if err := requireOwner(asset, caller); err != nil {
				return err
			}
			updated, err := tx.UpdateAsset(id, func(a *domain.Asset) error {
				if a.Status != domain.StatusApproved {
					return domain.InvalidStateError{ID: id, Status: a.Status, Operation: "activate"}
				}
				a.Status = domain.StatusActive
				return nil
			})
			if err != nil {
				return err
			}
			result = updated
			return nil
		})
		return err
	})
	return result, err
}

// DeleteAsset logically removes an asset. Deleting an active asset requires
// the Confirm flag; a deleted asset cannot be deleted again. The record stays
// in world state with the DELETED status so its history remains replayable.
func (s *Service) DeleteAsset(ctx context.Context, caller domain.Identity, id string, input DeleteAssetInput) (domain.Asset, error) {
	var result domain.Asset
	err := s.run(ctx, "delete_asset", caller, id, func(ctx context.Context) error {
		_, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			asset, ok := tx.FindAsset(id)
			if !ok {
				return domain.NotFoundError{Entity: domain.EntityAsset, ID: id}
			}
			if _, err := s.authz.Authorize(caller, domain.CapabilityOwn); err != nil {
				return err
			}
			if err := requireOwner(asset, caller); err != nil {
				return err
			}
			if asset.Status == domain.StatusDeleted {
				return domain.InvalidStateError{ID: id, Status: asset.Status, Operation: "delete"}
			}
			if asset.Status == domain.StatusActive && !input.Confirm {
				return domain.ValidationError{Field: "confirm", Reason: "deleting an active asset requires confirmation"}
			}
			updated, err := tx.UpdateAsset(id, func(a *domain.Asset) error {
				a.Status = domain.StatusDeleted
				return nil
			})
			if err != nil {
				return err
			}
			result = updated
			return nil
		})
		return err
	})
	return result, err
}

// GetAsset returns the public record by id.
func (s *Service) GetAsset(ctx context.Context, id string) (domain.Asset, error) {
	var result domain.Asset
	err := s.run(ctx, "get_asset", domain.Identity{}, id, func(context.Context) error {
		asset, ok := s.store.GetAsset(id)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityAsset, ID: id}
		}
		result = asset
		return nil
	})
	return result, err
}

// GetPrivateDetails returns the restricted record for callers inside its
// visibility scope, verifying the stored bytes still match the fingerprint on
// the public record.
func (s *Service) GetPrivateDetails(ctx context.Context, caller domain.Identity, id string) (domain.PrivateDetails, error) {
	var result domain.PrivateDetails
	err := s.run(ctx, "get_private_details", caller, id, func(context.Context) error {
		details, err := s.store.GetPrivateDetails(id, caller.Org)
		if err != nil {
			return err
		}
		if asset, ok := s.store.GetAsset(id); ok && asset.PrivateDetailsHash != "" {
			got, err := domain.Fingerprint(details)
			if err != nil {
				return err
			}
			if got != asset.PrivateDetailsHash {
				return domain.IntegrityError{Entity: domain.EntityPrivateDetails, ID: id}
			}
		}
		result = details
		return nil
	})
	return result, err
}

// AssetHistory replays the append-only change log for an asset, oldest first.
func (s *Service) AssetHistory(ctx context.Context, id string) ([]domain.HistoryEntry, error) {
	var result []domain.HistoryEntry
	err := s.run(ctx, "asset_history", domain.Identity{}, id, func(context.Context) error {
		entries, err := s.store.History(id)
		if err != nil {
			return err
		}
		result = entries
		return nil
	})
	return result, err
}

// AssetsByStatus returns all assets currently in the given lifecycle state,
// ordered by id.
func (s *Service) AssetsByStatus(ctx context.Context, status domain.AssetStatus) ([]domain.Asset, error) {
	var result []domain.Asset
	err := s.run(ctx, "assets_by_status", domain.Identity{}, "", func(context.Context) error {
		if !validStatus(status) {
			return domain.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", status)}
		}
		for _, asset := range s.store.ListAssets() {
			if asset.Status == status {
				result = append(result, asset)
			}
		}
		return nil
	})
	return result, err
}

// ListAssets returns all assets ordered by id, excluding deleted records
// unless includeDeleted is set.
func (s *Service) ListAssets(ctx context.Context, includeDeleted bool) ([]domain.Asset, error) {
	var result []domain.Asset
	err := s.run(ctx, "list_assets", domain.Identity{}, "", func(context.Context) error {
		for _, asset := range s.store.ListAssets() {
			if !includeDeleted && asset.Status == domain.StatusDeleted {
				continue
			}
			result = append(result, asset)
		}
		sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
		return nil
	})
	return result, err
}

// run wraps an operation with tracing, metrics, audit, and logging. Audit
// entries are emitted only for operations registered in auditedOperations.
func (s *Service) run(ctx context.Context, operation string, caller domain.Identity, entityID string, fn func(context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, operation)
	start := time.Now()
	err := fn(ctx)
	duration := time.Since(start)
	span.End(err)
	s.metrics.Observe(ctx, operation, err == nil, duration)
	if meta, ok := auditedOperations[operation]; ok {
		now := s.clock.Now()
		entry := AuditEntry{
			ID:        fmt.Sprintf("%s:%s:%d", operation, entityID, now.UnixNano()),
			Operation: operation,
			Actor:     caller.ID,
			Org:       caller.Org,
			Entity:    meta.entity,
			EntityID:  entityID,
			Action:    meta.action,
			Status:    AuditStatusSuccess,
			Duration:  duration,
			Timestamp: now,
		}
		if err != nil {
			entry.Status = AuditStatusFailure
			entry.Error = err.Error()
		}
		s.audit.Record(ctx, entry)
	}
	if err != nil {
		s.logger.Error("operation failed", "operation", operation, "asset", entityID, "error", err)
		return err
	}
	s.logger.Debug("operation completed", "operation", operation, "asset", entityID)
	return nil
}

// requireOwner checks that the caller's organization owns the asset. Role
// authorization alone is not enough: under the attribute strategy an owner
// role may exist in several organizations.
func requireOwner(asset domain.Asset, caller domain.Identity) error {
	if asset.OwnerOrg != caller.Org {
		return domain.UnauthorizedError{
			Org:        caller.Org,
			Capability: domain.CapabilityOwn,
			Reason:     fmt.Sprintf("asset %s is owned by %s", asset.ID, asset.OwnerOrg),
		}
	}
	return nil
}

// approvedByAll reports whether every required role has cast an approval.
func approvedByAll(asset domain.Asset, roles []domain.Role) bool {
	for _, role := range roles {
		if !asset.ApprovedBy(role) {
			return false
		}
	}
	return true
}
