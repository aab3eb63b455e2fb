package core

import (
	"context"
	"fmt"

	"assetcore/pkg/domain"
)

// lifecycleTransitionRule blocks any commit whose asset changes do not follow
// the canonical status graph. The service guards each operation individually;
// this rule is the transaction-level backstop that holds no matter which code
// path produced the change set.
type lifecycleTransitionRule struct{}

func (lifecycleTransitionRule) Name() string { return "lifecycle_transition" }

// allowedTransitions enumerates the legal status edges. Creation is modeled as
// an edge from the empty status.
var allowedTransitions = map[domain.AssetStatus][]domain.AssetStatus{
	"":                             {domain.StatusPending},
	domain.StatusPending:           {domain.StatusPending, domain.StatusPartiallyApproved, domain.StatusRejected, domain.StatusDeleted},
	domain.StatusPartiallyApproved: {domain.StatusApproved, domain.StatusRejected, domain.StatusDeleted},
	domain.StatusApproved:          {domain.StatusActive, domain.StatusDeleted},
	domain.StatusActive:            {domain.StatusDeleted},
	domain.StatusRejected:          {domain.StatusPending, domain.StatusDeleted},
	domain.StatusDeleted:           nil,
}

func validStatus(status domain.AssetStatus) bool {
	_, ok := allowedTransitions[status]
	return ok && status != ""
}

func transitionAllowed(from, to domain.AssetStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type ruleAssetStatus struct {
	ID     string             `json:"id"`
	Status domain.AssetStatus `json:"status"`
}

func (lifecycleTransitionRule) Evaluate(ctx context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	var result domain.Result
	for _, change := range changes {
		if change.Entity != domain.EntityAsset {
			continue
		}
		after, err := decodeRuleAsset(change.After)
		if err != nil {
			return domain.Result{}, err
		}
		if after == nil {
			continue
		}
		if !validStatus(after.Status) {
			result.Violations = append(result.Violations, domain.Violation{
				Rule:     "lifecycle_transition",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("unknown status %q", after.Status),
				Entity:   domain.EntityAsset,
				EntityID: after.ID,
			})
			continue
		}
		var from domain.AssetStatus
		if change.Action != domain.ActionCreate {
			before, err := decodeRuleAsset(change.Before)
			if err != nil {
				return domain.Result{}, err
			}
			if before != nil {
				from = before.Status
			}
		}
		if from == after.Status && change.Action != domain.ActionCreate {
			// In-place edits that keep the status are legal where the
			// operation guards permit them.
			continue
		}
		if !transitionAllowed(from, after.Status) {
			result.Violations = append(result.Violations, domain.Violation{
				Rule:     "lifecycle_transition",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("illegal transition %q -> %q", from, after.Status),
				Entity:   domain.EntityAsset,
				EntityID: after.ID,
			})
		}
	}
	return result, nil
}

func decodeRuleAsset(snap domain.Snapshot) (*ruleAssetStatus, error) {
	if !snap.Present() {
		return nil, nil
	}
	var decoded ruleAssetStatus
	if err := snap.Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode asset change snapshot: %w", err)
	}
	return &decoded, nil
}

// NewDefaultRulesEngine returns an engine with the standard rule set
// registered.
func NewDefaultRulesEngine() *domain.RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(lifecycleTransitionRule{})
	return engine
}
