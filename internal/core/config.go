package core

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"assetcore/pkg/domain"
)

// AuthzStrategy selects how caller roles are resolved. The strategy is fixed
// at deployment configuration time and never mixed within one deployment.
type AuthzStrategy string

const (
	// StrategyOrg infers roles from the caller's organization label via a
	// static mapping. Adding a new organization requires redeploying the
	// mapping.
	StrategyOrg AuthzStrategy = "org"
	// StrategyAttribute reads the role from a signed certificate attribute,
	// independent of organization membership.
	StrategyAttribute AuthzStrategy = "attribute"
)

// WorkflowConfig names the deployment-variable parts of the workflow: the role
// resolution strategy and the role sets entitled to approve and reject. The
// sets are configuration rather than hard-coded because the number of
// organizations and their role assignments vary between deployments.
type WorkflowConfig struct {
	Strategy AuthzStrategy
	// AttributeKey is the certificate attribute read under StrategyAttribute.
	AttributeKey string
	// OrgRoles is the static organization-to-roles mapping used under
	// StrategyOrg.
	OrgRoles map[string][]domain.Role
	// ApproverRoles are the designated approver roles; exactly two distinct
	// roles must each approve once for an asset to reach APPROVED.
	ApproverRoles []domain.Role
	// RejectRoles are the roles entitled to reject. Empty means the approver
	// roles.
	RejectRoles []domain.Role
}

// DefaultWorkflowConfig returns the three-organization reference deployment:
// one owner organization and two approver organizations.
func DefaultWorkflowConfig() WorkflowConfig {
	return WorkflowConfig{
		Strategy:     StrategyOrg,
		AttributeKey: "role",
		OrgRoles: map[string][]domain.Role{
			"org1": {domain.RoleOwner},
			"org2": {"inspector"},
			"org3": {"certifier"},
		},
		ApproverRoles: []domain.Role{"inspector", "certifier"},
	}
}

// Validate checks the structural requirements of the configuration.
func (c WorkflowConfig) Validate() error {
	switch c.Strategy {
	case StrategyOrg:
		if len(c.OrgRoles) == 0 {
			return fmt.Errorf("org strategy requires an organization role mapping")
		}
	case StrategyAttribute:
		if c.AttributeKey == "" {
			return fmt.Errorf("attribute strategy requires an attribute key")
		}
	default:
		return fmt.Errorf("unknown authz strategy %q", c.Strategy)
	}
	if len(c.ApproverRoles) != 2 {
		return fmt.Errorf("exactly two approver roles required, got %d", len(c.ApproverRoles))
	}
	if c.ApproverRoles[0] == c.ApproverRoles[1] {
		return fmt.Errorf("approver roles must be distinct")
	}
	for _, role := range c.ApproverRoles {
		if role == domain.RoleOwner {
			return fmt.Errorf("owner role cannot be an approver role")
		}
	}
	return nil
}

// rejectRoles resolves the configured reject entitlement, defaulting to the
// approver roles.
func (c WorkflowConfig) rejectRoles() []domain.Role {
	if len(c.RejectRoles) > 0 {
		return c.RejectRoles
	}
	return c.ApproverRoles
}

// rolesFor maps a capability to the role set granting it.
func (c WorkflowConfig) rolesFor(capability domain.Capability) []domain.Role {
	switch capability {
	case domain.CapabilityOwn:
		return []domain.Role{domain.RoleOwner}
	case domain.CapabilityApprove:
		return c.ApproverRoles
	case domain.CapabilityReject:
		return c.rejectRoles()
	default:
		return nil
	}
}

// LoadWorkflowConfigFromEnv builds a WorkflowConfig from process environment,
// falling back to DefaultWorkflowConfig values for anything unset.
//
//	ASSETCORE_AUTHZ_STRATEGY: org|attribute (default org)
//	ASSETCORE_AUTHZ_ATTRIBUTE_KEY: attribute name when strategy=attribute (default role)
//	ASSETCORE_AUTHZ_ORG_ROLES: JSON object mapping org to role list
//	ASSETCORE_APPROVER_ROLES: comma-separated pair of approver roles
//	ASSETCORE_REJECT_ROLES: comma-separated reject roles (default approver roles)
func LoadWorkflowConfigFromEnv() (WorkflowConfig, error) {
	cfg := DefaultWorkflowConfig()
	if v := os.Getenv("ASSETCORE_AUTHZ_STRATEGY"); v != "" {
		cfg.Strategy = AuthzStrategy(v)
	}
	if v := os.Getenv("ASSETCORE_AUTHZ_ATTRIBUTE_KEY"); v != "" {
		cfg.AttributeKey = v
	}
	if v := os.Getenv("ASSETCORE_AUTHZ_ORG_ROLES"); v != "" {
		mapping := map[string][]domain.Role{}
		if err := json.Unmarshal([]byte(v), &mapping); err != nil {
			return WorkflowConfig{}, fmt.Errorf("decode ASSETCORE_AUTHZ_ORG_ROLES: %w", err)
		}
		cfg.OrgRoles = mapping
	}
	if v := os.Getenv("ASSETCORE_APPROVER_ROLES"); v != "" {
		cfg.ApproverRoles = splitRoles(v)
	}
	if v := os.Getenv("ASSETCORE_REJECT_ROLES"); v != "" {
		cfg.RejectRoles = splitRoles(v)
	}
	if err := cfg.Validate(); err != nil {
		return WorkflowConfig{}, err
	}
	return cfg, nil
}

func splitRoles(v string) []domain.Role {
	parts := strings.Split(v, ",")
	out := make([]domain.Role, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, domain.Role(p))
	}
	return out
}
