package core

import (
	"fmt"

	"assetcore/pkg/domain"
)

// RoleResolver derives the role set of a caller from its identity. Resolution
// is pure: it reads only the identity value and the resolver's own
// configuration, never ambient state.
type RoleResolver interface {
	Resolve(identity domain.Identity) []domain.Role
}

// orgRoleResolver maps the caller's organization label through a static
// deployment mapping. Unknown organizations resolve to no roles.
type orgRoleResolver struct {
	mapping map[string][]domain.Role
}

func (r orgRoleResolver) Resolve(identity domain.Identity) []domain.Role {
	roles := r.mapping[identity.Org]
	out := make([]domain.Role, len(roles))
	copy(out, roles)
	return out
}

// attributeRoleResolver reads the role from a signed certificate attribute.
// A caller without the attribute resolves to no roles; the check never
// falls back to organization membership.
type attributeRoleResolver struct {
	key string
}

func (r attributeRoleResolver) Resolve(identity domain.Identity) []domain.Role {
	value := identity.Attribute(r.key)
	if value == "" {
		return nil
	}
	return []domain.Role{domain.Role(value)}
}

// Authorizer evaluates whether a caller holds a capability and reports the
// role under which it was granted. Denials surface as UnauthorizedError and
// are never downgraded to a silent no-op.
type Authorizer struct {
	cfg      WorkflowConfig
	resolver RoleResolver
}

// NewAuthorizer validates the configuration and constructs the evaluator for
// the configured strategy.
func NewAuthorizer(cfg WorkflowConfig) (*Authorizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("authz config: %w", err)
	}
	var resolver RoleResolver
	switch cfg.Strategy {
	case StrategyOrg:
		resolver = orgRoleResolver{mapping: cfg.OrgRoles}
	case StrategyAttribute:
		resolver = attributeRoleResolver{key: cfg.AttributeKey}
	}
	return &Authorizer{cfg: cfg, resolver: resolver}, nil
}

// Authorize returns the first resolved role granting the capability, or an
// UnauthorizedError naming the denied capability.
func (a *Authorizer) Authorize(identity domain.Identity, capability domain.Capability) (domain.Role, error) {
	allowed := a.cfg.rolesFor(capability)
	for _, role := range a.resolver.Resolve(identity) {
		for _, candidate := range allowed {
			if role == candidate {
				return role, nil
			}
		}
	}
	return "", domain.UnauthorizedError{
		Org:        identity.Org,
		Capability: capability,
		Reason:     "no resolved role grants the capability",
	}
}

// Roles exposes the resolved role set, used by queries that branch on
// membership without requiring a specific capability.
func (a *Authorizer) Roles(identity domain.Identity) []domain.Role {
	return a.resolver.Resolve(identity)
}
