package engine

import (
	"context"

	identitydomain "field-sales-platform/backend/internal/identity/domain"
	sessiondomain "field-sales-platform/backend/internal/session/domain"
)

// Evaluator answers authorization questions for the session registry and sync orchestrator using OPA or other engines.
type Evaluator interface {
	// CanRevoke reports whether actor may revoke target. Cross-tenant targets are never allowed.
	CanRevoke(ctx context.Context, actor identitydomain.Principal, target *sessiondomain.Session) (bool, error)
	// FullTenantScope reports whether principal receives the whole tenant set for entityType
	// instead of only the entities assigned to them.
	FullTenantScope(ctx context.Context, principal identitydomain.Principal, entityType string) (bool, error)
}

// Fallback is the built-in rule set: tenant admins or the owning user may revoke, and admins see the full tenant.
type Fallback struct{}

func (Fallback) CanRevoke(_ context.Context, actor identitydomain.Principal, target *sessiondomain.Session) (bool, error) {
	if target == nil || target.TenantID != actor.TenantID {
		return false, nil
	}
	return actor.IsAdmin || target.UserID == actor.UserID, nil
}

func (Fallback) FullTenantScope(_ context.Context, principal identitydomain.Principal, _ string) (bool, error) {
	return principal.IsAdmin, nil
}
