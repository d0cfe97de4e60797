package rbac

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	identitydomain "field-sales-platform/backend/internal/identity/domain"
	"field-sales-platform/backend/internal/server/interceptors"
)

// RequireTenantMember ensures the caller is authenticated with a tenant and user (any role).
// Returns the principal on success; returns a gRPC Unauthenticated error on failure.
func RequireTenantMember(ctx context.Context) (identitydomain.Principal, error) {
	p, ok := interceptors.GetPrincipal(ctx)
	if !ok || !p.Valid() {
		return identitydomain.Principal{}, status.Error(codes.Unauthenticated, "tenant and user context required")
	}
	return p, nil
}
