package rbac

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	identitydomain "field-sales-platform/backend/internal/identity/domain"
)

// RequireTenantAdmin ensures the caller is authenticated and has role owner or admin in the tenant.
// Returns the principal on success; returns a gRPC error (Unauthenticated or PermissionDenied) on failure.
func RequireTenantAdmin(ctx context.Context) (identitydomain.Principal, error) {
	p, err := RequireTenantMember(ctx)
	if err != nil {
		return p, err
	}
	if !p.IsAdmin {
		return identitydomain.Principal{}, status.Error(codes.PermissionDenied, "tenant admin or owner required")
	}
	return p, nil
}
