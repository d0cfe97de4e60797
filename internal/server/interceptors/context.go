package interceptors

import (
	"context"

	identitydomain "field-sales-platform/backend/internal/identity/domain"
)

type contextKey struct{ name string }

var (
	principalKey       = contextKey{"principal"}
	deviceSessionIDKey = contextKey{"device_session_id"}
)

// WithIdentity returns a context carrying the verified principal and the caller's device session id.
// Handlers read these via GetPrincipal and GetDeviceSessionID.
func WithIdentity(ctx context.Context, p identitydomain.Principal, deviceSessionID string) context.Context {
	ctx = context.WithValue(ctx, principalKey, p)
	ctx = context.WithValue(ctx, deviceSessionIDKey, deviceSessionID)
	return ctx
}

// GetPrincipal returns the principal from context and true if set; otherwise the zero value, false.
func GetPrincipal(ctx context.Context) (identitydomain.Principal, bool) {
	v, ok := ctx.Value(principalKey).(identitydomain.Principal)
	return v, ok
}

// GetDeviceSessionID returns the device session id from context and true if set and non-empty.
func GetDeviceSessionID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(deviceSessionIDKey).(string)
	return v, ok && v != ""
}
