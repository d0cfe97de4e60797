package interceptors

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"field-sales-platform/backend/internal/security"
)

const (
	bearerPrefix = "bearer "
	// DeviceSessionHeader carries the device session id on sync and session calls.
	DeviceSessionHeader = "x-device-session-id"
)

// AuthUnary returns a unary server interceptor that validates the Bearer (access) token
// from gRPC metadata and sets the principal and device session id in context for protected RPCs.
// The device session id comes from the x-device-session-id header, falling back to the token's session_id claim.
// publicMethods is the set of full method names that do not require a Bearer token (e.g. HealthService HealthCheck).
func AuthUnary(tokens *security.TokenProvider, publicMethods map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		token := extractBearer(ctx)
		public := publicMethods[info.FullMethod]

		if token == "" {
			if public {
				return handler(ctx, req)
			}
			return nil, status.Error(codes.Unauthenticated, "missing or invalid authorization")
		}

		id, err := tokens.ValidateAccess(token)
		if err != nil {
			if public {
				return handler(ctx, req)
			}
			return nil, status.Error(codes.Unauthenticated, "missing or invalid authorization")
		}

		sessionID := metadataValue(ctx, DeviceSessionHeader)
		if sessionID == "" {
			sessionID = id.SessionID
		}
		ctx = WithIdentity(ctx, id.Principal, sessionID)
		return handler(ctx, req)
	}
}

// extractBearer returns the Bearer token from ctx metadata, or "" if missing or malformed.
func extractBearer(ctx context.Context) string {
	v := metadataValue(ctx, "authorization")
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}

func metadataValue(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	vals := md.Get(key)
	if len(vals) == 0 {
		return ""
	}
	return strings.TrimSpace(vals[0])
}
