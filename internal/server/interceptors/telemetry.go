package interceptors

import (
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"field-sales-platform/backend/internal/telemetry"
	"field-sales-platform/backend/internal/telemetry/domain"
)

// grpcRequestMetadata is the JSON shape stored in Event.Metadata for grpc_request events.
type grpcRequestMetadata struct {
	FullMethod string `json:"full_method"`
	StatusCode string `json:"status_code"`
	DurationMs int64  `json:"duration_ms"`
	ClientIP   string `json:"client_ip"`
	// TraceID links the event to the otelgrpc server span, when one is recording.
	TraceID string `json:"trace_id,omitempty"`
}

// TelemetryUnary returns a unary server interceptor that emits a telemetry event after each RPC.
// Best-effort: failures are logged and do not fail the RPC. If emitter is nil, the interceptor no-ops.
// skipMethods is the set of full method names to not emit (e.g. HealthCheck).
func TelemetryUnary(emitter telemetry.EventEmitter, skipMethods map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if emitter == nil || skipMethods[info.FullMethod] {
			return resp, err
		}
		rm := grpcRequestMetadata{
			FullMethod: info.FullMethod,
			StatusCode: status.Code(err).String(),
			DurationMs: time.Since(start).Milliseconds(),
			ClientIP:   ClientIP(ctx),
		}
		if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
			rm.TraceID = sc.TraceID().String()
		}
		meta, _ := json.Marshal(rm)
		p, _ := GetPrincipal(ctx)
		sessionID, _ := GetDeviceSessionID(ctx)
		telemetry.EmitAsync(emitter, &domain.Event{
			TenantID:  p.TenantID,
			UserID:    p.UserID,
			SessionID: sessionID,
			EventType: domain.EventGRPCRequest,
			Source:    "grpc_interceptor",
			Metadata:  meta,
			CreatedAt: time.Now().UTC(),
		})
		return resp, err
	}
}
