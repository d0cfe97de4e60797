package server

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"

	_ "field-sales-platform/backend/api/codec"
	healthv1 "field-sales-platform/backend/api/health/v1"
	sessionv1 "field-sales-platform/backend/api/session/v1"
	syncv1 "field-sales-platform/backend/api/sync/v1"

	"field-sales-platform/backend/internal/audit"
	healthhandler "field-sales-platform/backend/internal/health/handler"
	"field-sales-platform/backend/internal/security"
	"field-sales-platform/backend/internal/server/interceptors"
	sessionhandler "field-sales-platform/backend/internal/session/handler"
	sessionservice "field-sales-platform/backend/internal/session/service"
	synchandler "field-sales-platform/backend/internal/sync/handler"
	syncservice "field-sales-platform/backend/internal/sync/service"
	"field-sales-platform/backend/internal/telemetry"
)

// PublicMethods do not require a bearer token.
var PublicMethods = map[string]bool{
	healthv1.HealthService_HealthCheck_FullMethodName: true,
}

// unobservedMethods are neither audited nor streamed as telemetry (probe traffic).
var unobservedMethods = map[string]bool{
	healthv1.HealthService_HealthCheck_FullMethodName: true,
}

// Deps holds optional service dependencies for gRPC handlers.
type Deps struct {
	// Sync serves pull and push. If nil, sync RPCs return Unimplemented.
	Sync *syncservice.Orchestrator
	// Sessions is the device session registry. If nil, session RPCs return Unimplemented.
	Sessions *sessionservice.Registry
	// HealthPinger is used by HealthService for readiness (e.g. *sqlx.DB). If nil, HealthCheck skips DB ping.
	HealthPinger healthhandler.Pinger
	// HealthPolicyChecker is used by HealthService for readiness (e.g. OPA evaluator). If nil, HealthCheck skips policy check.
	HealthPolicyChecker healthhandler.PolicyChecker
}

// RegisterServices registers all gRPC services with the given server.
//
// Service → handler mapping:
//   - SyncService    → internal/sync/handler
//   - SessionService → internal/session/handler
//   - HealthService  → internal/health/handler
func RegisterServices(s grpc.ServiceRegistrar, deps Deps) {
	syncv1.RegisterSyncServiceServer(s, synchandler.NewServer(deps.Sync))
	sessionv1.RegisterSessionServiceServer(s, sessionhandler.NewServer(deps.Sessions))
	healthv1.RegisterHealthServiceServer(s, healthhandler.NewServer(deps.HealthPinger, deps.HealthPolicyChecker))
}

// Observability configures the cross-cutting interceptors.
type Observability struct {
	// Audit records every authenticated call. Nil disables the audit interceptor.
	Audit audit.AuditLogger
	// Events receives one telemetry event per call. Nil disables the telemetry interceptor.
	Events telemetry.EventEmitter
}

// NewGRPCServer returns a gRPC server with tracing, bearer authentication, audit, and telemetry
// interceptors installed, in that order. Services are not registered.
func NewGRPCServer(tokens *security.TokenProvider, obs Observability, opts ...grpc.ServerOption) *grpc.Server {
	chain := []grpc.UnaryServerInterceptor{interceptors.AuthUnary(tokens, PublicMethods)}
	if obs.Audit != nil {
		chain = append(chain, interceptors.AuditUnary(obs.Audit, unobservedMethods))
	}
	if obs.Events != nil {
		chain = append(chain, interceptors.TelemetryUnary(obs.Events, unobservedMethods))
	}
	base := []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(chain...),
	}
	return grpc.NewServer(append(base, opts...)...)
}
