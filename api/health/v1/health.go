// Package healthv1 defines the HealthService wire contract (readiness for load balancers and orchestration).
package healthv1

import (
	"context"

	"google.golang.org/grpc"
)

const (
	StatusServing    = "SERVING"
	StatusNotServing = "NOT_SERVING"
)

type HealthCheckRequest struct{}

type HealthCheckResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

const HealthService_HealthCheck_FullMethodName = "/fieldsales.health.v1.HealthService/HealthCheck"

// HealthServiceServer is the server API for HealthService.
type HealthServiceServer interface {
	HealthCheck(context.Context, *HealthCheckRequest) (*HealthCheckResponse, error)
}

func RegisterHealthServiceServer(s grpc.ServiceRegistrar, srv HealthServiceServer) {
	s.RegisterService(&HealthService_ServiceDesc, srv)
}

func _HealthService_HealthCheck_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(HealthCheckRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(HealthServiceServer).HealthCheck(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: HealthService_HealthCheck_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(HealthServiceServer).HealthCheck(ctx, req.(*HealthCheckRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// HealthService_ServiceDesc is the grpc.ServiceDesc for HealthService.
var HealthService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "fieldsales.health.v1.HealthService",
	HandlerType: (*HealthServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "HealthCheck", Handler: _HealthService_HealthCheck_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "api/health/v1/health.go",
}
