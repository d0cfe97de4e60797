// Package syncv1 defines the SyncService wire contract: pull/push messages and the gRPC service descriptor.
// Messages travel with the JSON codec from api/codec.
package syncv1

import (
	"context"
	"encoding/json"
	"time"

	"google.golang.org/grpc"

	"field-sales-platform/backend/api/codec"
)

// Push item outcomes.
const (
	OutcomeAccepted = "Accepted"
	OutcomeConflict = "Conflict"
	OutcomeRejected = "Rejected"
)

// Entity is the wire form of a syncable entity.
type Entity struct {
	TenantID    int64           `json:"tenantId"`
	Type        string          `json:"type"`
	ID          int64           `json:"id"`
	Version     int64           `json:"version"`
	Active      bool            `json:"active"`
	OwnerUserID *int64          `json:"ownerUserId,omitempty"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	CreatedBy   int64           `json:"createdBy"`
	UpdatedBy   int64           `json:"updatedBy"`
}

type PullRequest struct {
	Type string `json:"type"`
	// Since is the cursor from the previous pull; nil requests a full sync.
	Since *time.Time `json:"since"`
}

type PullResponse struct {
	Items      []*Entity `json:"items"`
	ServerTime time.Time `json:"serverTime"`
}

// PushItem is one locally changed entity. ID nil means create.
type PushItem struct {
	ClientLocalID string          `json:"clientLocalId"`
	ID            *int64          `json:"id"`
	BaseVersion   int64           `json:"baseVersion"`
	Payload       json.RawMessage `json:"payload"`
	Deleted       bool            `json:"deleted,omitempty"`
	OwnerUserID   *int64          `json:"ownerUserId,omitempty"`
}

type PushRequest struct {
	Type  string      `json:"type"`
	Items []*PushItem `json:"items"`
}

type PushResult struct {
	ClientLocalID string     `json:"clientLocalId"`
	Outcome       string     `json:"outcome"`
	ID            int64      `json:"id,omitempty"`
	Version       int64      `json:"version,omitempty"`
	UpdatedAt     *time.Time `json:"updatedAt,omitempty"`
	WasConflict   bool       `json:"wasConflict"`
	Duplicate     bool       `json:"duplicate,omitempty"`
	ServerEntity  *Entity    `json:"serverEntity,omitempty"`
	Reason        string     `json:"reason,omitempty"`
}

type PushResponse struct {
	Results []*PushResult `json:"results"`
}

const (
	SyncService_Pull_FullMethodName = "/fieldsales.sync.v1.SyncService/Pull"
	SyncService_Push_FullMethodName = "/fieldsales.sync.v1.SyncService/Push"
)

// SyncServiceServer is the server API for SyncService.
type SyncServiceServer interface {
	Pull(context.Context, *PullRequest) (*PullResponse, error)
	Push(context.Context, *PushRequest) (*PushResponse, error)
}

// SyncServiceClient is the client API for SyncService.
type SyncServiceClient interface {
	Pull(ctx context.Context, in *PullRequest, opts ...grpc.CallOption) (*PullResponse, error)
	Push(ctx context.Context, in *PushRequest, opts ...grpc.CallOption) (*PushResponse, error)
}

type syncServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewSyncServiceClient(cc grpc.ClientConnInterface) SyncServiceClient {
	return &syncServiceClient{cc}
}

func (c *syncServiceClient) Pull(ctx context.Context, in *PullRequest, opts ...grpc.CallOption) (*PullResponse, error) {
	out := new(PullResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codec.Name)}, opts...)
	if err := c.cc.Invoke(ctx, SyncService_Pull_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *syncServiceClient) Push(ctx context.Context, in *PushRequest, opts ...grpc.CallOption) (*PushResponse, error) {
	out := new(PushResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codec.Name)}, opts...)
	if err := c.cc.Invoke(ctx, SyncService_Push_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func RegisterSyncServiceServer(s grpc.ServiceRegistrar, srv SyncServiceServer) {
	s.RegisterService(&SyncService_ServiceDesc, srv)
}

func _SyncService_Pull_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(PullRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SyncServiceServer).Pull(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: SyncService_Pull_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SyncServiceServer).Pull(ctx, req.(*PullRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _SyncService_Push_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(PushRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SyncServiceServer).Push(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: SyncService_Push_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SyncServiceServer).Push(ctx, req.(*PushRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// SyncService_ServiceDesc is the grpc.ServiceDesc for SyncService.
var SyncService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "fieldsales.sync.v1.SyncService",
	HandlerType: (*SyncServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Pull", Handler: _SyncService_Pull_Handler},
		{MethodName: "Push", Handler: _SyncService_Push_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "api/sync/v1/sync.go",
}
