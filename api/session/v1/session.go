// Package sessionv1 defines the SessionService wire contract for device sessions.
package sessionv1

import (
	"context"
	"time"

	"google.golang.org/grpc"

	"field-sales-platform/backend/api/codec"
)

// Session is the wire form of a device session. PushToken is never echoed back; HasPushToken reports presence.
type Session struct {
	ID           string            `json:"id"`
	TenantID     int64             `json:"tenantId"`
	UserID       int64             `json:"userId"`
	DeviceID     string            `json:"deviceId"`
	DeviceType   string            `json:"deviceType"`
	HasPushToken bool              `json:"hasPushToken"`
	Status       string            `json:"status"`
	LastActivity time.Time         `json:"lastActivity"`
	LoggedInAt   time.Time         `json:"loggedInAt"`
	LoggedOutAt  *time.Time        `json:"loggedOutAt,omitempty"`
	LogoutReason string            `json:"logoutReason,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	// Current is true when the session is the caller's own.
	Current bool `json:"current"`
}

type RegisterRequest struct {
	DeviceID       string            `json:"deviceId"`
	DeviceType     string            `json:"deviceType"`
	PushToken      string            `json:"pushToken,omitempty"`
	RefreshTokenID string            `json:"refreshTokenId,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

type RegisterResponse struct {
	SessionID string   `json:"sessionId"`
	Session   *Session `json:"session"`
}

type HeartbeatRequest struct {
	SessionID string `json:"sessionId"`
}

type HeartbeatResponse struct {
	Active bool `json:"active"`
}

type UpdatePushTokenRequest struct {
	SessionID string `json:"sessionId"`
	PushToken string `json:"pushToken"`
}

type UpdatePushTokenResponse struct {
	Updated bool `json:"updated"`
}

type LogoutRequest struct {
	SessionID string `json:"sessionId"`
	Reason    string `json:"reason,omitempty"`
}

type LogoutResponse struct {
	LoggedOut bool `json:"loggedOut"`
}

type RevokeSessionRequest struct {
	SessionID string `json:"sessionId"`
	Reason    string `json:"reason,omitempty"`
}

type RevokeSessionResponse struct {
	Revoked bool `json:"revoked"`
}

type LogoutAllRequest struct {
	// ExceptSessionID is kept active, typically the caller's own session.
	ExceptSessionID string `json:"exceptSessionId,omitempty"`
	Reason          string `json:"reason,omitempty"`
}

type LogoutAllResponse struct {
	Count int64 `json:"count"`
}

type ListMySessionsRequest struct {
	IncludeInactive bool `json:"includeInactive"`
}

type ListUserSessionsRequest struct {
	UserID          int64 `json:"userId"`
	IncludeInactive bool  `json:"includeInactive"`
}

type ListSessionsResponse struct {
	Sessions []*Session `json:"sessions"`
}

type GetSessionRequest struct {
	SessionID string `json:"sessionId"`
}

type GetSessionResponse struct {
	Session *Session `json:"session"`
}

const serviceName = "fieldsales.session.v1.SessionService"

const (
	SessionService_Register_FullMethodName         = "/" + serviceName + "/Register"
	SessionService_Heartbeat_FullMethodName        = "/" + serviceName + "/Heartbeat"
	SessionService_UpdatePushToken_FullMethodName  = "/" + serviceName + "/UpdatePushToken"
	SessionService_Logout_FullMethodName           = "/" + serviceName + "/Logout"
	SessionService_RevokeSession_FullMethodName    = "/" + serviceName + "/RevokeSession"
	SessionService_LogoutAll_FullMethodName        = "/" + serviceName + "/LogoutAll"
	SessionService_ListMySessions_FullMethodName   = "/" + serviceName + "/ListMySessions"
	SessionService_ListUserSessions_FullMethodName = "/" + serviceName + "/ListUserSessions"
	SessionService_GetSession_FullMethodName       = "/" + serviceName + "/GetSession"
)

// SessionServiceServer is the server API for SessionService.
type SessionServiceServer interface {
	Register(context.Context, *RegisterRequest) (*RegisterResponse, error)
	Heartbeat(context.Context, *HeartbeatRequest) (*HeartbeatResponse, error)
	UpdatePushToken(context.Context, *UpdatePushTokenRequest) (*UpdatePushTokenResponse, error)
	Logout(context.Context, *LogoutRequest) (*LogoutResponse, error)
	RevokeSession(context.Context, *RevokeSessionRequest) (*RevokeSessionResponse, error)
	LogoutAll(context.Context, *LogoutAllRequest) (*LogoutAllResponse, error)
	ListMySessions(context.Context, *ListMySessionsRequest) (*ListSessionsResponse, error)
	ListUserSessions(context.Context, *ListUserSessionsRequest) (*ListSessionsResponse, error)
	GetSession(context.Context, *GetSessionRequest) (*GetSessionResponse, error)
}

// SessionServiceClient is the client API for SessionService.
type SessionServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewSessionServiceClient(cc grpc.ClientConnInterface) *SessionServiceClient {
	return &SessionServiceClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in interface{}, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codec.Name)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *SessionServiceClient) Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*RegisterResponse, error) {
	return invoke[RegisterResponse](ctx, c.cc, SessionService_Register_FullMethodName, in, opts)
}

func (c *SessionServiceClient) Heartbeat(ctx context.Context, in *HeartbeatRequest, opts ...grpc.CallOption) (*HeartbeatResponse, error) {
	return invoke[HeartbeatResponse](ctx, c.cc, SessionService_Heartbeat_FullMethodName, in, opts)
}

func (c *SessionServiceClient) UpdatePushToken(ctx context.Context, in *UpdatePushTokenRequest, opts ...grpc.CallOption) (*UpdatePushTokenResponse, error) {
	return invoke[UpdatePushTokenResponse](ctx, c.cc, SessionService_UpdatePushToken_FullMethodName, in, opts)
}

func (c *SessionServiceClient) Logout(ctx context.Context, in *LogoutRequest, opts ...grpc.CallOption) (*LogoutResponse, error) {
	return invoke[LogoutResponse](ctx, c.cc, SessionService_Logout_FullMethodName, in, opts)
}

func (c *SessionServiceClient) RevokeSession(ctx context.Context, in *RevokeSessionRequest, opts ...grpc.CallOption) (*RevokeSessionResponse, error) {
	return invoke[RevokeSessionResponse](ctx, c.cc, SessionService_RevokeSession_FullMethodName, in, opts)
}

func (c *SessionServiceClient) LogoutAll(ctx context.Context, in *LogoutAllRequest, opts ...grpc.CallOption) (*LogoutAllResponse, error) {
	return invoke[LogoutAllResponse](ctx, c.cc, SessionService_LogoutAll_FullMethodName, in, opts)
}

func (c *SessionServiceClient) ListMySessions(ctx context.Context, in *ListMySessionsRequest, opts ...grpc.CallOption) (*ListSessionsResponse, error) {
	return invoke[ListSessionsResponse](ctx, c.cc, SessionService_ListMySessions_FullMethodName, in, opts)
}

func (c *SessionServiceClient) ListUserSessions(ctx context.Context, in *ListUserSessionsRequest, opts ...grpc.CallOption) (*ListSessionsResponse, error) {
	return invoke[ListSessionsResponse](ctx, c.cc, SessionService_ListUserSessions_FullMethodName, in, opts)
}

func (c *SessionServiceClient) GetSession(ctx context.Context, in *GetSessionRequest, opts ...grpc.CallOption) (*GetSessionResponse, error) {
	return invoke[GetSessionResponse](ctx, c.cc, SessionService_GetSession_FullMethodName, in, opts)
}

func RegisterSessionServiceServer(s grpc.ServiceRegistrar, srv SessionServiceServer) {
	s.RegisterService(&SessionService_ServiceDesc, srv)
}

// unary adapts a typed SessionServiceServer method to a grpc.MethodHandler.
func unary[Req any, Resp any](fullMethod string, call func(SessionServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(SessionServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(SessionServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// SessionService_ServiceDesc is the grpc.ServiceDesc for SessionService.
var SessionService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*SessionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Register", Handler: unary(SessionService_Register_FullMethodName, SessionServiceServer.Register)},
		{MethodName: "Heartbeat", Handler: unary(SessionService_Heartbeat_FullMethodName, SessionServiceServer.Heartbeat)},
		{MethodName: "UpdatePushToken", Handler: unary(SessionService_UpdatePushToken_FullMethodName, SessionServiceServer.UpdatePushToken)},
		{MethodName: "Logout", Handler: unary(SessionService_Logout_FullMethodName, SessionServiceServer.Logout)},
		{MethodName: "RevokeSession", Handler: unary(SessionService_RevokeSession_FullMethodName, SessionServiceServer.RevokeSession)},
		{MethodName: "LogoutAll", Handler: unary(SessionService_LogoutAll_FullMethodName, SessionServiceServer.LogoutAll)},
		{MethodName: "ListMySessions", Handler: unary(SessionService_ListMySessions_FullMethodName, SessionServiceServer.ListMySessions)},
		{MethodName: "ListUserSessions", Handler: unary(SessionService_ListUserSessions_FullMethodName, SessionServiceServer.ListUserSessions)},
		{MethodName: "GetSession", Handler: unary(SessionService_GetSession_FullMethodName, SessionServiceServer.GetSession)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "api/session/v1/session.go",
}
