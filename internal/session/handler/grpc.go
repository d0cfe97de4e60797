package handler

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	sessionv1 "field-sales-platform/backend/api/session/v1"
	"field-sales-platform/backend/internal/platform/rbac"
	"field-sales-platform/backend/internal/server/interceptors"
	"field-sales-platform/backend/internal/session/domain"
	sessionservice "field-sales-platform/backend/internal/session/service"
)

// Server implements SessionService for the device session lifecycle.
type Server struct {
	registry *sessionservice.Registry
}

var _ sessionv1.SessionServiceServer = (*Server)(nil)

// NewServer returns a new Session gRPC server. If registry is nil, all RPCs return Unimplemented.
func NewServer(registry *sessionservice.Registry) *Server {
	return &Server{registry: registry}
}

// Register creates a new Active session for the caller's device. A new login always creates a new session.
func (s *Server) Register(ctx context.Context, req *sessionv1.RegisterRequest) (*sessionv1.RegisterResponse, error) {
	if s.registry == nil {
		return nil, status.Error(codes.Unimplemented, "method Register not implemented")
	}
	p, err := rbac.RequireTenantMember(ctx)
	if err != nil {
		return nil, err
	}
	ses, err := s.registry.Register(ctx, p, sessionservice.RegisterInput{
		DeviceID:       req.DeviceID,
		DeviceType:     domain.ParseDeviceType(req.DeviceType),
		PushToken:      req.PushToken,
		RefreshTokenID: req.RefreshTokenID,
		Metadata:       req.Metadata,
	})
	if err != nil {
		return nil, toStatus(err, "failed to register session")
	}
	out := domainSessionToWire(ses, ses.ID)
	return &sessionv1.RegisterResponse{SessionID: ses.ID, Session: out}, nil
}

// Heartbeat touches the session. Defaults to the caller's current device session.
func (s *Server) Heartbeat(ctx context.Context, req *sessionv1.HeartbeatRequest) (*sessionv1.HeartbeatResponse, error) {
	if s.registry == nil {
		return nil, status.Error(codes.Unimplemented, "method Heartbeat not implemented")
	}
	p, err := rbac.RequireTenantMember(ctx)
	if err != nil {
		return nil, err
	}
	id, err := sessionIDOrCurrent(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	active, err := s.registry.Heartbeat(ctx, p, id)
	if err != nil {
		return nil, toStatus(err, "failed to touch session")
	}
	return &sessionv1.HeartbeatResponse{Active: active}, nil
}

// UpdatePushToken replaces the push token on one of the caller's sessions.
func (s *Server) UpdatePushToken(ctx context.Context, req *sessionv1.UpdatePushTokenRequest) (*sessionv1.UpdatePushTokenResponse, error) {
	if s.registry == nil {
		return nil, status.Error(codes.Unimplemented, "method UpdatePushToken not implemented")
	}
	p, err := rbac.RequireTenantMember(ctx)
	if err != nil {
		return nil, err
	}
	if req.PushToken == "" {
		return nil, status.Error(codes.InvalidArgument, "push_token required")
	}
	id, err := sessionIDOrCurrent(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	updated, err := s.registry.UpdatePushToken(ctx, p, id, req.PushToken)
	if err != nil {
		return nil, toStatus(err, "failed to update push token")
	}
	return &sessionv1.UpdatePushTokenResponse{Updated: updated}, nil
}

// Logout ends one of the caller's own sessions. Defaults to the current device session.
func (s *Server) Logout(ctx context.Context, req *sessionv1.LogoutRequest) (*sessionv1.LogoutResponse, error) {
	if s.registry == nil {
		return nil, status.Error(codes.Unimplemented, "method Logout not implemented")
	}
	p, err := rbac.RequireTenantMember(ctx)
	if err != nil {
		return nil, err
	}
	id, err := sessionIDOrCurrent(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	ok, err := s.registry.Logout(ctx, p, id, req.Reason)
	if err != nil {
		return nil, toStatus(err, "failed to logout session")
	}
	return &sessionv1.LogoutResponse{LoggedOut: ok}, nil
}

// RevokeSession revokes a session. Caller must own it or be a tenant admin; sessions of other tenants are not found.
func (s *Server) RevokeSession(ctx context.Context, req *sessionv1.RevokeSessionRequest) (*sessionv1.RevokeSessionResponse, error) {
	if s.registry == nil {
		return nil, status.Error(codes.Unimplemented, "method RevokeSession not implemented")
	}
	p, err := rbac.RequireTenantMember(ctx)
	if err != nil {
		return nil, err
	}
	if req.SessionID == "" {
		return nil, status.Error(codes.InvalidArgument, "session_id required")
	}
	ok, err := s.registry.Revoke(ctx, p, req.SessionID, req.Reason)
	if err != nil {
		return nil, toStatus(err, "failed to revoke session")
	}
	return &sessionv1.RevokeSessionResponse{Revoked: ok}, nil
}

// LogoutAll ends every Active session of the caller except ExceptSessionID.
func (s *Server) LogoutAll(ctx context.Context, req *sessionv1.LogoutAllRequest) (*sessionv1.LogoutAllResponse, error) {
	if s.registry == nil {
		return nil, status.Error(codes.Unimplemented, "method LogoutAll not implemented")
	}
	p, err := rbac.RequireTenantMember(ctx)
	if err != nil {
		return nil, err
	}
	n, err := s.registry.LogoutAll(ctx, p, req.ExceptSessionID, req.Reason)
	if err != nil {
		return nil, toStatus(err, "failed to logout sessions")
	}
	return &sessionv1.LogoutAllResponse{Count: int64(n)}, nil
}

// ListMySessions lists the caller's sessions, marking the current one.
func (s *Server) ListMySessions(ctx context.Context, req *sessionv1.ListMySessionsRequest) (*sessionv1.ListSessionsResponse, error) {
	if s.registry == nil {
		return nil, status.Error(codes.Unimplemented, "method ListMySessions not implemented")
	}
	p, err := rbac.RequireTenantMember(ctx)
	if err != nil {
		return nil, err
	}
	list, err := s.registry.ListForUser(ctx, p, p.UserID, req.IncludeInactive)
	if err != nil {
		return nil, toStatus(err, "failed to list sessions")
	}
	current, _ := interceptors.GetDeviceSessionID(ctx)
	return &sessionv1.ListSessionsResponse{Sessions: sessionsToWire(list, current)}, nil
}

// ListUserSessions lists another user's sessions in the tenant. Caller must be tenant admin or owner.
func (s *Server) ListUserSessions(ctx context.Context, req *sessionv1.ListUserSessionsRequest) (*sessionv1.ListSessionsResponse, error) {
	if s.registry == nil {
		return nil, status.Error(codes.Unimplemented, "method ListUserSessions not implemented")
	}
	p, err := rbac.RequireTenantAdmin(ctx)
	if err != nil {
		return nil, err
	}
	if req.UserID <= 0 {
		return nil, status.Error(codes.InvalidArgument, "user_id required")
	}
	list, err := s.registry.ListForUser(ctx, p, req.UserID, req.IncludeInactive)
	if err != nil {
		return nil, toStatus(err, "failed to list sessions")
	}
	current, _ := interceptors.GetDeviceSessionID(ctx)
	return &sessionv1.ListSessionsResponse{Sessions: sessionsToWire(list, current)}, nil
}

// GetSession returns a session by ID. Caller must own it or be a tenant admin.
func (s *Server) GetSession(ctx context.Context, req *sessionv1.GetSessionRequest) (*sessionv1.GetSessionResponse, error) {
	if s.registry == nil {
		return nil, status.Error(codes.Unimplemented, "method GetSession not implemented")
	}
	p, err := rbac.RequireTenantMember(ctx)
	if err != nil {
		return nil, err
	}
	if req.SessionID == "" {
		return nil, status.Error(codes.InvalidArgument, "session_id required")
	}
	ses, err := s.registry.Get(ctx, p, req.SessionID)
	if err != nil {
		return nil, toStatus(err, "failed to get session")
	}
	current, _ := interceptors.GetDeviceSessionID(ctx)
	return &sessionv1.GetSessionResponse{Session: domainSessionToWire(ses, current)}, nil
}

func sessionIDOrCurrent(ctx context.Context, id string) (string, error) {
	if id != "" {
		return id, nil
	}
	if current, ok := interceptors.GetDeviceSessionID(ctx); ok {
		return current, nil
	}
	return "", status.Error(codes.InvalidArgument, "session_id required")
}

// toStatus maps registry errors to gRPC status codes. Unknown errors are logged and reported as Internal.
func toStatus(err error, msg string) error {
	switch {
	case errors.Is(err, sessionservice.ErrNotFound):
		return status.Error(codes.NotFound, "session not found")
	case errors.Is(err, sessionservice.ErrPermissionDenied):
		return status.Error(codes.PermissionDenied, "not allowed to modify this session")
	case errors.Is(err, sessionservice.ErrInvalidArgument):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		logrus.WithError(err).Error("session: " + msg)
		return status.Error(codes.Internal, msg)
	}
}

func sessionsToWire(list []*domain.Session, current string) []*sessionv1.Session {
	out := make([]*sessionv1.Session, len(list))
	for i := range list {
		out[i] = domainSessionToWire(list[i], current)
	}
	return out
}

func domainSessionToWire(s *domain.Session, current string) *sessionv1.Session {
	if s == nil {
		return nil
	}
	return &sessionv1.Session{
		ID:           s.ID,
		TenantID:     s.TenantID,
		UserID:       s.UserID,
		DeviceID:     s.DeviceID,
		DeviceType:   string(s.DeviceType),
		HasPushToken: s.PushToken != nil && *s.PushToken != "",
		Status:       string(s.Status),
		LastActivity: s.LastActivity,
		LoggedInAt:   s.LoggedInAt,
		LoggedOutAt:  s.LoggedOutAt,
		LogoutReason: s.LogoutReason,
		Metadata:     s.Metadata,
		Current:      current != "" && s.ID == current,
	}
}
