package handler

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	syncv1 "field-sales-platform/backend/api/sync/v1"
	entitydomain "field-sales-platform/backend/internal/entity/domain"
	"field-sales-platform/backend/internal/platform/rbac"
	"field-sales-platform/backend/internal/server/interceptors"
	syncdomain "field-sales-platform/backend/internal/sync/domain"
	syncservice "field-sales-platform/backend/internal/sync/service"
)

// Server implements SyncService: pull and push of versioned entities.
type Server struct {
	orch *syncservice.Orchestrator
}

var _ syncv1.SyncServiceServer = (*Server)(nil)

// NewServer returns a new Sync gRPC server. If orch is nil, all RPCs return Unimplemented.
func NewServer(orch *syncservice.Orchestrator) *Server {
	return &Server{orch: orch}
}

// Pull returns the entities of one type changed since the request cursor, and the next cursor.
func (s *Server) Pull(ctx context.Context, req *syncv1.PullRequest) (*syncv1.PullResponse, error) {
	if s.orch == nil {
		return nil, status.Error(codes.Unimplemented, "method Pull not implemented")
	}
	p, err := rbac.RequireTenantMember(ctx)
	if err != nil {
		return nil, err
	}
	typ, err := entitydomain.ParseType(req.Type)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "unknown entity type")
	}
	sessionID, _ := interceptors.GetDeviceSessionID(ctx)
	res, err := s.orch.Pull(ctx, p, sessionID, typ, req.Since)
	if err != nil {
		return nil, toStatus(err, "failed to pull changes")
	}
	items := make([]*syncv1.Entity, len(res.Items))
	for i, e := range res.Items {
		items[i] = entityToWire(e)
	}
	return &syncv1.PullResponse{Items: items, ServerTime: res.ServerTime}, nil
}

// Push applies locally changed entities under the caller's device session, one result per item.
func (s *Server) Push(ctx context.Context, req *syncv1.PushRequest) (*syncv1.PushResponse, error) {
	if s.orch == nil {
		return nil, status.Error(codes.Unimplemented, "method Push not implemented")
	}
	p, err := rbac.RequireTenantMember(ctx)
	if err != nil {
		return nil, err
	}
	typ, err := entitydomain.ParseType(req.Type)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "unknown entity type")
	}
	items := make([]syncdomain.Item, 0, len(req.Items))
	for _, it := range req.Items {
		if it == nil {
			return nil, status.Error(codes.InvalidArgument, "null push item")
		}
		items = append(items, syncdomain.Item{
			ClientLocalID: it.ClientLocalID,
			ID:            it.ID,
			BaseVersion:   it.BaseVersion,
			Payload:       it.Payload,
			Deleted:       it.Deleted,
			OwnerUserID:   it.OwnerUserID,
		})
	}
	sessionID, _ := interceptors.GetDeviceSessionID(ctx)
	results, err := s.orch.Push(ctx, p, sessionID, typ, items)
	if err != nil {
		return nil, toStatus(err, "failed to push changes")
	}
	out := make([]*syncv1.PushResult, len(results))
	for i, r := range results {
		out[i] = resultToWire(r)
	}
	return &syncv1.PushResponse{Results: out}, nil
}

// toStatus maps orchestrator errors to gRPC status codes. Unknown errors are logged and reported as Internal.
func toStatus(err error, msg string) error {
	switch {
	case errors.Is(err, syncservice.ErrSessionInvalid):
		return status.Error(codes.Unauthenticated, "device session invalid")
	case errors.Is(err, syncservice.ErrInvalidArgument):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, msg)
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, msg)
	default:
		logrus.WithError(err).Error("sync: " + msg)
		return status.Error(codes.Internal, msg)
	}
}

func resultToWire(r syncdomain.Result) *syncv1.PushResult {
	out := &syncv1.PushResult{
		ClientLocalID: r.ClientLocalID,
		Outcome:       string(r.Outcome),
		WasConflict:   r.WasConflict,
		Duplicate:     r.Duplicate,
		Reason:        r.Reason,
	}
	if r.Entity == nil {
		return out
	}
	at := r.Entity.UpdatedAt
	out.ID = r.Entity.ID
	out.Version = r.Entity.Version
	out.UpdatedAt = &at
	if r.Outcome == syncdomain.OutcomeConflict {
		out.ServerEntity = entityToWire(r.Entity)
	}
	return out
}

func entityToWire(e *entitydomain.Entity) *syncv1.Entity {
	if e == nil {
		return nil
	}
	return &syncv1.Entity{
		TenantID:    e.TenantID,
		Type:        string(e.Type),
		ID:          e.ID,
		Version:     e.Version,
		Active:      e.Active,
		OwnerUserID: e.OwnerUserID,
		Payload:     e.Payload,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
		CreatedBy:   e.CreatedBy,
		UpdatedBy:   e.UpdatedBy,
	}
}
