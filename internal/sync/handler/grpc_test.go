package handler

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	syncv1 "field-sales-platform/backend/api/sync/v1"
	entitydomain "field-sales-platform/backend/internal/entity/domain"
	entityrepo "field-sales-platform/backend/internal/entity/repository"
	identitydomain "field-sales-platform/backend/internal/identity/domain"
	"field-sales-platform/backend/internal/server/interceptors"
	sessionrepo "field-sales-platform/backend/internal/session/repository"
	sessionservice "field-sales-platform/backend/internal/session/service"
	syncdomain "field-sales-platform/backend/internal/sync/domain"
	syncservice "field-sales-platform/backend/internal/sync/service"
)

var agent = identitydomain.Principal{TenantID: 1, UserID: 10}

// downStore fails every read and write.
type downStore struct{ entityrepo.Store }

func (downStore) ServerTime(context.Context) (time.Time, error) {
	return time.Time{}, errors.New("connection refused")
}

func (downStore) TryApply(context.Context, entityrepo.ApplyRequest) (*entityrepo.ApplyResult, error) {
	return nil, errors.New("connection refused")
}

func newServer(t *testing.T, store entityrepo.Store) (*Server, context.Context) {
	t.Helper()
	registry := sessionservice.NewRegistry(sessionrepo.NewMemoryRepository())
	s, err := registry.Register(context.Background(), agent, sessionservice.RegisterInput{DeviceID: "d1"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	ctx := interceptors.WithIdentity(context.Background(), agent, s.ID)
	return NewServer(syncservice.NewOrchestrator(store, registry)), ctx
}

func TestPushThenPull(t *testing.T) {
	srv, ctx := newServer(t, entityrepo.NewMemoryStore())

	push, err := srv.Push(ctx, &syncv1.PushRequest{Type: "Client", Items: []*syncv1.PushItem{
		{ClientLocalID: "c-1", Payload: json.RawMessage(`{"name":"Acme"}`)},
	}})
	if err != nil {
		t.Fatalf("Push: %v", err)
	}
	r := push.Results[0]
	if r.Outcome != syncv1.OutcomeAccepted || r.ID == 0 || r.Version != 1 || r.UpdatedAt == nil || r.ServerEntity != nil {
		t.Fatalf("result = %+v", r)
	}

	pull, err := srv.Pull(ctx, &syncv1.PullRequest{Type: "client"})
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}
	if len(pull.Items) != 1 || pull.Items[0].ID != r.ID || pull.Items[0].Type != "client" || pull.ServerTime.IsZero() {
		t.Fatalf("pull = %+v", pull)
	}

	id := r.ID
	conflict, err := srv.Push(ctx, &syncv1.PushRequest{Type: "client", Items: []*syncv1.PushItem{
		{ClientLocalID: "c-1", ID: &id, BaseVersion: 0, Payload: json.RawMessage(`{}`)},
	}})
	if err != nil {
		t.Fatalf("Push: %v", err)
	}
	c := conflict.Results[0]
	if c.Outcome != syncv1.OutcomeConflict || !c.WasConflict || c.ServerEntity == nil || c.ServerEntity.Version != 1 || c.UpdatedAt != nil {
		t.Errorf("conflict = %+v", c)
	}
}

func TestPush_Errors(t *testing.T) {
	srv, ctx := newServer(t, entityrepo.NewMemoryStore())

	if _, err := srv.Push(context.Background(), &syncv1.PushRequest{Type: "client"}); status.Code(err) != codes.Unauthenticated {
		t.Errorf("no identity: code = %v, want Unauthenticated", status.Code(err))
	}
	if _, err := srv.Push(ctx, &syncv1.PushRequest{Type: "invoice"}); status.Code(err) != codes.InvalidArgument {
		t.Errorf("bad type: code = %v, want InvalidArgument", status.Code(err))
	}
	if _, err := srv.Push(ctx, &syncv1.PushRequest{Type: "client", Items: []*syncv1.PushItem{nil}}); status.Code(err) != codes.InvalidArgument {
		t.Errorf("null item: code = %v, want InvalidArgument", status.Code(err))
	}
	noSession := interceptors.WithIdentity(context.Background(), agent, "")
	_, err := srv.Push(noSession, &syncv1.PushRequest{Type: "client", Items: []*syncv1.PushItem{{ClientLocalID: "x"}}})
	if status.Code(err) != codes.Unauthenticated {
		t.Errorf("no session: code = %v, want Unauthenticated", status.Code(err))
	}
	if st, _ := status.FromError(err); st.Message() != "device session invalid" {
		t.Errorf("message = %q", st.Message())
	}
}

func TestStoreUnavailable(t *testing.T) {
	srv, ctx := newServer(t, downStore{})
	if _, err := srv.Pull(ctx, &syncv1.PullRequest{Type: "client"}); status.Code(err) != codes.Internal {
		t.Errorf("pull: code = %v, want Internal", status.Code(err))
	}
	_, err := srv.Push(ctx, &syncv1.PushRequest{Type: "client", Items: []*syncv1.PushItem{{ClientLocalID: "x"}}})
	if status.Code(err) != codes.Internal {
		t.Errorf("push: code = %v, want Internal", status.Code(err))
	}
}

func TestNilOrchestrator_Unimplemented(t *testing.T) {
	srv := NewServer(nil)
	if _, err := srv.Pull(context.Background(), &syncv1.PullRequest{}); status.Code(err) != codes.Unimplemented {
		t.Errorf("code = %v, want Unimplemented", status.Code(err))
	}
	if _, err := srv.Push(context.Background(), &syncv1.PushRequest{}); status.Code(err) != codes.Unimplemented {
		t.Errorf("code = %v, want Unimplemented", status.Code(err))
	}
}

func TestResultToWire_Rejected(t *testing.T) {
	w := resultToWire(syncResultRejected("c-9", "not_found"))
	if w.Outcome != syncv1.OutcomeRejected || w.Reason != "not_found" || w.ID != 0 || w.ServerEntity != nil {
		t.Errorf("wire = %+v", w)
	}
	if entityToWire(nil) != nil {
		t.Error("nil entity should map to nil")
	}
	owner := int64(3)
	e := entityToWire(&entitydomain.Entity{Type: entitydomain.TypeOrder, ID: 4, OwnerUserID: &owner})
	if e.Type != "order" || *e.OwnerUserID != 3 {
		t.Errorf("entity = %+v", e)
	}
}

func syncResultRejected(localID, reason string) syncdomain.Result {
	return syncdomain.Result{ClientLocalID: localID, Outcome: syncdomain.OutcomeRejected, Reason: reason}
}

func TestResultToWire_ConflictCarriesUpdatedAt(t *testing.T) {
	at := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	current := &entitydomain.Entity{Type: entitydomain.TypeClient, ID: 42, Version: 4, UpdatedAt: at}
	w := resultToWire(syncdomain.Result{ClientLocalID: "c-42", Outcome: syncdomain.OutcomeConflict, Entity: current, WasConflict: true})
	if w.ID != 42 || w.Version != 4 || !w.WasConflict {
		t.Errorf("wire = %+v", w)
	}
	if w.UpdatedAt == nil || !w.UpdatedAt.Equal(at) {
		t.Errorf("updatedAt = %v, want %v", w.UpdatedAt, at)
	}
	if w.ServerEntity == nil || w.ServerEntity.Version != 4 {
		t.Errorf("serverEntity = %+v", w.ServerEntity)
	}

	accepted := resultToWire(syncdomain.Result{Outcome: syncdomain.OutcomeAccepted, Entity: current})
	if accepted.ServerEntity != nil || accepted.UpdatedAt == nil {
		t.Errorf("accepted wire = %+v", accepted)
	}
}
