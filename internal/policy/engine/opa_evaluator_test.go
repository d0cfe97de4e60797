package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	identitydomain "field-sales-platform/backend/internal/identity/domain"
	sessiondomain "field-sales-platform/backend/internal/session/domain"
)

func newTestEvaluator(t *testing.T) *OPAEvaluator {
	t.Helper()
	e, err := NewOPAEvaluator(context.Background(), "")
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}
	return e
}

func TestOPAEvaluator_HealthCheck(t *testing.T) {
	e := newTestEvaluator(t)
	if err := e.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}

func TestOPAEvaluator_CanRevoke(t *testing.T) {
	e := newTestEvaluator(t)
	target := &sessiondomain.Session{ID: "s-1", TenantID: 1, UserID: 10, Status: sessiondomain.StatusActive}

	tests := []struct {
		name  string
		actor identitydomain.Principal
		want  bool
	}{
		{"owner", identitydomain.Principal{TenantID: 1, UserID: 10}, true},
		{"tenant admin", identitydomain.Principal{TenantID: 1, UserID: 99, IsAdmin: true}, true},
		{"other agent", identitydomain.Principal{TenantID: 1, UserID: 11}, false},
		{"admin of other tenant", identitydomain.Principal{TenantID: 2, UserID: 99, IsAdmin: true}, false},
		{"same user id other tenant", identitydomain.Principal{TenantID: 2, UserID: 10}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.CanRevoke(context.Background(), tt.actor, target)
			if err != nil {
				t.Fatalf("CanRevoke: %v", err)
			}
			if got != tt.want {
				t.Errorf("CanRevoke = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOPAEvaluator_CanRevoke_NilTarget(t *testing.T) {
	e := newTestEvaluator(t)
	ok, err := e.CanRevoke(context.Background(), identitydomain.Principal{TenantID: 1, UserID: 1, IsAdmin: true}, nil)
	if err != nil || ok {
		t.Errorf("CanRevoke(nil) = %v, %v; want false, nil", ok, err)
	}
}

func TestOPAEvaluator_FullTenantScope(t *testing.T) {
	e := newTestEvaluator(t)
	ctx := context.Background()

	admin, err := e.FullTenantScope(ctx, identitydomain.Principal{TenantID: 1, UserID: 1, IsAdmin: true}, "order")
	if err != nil || !admin {
		t.Errorf("admin scope = %v, %v; want true", admin, err)
	}
	agent, err := e.FullTenantScope(ctx, identitydomain.Principal{TenantID: 1, UserID: 2}, "order")
	if err != nil || agent {
		t.Errorf("agent scope = %v, %v; want false", agent, err)
	}
}

func TestNewOPAEvaluator_PolicyOverride(t *testing.T) {
	// Supervisors get the full tenant view of visits only; revocation restricted to admins.
	policy := `package salesync.authz

default allow_revoke := false

allow_revoke if {
	input.actor.tenant_id == input.session.tenant_id
	input.actor.is_admin
}

default full_tenant_scope := false

full_tenant_scope if {
	input.principal.is_admin
}

full_tenant_scope if {
	input.entity_type == "visit"
}
`
	path := filepath.Join(t.TempDir(), "authz.rego")
	if err := os.WriteFile(path, []byte(policy), 0o600); err != nil {
		t.Fatalf("write policy: %v", err)
	}
	e, err := NewOPAEvaluator(context.Background(), path)
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}
	ctx := context.Background()
	agent := identitydomain.Principal{TenantID: 1, UserID: 10}

	if ok, _ := e.FullTenantScope(ctx, agent, "visit"); !ok {
		t.Error("override should grant visit scope")
	}
	if ok, _ := e.FullTenantScope(ctx, agent, "order"); ok {
		t.Error("override should not grant order scope")
	}
	own := &sessiondomain.Session{ID: "s", TenantID: 1, UserID: 10}
	if ok, _ := e.CanRevoke(ctx, agent, own); ok {
		t.Error("override should deny owner revoke")
	}
}

func TestNewOPAEvaluator_Errors(t *testing.T) {
	if _, err := NewOPAEvaluator(context.Background(), filepath.Join(t.TempDir(), "missing.rego")); err == nil {
		t.Error("expected error for missing policy file")
	}
	if _, err := newOPAEvaluator(context.Background(), "package salesync.authz\n\nallow_revoke if {"); err == nil {
		t.Error("expected compile error")
	}
}

func TestFallback(t *testing.T) {
	var f Fallback
	ctx := context.Background()
	target := &sessiondomain.Session{TenantID: 1, UserID: 5}
	if ok, _ := f.CanRevoke(ctx, identitydomain.Principal{TenantID: 1, UserID: 5}, target); !ok {
		t.Error("owner should revoke")
	}
	if ok, _ := f.CanRevoke(ctx, identitydomain.Principal{TenantID: 2, UserID: 1, IsAdmin: true}, target); ok {
		t.Error("cross-tenant admin must not revoke")
	}
	if ok, _ := f.FullTenantScope(ctx, identitydomain.Principal{IsAdmin: true}, "route"); !ok {
		t.Error("admin should have full scope")
	}
}
