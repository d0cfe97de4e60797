package interceptors

import (
	"context"
	"testing"

	identitydomain "field-sales-platform/backend/internal/identity/domain"
)

func TestWithIdentity(t *testing.T) {
	p := identitydomain.Principal{TenantID: 3, UserID: 9, IsAdmin: true}
	ctx := WithIdentity(context.Background(), p, "sess-1")

	got, ok := GetPrincipal(ctx)
	if !ok || got != p {
		t.Errorf("GetPrincipal = %+v, %v; want %+v, true", got, ok, p)
	}
	sid, ok := GetDeviceSessionID(ctx)
	if !ok || sid != "sess-1" {
		t.Errorf("GetDeviceSessionID = %q, %v", sid, ok)
	}
}

func TestGetters_EmptyContext(t *testing.T) {
	if _, ok := GetPrincipal(context.Background()); ok {
		t.Error("GetPrincipal on empty context should be false")
	}
	if _, ok := GetDeviceSessionID(context.Background()); ok {
		t.Error("GetDeviceSessionID on empty context should be false")
	}
	ctx := WithIdentity(context.Background(), identitydomain.Principal{TenantID: 1, UserID: 1}, "")
	if _, ok := GetDeviceSessionID(ctx); ok {
		t.Error("empty device session id should report false")
	}
}
