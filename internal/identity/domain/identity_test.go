package domain

import "testing"

func TestRole_IsAdmin(t *testing.T) {
	tests := []struct {
		role Role
		want bool
	}{
		{RoleOwner, true},
		{RoleAdmin, true},
		{RoleAgent, false},
		{Role(""), false},
		{Role("ADMIN"), false},
	}
	for _, tt := range tests {
		if got := tt.role.IsAdmin(); got != tt.want {
			t.Errorf("Role(%q).IsAdmin() = %v, want %v", tt.role, got, tt.want)
		}
	}
}

func TestPrincipal_Valid(t *testing.T) {
	if (Principal{}).Valid() {
		t.Error("zero principal should be invalid")
	}
	if (Principal{TenantID: 1}).Valid() {
		t.Error("principal without user should be invalid")
	}
	if !(Principal{TenantID: 1, UserID: 2}).Valid() {
		t.Error("principal with tenant and user should be valid")
	}
}
