package audit

import (
	"context"
	"errors"
	"testing"

	"field-sales-platform/backend/internal/audit/domain"
)

// mockAuditRepo implements audit repository interface for tests.
type mockAuditRepo struct {
	entries   []*domain.AuditLog
	createErr error
}

func (m *mockAuditRepo) GetByID(ctx context.Context, id string) (*domain.AuditLog, error) {
	return nil, nil
}

func (m *mockAuditRepo) Create(ctx context.Context, entry *domain.AuditLog) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockAuditRepo) ListByTenant(ctx context.Context, tenantID int64, limit, offset int32) ([]*domain.AuditLog, error) {
	return nil, nil
}

func TestLogger_LogEvent_Success(t *testing.T) {
	repo := &mockAuditRepo{}
	ipExtractor := func(ctx context.Context) string {
		return "192.168.1.1"
	}
	logger := NewLogger(repo, ipExtractor)

	logger.LogEvent(context.Background(), 7, 42, "revoke", "device_session", "session_id=abc")

	if len(repo.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(repo.entries))
	}
	entry := repo.entries[0]
	if entry.TenantID != 7 {
		t.Errorf("tenant_id = %d, want 7", entry.TenantID)
	}
	if entry.UserID != 42 {
		t.Errorf("user_id = %d, want 42", entry.UserID)
	}
	if entry.Action != "revoke" {
		t.Errorf("action = %q, want %q", entry.Action, "revoke")
	}
	if entry.Resource != "device_session" {
		t.Errorf("resource = %q, want %q", entry.Resource, "device_session")
	}
	if entry.Metadata != "session_id=abc" {
		t.Errorf("metadata = %q", entry.Metadata)
	}
	if entry.IP != "192.168.1.1" {
		t.Errorf("ip = %q, want %q", entry.IP, "192.168.1.1")
	}
	if entry.ID == "" {
		t.Error("id should be set")
	}
	if entry.CreatedAt.IsZero() {
		t.Error("created_at should be set")
	}
}

func TestLogger_LogEvent_NilIPExtractor(t *testing.T) {
	repo := &mockAuditRepo{}
	logger := NewLogger(repo, nil)

	logger.LogEvent(context.Background(), 1, 2, "logout", "device_session", "")

	if len(repo.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(repo.entries))
	}
	if repo.entries[0].IP != "unknown" {
		t.Errorf("ip = %q, want %q", repo.entries[0].IP, "unknown")
	}
}

func TestLogger_LogEvent_SystemActor(t *testing.T) {
	repo := &mockAuditRepo{}
	logger := NewLogger(repo, nil)

	logger.LogEvent(context.Background(), 3, 0, "expire", "device_session", "")

	if len(repo.entries) != 1 || repo.entries[0].UserID != 0 {
		t.Fatalf("expected one system entry, got %+v", repo.entries)
	}
}

func TestLogger_LogEvent_RepositoryError(t *testing.T) {
	repo := &mockAuditRepo{createErr: errors.New("database error")}
	logger := NewLogger(repo, nil)

	// Should not panic; errors are swallowed.
	logger.LogEvent(context.Background(), 1, 2, "revoke", "device_session", "")

	if len(repo.entries) != 0 {
		t.Errorf("expected 0 entries on error, got %d", len(repo.entries))
	}
}

func TestLogger_LogEvent_NilRepo(t *testing.T) {
	logger := NewLogger(nil, nil)
	logger.LogEvent(context.Background(), 1, 2, "revoke", "device_session", "")
}
