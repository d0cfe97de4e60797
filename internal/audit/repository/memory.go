package repository

import (
	"context"
	"sort"
	"sync"

	"field-sales-platform/backend/internal/audit/domain"
)

// MemoryRepository keeps audit logs in process; used by dev mode and tests.
type MemoryRepository struct {
	mu      sync.Mutex
	entries []*domain.AuditLog
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*domain.AuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.ID == id {
			c := *e
			return &c, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) ListByTenant(ctx context.Context, tenantID int64, limit, offset int32) ([]*domain.AuditLog, error) {
	r.mu.Lock()
	matched := make([]*domain.AuditLog, 0)
	for _, e := range r.entries {
		if e.TenantID == tenantID {
			c := *e
			matched = append(matched, &c)
		}
	}
	r.mu.Unlock()
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	if int(offset) >= len(matched) {
		return []*domain.AuditLog{}, nil
	}
	matched = matched[offset:]
	if limit > 0 && int(limit) < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}

func (r *MemoryRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *a
	r.entries = append(r.entries, &c)
	return nil
}
