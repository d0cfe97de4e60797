package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"field-sales-platform/backend/internal/session/domain"
)

// MemoryRepository is an in-process Repository for tests and zero-config dev mode.
type MemoryRepository struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{sessions: make(map[string]*domain.Session)}
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[id].Clone(), nil
}

func (r *MemoryRepository) ListByUser(ctx context.Context, tenantID, userID int64, includeInactive bool) ([]*domain.Session, error) {
	r.mu.Lock()
	out := make([]*domain.Session, 0)
	for _, s := range r.sessions {
		if !s.BelongsTo(tenantID, userID) {
			continue
		}
		if !includeInactive && !s.IsActive() {
			continue
		}
		out = append(out, s.Clone())
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].LoggedInAt.After(out[j].LoggedInAt) })
	return out, nil
}

func (r *MemoryRepository) Create(ctx context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s.Clone()
	return nil
}

func (r *MemoryRepository) Touch(ctx context.Context, id string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || !s.IsActive() {
		return false, nil
	}
	if at.After(s.LastActivity) {
		s.LastActivity = at
	}
	return true, nil
}

func (r *MemoryRepository) UpdatePushToken(ctx context.Context, id, token string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || !s.IsActive() {
		return false, nil
	}
	s.PushToken = &token
	return true, nil
}

func (r *MemoryRepository) Transition(ctx context.Context, id string, t domain.Transition) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || !s.IsActive() {
		return nil, nil
	}
	applyTransition(s, t)
	return s.Clone(), nil
}

func (r *MemoryRepository) TransitionAllForUser(ctx context.Context, tenantID, userID int64, exceptID string, t domain.Transition) ([]*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Session, 0)
	for id, s := range r.sessions {
		if id == exceptID || !s.BelongsTo(tenantID, userID) || !s.IsActive() {
			continue
		}
		applyTransition(s, t)
		out = append(out, s.Clone())
	}
	return out, nil
}

func (r *MemoryRepository) ExpireInactive(ctx context.Context, cutoff time.Time, at time.Time) ([]*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Session, 0)
	for _, s := range r.sessions {
		if !s.IsActive() || !s.LastActivity.Before(cutoff) {
			continue
		}
		applyTransition(s, domain.Transition{To: domain.StatusExpired, At: at, Reason: ExpiryReason})
		out = append(out, s.Clone())
	}
	return out, nil
}

func applyTransition(s *domain.Session, t domain.Transition) {
	at := t.At
	s.Status = t.To
	s.LoggedOutAt = &at
	s.LogoutReason = t.Reason
	if t.RevokedBy != nil {
		by := *t.RevokedBy
		s.RevokedBy = &by
	}
}
