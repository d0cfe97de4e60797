package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"field-sales-platform/backend/internal/entity/domain"
)

type rowKey struct {
	tenantID int64
	typ      domain.Type
	id       int64
}

type familyKey struct {
	tenantID int64
	typ      domain.Type
}

type localKey struct {
	tenantID int64
	typ      domain.Type
	actor    int64
	localID  string
}

type memRow struct {
	// mu serializes TryApply on this row.
	mu      sync.Mutex
	current *domain.Entity
}

// MemoryStore is an in-process Store for tests and zero-config dev mode.
//
// Lock order is row.mu, then clockMu, then mu. A write stamps updatedAt and publishes the new
// state while holding clockMu, so ServerTime never returns a bound below an unpublished stamp.
type MemoryStore struct {
	mu      sync.RWMutex
	rows    map[rowKey]*memRow
	nextID  map[familyKey]int64
	byLocal map[localKey]rowKey

	clockMu sync.Mutex
	last    time.Time
	now     func() time.Time
}

// NewMemoryStore returns an empty MemoryStore using the wall clock.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rows:    make(map[rowKey]*memRow),
		nextID:  make(map[familyKey]int64),
		byLocal: make(map[localKey]rowKey),
		now:     time.Now,
	}
}

// tickLocked returns a UTC timestamp strictly greater than every earlier one. Caller holds clockMu.
func (s *MemoryStore) tickLocked() time.Time {
	t := s.now().UTC().Round(0)
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

func (s *MemoryStore) ServerTime(ctx context.Context) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}
	s.clockMu.Lock()
	defer s.clockMu.Unlock()
	return s.tickLocked(), nil
}

func (s *MemoryStore) Get(ctx context.Context, tenantID int64, typ domain.Type, id int64) (*domain.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.rows[rowKey{tenantID, typ, id}]
	if !ok {
		return nil, nil
	}
	return row.current.Clone(), nil
}

func (s *MemoryStore) ListChangedSince(ctx context.Context, q ChangeQuery) ([]*domain.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]*domain.Entity, 0)
	for k, row := range s.rows {
		if k.tenantID != q.TenantID || k.typ != q.Type {
			continue
		}
		e := row.current
		if q.Since != nil && !e.UpdatedAt.After(*q.Since) {
			continue
		}
		if e.UpdatedAt.After(q.Until) {
			continue
		}
		if q.OwnerUserID != nil && q.Type.OwnerScoped() && !e.OwnedBy(*q.OwnerUserID) {
			continue
		}
		out = append(out, e.Clone())
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.Before(out[j].UpdatedAt)
	})
	return out, nil
}

func (s *MemoryStore) TryApply(ctx context.Context, req ApplyRequest) (*ApplyResult, error) {
	if err := validateApply(req); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.ID == 0 {
		return s.create(req)
	}
	return s.update(req)
}

func (s *MemoryStore) create(req ApplyRequest) (*ApplyResult, error) {
	lk := localKey{req.TenantID, req.Type, req.Actor, req.ClientLocalID}
	if req.ClientLocalID != "" {
		if dup := s.lookupLocal(lk); dup != nil {
			return duplicateResult(dup, req.OwnerScope), nil
		}
	}
	change, err := req.Mutate(nil)
	if err != nil {
		return nil, err
	}

	s.clockMu.Lock()
	defer s.clockMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	// A concurrent retry may have won between the lookup and the lock.
	if req.ClientLocalID != "" {
		if k, ok := s.byLocal[lk]; ok {
			return duplicateResult(s.rows[k].current.Clone(), req.OwnerScope), nil
		}
	}
	fk := familyKey{req.TenantID, req.Type}
	s.nextID[fk]++
	now := s.tickLocked()
	e := &domain.Entity{
		TenantID:      req.TenantID,
		Type:          req.Type,
		ID:            s.nextID[fk],
		Version:       1,
		Active:        change.Active,
		OwnerUserID:   change.OwnerUserID,
		Payload:       change.Payload,
		ClientLocalID: req.ClientLocalID,
		CreatedAt:     now,
		UpdatedAt:     now,
		CreatedBy:     req.Actor,
		UpdatedBy:     req.Actor,
	}
	e = e.Clone()
	k := rowKey{req.TenantID, req.Type, e.ID}
	s.rows[k] = &memRow{current: e}
	if req.ClientLocalID != "" {
		s.byLocal[lk] = k
	}
	return &ApplyResult{Status: domain.Applied, Entity: e.Clone()}, nil
}

func (s *MemoryStore) lookupLocal(lk localKey) *domain.Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	k, ok := s.byLocal[lk]
	if !ok {
		return nil
	}
	return s.rows[k].current.Clone()
}

func (s *MemoryStore) update(req ApplyRequest) (*ApplyResult, error) {
	s.mu.RLock()
	row, ok := s.rows[rowKey{req.TenantID, req.Type, req.ID}]
	s.mu.RUnlock()
	if !ok {
		return &ApplyResult{Status: domain.NotFound}, nil
	}

	row.mu.Lock()
	defer row.mu.Unlock()

	current := row.current
	if hiddenByOwnerScope(current, req.OwnerScope) {
		return &ApplyResult{Status: domain.NotFound}, nil
	}
	if current.Version != req.ExpectedVersion {
		return &ApplyResult{Status: domain.VersionConflict, Entity: current.Clone()}, nil
	}
	change, err := req.Mutate(current.Clone())
	if err != nil {
		return nil, err
	}

	next := current.Clone()
	next.Version = current.Version + 1
	next.Active = change.Active
	next.OwnerUserID = change.OwnerUserID
	next.Payload = change.Payload
	next.UpdatedBy = req.Actor
	next = next.Clone()

	s.clockMu.Lock()
	next.UpdatedAt = s.tickLocked()
	s.mu.Lock()
	row.current = next
	s.mu.Unlock()
	s.clockMu.Unlock()

	return &ApplyResult{Status: domain.Applied, Entity: next.Clone()}, nil
}
