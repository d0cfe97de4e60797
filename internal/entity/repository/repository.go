package repository

import (
	"context"
	"errors"
	"time"

	"field-sales-platform/backend/internal/entity/domain"
)

// ErrCreateWithVersion is returned when a create (ID 0) names a non-zero expected version.
var ErrCreateWithVersion = errors.New("entity store: create requires expected version 0")

// ChangeQuery selects entities of one type in one tenant changed inside (Since, Until].
type ChangeQuery struct {
	TenantID int64
	Type     domain.Type
	// Since is the exclusive lower bound; nil means a full sync.
	Since *time.Time
	// Until is the inclusive upper bound, normally a value returned by ServerTime.
	Until time.Time
	// OwnerUserID restricts owner-scoped types to one assignee; nil returns the whole tenant.
	OwnerUserID *int64
}

// ApplyRequest is one compare-and-swap write. ID 0 creates; the store allocates the id.
type ApplyRequest struct {
	TenantID        int64
	Type            domain.Type
	ID              int64
	ExpectedVersion int64
	// OwnerScope hides owner-scoped entities not assigned to this user; they report NotFound.
	OwnerScope *int64
	// Actor is stamped into created_by/updated_by.
	Actor int64
	// ClientLocalID deduplicates creates per (tenant, type, actor).
	ClientLocalID string
	Mutate        domain.Mutation
}

// ApplyResult carries the entity after an applied write, or the current entity on a version conflict.
type ApplyResult struct {
	Status domain.ApplyStatus
	Entity *domain.Entity
	// Duplicate is set when a create matched an earlier create with the same ClientLocalID.
	Duplicate bool
}

// Store is the versioned entity store shared by all syncable types.
type Store interface {
	// Get returns the entity, or nil if it does not exist in the tenant.
	// It returns an error only for storage failures, not for missing rows.
	Get(ctx context.Context, tenantID int64, typ domain.Type, id int64) (*domain.Entity, error)
	// ListChangedSince returns entities in the query window ordered by updatedAt, then id.
	ListChangedSince(ctx context.Context, q ChangeQuery) ([]*domain.Entity, error)
	// TryApply checks the expected version and applies the mutation atomically per row.
	// Errors returned by the mutation are passed through and nothing is written.
	TryApply(ctx context.Context, req ApplyRequest) (*ApplyResult, error)
	// ServerTime returns an upper bound for a pull window such that every write stamped at or
	// before it is already visible, and every later write is stamped after it.
	ServerTime(ctx context.Context) (time.Time, error)
}

func validateApply(req ApplyRequest) error {
	if req.ID == 0 && req.ExpectedVersion != 0 {
		return ErrCreateWithVersion
	}
	if req.Mutate == nil {
		return errors.New("entity store: nil mutation")
	}
	return nil
}

// hiddenByOwnerScope reports whether e must be reported as missing to a scoped caller.
func hiddenByOwnerScope(e *domain.Entity, scope *int64) bool {
	return scope != nil && e.Type.OwnerScoped() && !e.OwnedBy(*scope)
}

// duplicateResult reports a retried create. A row the caller can no longer see is not found.
func duplicateResult(dup *domain.Entity, scope *int64) *ApplyResult {
	if hiddenByOwnerScope(dup, scope) {
		return &ApplyResult{Status: domain.NotFound}
	}
	return &ApplyResult{Status: domain.Applied, Entity: dup, Duplicate: true}
}
