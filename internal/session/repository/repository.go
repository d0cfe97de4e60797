package repository

import (
	"context"
	"time"

	"field-sales-platform/backend/internal/session/domain"
)

// ExpiryReason is recorded as logout_reason on sessions expired by the sweep.
const ExpiryReason = "inactivity"

// Repository defines persistence for device sessions. Every state change is conditional on the
// row being Active, so terminal rows are never modified.
type Repository interface {
	// GetByID returns the session for id, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	// ListByUser returns the user's sessions in the tenant, newest login first.
	ListByUser(ctx context.Context, tenantID, userID int64, includeInactive bool) ([]*domain.Session, error)
	Create(ctx context.Context, s *domain.Session) error
	// Touch moves lastActivity forward; false when the session is missing or not Active.
	Touch(ctx context.Context, id string, at time.Time) (bool, error)
	// UpdatePushToken replaces the push token; false when the session is missing or not Active.
	UpdatePushToken(ctx context.Context, id, token string) (bool, error)
	// Transition moves one Active session to a terminal status and returns it; nil when nothing changed.
	Transition(ctx context.Context, id string, t domain.Transition) (*domain.Session, error)
	// TransitionAllForUser moves every Active session of the user except exceptID and returns them.
	TransitionAllForUser(ctx context.Context, tenantID, userID int64, exceptID string, t domain.Transition) ([]*domain.Session, error)
	// ExpireInactive moves Active sessions idle since before cutoff to Expired and returns them.
	ExpireInactive(ctx context.Context, cutoff time.Time, at time.Time) ([]*domain.Session, error)
}
