// Package service implements the device session registry: lifecycle transitions, the validity gate
// used by sync, and the inactivity sweep.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"field-sales-platform/backend/internal/audit"
	identitydomain "field-sales-platform/backend/internal/identity/domain"
	"field-sales-platform/backend/internal/notify"
	"field-sales-platform/backend/internal/policy/engine"
	"field-sales-platform/backend/internal/session/domain"
	sessionrepo "field-sales-platform/backend/internal/session/repository"
	"field-sales-platform/backend/internal/telemetry"
	telemetrydomain "field-sales-platform/backend/internal/telemetry/domain"
)

// Default logout reasons recorded when the caller supplies none.
const (
	ReasonLogout    = "user_logout"
	ReasonRevoked   = "revoked"
	ReasonLogoutAll = "logout_all"
)

// RegisterInput carries the device details supplied at login.
type RegisterInput struct {
	DeviceID       string
	DeviceType     domain.DeviceType
	PushToken      string
	RefreshTokenID string
	Metadata       map[string]string
}

// Registry owns the device session lifecycle. All side effects other than the repository write
// (audit, notification, telemetry) are best-effort.
type Registry struct {
	repo     sessionrepo.Repository
	limiter  TouchLimiter
	notifier notify.Dispatcher
	audit    audit.AuditLogger
	authz    engine.Evaluator
	metrics  *telemetry.Metrics
	events   telemetry.EventEmitter
	now      func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

func WithTouchLimiter(l TouchLimiter) Option { return func(r *Registry) { r.limiter = l } }
func WithNotifier(d notify.Dispatcher) Option { return func(r *Registry) { r.notifier = d } }
func WithAuditLogger(a audit.AuditLogger) Option { return func(r *Registry) { r.audit = a } }
func WithEvaluator(e engine.Evaluator) Option { return func(r *Registry) { r.authz = e } }
func WithMetrics(m *telemetry.Metrics) Option { return func(r *Registry) { r.metrics = m } }
func WithEventEmitter(e telemetry.EventEmitter) Option { return func(r *Registry) { r.events = e } }

// WithClock overrides the time source; used by tests.
func WithClock(now func() time.Time) Option { return func(r *Registry) { r.now = now } }

// NewRegistry returns a Registry over repo. Unset collaborators default to no-ops and the built-in authorization rules.
func NewRegistry(repo sessionrepo.Repository, opts ...Option) *Registry {
	r := &Registry{
		repo:     repo,
		limiter:  NewLocalTouchLimiter(time.Minute),
		notifier: notify.LogDispatcher{},
		audit:    audit.Nop{},
		authz:    engine.Fallback{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) clock() time.Time {
	return r.now().UTC()
}

// lookup returns the session or nil. Ids that are not UUIDs cannot exist and are reported as missing.
func (r *Registry) lookup(ctx context.Context, id string) (*domain.Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	s, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return s, nil
}

// owned returns the session when it belongs to the principal, otherwise ErrNotFound.
func (r *Registry) owned(ctx context.Context, p identitydomain.Principal, id string) (*domain.Session, error) {
	s, err := r.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.BelongsTo(p.TenantID, p.UserID) {
		return nil, ErrNotFound
	}
	return s, nil
}

// Register creates a new Active session for the principal's login on a device.
func (r *Registry) Register(ctx context.Context, p identitydomain.Principal, in RegisterInput) (*domain.Session, error) {
	deviceID := strings.TrimSpace(in.DeviceID)
	if deviceID == "" {
		return nil, fmt.Errorf("%w: device_id required", ErrInvalidArgument)
	}
	now := r.clock()
	s := &domain.Session{
		ID:             uuid.New().String(),
		TenantID:       p.TenantID,
		UserID:         p.UserID,
		DeviceID:       deviceID,
		DeviceType:     in.DeviceType,
		Status:         domain.StatusActive,
		LastActivity:   now,
		LoggedInAt:     now,
		RefreshTokenID: in.RefreshTokenID,
		Metadata:       in.Metadata,
	}
	if s.DeviceType == "" {
		s.DeviceType = domain.DeviceUnknown
	}
	if in.PushToken != "" {
		tok := in.PushToken
		s.PushToken = &tok
	}
	if err := r.repo.Create(ctx, s); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	r.audit.LogEvent(ctx, p.TenantID, p.UserID, "register", "device_session", s.ID)
	logrus.WithFields(logrus.Fields{
		"tenant_id":   p.TenantID,
		"user_id":     p.UserID,
		"session_id":  s.ID,
		"device_type": s.DeviceType,
	}).Info("session: registered")
	return s, nil
}

// Touch records activity now. Returns false without error when the session is missing or not Active.
func (r *Registry) Touch(ctx context.Context, id string) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, nil
	}
	ok, err := r.repo.Touch(ctx, id, r.clock())
	if err != nil {
		return false, fmt.Errorf("touch session: %w", err)
	}
	return ok, nil
}

// Heartbeat is the explicit touch from the owning device; it always writes.
func (r *Registry) Heartbeat(ctx context.Context, p identitydomain.Principal, id string) (bool, error) {
	if _, err := r.owned(ctx, p, id); err != nil {
		return false, err
	}
	return r.Touch(ctx, id)
}

// TouchThrottled records implicit activity from sync traffic, at most once per limiter interval.
// Failures are logged; implicit touches never fail the calling request.
func (r *Registry) TouchThrottled(ctx context.Context, id string) {
	allowed, err := r.limiter.Allow(ctx, id)
	if err != nil {
		logrus.WithField("session_id", id).WithError(err).Warn("session: touch limiter failed, writing through")
		allowed = true
	}
	if !allowed {
		return
	}
	if _, err := r.Touch(ctx, id); err != nil {
		logrus.WithField("session_id", id).WithError(err).Warn("session: implicit touch failed")
	}
}

// UpdatePushToken replaces the push token of one of the principal's Active sessions.
func (r *Registry) UpdatePushToken(ctx context.Context, p identitydomain.Principal, id, token string) (bool, error) {
	if _, err := r.owned(ctx, p, id); err != nil {
		return false, err
	}
	ok, err := r.repo.UpdatePushToken(ctx, id, token)
	if err != nil {
		return false, fmt.Errorf("update push token: %w", err)
	}
	return ok, nil
}

// Logout ends one of the principal's own sessions. Returns false when it was already terminal.
func (r *Registry) Logout(ctx context.Context, p identitydomain.Principal, id, reason string) (bool, error) {
	if _, err := r.owned(ctx, p, id); err != nil {
		return false, err
	}
	if reason == "" {
		reason = ReasonLogout
	}
	s, err := r.repo.Transition(ctx, id, domain.Transition{To: domain.StatusLoggedOut, At: r.clock(), Reason: reason})
	if err != nil {
		return false, fmt.Errorf("logout session: %w", err)
	}
	if s == nil {
		return false, nil
	}
	r.transitioned(ctx, p.UserID, "logout", []*domain.Session{s})
	return true, nil
}

// Revoke ends a session on behalf of its owner (remote logout of another device) or a tenant admin.
// Sessions outside the caller's tenant are reported as not found.
func (r *Registry) Revoke(ctx context.Context, p identitydomain.Principal, id, reason string) (bool, error) {
	target, err := r.lookup(ctx, id)
	if err != nil {
		return false, err
	}
	if target == nil || target.TenantID != p.TenantID {
		return false, ErrNotFound
	}
	allowed, err := r.authz.CanRevoke(ctx, p, target)
	if err != nil {
		return false, fmt.Errorf("authorize revoke: %w", err)
	}
	if !allowed {
		return false, ErrPermissionDenied
	}
	if reason == "" {
		reason = ReasonRevoked
	}
	by := p.UserID
	s, err := r.repo.Transition(ctx, id, domain.Transition{To: domain.StatusRevoked, At: r.clock(), Reason: reason, RevokedBy: &by})
	if err != nil {
		return false, fmt.Errorf("revoke session: %w", err)
	}
	if s == nil {
		return false, nil
	}
	r.transitioned(ctx, p.UserID, "revoke", []*domain.Session{s})
	r.notifyAll(ctx, notify.KindSessionRevoked, []*domain.Session{s})
	return true, nil
}

// LogoutAll ends every Active session of the principal except exceptID and returns how many changed.
// Each affected device with a push token is notified.
func (r *Registry) LogoutAll(ctx context.Context, p identitydomain.Principal, exceptID, reason string) (int, error) {
	if reason == "" {
		reason = ReasonLogoutAll
	}
	changed, err := r.repo.TransitionAllForUser(ctx, p.TenantID, p.UserID, exceptID,
		domain.Transition{To: domain.StatusLoggedOut, At: r.clock(), Reason: reason})
	if err != nil {
		return 0, fmt.Errorf("logout all sessions: %w", err)
	}
	r.transitioned(ctx, p.UserID, "logout_all", changed)
	r.notifyAll(ctx, notify.KindSessionLoggedOut, changed)
	return len(changed), nil
}

// IsValid reports whether the session exists and is Active.
func (r *Registry) IsValid(ctx context.Context, id string) (bool, error) {
	s, err := r.lookup(ctx, id)
	if err != nil {
		return false, err
	}
	return s.IsActive(), nil
}

// IsValidFor reports whether the session is Active and was registered by the principal.
func (r *Registry) IsValidFor(ctx context.Context, p identitydomain.Principal, id string) (bool, error) {
	s, err := r.lookup(ctx, id)
	if err != nil {
		return false, err
	}
	return s.IsActive() && s.BelongsTo(p.TenantID, p.UserID), nil
}

// SweepExpired expires Active sessions idle for longer than inactivityDays and returns how many changed.
func (r *Registry) SweepExpired(ctx context.Context, inactivityDays int) (int, error) {
	if inactivityDays < 1 {
		return 0, fmt.Errorf("%w: inactivity days must be >= 1", ErrInvalidArgument)
	}
	now := r.clock()
	cutoff := now.Add(-time.Duration(inactivityDays) * 24 * time.Hour)
	expired, err := r.repo.ExpireInactive(ctx, cutoff, now)
	if err != nil {
		return 0, fmt.Errorf("expire sessions: %w", err)
	}
	r.transitioned(ctx, 0, "expire", expired)
	if len(expired) > 0 {
		logrus.WithFields(logrus.Fields{"count": len(expired), "cutoff": cutoff}).Info("session: expired inactive sessions")
	}
	return len(expired), nil
}

// Get returns a session visible to the principal: their own, or any in the tenant for an admin.
func (r *Registry) Get(ctx context.Context, p identitydomain.Principal, id string) (*domain.Session, error) {
	s, err := r.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if s == nil || s.TenantID != p.TenantID || (!p.IsAdmin && s.UserID != p.UserID) {
		return nil, ErrNotFound
	}
	return s, nil
}

// ListForUser lists a user's sessions. Only admins may list another user's sessions.
func (r *Registry) ListForUser(ctx context.Context, p identitydomain.Principal, userID int64, includeInactive bool) ([]*domain.Session, error) {
	if userID != p.UserID && !p.IsAdmin {
		return nil, ErrPermissionDenied
	}
	list, err := r.repo.ListByUser(ctx, p.TenantID, userID, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return list, nil
}

// transitioned records audit, metrics and telemetry for sessions that just left Active.
// actorID 0 marks the system sweep.
func (r *Registry) transitioned(ctx context.Context, actorID int64, action string, sessions []*domain.Session) {
	if len(sessions) == 0 {
		return
	}
	r.metrics.SessionTransitions(ctx, string(sessions[0].Status), len(sessions))
	for _, s := range sessions {
		r.audit.LogEvent(ctx, s.TenantID, actorID, action, "device_session", s.ID)
		if r.events != nil {
			meta, _ := json.Marshal(map[string]string{"status": string(s.Status), "reason": s.LogoutReason})
			telemetry.EmitAsync(r.events, &telemetrydomain.Event{
				TenantID:  s.TenantID,
				UserID:    s.UserID,
				SessionID: s.ID,
				EventType: telemetrydomain.EventSessionTransition,
				Source:    "session_registry",
				Metadata:  meta,
			})
		}
		logrus.WithFields(logrus.Fields{
			"tenant_id":  s.TenantID,
			"user_id":    s.UserID,
			"session_id": s.ID,
			"status":     s.Status,
			"reason":     s.LogoutReason,
		}).Info("session: transitioned")
	}
}

func (r *Registry) notifyAll(ctx context.Context, kind string, sessions []*domain.Session) {
	for _, s := range sessions {
		if s.PushToken == nil || *s.PushToken == "" {
			continue
		}
		msg := notify.Message{Kind: kind, TenantID: s.TenantID, UserID: s.UserID, SessionID: s.ID, Reason: s.LogoutReason}
		if err := r.notifier.Notify(ctx, *s.PushToken, msg); err != nil {
			logrus.WithFields(logrus.Fields{"session_id": s.ID, "kind": kind}).WithError(err).Warn("session: notification failed")
		}
	}
}
