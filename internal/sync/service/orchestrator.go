package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	entitydomain "field-sales-platform/backend/internal/entity/domain"
	entityrepo "field-sales-platform/backend/internal/entity/repository"
	identitydomain "field-sales-platform/backend/internal/identity/domain"
	"field-sales-platform/backend/internal/policy/engine"
	syncdomain "field-sales-platform/backend/internal/sync/domain"
	"field-sales-platform/backend/internal/telemetry"
)

// MaxPushItems bounds one push batch.
const MaxPushItems = 500

// SessionGate is the part of the session registry sync depends on.
type SessionGate interface {
	IsValidFor(ctx context.Context, p identitydomain.Principal, sessionID string) (bool, error)
	TouchThrottled(ctx context.Context, sessionID string)
}

// Orchestrator serves pull and push for every syncable type.
type Orchestrator struct {
	store    entityrepo.Store
	resolver *Resolver
	sessions SessionGate
	authz    engine.Evaluator
	metrics  *telemetry.Metrics
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithValidators(v *Validators) Option { return func(o *Orchestrator) { o.resolver.validators = v } }
func WithEvaluator(e engine.Evaluator) Option { return func(o *Orchestrator) { o.authz = e } }
func WithMetrics(m *telemetry.Metrics) Option { return func(o *Orchestrator) { o.metrics = m } }

// NewOrchestrator returns an Orchestrator over store, gated by sessions.
// Without WithEvaluator, admins see whole tenants and agents their own owner-scoped entities.
func NewOrchestrator(store entityrepo.Store, sessions SessionGate, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:    store,
		resolver: NewResolver(store, nil),
		sessions: sessions,
		authz:    engine.Fallback{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Pull returns entities of typ changed after since, up to a server time captured before the scan.
// since nil requests a full sync. When sessionID is set it must name an Active session of the caller.
func (o *Orchestrator) Pull(ctx context.Context, p identitydomain.Principal, sessionID string, typ entitydomain.Type, since *time.Time) (*syncdomain.PullResult, error) {
	if err := checkCall(p, typ); err != nil {
		return nil, err
	}
	if sessionID != "" {
		if err := o.gate(ctx, p, sessionID, "pull"); err != nil {
			return nil, err
		}
	}
	serverTime, err := o.store.ServerTime(ctx)
	if err != nil {
		return nil, fmt.Errorf("server time: %w", err)
	}
	// A cursor ahead of the bound would move backwards; the window is empty either way.
	if since != nil && since.After(serverTime) {
		return &syncdomain.PullResult{Items: []*entitydomain.Entity{}, ServerTime: *since}, nil
	}
	scope, err := o.scope(ctx, p, typ)
	if err != nil {
		return nil, err
	}
	items, err := o.store.ListChangedSince(ctx, entityrepo.ChangeQuery{
		TenantID:    p.TenantID,
		Type:        typ,
		Since:       since,
		Until:       serverTime,
		OwnerUserID: scope,
	})
	if err != nil {
		return nil, fmt.Errorf("list changes: %w", err)
	}
	o.metrics.Pulled(ctx, string(typ), len(items))
	return &syncdomain.PullResult{Items: items, ServerTime: serverTime}, nil
}

// Push applies items in order under the caller's device session. Each item gets its own result;
// a conflict or rejection never blocks later items. Storage failures abort the call, leaving the
// items before the failure applied.
func (o *Orchestrator) Push(ctx context.Context, p identitydomain.Principal, sessionID string, typ entitydomain.Type, items []syncdomain.Item) ([]syncdomain.Result, error) {
	if err := checkCall(p, typ); err != nil {
		return nil, err
	}
	if len(items) > MaxPushItems {
		return nil, fmt.Errorf("%w: at most %d items per push", ErrInvalidArgument, MaxPushItems)
	}
	if err := o.gate(ctx, p, sessionID, "push"); err != nil {
		return nil, err
	}
	scope, err := o.scope(ctx, p, typ)
	if err != nil {
		return nil, err
	}

	results := make([]syncdomain.Result, 0, len(items))
	for i, item := range items {
		res, err := o.resolver.Resolve(ctx, p, typ, item, scope)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"tenant_id":  p.TenantID,
				"session_id": sessionID,
				"type":       typ,
				"index":      i,
			}).WithError(err).Error("sync: push aborted")
			return nil, fmt.Errorf("push item %d: %w", i, err)
		}
		o.metrics.PushItem(ctx, string(typ), string(res.Outcome))
		results = append(results, res)
	}
	return results, nil
}

func checkCall(p identitydomain.Principal, typ entitydomain.Type) error {
	if !p.Valid() {
		return fmt.Errorf("%w: principal required", ErrInvalidArgument)
	}
	if _, err := entitydomain.ParseType(string(typ)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return nil
}

// gate refuses the call unless sessionID is an Active session of p, then records implicit activity.
func (o *Orchestrator) gate(ctx context.Context, p identitydomain.Principal, sessionID, op string) error {
	ok := false
	if sessionID != "" {
		var err error
		ok, err = o.sessions.IsValidFor(ctx, p, sessionID)
		if err != nil {
			return fmt.Errorf("check session: %w", err)
		}
	}
	if !ok {
		o.metrics.SessionGateDenied(ctx, op)
		logrus.WithFields(logrus.Fields{
			"tenant_id":  p.TenantID,
			"user_id":    p.UserID,
			"session_id": sessionID,
			"operation":  op,
		}).Info("sync: session gate denied")
		return ErrSessionInvalid
	}
	o.sessions.TouchThrottled(ctx, sessionID)
	return nil
}

// scope returns the owner filter for owner-scoped types, or nil when the caller sees the whole tenant.
func (o *Orchestrator) scope(ctx context.Context, p identitydomain.Principal, typ entitydomain.Type) (*int64, error) {
	if !typ.OwnerScoped() {
		return nil, nil
	}
	full, err := o.authz.FullTenantScope(ctx, p, string(typ))
	if err != nil {
		return nil, fmt.Errorf("authorize scope: %w", err)
	}
	if full {
		return nil, nil
	}
	owner := p.UserID
	return &owner, nil
}
