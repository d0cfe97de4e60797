package service

import (
	"context"
	"encoding/json"
	"errors"

	entitydomain "field-sales-platform/backend/internal/entity/domain"
	entityrepo "field-sales-platform/backend/internal/entity/repository"
	identitydomain "field-sales-platform/backend/internal/identity/domain"
	syncdomain "field-sales-platform/backend/internal/sync/domain"
)

var emptyObject = json.RawMessage(`{}`)

// Resolver turns one pushed item into a compare-and-swap write and maps the store's answer to an outcome.
// Item-level problems become Rejected results; only storage failures are returned as errors.
type Resolver struct {
	store      entityrepo.Store
	validators *Validators
}

func NewResolver(store entityrepo.Store, validators *Validators) *Resolver {
	return &Resolver{store: store, validators: validators}
}

// Resolve applies item for p. scope, when non-nil, hides owner-scoped entities assigned to other users.
func (r *Resolver) Resolve(ctx context.Context, p identitydomain.Principal, typ entitydomain.Type, item syncdomain.Item, scope *int64) (syncdomain.Result, error) {
	res := syncdomain.Result{ClientLocalID: item.ClientLocalID}
	switch {
	case item.ID != nil && *item.ID <= 0:
		return rejected(res, syncdomain.ReasonInvalidID), nil
	case item.BaseVersion < 0, item.IsCreate() && item.BaseVersion != 0:
		return rejected(res, syncdomain.ReasonInvalidVersion), nil
	}
	if reason := r.validators.Validate(ctx, p, typ, item); reason != "" {
		return rejected(res, reason), nil
	}

	req := entityrepo.ApplyRequest{
		TenantID:        p.TenantID,
		Type:            typ,
		ExpectedVersion: item.BaseVersion,
		OwnerScope:      scope,
		Actor:           p.UserID,
		Mutate:          mutation(p, typ, item),
	}
	if item.IsCreate() {
		req.ClientLocalID = item.ClientLocalID
	} else {
		req.ID = *item.ID
	}

	out, err := r.store.TryApply(ctx, req)
	if err != nil {
		var rej *entitydomain.RejectError
		if errors.As(err, &rej) {
			return rejected(res, rej.Reason), nil
		}
		return res, err
	}
	switch out.Status {
	case entitydomain.Applied:
		res.Outcome = syncdomain.OutcomeAccepted
		res.Entity = out.Entity
		res.Duplicate = out.Duplicate
	case entitydomain.VersionConflict:
		res.Outcome = syncdomain.OutcomeConflict
		res.Entity = out.Entity
		res.WasConflict = true
	default:
		return rejected(res, syncdomain.ReasonNotFound), nil
	}
	return res, nil
}

// mutation builds the next state from the pushed item. Ownership of an existing entity only moves
// when a tenant admin reassigns it; non-owner-scoped types never carry an owner.
func mutation(p identitydomain.Principal, typ entitydomain.Type, item syncdomain.Item) entitydomain.Mutation {
	return func(current *entitydomain.Entity) (entitydomain.Change, error) {
		ch := entitydomain.Change{Payload: item.Payload, Active: !item.Deleted}
		if current == nil {
			if len(ch.Payload) == 0 {
				ch.Payload = emptyObject
			}
			if typ.OwnerScoped() {
				owner := p.UserID
				if p.IsAdmin && item.OwnerUserID != nil {
					owner = *item.OwnerUserID
				}
				ch.OwnerUserID = &owner
			}
			return ch, nil
		}
		if len(ch.Payload) == 0 {
			ch.Payload = current.Payload
		}
		ch.OwnerUserID = current.OwnerUserID
		if typ.OwnerScoped() && p.IsAdmin && item.OwnerUserID != nil {
			owner := *item.OwnerUserID
			ch.OwnerUserID = &owner
		}
		return ch, nil
	}
}

func rejected(res syncdomain.Result, reason string) syncdomain.Result {
	res.Outcome = syncdomain.OutcomeRejected
	res.Reason = reason
	return res
}
