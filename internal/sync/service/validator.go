package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	entitydomain "field-sales-platform/backend/internal/entity/domain"
	identitydomain "field-sales-platform/backend/internal/identity/domain"
	syncdomain "field-sales-platform/backend/internal/sync/domain"
)

// Validator applies a business module's rules to a pushed item before it reaches the store.
// A non-nil error rejects the item; its reason is reported to the device.
type Validator interface {
	Validate(ctx context.Context, p identitydomain.Principal, item syncdomain.Item) error
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(ctx context.Context, p identitydomain.Principal, item syncdomain.Item) error

func (f ValidatorFunc) Validate(ctx context.Context, p identitydomain.Principal, item syncdomain.Item) error {
	return f(ctx, p, item)
}

// Validators holds at most one validator per entity type. Types without one accept any payload.
type Validators struct {
	mu     sync.RWMutex
	byType map[entitydomain.Type]Validator
}

func NewValidators() *Validators {
	return &Validators{byType: make(map[entitydomain.Type]Validator)}
}

// Register sets the validator for typ, replacing any earlier one.
func (v *Validators) Register(typ entitydomain.Type, validator Validator) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.byType[typ] = validator
}

// Validate returns the rejection reason for item, or "" when it passes.
func (v *Validators) Validate(ctx context.Context, p identitydomain.Principal, typ entitydomain.Type, item syncdomain.Item) string {
	if v == nil {
		return ""
	}
	v.mu.RLock()
	validator := v.byType[typ]
	v.mu.RUnlock()
	if validator == nil {
		return ""
	}
	err := validator.Validate(ctx, p, item)
	if err == nil {
		return ""
	}
	var rej *entitydomain.RejectError
	if errors.As(err, &rej) {
		return rej.Reason
	}
	return err.Error()
}

// RequiredFields rejects creates whose payload is not a JSON object carrying every named field
// with a non-null value. Updates are checked only when they carry a payload; deletes of existing entities are not checked.
func RequiredFields(fields ...string) Validator {
	return ValidatorFunc(func(_ context.Context, _ identitydomain.Principal, item syncdomain.Item) error {
		if !item.IsCreate() && (item.Deleted || len(item.Payload) == 0) {
			return nil
		}
		var doc map[string]json.RawMessage
		if err := json.Unmarshal(item.Payload, &doc); err != nil {
			return entitydomain.Reject("payload must be a JSON object")
		}
		for _, f := range fields {
			if raw, ok := doc[f]; !ok || string(raw) == "null" {
				return entitydomain.Reject(fmt.Sprintf("%s is required", f))
			}
		}
		return nil
	})
}
