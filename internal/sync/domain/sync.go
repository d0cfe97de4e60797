package domain

import (
	"encoding/json"
	"time"

	entitydomain "field-sales-platform/backend/internal/entity/domain"
)

// Outcome is the per-item result of a push.
type Outcome string

const (
	OutcomeAccepted Outcome = "Accepted"
	OutcomeConflict Outcome = "Conflict"
	OutcomeRejected Outcome = "Rejected"
)

// Rejection reasons produced by the resolver itself. Validator reasons are passed through verbatim.
const (
	ReasonNotFound       = "not_found"
	ReasonInvalidID      = "invalid_id"
	ReasonInvalidVersion = "invalid_base_version"
)

// Item is one locally changed entity pushed by a device. ID nil means create.
type Item struct {
	ClientLocalID string
	ID            *int64
	BaseVersion   int64
	Payload       json.RawMessage
	// Deleted requests a soft delete (active=false) under the same version check.
	Deleted bool
	// OwnerUserID assigns an owner-scoped entity; honoured for tenant admins only.
	OwnerUserID *int64
}

// IsCreate reports whether the item asks the store to allocate a new id.
func (i Item) IsCreate() bool {
	return i.ID == nil
}

// Result is the auditable outcome of one pushed item.
type Result struct {
	ClientLocalID string
	Outcome       Outcome
	// Entity is the stored entity after an accepted write, or the server's current entity on conflict.
	Entity      *entitydomain.Entity
	WasConflict bool
	Duplicate   bool
	Reason      string
}

// PullResult is one pull window. ServerTime is the cursor for the next pull.
type PullResult struct {
	Items      []*entitydomain.Entity
	ServerTime time.Time
}
