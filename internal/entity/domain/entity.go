package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Type names a syncable entity family.
type Type string

const (
	TypeClient  Type = "client"
	TypeProduct Type = "product"
	TypeOrder   Type = "order"
	TypeVisit   Type = "visit"
	TypeRoute   Type = "route"
)

// ErrUnknownType is returned by ParseType for names outside the five families.
var ErrUnknownType = errors.New("unknown entity type")

// Types lists every syncable family in a stable order.
var Types = []Type{TypeClient, TypeProduct, TypeOrder, TypeVisit, TypeRoute}

// ParseType parses a type name case-insensitively.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Types {
		if t == known {
			return t, nil
		}
	}
	return "", ErrUnknownType
}

// OwnerScoped reports whether entities of this type belong to an assigned field agent.
// Non-admin callers only see and modify their own entities of these types.
func (t Type) OwnerScoped() bool {
	switch t {
	case TypeOrder, TypeVisit, TypeRoute:
		return true
	default:
		return false
	}
}

// Entity is one versioned, tenant-scoped record. Payload is opaque to the store.
type Entity struct {
	TenantID    int64
	Type        Type
	ID          int64
	Version     int64
	Active      bool
	OwnerUserID *int64
	Payload     json.RawMessage
	// ClientLocalID is the device-local id the entity was created with, if any.
	ClientLocalID string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CreatedBy     int64
	UpdatedBy     int64
}

// Clone returns a deep copy so callers never alias store-held state.
func (e *Entity) Clone() *Entity {
	if e == nil {
		return nil
	}
	c := *e
	if e.OwnerUserID != nil {
		owner := *e.OwnerUserID
		c.OwnerUserID = &owner
	}
	if e.Payload != nil {
		c.Payload = append(json.RawMessage(nil), e.Payload...)
	}
	return &c
}

// OwnedBy reports whether the entity is assigned to userID.
func (e *Entity) OwnedBy(userID int64) bool {
	return e.OwnerUserID != nil && *e.OwnerUserID == userID
}

// Change is the state a Mutation asks the store to write. Version and audit stamps are the store's.
type Change struct {
	Payload     json.RawMessage
	Active      bool
	OwnerUserID *int64
}

// Mutation computes the next state of an entity. current is nil on create.
// The store calls it while holding the row, after the version check has passed.
type Mutation func(current *Entity) (Change, error)

// ApplyStatus is the outcome of a compare-and-swap apply.
type ApplyStatus int

const (
	Applied ApplyStatus = iota + 1
	VersionConflict
	NotFound
)

func (s ApplyStatus) String() string {
	switch s {
	case Applied:
		return "applied"
	case VersionConflict:
		return "version_conflict"
	case NotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// RejectError is returned by a Mutation to refuse a change for a business reason.
// The store passes it through untouched and writes nothing.
type RejectError struct {
	Reason string
}

func (e *RejectError) Error() string { return "rejected: " + e.Reason }

// Reject returns a *RejectError with the given reason.
func Reject(reason string) error {
	return &RejectError{Reason: reason}
}
