package domain

import (
	"strings"
	"time"
)

// Status is the lifecycle state of a device session. Every status except Active is terminal.
type Status string

const (
	StatusActive    Status = "active"
	StatusLoggedOut Status = "logged_out"
	StatusRevoked   Status = "revoked"
	StatusExpired   Status = "expired"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s != StatusActive
}

// DeviceType is the kind of device that registered the session.
type DeviceType string

const (
	DevicePhone   DeviceType = "phone"
	DeviceTablet  DeviceType = "tablet"
	DeviceWeb     DeviceType = "web"
	DeviceUnknown DeviceType = "unknown"
)

// ParseDeviceType maps a client-supplied name to a DeviceType, defaulting to DeviceUnknown.
func ParseDeviceType(s string) DeviceType {
	switch t := DeviceType(strings.ToLower(strings.TrimSpace(s))); t {
	case DevicePhone, DeviceTablet, DeviceWeb:
		return t
	default:
		return DeviceUnknown
	}
}

// Session is one authenticated device instance. A login always creates a new row;
// terminal rows are never resurrected.
type Session struct {
	ID           string
	TenantID     int64
	UserID       int64
	DeviceID     string
	DeviceType   DeviceType
	PushToken    *string
	Status       Status
	LastActivity time.Time
	LoggedInAt   time.Time
	LoggedOutAt  *time.Time
	LogoutReason string
	// RefreshTokenID correlates the session with the auth collaborator's refresh token.
	RefreshTokenID string
	RevokedBy      *int64
	Metadata       map[string]string
}

// IsActive reports whether the session may still sync.
func (s *Session) IsActive() bool {
	return s != nil && s.Status == StatusActive
}

// BelongsTo reports whether the session was registered by userID in tenantID.
func (s *Session) BelongsTo(tenantID, userID int64) bool {
	return s != nil && s.TenantID == tenantID && s.UserID == userID
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.PushToken != nil {
		tok := *s.PushToken
		c.PushToken = &tok
	}
	if s.LoggedOutAt != nil {
		at := *s.LoggedOutAt
		c.LoggedOutAt = &at
	}
	if s.RevokedBy != nil {
		by := *s.RevokedBy
		c.RevokedBy = &by
	}
	if s.Metadata != nil {
		c.Metadata = make(map[string]string, len(s.Metadata))
		for k, v := range s.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

// Transition describes a move from Active to a terminal status.
type Transition struct {
	To        Status
	At        time.Time
	Reason    string
	RevokedBy *int64
}
