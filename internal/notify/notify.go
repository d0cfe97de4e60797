// Package notify delivers forced session-change notices to a device push token.
package notify

import (
	"context"
	"time"
)

// Message kinds sent to devices.
const (
	KindSessionRevoked   = "session_revoked"
	KindSessionLoggedOut = "session_logged_out"
)

// Message is the notice delivered to one device.
type Message struct {
	Kind      string    `json:"kind"`
	TenantID  int64     `json:"tenantId"`
	UserID    int64     `json:"userId"`
	SessionID string    `json:"sessionId"`
	Reason    string    `json:"reason,omitempty"`
	SentAt    time.Time `json:"sentAt"`
}

// Dispatcher sends a message to a push token. Callers use it best-effort: a failed delivery
// never rolls back the session change that triggered it.
type Dispatcher interface {
	Notify(ctx context.Context, pushToken string, msg Message) error
	Close() error
}
