package domain

import (
	"encoding/json"
	"time"
)

// Event types.
const (
	EventGRPCRequest       = "grpc_request"
	EventSessionTransition = "session_transition"
)

// Event is one telemetry record (tenant-scoped, optional user and device session).
type Event struct {
	TenantID  int64           `json:"tenantId,omitempty"`
	UserID    int64           `json:"userId,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
	EventType string          `json:"eventType"`
	Source    string          `json:"source"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}
