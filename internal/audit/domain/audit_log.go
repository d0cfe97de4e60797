package domain

import "time"

// AuditLog represents an audit event within a tenant.
type AuditLog struct {
	ID       string
	TenantID int64
	// UserID is 0 for system actors such as the expiry sweep.
	UserID    int64
	Action    string
	Resource  string
	IP        string
	Metadata  string
	CreatedAt time.Time
}
