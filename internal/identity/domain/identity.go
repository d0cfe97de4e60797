package domain

// Role is the caller's tenant role as carried in the access token.
type Role string

const (
	RoleOwner Role = "owner"
	RoleAdmin Role = "admin"
	RoleAgent Role = "agent"
)

// IsAdmin reports whether the role grants tenant-wide administration.
func (r Role) IsAdmin() bool {
	return r == RoleOwner || r == RoleAdmin
}

// Principal is the verified caller identity passed explicitly into sync and session operations.
// It is produced by the auth interceptor from a validated bearer token and never re-derived downstream.
type Principal struct {
	TenantID int64
	UserID   int64
	IsAdmin  bool
}

// Valid reports whether both tenant and user are set.
func (p Principal) Valid() bool {
	return p.TenantID > 0 && p.UserID > 0
}
