package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"field-sales-platform/backend/internal/audit/domain"
)

type sqlDataAuditLog struct {
	ID        string         `db:"id"`
	TenantID  int64          `db:"tenant_id"`
	UserID    sql.NullInt64  `db:"user_id"`
	Action    string         `db:"action"`
	Resource  string         `db:"resource"`
	IP        string         `db:"ip"`
	Metadata  sql.NullString `db:"metadata"`
	CreatedAt time.Time      `db:"created_at"`
}

func (d *sqlDataAuditLog) Model() *domain.AuditLog {
	return &domain.AuditLog{
		ID: d.ID, TenantID: d.TenantID, UserID: d.UserID.Int64, Action: d.Action, Resource: d.Resource,
		IP: d.IP, Metadata: d.Metadata.String, CreatedAt: d.CreatedAt.UTC(),
	}
}

const auditColumns = `id, tenant_id, user_id, action, resource, ip, metadata, created_at`

type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository returns an audit log repository that uses the given db for persistence.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the audit log for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.AuditLog, error) {
	var row sqlDataAuditLog
	if err := r.db.GetContext(ctx, &row, `SELECT `+auditColumns+` FROM audit_logs WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return row.Model(), nil
}

// ListByTenant returns audit logs for the tenant, newest first, paginated by limit and offset.
func (r *PostgresRepository) ListByTenant(ctx context.Context, tenantID int64, limit, offset int32) ([]*domain.AuditLog, error) {
	rows := make([]sqlDataAuditLog, 0)
	if err := r.db.SelectContext(ctx, &rows, `SELECT `+auditColumns+` FROM audit_logs
		WHERE tenant_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, tenantID, limit, offset); err != nil {
		return nil, err
	}
	out := make([]*domain.AuditLog, len(rows))
	for i := range rows {
		out[i] = rows[i].Model()
	}
	return out, nil
}

// Create persists the audit log. The audit log must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	uid := sql.NullInt64{Int64: a.UserID, Valid: a.UserID != 0}
	meta := sql.NullString{String: a.Metadata, Valid: a.Metadata != ""}
	_, err := r.db.ExecContext(ctx, `INSERT INTO audit_logs (`+auditColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.TenantID, uid, a.Action, a.Resource, a.IP, meta, a.CreatedAt)
	return err
}
