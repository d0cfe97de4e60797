package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"field-sales-platform/backend/internal/session/domain"
)

const sessionColumns = `id, tenant_id, user_id, device_id, device_type, push_token, status, last_activity,
	logged_in_at, logged_out_at, logout_reason, refresh_token_id, revoked_by, metadata`

type sqlDataSession struct {
	ID             string         `db:"id"`
	TenantID       int64          `db:"tenant_id"`
	UserID         int64          `db:"user_id"`
	DeviceID       string         `db:"device_id"`
	DeviceType     string         `db:"device_type"`
	PushToken      sql.NullString `db:"push_token"`
	Status         string         `db:"status"`
	LastActivity   time.Time      `db:"last_activity"`
	LoggedInAt     time.Time      `db:"logged_in_at"`
	LoggedOutAt    sql.NullTime   `db:"logged_out_at"`
	LogoutReason   sql.NullString `db:"logout_reason"`
	RefreshTokenID sql.NullString `db:"refresh_token_id"`
	RevokedBy      sql.NullInt64  `db:"revoked_by"`
	Metadata       []byte         `db:"metadata"`
}

func (d *sqlDataSession) Model() (*domain.Session, error) {
	s := &domain.Session{
		ID:             d.ID,
		TenantID:       d.TenantID,
		UserID:         d.UserID,
		DeviceID:       d.DeviceID,
		DeviceType:     domain.DeviceType(d.DeviceType),
		Status:         domain.Status(d.Status),
		LastActivity:   d.LastActivity.UTC(),
		LoggedInAt:     d.LoggedInAt.UTC(),
		LogoutReason:   d.LogoutReason.String,
		RefreshTokenID: d.RefreshTokenID.String,
	}
	if d.PushToken.Valid {
		tok := d.PushToken.String
		s.PushToken = &tok
	}
	if d.LoggedOutAt.Valid {
		at := d.LoggedOutAt.Time.UTC()
		s.LoggedOutAt = &at
	}
	if d.RevokedBy.Valid {
		by := d.RevokedBy.Int64
		s.RevokedBy = &by
	}
	if len(d.Metadata) > 0 {
		if err := json.Unmarshal(d.Metadata, &s.Metadata); err != nil {
			return nil, fmt.Errorf("session %s metadata: %w", d.ID, err)
		}
	}
	return s, nil
}

func modelsFromRows(rows []sqlDataSession) ([]*domain.Session, error) {
	out := make([]*domain.Session, len(rows))
	for i := range rows {
		m, err := rows[i].Model()
		if err != nil {
			return nil, err
		}
		out[i] = m
	}
	return out, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

// PostgresRepository is the Repository backed by the device_sessions table.
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the session for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	var row sqlDataSession
	err := r.db.GetContext(ctx, &row, `SELECT `+sessionColumns+` FROM device_sessions WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return row.Model()
}

func (r *PostgresRepository) ListByUser(ctx context.Context, tenantID, userID int64, includeInactive bool) ([]*domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM device_sessions WHERE tenant_id = $1 AND user_id = $2`
	if !includeInactive {
		query += ` AND status = 'active'`
	}
	query += ` ORDER BY logged_in_at DESC`
	rows := make([]sqlDataSession, 0)
	if err := r.db.SelectContext(ctx, &rows, query, tenantID, userID); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return modelsFromRows(rows)
}

// Create persists the session. The session must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	meta, err := json.Marshal(s.Metadata)
	if err != nil {
		return fmt.Errorf("session metadata: %w", err)
	}
	if s.Metadata == nil {
		meta = []byte("{}")
	}
	var push sql.NullString
	if s.PushToken != nil {
		push = sql.NullString{String: *s.PushToken, Valid: true}
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO device_sessions (id, tenant_id, user_id, device_id, device_type,
			push_token, status, last_activity, logged_in_at, refresh_token_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::jsonb)`,
		s.ID, s.TenantID, s.UserID, s.DeviceID, string(s.DeviceType), push, string(s.Status),
		s.LastActivity, s.LoggedInAt, nullString(s.RefreshTokenID), string(meta))
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Touch(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE device_sessions SET last_activity = GREATEST(last_activity, $2)
		WHERE id = $1 AND status = 'active'`, id, at)
	if err != nil {
		return false, fmt.Errorf("touch session: %w", err)
	}
	return affected(res)
}

func (r *PostgresRepository) UpdatePushToken(ctx context.Context, id, token string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE device_sessions SET push_token = $2
		WHERE id = $1 AND status = 'active'`, id, token)
	if err != nil {
		return false, fmt.Errorf("update push token: %w", err)
	}
	return affected(res)
}

func (r *PostgresRepository) Transition(ctx context.Context, id string, t domain.Transition) (*domain.Session, error) {
	var row sqlDataSession
	err := r.db.GetContext(ctx, &row, `UPDATE device_sessions
		SET status = $2, logged_out_at = $3, logout_reason = $4, revoked_by = COALESCE($5, revoked_by)
		WHERE id = $1 AND status = 'active'
		RETURNING `+sessionColumns,
		id, string(t.To), t.At, nullString(t.Reason), nullInt64(t.RevokedBy))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("transition session: %w", err)
	}
	return row.Model()
}

func (r *PostgresRepository) TransitionAllForUser(ctx context.Context, tenantID, userID int64, exceptID string, t domain.Transition) ([]*domain.Session, error) {
	rows := make([]sqlDataSession, 0)
	err := r.db.SelectContext(ctx, &rows, `UPDATE device_sessions
		SET status = $4, logged_out_at = $5, logout_reason = $6, revoked_by = COALESCE($7, revoked_by)
		WHERE tenant_id = $1 AND user_id = $2 AND status = 'active' AND ($3 = '' OR id::text <> $3)
		RETURNING `+sessionColumns,
		tenantID, userID, exceptID, string(t.To), t.At, nullString(t.Reason), nullInt64(t.RevokedBy))
	if err != nil {
		return nil, fmt.Errorf("transition user sessions: %w", err)
	}
	return modelsFromRows(rows)
}

func (r *PostgresRepository) ExpireInactive(ctx context.Context, cutoff time.Time, at time.Time) ([]*domain.Session, error) {
	rows := make([]sqlDataSession, 0)
	err := r.db.SelectContext(ctx, &rows, `UPDATE device_sessions
		SET status = 'expired', logged_out_at = $2, logout_reason = $3
		WHERE status = 'active' AND last_activity < $1
		RETURNING `+sessionColumns, cutoff, at, ExpiryReason)
	if err != nil {
		return nil, fmt.Errorf("expire sessions: %w", err)
	}
	return modelsFromRows(rows)
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
