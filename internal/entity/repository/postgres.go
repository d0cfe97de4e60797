package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"field-sales-platform/backend/internal/db"
	"field-sales-platform/backend/internal/entity/domain"
)

const clientLocalConstraint = "ux_sync_entities_client_local"

const entityColumns = `tenant_id, entity_type, id, version, active, owner_user_id, payload,
	client_local_id, created_at, updated_at, created_by, updated_by`

type sqlDataEntity struct {
	TenantID      int64          `db:"tenant_id"`
	EntityType    string         `db:"entity_type"`
	ID            int64          `db:"id"`
	Version       int64          `db:"version"`
	Active        bool           `db:"active"`
	OwnerUserID   sql.NullInt64  `db:"owner_user_id"`
	Payload       []byte         `db:"payload"`
	ClientLocalID sql.NullString `db:"client_local_id"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
	CreatedBy     int64          `db:"created_by"`
	UpdatedBy     int64          `db:"updated_by"`
}

func (d *sqlDataEntity) Model() *domain.Entity {
	e := &domain.Entity{
		TenantID:      d.TenantID,
		Type:          domain.Type(d.EntityType),
		ID:            d.ID,
		Version:       d.Version,
		Active:        d.Active,
		Payload:       append([]byte(nil), d.Payload...),
		ClientLocalID: d.ClientLocalID.String,
		CreatedAt:     d.CreatedAt.UTC(),
		UpdatedAt:     d.UpdatedAt.UTC(),
		CreatedBy:     d.CreatedBy,
		UpdatedBy:     d.UpdatedBy,
	}
	if d.OwnerUserID.Valid {
		owner := d.OwnerUserID.Int64
		e.OwnerUserID = &owner
	}
	return e
}

func nullOwner(owner *int64) sql.NullInt64 {
	if owner == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *owner, Valid: true}
}

func payloadParam(p []byte) string {
	if len(p) == 0 {
		return "{}"
	}
	return string(p)
}

// PostgresStore is the Store backed by the sync_entities table.
// Rows are locked with SELECT ... FOR UPDATE and written with a version-guarded UPDATE.
type PostgresStore struct {
	db *sqlx.DB
	// settle is subtracted from the database clock in ServerTime to cover the gap
	// between a writer stamping updated_at and its commit becoming visible.
	settle time.Duration
}

// NewPostgresStore returns a PostgresStore using db for persistence.
func NewPostgresStore(db *sqlx.DB, settle time.Duration) *PostgresStore {
	return &PostgresStore{db: db, settle: settle}
}

func (s *PostgresStore) ServerTime(ctx context.Context) (time.Time, error) {
	var now time.Time
	if err := s.db.GetContext(ctx, &now, `SELECT clock_timestamp()`); err != nil {
		return time.Time{}, fmt.Errorf("server time: %w", err)
	}
	return now.UTC().Add(-s.settle), nil
}

// Get returns the entity for (tenantID, typ, id), or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (s *PostgresStore) Get(ctx context.Context, tenantID int64, typ domain.Type, id int64) (*domain.Entity, error) {
	var row sqlDataEntity
	err := s.db.GetContext(ctx, &row, `SELECT `+entityColumns+` FROM sync_entities
		WHERE tenant_id = $1 AND entity_type = $2 AND id = $3`, tenantID, string(typ), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get entity: %w", err)
	}
	return row.Model(), nil
}

func (s *PostgresStore) ListChangedSince(ctx context.Context, q ChangeQuery) ([]*domain.Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM sync_entities
		WHERE tenant_id = $1 AND entity_type = $2 AND updated_at <= $3`
	args := []interface{}{q.TenantID, string(q.Type), q.Until}
	if q.Since != nil {
		args = append(args, *q.Since)
		query += fmt.Sprintf(" AND updated_at > $%d", len(args))
	}
	if q.OwnerUserID != nil && q.Type.OwnerScoped() {
		args = append(args, *q.OwnerUserID)
		query += fmt.Sprintf(" AND owner_user_id = $%d", len(args))
	}
	query += " ORDER BY updated_at, id"

	rows := make([]sqlDataEntity, 0)
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list changed entities: %w", err)
	}
	out := make([]*domain.Entity, len(rows))
	for i := range rows {
		out[i] = rows[i].Model()
	}
	return out, nil
}

func (s *PostgresStore) TryApply(ctx context.Context, req ApplyRequest) (*ApplyResult, error) {
	if err := validateApply(req); err != nil {
		return nil, err
	}
	if req.ID == 0 {
		return s.create(ctx, req)
	}
	var result *ApplyResult
	err := db.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var err error
		result, err = s.updateTx(ctx, tx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *PostgresStore) updateTx(ctx context.Context, tx *sqlx.Tx, req ApplyRequest) (*ApplyResult, error) {
	var row sqlDataEntity
	err := tx.GetContext(ctx, &row, `SELECT `+entityColumns+` FROM sync_entities
		WHERE tenant_id = $1 AND entity_type = $2 AND id = $3
		FOR UPDATE`, req.TenantID, string(req.Type), req.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &ApplyResult{Status: domain.NotFound}, nil
		}
		return nil, fmt.Errorf("lock entity: %w", err)
	}
	current := row.Model()
	if hiddenByOwnerScope(current, req.OwnerScope) {
		return &ApplyResult{Status: domain.NotFound}, nil
	}
	if current.Version != req.ExpectedVersion {
		return &ApplyResult{Status: domain.VersionConflict, Entity: current}, nil
	}
	change, err := req.Mutate(current.Clone())
	if err != nil {
		return nil, err
	}

	var updated sqlDataEntity
	err = tx.GetContext(ctx, &updated, `UPDATE sync_entities SET
			version = version + 1,
			active = $5,
			owner_user_id = $6,
			payload = $7::jsonb,
			updated_at = GREATEST(clock_timestamp(), updated_at + interval '1 microsecond'),
			updated_by = $8
		WHERE tenant_id = $1 AND entity_type = $2 AND id = $3 AND version = $4
		RETURNING `+entityColumns,
		req.TenantID, string(req.Type), req.ID, req.ExpectedVersion,
		change.Active, nullOwner(change.OwnerUserID), payloadParam(change.Payload), req.Actor)
	if err != nil {
		// The row is locked, so a missing row here means it changed under us.
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("update entity: version guard failed for %s/%d", req.Type, req.ID)
		}
		return nil, fmt.Errorf("update entity: %w", err)
	}
	return &ApplyResult{Status: domain.Applied, Entity: updated.Model()}, nil
}

func (s *PostgresStore) create(ctx context.Context, req ApplyRequest) (*ApplyResult, error) {
	if req.ClientLocalID != "" {
		dup, err := s.findByClientLocalID(ctx, req)
		if err != nil {
			return nil, err
		}
		if dup != nil {
			return duplicateResult(dup, req.OwnerScope), nil
		}
	}
	change, err := req.Mutate(nil)
	if err != nil {
		return nil, err
	}
	localID := sql.NullString{String: req.ClientLocalID, Valid: req.ClientLocalID != ""}

	var inserted sqlDataEntity
	err = s.db.GetContext(ctx, &inserted, `WITH t AS (SELECT clock_timestamp() AS ts)
		INSERT INTO sync_entities (tenant_id, entity_type, version, active, owner_user_id, payload,
			client_local_id, created_at, updated_at, created_by, updated_by)
		SELECT $1, $2, 1, $3, $4, $5::jsonb, $6, t.ts, t.ts, $7, $7 FROM t
		RETURNING `+entityColumns,
		req.TenantID, string(req.Type), change.Active, nullOwner(change.OwnerUserID),
		payloadParam(change.Payload), localID, req.Actor)
	if err != nil {
		if db.IsUniqueViolation(err, clientLocalConstraint) {
			dup, ferr := s.findByClientLocalID(ctx, req)
			if ferr != nil {
				return nil, ferr
			}
			if dup != nil {
				return duplicateResult(dup, req.OwnerScope), nil
			}
		}
		return nil, fmt.Errorf("insert entity: %w", err)
	}
	return &ApplyResult{Status: domain.Applied, Entity: inserted.Model()}, nil
}

func (s *PostgresStore) findByClientLocalID(ctx context.Context, req ApplyRequest) (*domain.Entity, error) {
	var row sqlDataEntity
	err := s.db.GetContext(ctx, &row, `SELECT `+entityColumns+` FROM sync_entities
		WHERE tenant_id = $1 AND entity_type = $2 AND created_by = $3 AND client_local_id = $4`,
		req.TenantID, string(req.Type), req.Actor, req.ClientLocalID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find by client local id: %w", err)
	}
	return row.Model(), nil
}
