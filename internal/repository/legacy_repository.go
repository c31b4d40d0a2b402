package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/attendance-ledger/internal/models"
)

// The legacy tables are read-only collaborators. Each repository paginates
// over its natural ordering (primary key ascending) so offsets stay stable
// while a migration run is in flight.

// SourceARepository reads legacy_presence_logs rows.
type SourceARepository struct {
	db *sqlx.DB
}

// NewSourceARepository constructs the reader.
func NewSourceARepository(db *sqlx.DB) *SourceARepository {
	return &SourceARepository{db: db}
}

// Type tags the rows this reader produces.
func (r *SourceARepository) Type() models.SourceType { return models.SourceTypePresenceLog }

// Count returns the total number of legacy rows.
func (r *SourceARepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM legacy_presence_logs`); err != nil {
		return 0, fmt.Errorf("count presence logs: %w", err)
	}
	return total, nil
}

// Page returns one batch of rows in primary key order.
func (r *SourceARepository) Page(ctx context.Context, offset, limit int) ([]models.LegacyRow, error) {
	query := `SELECT id, student_id, class_id, activity_id, date, present, justification, recorded_by, created_at
FROM legacy_presence_logs ORDER BY id ASC LIMIT $1 OFFSET $2`
	var rows []models.SourceARow
	if err := r.db.SelectContext(ctx, &rows, query, limit, offset); err != nil {
		return nil, fmt.Errorf("page presence logs: %w", err)
	}
	out := make([]models.LegacyRow, len(rows))
	for i := range rows {
		out[i] = rows[i]
	}
	return out, nil
}

// SourceBRepository reads legacy_activity_calls rows.
type SourceBRepository struct {
	db *sqlx.DB
}

// NewSourceBRepository constructs the reader.
func NewSourceBRepository(db *sqlx.DB) *SourceBRepository {
	return &SourceBRepository{db: db}
}

// Type tags the rows this reader produces.
func (r *SourceBRepository) Type() models.SourceType { return models.SourceTypeActivityCall }

// Count returns the total number of legacy rows.
func (r *SourceBRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM legacy_activity_calls`); err != nil {
		return 0, fmt.Errorf("count activity calls: %w", err)
	}
	return total, nil
}

// Page returns one batch of rows in primary key order.
func (r *SourceBRepository) Page(ctx context.Context, offset, limit int) ([]models.LegacyRow, error) {
	query := `SELECT id, student_id, class_id, activity_id, date, status, summoned, justification, recorded_by, created_at
FROM legacy_activity_calls ORDER BY id ASC LIMIT $1 OFFSET $2`
	var rows []models.SourceBRow
	if err := r.db.SelectContext(ctx, &rows, query, limit, offset); err != nil {
		return nil, fmt.Errorf("page activity calls: %w", err)
	}
	out := make([]models.LegacyRow, len(rows))
	for i := range rows {
		out[i] = rows[i]
	}
	return out, nil
}

// SourceCRepository reads legacy_convocations rows.
type SourceCRepository struct {
	db *sqlx.DB
}

// NewSourceCRepository constructs the reader.
func NewSourceCRepository(db *sqlx.DB) *SourceCRepository {
	return &SourceCRepository{db: db}
}

// Type tags the rows this reader produces.
func (r *SourceCRepository) Type() models.SourceType { return models.SourceTypeConvocation }

// Count returns the total number of legacy rows.
func (r *SourceCRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM legacy_convocations`); err != nil {
		return 0, fmt.Errorf("count convocations: %w", err)
	}
	return total, nil
}

// Page returns one batch of rows in primary key order.
func (r *SourceCRepository) Page(ctx context.Context, offset, limit int) ([]models.LegacyRow, error) {
	query := `SELECT id, student_id, class_id, activity_id, date, convoked, recorded_by, created_at
FROM legacy_convocations ORDER BY id ASC LIMIT $1 OFFSET $2`
	var rows []models.SourceCRow
	if err := r.db.SelectContext(ctx, &rows, query, limit, offset); err != nil {
		return nil, fmt.Errorf("page convocations: %w", err)
	}
	out := make([]models.LegacyRow, len(rows))
	for i := range rows {
		out[i] = rows[i]
	}
	return out, nil
}
