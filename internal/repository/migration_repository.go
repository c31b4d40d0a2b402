package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/attendance-ledger/internal/models"
)

// MigrationRepository owns the audit trail and the atomic per-row commit of
// (attendance record, migration record) pairs.
type MigrationRepository struct {
	db *sqlx.DB
}

// NewMigrationRepository constructs the repository.
func NewMigrationRepository(db *sqlx.DB) *MigrationRepository {
	return &MigrationRepository{db: db}
}

// ExistingRowIDs returns the subset of ids already present in the audit trail
// for the given source. Used to skip rows on reruns without loading rows.
func (r *MigrationRepository) ExistingRowIDs(ctx context.Context, source models.SourceType, ids []int64) (map[int64]struct{}, error) {
	existing := make(map[int64]struct{}, len(ids))
	if len(ids) == 0 {
		return existing, nil
	}
	query := `SELECT source_row_id FROM migration_records WHERE source_type = $1 AND source_row_id = ANY($2)`
	var found []int64
	if err := r.db.SelectContext(ctx, &found, query, source, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("lookup migrated row ids: %w", err)
	}
	for _, id := range found {
		existing[id] = struct{}{}
	}
	return existing, nil
}

// CommitRow writes the canonical record and its audit entry in one
// transaction. Returns migrated=false when the audit key already exists; in
// that case nothing is persisted and the row counts as skipped.
func (r *MigrationRepository) CommitRow(ctx context.Context, record *models.AttendanceRecord, audit *models.MigrationRecord) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin migration commit: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	upsert := `INSERT INTO attendance_records (id, student_id, class_id, activity_id, date, period, status, summoned, justification, recorded_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (student_id, class_id, activity_id, date)
DO UPDATE SET status = EXCLUDED.status, summoned = EXCLUDED.summoned, justification = EXCLUDED.justification, updated_at = EXCLUDED.updated_at
RETURNING id`
	var recordID string
	if err := tx.QueryRowxContext(ctx, upsert,
		record.ID, record.StudentID, record.ClassID, record.ActivityID, record.Date, record.Period,
		record.Status, record.Summoned, record.Justification, record.RecordedBy, record.CreatedAt, record.UpdatedAt).Scan(&recordID); err != nil {
		return false, fmt.Errorf("upsert attendance record: %w", err)
	}
	record.ID = recordID

	if audit.ID == "" {
		audit.ID = uuid.NewString()
	}
	if audit.MigratedAt.IsZero() {
		audit.MigratedAt = now
	}
	audit.AttendanceRecordID = recordID

	// A conflict on the idempotency key means another run already migrated
	// this row; the rollback also undoes the ledger upsert above.
	insert := `INSERT INTO migration_records (id, source_type, source_row_id, attendance_record_id, migrated_at, notes)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (source_type, source_row_id) DO NOTHING
RETURNING id`
	var auditID string
	if err := tx.QueryRowxContext(ctx, insert,
		audit.ID, audit.SourceType, audit.SourceRowID, audit.AttendanceRecordID, audit.MigratedAt, audit.Notes).Scan(&auditID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("insert migration record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit migration row: %w", err)
	}
	committed = true
	return true, nil
}

// CountBySource reports how many audit entries exist per source type.
func (r *MigrationRepository) CountBySource(ctx context.Context) (map[models.SourceType]int, error) {
	query := `SELECT source_type, COUNT(*) AS total FROM migration_records GROUP BY source_type`
	rows, err := r.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("count migration records: %w", err)
	}
	defer rows.Close()
	counts := make(map[models.SourceType]int)
	for rows.Next() {
		var source models.SourceType
		var total int
		if err := rows.Scan(&source, &total); err != nil {
			return nil, fmt.Errorf("scan migration count: %w", err)
		}
		counts[source] = total
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate migration counts: %w", err)
	}
	return counts, nil
}
