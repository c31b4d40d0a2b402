package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/attendance-ledger/internal/models"
)

// LedgerRepository persists canonical attendance records.
type LedgerRepository struct {
	db *sqlx.DB
}

// NewLedgerRepository constructs the repository.
func NewLedgerRepository(db *sqlx.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

const ledgerColumns = `id, student_id, class_id, activity_id, date, period, status, summoned, justification, recorded_by, created_at, updated_at`

// Upsert inserts or updates a record keyed on the ledger tuple. Re-processing
// the same (student, class, activity, date) updates instead of duplicating.
func (r *LedgerRepository) Upsert(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error) {
	now := time.Now().UTC()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	query := `INSERT INTO attendance_records (id, student_id, class_id, activity_id, date, period, status, summoned, justification, recorded_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (student_id, class_id, activity_id, date)
DO UPDATE SET status = EXCLUDED.status, summoned = EXCLUDED.summoned, justification = EXCLUDED.justification, updated_at = EXCLUDED.updated_at
RETURNING ` + ledgerColumns
	var stored models.AttendanceRecord
	if err := r.db.GetContext(ctx, &stored, query,
		record.ID, record.StudentID, record.ClassID, record.ActivityID, record.Date, record.Period,
		record.Status, record.Summoned, record.Justification, record.RecordedBy, record.CreatedAt, record.UpdatedAt); err != nil {
		return nil, fmt.Errorf("upsert attendance record: %w", err)
	}
	return &stored, nil
}

// ListForStudentPeriod returns a student's records for one period, optionally
// scoped to a class and activity.
func (r *LedgerRepository) ListForStudentPeriod(ctx context.Context, studentID, classID, activityID string, period time.Time) ([]models.AttendanceRecord, error) {
	query := `SELECT ` + ledgerColumns + ` FROM attendance_records WHERE student_id = $1 AND period = $2`
	args := []interface{}{studentID, period}
	if classID != "" {
		query += fmt.Sprintf(" AND class_id = $%d", len(args)+1)
		args = append(args, classID)
	}
	if activityID != "" {
		query += fmt.Sprintf(" AND activity_id = $%d", len(args)+1)
		args = append(args, activityID)
	}
	query += " ORDER BY date ASC"
	var rows []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list student period records: %w", err)
	}
	return rows, nil
}

// ListForClassPeriod returns every record of a class for one period joined
// with student names, ordered by display name for consolidated tables.
func (r *LedgerRepository) ListForClassPeriod(ctx context.Context, classID, activityID string, period time.Time) ([]models.LedgerEntry, error) {
	query := `SELECT ar.id, ar.student_id, ar.class_id, ar.activity_id, ar.date, ar.period, ar.status, ar.summoned, ar.justification, ar.recorded_by, ar.created_at, ar.updated_at,
        s.full_name AS student_name
FROM attendance_records ar
JOIN students s ON s.id = ar.student_id
WHERE ar.class_id = $1 AND ar.period = $2`
	args := []interface{}{classID, period}
	if activityID != "" {
		query += fmt.Sprintf(" AND ar.activity_id = $%d", len(args)+1)
		args = append(args, activityID)
	}
	query += " ORDER BY s.full_name ASC, ar.student_id ASC, ar.date ASC"
	var rows []models.LedgerEntry
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list class period records: %w", err)
	}
	return rows, nil
}
