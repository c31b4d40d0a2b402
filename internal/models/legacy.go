package models

import "time"

// LegacyRow is the contract every legacy attendance shape satisfies. The set
// of implementations is closed: SourceARow, SourceBRow and SourceCRow.
type LegacyRow interface {
	// Source tags which legacy schema the row belongs to.
	Source() SourceType
	// RowID is the row's identifier in its source table, the second half of
	// the (source type, row id) idempotency key.
	RowID() int64
}

// SourceARow mirrors legacy_presence_logs: a boolean present flag plus an
// optional free-text justification. The schema has no convocation concept.
type SourceARow struct {
	ID            int64      `db:"id"`
	StudentID     string     `db:"student_id"`
	ClassID       string     `db:"class_id"`
	ActivityID    string     `db:"activity_id"`
	Date          time.Time  `db:"date"`
	Present       bool       `db:"present"`
	Justification *string    `db:"justification"`
	RecordedBy    *string    `db:"recorded_by"`
	CreatedAt     *time.Time `db:"created_at"`
}

func (r SourceARow) Source() SourceType { return SourceTypePresenceLog }
func (r SourceARow) RowID() int64       { return r.ID }

// SourceBRow mirrors legacy_activity_calls: a status string in the legacy
// vocabulary plus an explicit summoned flag.
type SourceBRow struct {
	ID            int64      `db:"id"`
	StudentID     string     `db:"student_id"`
	ClassID       string     `db:"class_id"`
	ActivityID    string     `db:"activity_id"`
	Date          time.Time  `db:"date"`
	Status        string     `db:"status"`
	Summoned      *bool      `db:"summoned"`
	Justification *string    `db:"justification"`
	RecordedBy    *string    `db:"recorded_by"`
	CreatedAt     *time.Time `db:"created_at"`
}

func (r SourceBRow) Source() SourceType { return SourceTypeActivityCall }
func (r SourceBRow) RowID() int64       { return r.ID }

// SourceCRow mirrors legacy_convocations: a single convoked boolean. The
// schema cannot express a justification.
type SourceCRow struct {
	ID         int64      `db:"id"`
	StudentID  string     `db:"student_id"`
	ClassID    string     `db:"class_id"`
	ActivityID string     `db:"activity_id"`
	Date       time.Time  `db:"date"`
	Convoked   bool       `db:"convoked"`
	RecordedBy *string    `db:"recorded_by"`
	CreatedAt  *time.Time `db:"created_at"`
}

func (r SourceCRow) Source() SourceType { return SourceTypeConvocation }
func (r SourceCRow) RowID() int64       { return r.ID }
