package models

import "time"

// SourceType tags the legacy schema a migrated row came from. Closed set.
type SourceType string

const (
	// SourceTypePresenceLog is the oldest shape: boolean present flag plus a
	// free-text justification.
	SourceTypePresenceLog SourceType = "presence_log"
	// SourceTypeActivityCall carries a rich status string and a summoned flag.
	SourceTypeActivityCall SourceType = "activity_call"
	// SourceTypeConvocation only records whether the student was convoked.
	SourceTypeConvocation SourceType = "convocation"
)

// Valid returns true when the source type is a supported value.
func (s SourceType) Valid() bool {
	switch s {
	case SourceTypePresenceLog, SourceTypeActivityCall, SourceTypeConvocation:
		return true
	default:
		return false
	}
}

// AllSourceTypes lists every legacy source in migration order.
func AllSourceTypes() []SourceType {
	return []SourceType{SourceTypePresenceLog, SourceTypeActivityCall, SourceTypeConvocation}
}

// MigrationRecord is the append-only audit entry proving one legacy row has
// been turned into one canonical record. Unique on (source_type,
// source_row_id); that key is what makes reruns idempotent.
type MigrationRecord struct {
	ID                 string     `db:"id" json:"id"`
	SourceType         SourceType `db:"source_type" json:"source_type"`
	SourceRowID        int64      `db:"source_row_id" json:"source_row_id"`
	AttendanceRecordID string     `db:"attendance_record_id" json:"attendance_record_id"`
	MigratedAt         time.Time  `db:"migrated_at" json:"migrated_at"`
	Notes              *string    `db:"notes" json:"notes,omitempty"`
}

// RowFailure captures a single legacy row that could not be migrated.
type RowFailure struct {
	RowID int64  `json:"row_id"`
	Error string `json:"error"`
}

// SourceReport summarises one source's migration outcome.
type SourceReport struct {
	Total    int          `json:"total"`
	Migrated int          `json:"migrated"`
	Skipped  int          `json:"skipped"`
	Failures []RowFailure `json:"failures,omitempty"`
}

// MigrationReport aggregates per-source outcomes for one migration run.
type MigrationReport struct {
	DryRun     bool                         `json:"dry_run"`
	StartedAt  time.Time                    `json:"started_at"`
	FinishedAt time.Time                    `json:"finished_at"`
	Sources    map[SourceType]*SourceReport `json:"sources"`
}

// Source returns the report bucket for a source, allocating it on first use.
func (r *MigrationReport) Source(t SourceType) *SourceReport {
	if r.Sources == nil {
		r.Sources = make(map[SourceType]*SourceReport)
	}
	if r.Sources[t] == nil {
		r.Sources[t] = &SourceReport{}
	}
	return r.Sources[t]
}
