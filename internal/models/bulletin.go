package models

import (
	"math"
	"time"
)

// AttendanceCounts is the five-count vocabulary shared by bulletins and
// consolidated rows, plus the derived percentage and deficiency count.
type AttendanceCounts struct {
	Convocations    int     `json:"convocations"`
	Presences       int     `json:"presences"`
	Absences        int     `json:"absences"`
	VolunteerExtra  int     `json:"volunteer_extra"`
	VolunteerSimple int     `json:"volunteer_simple"`
	Deficiencies    int     `json:"deficiencies"`
	Percentage      float64 `json:"percentage"`
}

// Add folds one ledger record into the counts.
func (c *AttendanceCounts) Add(status AttendanceStatus, summoned bool) {
	if summoned {
		c.Convocations++
	}
	if status.IsPresence() {
		c.Presences++
	}
	if status.IsAbsence() {
		c.Absences++
		c.Deficiencies++
	}
	switch status {
	case StatusVolunteerExtra:
		c.VolunteerExtra++
	case StatusVolunteerSimple:
		c.VolunteerSimple++
	}
}

// Finalize derives the attendance percentage. Zero convocations yield 0.0,
// never a division by zero.
func (c *AttendanceCounts) Finalize() {
	if c.Convocations == 0 {
		c.Percentage = 0.0
		return
	}
	c.Percentage = Round2(float64(c.Presences) / float64(c.Convocations) * 100)
}

// Round2 rounds to two decimal places, the precision every report uses.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Bulletin is a single student's attendance summary for one period.
type Bulletin struct {
	StudentID string    `json:"student_id"`
	ClassID   string    `json:"class_id,omitempty"`
	Period    time.Time `json:"period"`
	AttendanceCounts
	MinimumPercentage float64 `json:"minimum_percentage"`
	BelowMinimum      bool    `json:"below_minimum"`
}

// ConsolidatedRow is one student's line in a class consolidated table.
type ConsolidatedRow struct {
	StudentID   string `json:"student_id"`
	StudentName string `json:"student_name"`
	AttendanceCounts
	MinimumPercentage float64 `json:"minimum_percentage"`
	BelowMinimum      bool    `json:"below_minimum"`
}

// ConsolidatedTable is a whole class's per-student summary for one period,
// ordered by student display name.
type ConsolidatedTable struct {
	ClassID string            `json:"class_id"`
	Period  time.Time         `json:"period"`
	Rows    []ConsolidatedRow `json:"rows"`
}

// LedgerEntry extends a canonical record with student metadata for reports.
type LedgerEntry struct {
	AttendanceRecord
	StudentName string `db:"student_name" json:"student_name"`
}

// Student is the read-only collaborator used for display names.
type Student struct {
	ID       string `db:"id" json:"id"`
	FullName string `db:"full_name" json:"full_name"`
}
