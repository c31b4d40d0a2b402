package models

import (
	"fmt"
	"time"
)

// AttendanceStatus represents the outcome recorded for one activity occurrence.
type AttendanceStatus string

const (
	StatusPresent          AttendanceStatus = "present"
	StatusAbsent           AttendanceStatus = "absent"
	StatusJustifiedAbsence AttendanceStatus = "justified_absence"
	StatusVolunteerExtra   AttendanceStatus = "volunteer_extra"
	StatusVolunteerSimple  AttendanceStatus = "volunteer_simple"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusJustifiedAbsence, StatusVolunteerExtra, StatusVolunteerSimple:
		return true
	default:
		return false
	}
}

// IsPresence reports whether the status counts toward attendance.
func (s AttendanceStatus) IsPresence() bool {
	switch s {
	case StatusPresent, StatusVolunteerExtra, StatusVolunteerSimple:
		return true
	default:
		return false
	}
}

// IsAbsence reports whether the status counts against attendance standing.
func (s AttendanceStatus) IsAbsence() bool {
	return s == StatusAbsent || s == StatusJustifiedAbsence
}

// IsVolunteer reports whether the status is one of the volunteer kinds.
func (s AttendanceStatus) IsVolunteer() bool {
	return s == StatusVolunteerExtra || s == StatusVolunteerSimple
}

// PeriodOf normalises a date to the first day of its month in UTC.
// The period column is the grouping key for every monthly rollup.
func PeriodOf(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// AttendanceRecord is the canonical ledger entry: one student's outcome for
// one activity occurrence on one date. The (student, class, activity, date)
// tuple is unique.
type AttendanceRecord struct {
	ID            string           `db:"id" json:"id"`
	StudentID     string           `db:"student_id" json:"student_id"`
	ClassID       string           `db:"class_id" json:"class_id"`
	ActivityID    string           `db:"activity_id" json:"activity_id"`
	Date          time.Time        `db:"date" json:"date"`
	Period        time.Time        `db:"period" json:"period"`
	Status        AttendanceStatus `db:"status" json:"status"`
	Summoned      bool             `db:"summoned" json:"summoned"`
	Justification *string          `db:"justification" json:"justification,omitempty"`
	RecordedBy    string           `db:"recorded_by" json:"recorded_by"`
	CreatedAt     time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time        `db:"updated_at" json:"updated_at"`
}

// Normalize derives the period from the date and fills defaults.
func (r *AttendanceRecord) Normalize(now time.Time) {
	r.Period = PeriodOf(r.Date)
	if r.RecordedBy == "" {
		r.RecordedBy = "System"
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
}

// Validate enforces the ledger invariants before a record is persisted.
func (r *AttendanceRecord) Validate(now time.Time) error {
	if r.StudentID == "" || r.ClassID == "" || r.ActivityID == "" {
		return fmt.Errorf("student, class and activity references are required")
	}
	if r.Date.IsZero() {
		return fmt.Errorf("date is required")
	}
	if r.Date.After(now) {
		return fmt.Errorf("date %s is in the future", r.Date.Format("2006-01-02"))
	}
	if !r.Status.Valid() {
		return fmt.Errorf("unknown status %q", r.Status)
	}
	if !r.Period.Equal(PeriodOf(r.Date)) {
		return fmt.Errorf("period %s does not match date %s", r.Period.Format("2006-01-02"), r.Date.Format("2006-01-02"))
	}
	if r.Status == StatusJustifiedAbsence && (r.Justification == nil || *r.Justification == "") {
		return fmt.Errorf("justification is required for a justified absence")
	}
	return nil
}

// AttendanceConfig is the per class+activity attendance policy, unique on
// (class, activity). Read-only input to report generation.
type AttendanceConfig struct {
	ID                string    `db:"id" json:"id"`
	ClassID           string    `db:"class_id" json:"class_id"`
	ActivityID        string    `db:"activity_id" json:"activity_id"`
	MinimumPercentage float64   `db:"minimum_percentage" json:"minimum_percentage"`
	Mandatory         bool      `db:"mandatory" json:"mandatory"`
	Weight            float64   `db:"weight" json:"weight"`
	Active            bool      `db:"active" json:"active"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// Policy defaults applied when a config row is created without values.
const (
	DefaultConfigMinimumPercentage = 75.0
	DefaultConfigWeight            = 1.0
)

// Validate checks the policy invariants.
func (c *AttendanceConfig) Validate() error {
	if c.ClassID == "" || c.ActivityID == "" {
		return fmt.Errorf("class and activity references are required")
	}
	if c.MinimumPercentage < 0 || c.MinimumPercentage > 100 {
		return fmt.Errorf("minimum percentage %.2f outside [0,100]", c.MinimumPercentage)
	}
	if c.Weight <= 0 {
		return fmt.Errorf("weight must be strictly positive")
	}
	return nil
}
