package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/attendance-ledger/internal/models"
)

// StatusTable maps legacy activity-call status strings onto canonical
// statuses. Built once and passed in; never mutated after construction.
type StatusTable struct {
	byCall map[string]models.AttendanceStatus
}

// DefaultStatusTable returns the mapping used by the legacy activity-call
// schema. Unrecognized strings map to present, matching the behaviour the
// legacy system relied on.
func DefaultStatusTable() StatusTable {
	return StatusTable{byCall: map[string]models.AttendanceStatus{
		"presente":           models.StatusPresent,
		"falta":              models.StatusAbsent,
		"justificada":        models.StatusJustifiedAbsence,
		"voluntario_extra":   models.StatusVolunteerExtra,
		"voluntario_simples": models.StatusVolunteerSimple,
	}}
}

// Lookup resolves a raw legacy status, defaulting to present.
func (t StatusTable) Lookup(raw string) models.AttendanceStatus {
	if status, ok := t.byCall[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return status
	}
	return models.StatusPresent
}

// MapRow converts one legacy row into a canonical attendance record. The
// legacy row set is closed, so the switch is exhaustive; a row that fails
// the ledger invariants yields a mapping error for the batch report.
func MapRow(row models.LegacyRow, now time.Time, table StatusTable) (*models.AttendanceRecord, error) {
	var record *models.AttendanceRecord
	switch r := row.(type) {
	case models.SourceARow:
		status := models.StatusAbsent
		if r.Present {
			status = models.StatusPresent
		}
		record = &models.AttendanceRecord{
			StudentID:     r.StudentID,
			ClassID:       r.ClassID,
			ActivityID:    r.ActivityID,
			Date:          r.Date,
			Status:        status,
			Summoned:      true, // the schema has no convocation concept
			Justification: emptyToNil(r.Justification),
		}
		applyOrigin(record, r.RecordedBy, r.CreatedAt)
	case models.SourceBRow:
		summoned := true
		if r.Summoned != nil {
			summoned = *r.Summoned
		}
		record = &models.AttendanceRecord{
			StudentID:     r.StudentID,
			ClassID:       r.ClassID,
			ActivityID:    r.ActivityID,
			Date:          r.Date,
			Status:        table.Lookup(r.Status),
			Summoned:      summoned,
			Justification: emptyToNil(r.Justification),
		}
		applyOrigin(record, r.RecordedBy, r.CreatedAt)
	case models.SourceCRow:
		status := models.StatusAbsent
		if r.Convoked {
			status = models.StatusPresent
		}
		record = &models.AttendanceRecord{
			StudentID:  r.StudentID,
			ClassID:    r.ClassID,
			ActivityID: r.ActivityID,
			Date:       r.Date,
			Status:     status,
			Summoned:   r.Convoked,
		}
		applyOrigin(record, r.RecordedBy, r.CreatedAt)
	default:
		return nil, fmt.Errorf("unsupported legacy row type %T", row)
	}

	record.Normalize(now)
	if err := record.Validate(now); err != nil {
		return nil, fmt.Errorf("map %s row %d: %w", row.Source(), row.RowID(), err)
	}
	return record, nil
}

func applyOrigin(record *models.AttendanceRecord, recordedBy *string, createdAt *time.Time) {
	if recordedBy != nil && *recordedBy != "" {
		record.RecordedBy = *recordedBy
	}
	if createdAt != nil && !createdAt.IsZero() {
		record.CreatedAt = *createdAt
	}
}

func emptyToNil(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
