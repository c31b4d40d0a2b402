package service

import (
	"context"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-ledger/internal/models"
	appErrors "github.com/noah-isme/attendance-ledger/pkg/errors"
	"github.com/noah-isme/attendance-ledger/pkg/export"
)

type ledgerReader interface {
	ListForStudentPeriod(ctx context.Context, studentID, classID, activityID string, period time.Time) ([]models.AttendanceRecord, error)
	ListForClassPeriod(ctx context.Context, classID, activityID string, period time.Time) ([]models.LedgerEntry, error)
}

type configReader interface {
	GetByClassActivity(ctx context.Context, classID, activityID string) (*models.AttendanceConfig, error)
	ListActiveByClass(ctx context.Context, classID string) ([]models.AttendanceConfig, error)
}

// AggregationService answers the two read queries over the canonical ledger:
// per-student bulletins and per-class consolidated tables.
type AggregationService struct {
	ledger         ledgerReader
	configs        configReader
	defaultMinimum float64
	validator      *validator.Validate
	logger         *zap.Logger
	metrics        *MetricsService
}

// NewAggregationService constructs the service. defaultMinimum is the
// system-wide threshold used when no policy row matches.
func NewAggregationService(ledger ledgerReader, configs configReader, defaultMinimum float64, validate *validator.Validate, logger *zap.Logger, metrics *MetricsService) *AggregationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AggregationService{
		ledger:         ledger,
		configs:        configs,
		defaultMinimum: defaultMinimum,
		validator:      validate,
		logger:         logger,
		metrics:        metrics,
	}
}

// BulletinRequest scopes a single student's monthly bulletin.
type BulletinRequest struct {
	StudentID  string `validate:"required"`
	ClassID    string
	ActivityID string
	Month      int `validate:"min=1,max=12"`
	Year       int `validate:"min=1"`
}

// ConsolidatedRequest scopes a whole class's monthly table.
type ConsolidatedRequest struct {
	ClassID    string `validate:"required"`
	ActivityID string
	Month      int `validate:"min=1,max=12"`
	Year       int `validate:"min=1"`
}

// StudentBulletin aggregates one student's records for a period. An unknown
// student or an empty period yields a zeroed bulletin, never an error.
func (s *AggregationService) StudentBulletin(ctx context.Context, req BulletinRequest) (*models.Bulletin, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulletin request")
	}
	period := periodFor(req.Year, req.Month)
	start := time.Now()
	rows, err := s.ledger.ListForStudentPeriod(ctx, req.StudentID, req.ClassID, req.ActivityID, period)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "ledger unreachable")
	}
	s.metrics.ObserveReportQuery("bulletin", time.Since(start))

	bulletin := &models.Bulletin{StudentID: req.StudentID, ClassID: req.ClassID, Period: period}
	for _, row := range rows {
		bulletin.Add(row.Status, row.Summoned)
	}
	bulletin.Finalize()

	minimum, err := s.resolveMinimum(ctx, req.ClassID, req.ActivityID)
	if err != nil {
		return nil, err
	}
	bulletin.MinimumPercentage = minimum
	bulletin.BelowMinimum = bulletin.Convocations > 0 && bulletin.Percentage < minimum
	return bulletin, nil
}

// ClassConsolidated aggregates a whole class for a period, one row per
// student with at least one record, ordered by student display name. The
// minimum percentage only annotates rows; it never filters them out.
func (s *AggregationService) ClassConsolidated(ctx context.Context, req ConsolidatedRequest) (*models.ConsolidatedTable, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid consolidated request")
	}
	period := periodFor(req.Year, req.Month)
	start := time.Now()
	entries, err := s.ledger.ListForClassPeriod(ctx, req.ClassID, req.ActivityID, period)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "ledger unreachable")
	}
	s.metrics.ObserveReportQuery("consolidated", time.Since(start))

	minimum, err := s.resolveMinimum(ctx, req.ClassID, req.ActivityID)
	if err != nil {
		return nil, err
	}

	table := &models.ConsolidatedTable{ClassID: req.ClassID, Period: period, Rows: []models.ConsolidatedRow{}}
	// Entries arrive ordered by student name, so grouping preserves order.
	var current *models.ConsolidatedRow
	for _, entry := range entries {
		if current == nil || current.StudentID != entry.StudentID {
			table.Rows = append(table.Rows, models.ConsolidatedRow{
				StudentID:         entry.StudentID,
				StudentName:       entry.StudentName,
				MinimumPercentage: minimum,
			})
			current = &table.Rows[len(table.Rows)-1]
		}
		current.Add(entry.Status, entry.Summoned)
	}
	for i := range table.Rows {
		row := &table.Rows[i]
		row.Finalize()
		row.BelowMinimum = row.Convocations > 0 && row.Percentage < minimum
	}
	return table, nil
}

// resolveMinimum looks up the configured attendance threshold, falling back
// to the system default when no policy matches. A missing policy is never an
// error; only an unreachable config store is.
func (s *AggregationService) resolveMinimum(ctx context.Context, classID, activityID string) (float64, error) {
	if classID == "" {
		return s.defaultMinimum, nil
	}
	if activityID != "" {
		cfg, err := s.configs.GetByClassActivity(ctx, classID, activityID)
		if err != nil {
			return 0, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "config store unreachable")
		}
		if cfg != nil {
			return cfg.MinimumPercentage, nil
		}
		return s.defaultMinimum, nil
	}
	configs, err := s.configs.ListActiveByClass(ctx, classID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "config store unreachable")
	}
	// Without an activity scope the threshold is only unambiguous when the
	// class carries a single active policy.
	if len(configs) == 1 {
		return configs[0].MinimumPercentage, nil
	}
	return s.defaultMinimum, nil
}

func periodFor(year, month int) time.Time {
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
}

// Fixed CSV header order shared by both projections; student_name appears in
// consolidated tables only.
var (
	bulletinHeaders = []string{
		"student_id", "convocations", "presences", "absences", "percentage",
		"volunteer_extra", "volunteer_simple", "deficiencies", "minimum_percentage",
	}
	consolidatedHeaders = []string{
		"student_id", "student_name", "convocations", "presences", "absences", "percentage",
		"volunteer_extra", "volunteer_simple", "deficiencies", "minimum_percentage",
	}
)

// BulletinDataset projects a bulletin onto its fixed CSV shape.
func (s *AggregationService) BulletinDataset(b *models.Bulletin) export.Dataset {
	row := countsRow(b.AttendanceCounts, b.MinimumPercentage)
	row["student_id"] = b.StudentID
	return export.Dataset{Headers: bulletinHeaders, Rows: []map[string]string{row}}
}

// ConsolidatedDataset projects a consolidated table onto its fixed CSV shape.
func (s *AggregationService) ConsolidatedDataset(t *models.ConsolidatedTable) export.Dataset {
	rows := make([]map[string]string, len(t.Rows))
	for i, r := range t.Rows {
		row := countsRow(r.AttendanceCounts, r.MinimumPercentage)
		row["student_id"] = r.StudentID
		row["student_name"] = r.StudentName
		rows[i] = row
	}
	return export.Dataset{Headers: consolidatedHeaders, Rows: rows}
}

func countsRow(c models.AttendanceCounts, minimum float64) map[string]string {
	return map[string]string{
		"convocations":       strconv.Itoa(c.Convocations),
		"presences":          strconv.Itoa(c.Presences),
		"absences":           strconv.Itoa(c.Absences),
		"percentage":         strconv.FormatFloat(c.Percentage, 'f', 2, 64),
		"volunteer_extra":    strconv.Itoa(c.VolunteerExtra),
		"volunteer_simple":   strconv.Itoa(c.VolunteerSimple),
		"deficiencies":       strconv.Itoa(c.Deficiencies),
		"minimum_percentage": strconv.FormatFloat(minimum, 'f', 2, 64),
	}
}
