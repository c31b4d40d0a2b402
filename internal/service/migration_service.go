package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-ledger/internal/models"
	appErrors "github.com/noah-isme/attendance-ledger/pkg/errors"
)

// LegacySource is a read-only, paginated stream of legacy attendance rows.
// Each of the three legacy schemas provides one implementation.
type LegacySource interface {
	Type() models.SourceType
	Count(ctx context.Context) (int, error)
	Page(ctx context.Context, offset, limit int) ([]models.LegacyRow, error)
}

type migrationStore interface {
	ExistingRowIDs(ctx context.Context, source models.SourceType, ids []int64) (map[int64]struct{}, error)
	CommitRow(ctx context.Context, record *models.AttendanceRecord, audit *models.MigrationRecord) (bool, error)
}

// DefaultBatchSize bounds how many legacy rows are held in memory per page.
const DefaultBatchSize = 1000

// MigrateOptions selects sources and tunes one migration run.
type MigrateOptions struct {
	Sources   []string `validate:"omitempty,dive,source_type"`
	BatchSize int      `validate:"omitempty,min=1,max=10000"`
	DryRun    bool
	Parallel  bool
}

// MigrationService idempotently converts legacy rows into canonical ledger
// entries, one audit entry per migrated row.
type MigrationService struct {
	sources   []LegacySource
	store     migrationStore
	statuses  StatusTable
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *MetricsService
}

// NewMigrationService constructs the engine.
func NewMigrationService(sources []LegacySource, store migrationStore, statuses StatusTable, validate *validator.Validate, logger *zap.Logger, metrics *MetricsService) *MigrationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &MigrationService{
		sources:   sources,
		store:     store,
		statuses:  statuses,
		validator: validate,
		logger:    logger,
		metrics:   metrics,
	}
	svc.validator.RegisterValidation("source_type", func(fl validator.FieldLevel) bool {
		return models.SourceType(fl.Field().String()).Valid()
	})
	return svc
}

// Migrate runs the engine over the selected sources. Per-row problems are
// collected into the report; only an unreachable store or source aborts a
// source's run, and that error is returned alongside the partial report.
func (s *MigrationService) Migrate(ctx context.Context, opts MigrateOptions) (*models.MigrationReport, error) {
	if err := s.validator.Struct(opts); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid migration options")
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	selected := s.selectSources(opts.Sources)
	report := &models.MigrationReport{DryRun: opts.DryRun, StartedAt: time.Now().UTC()}
	for _, src := range selected {
		report.Source(src.Type())
	}

	runErrs := make([]error, len(selected))
	if opts.Parallel {
		// One goroutine per source; batches of a single source stay
		// sequential so pagination offsets remain valid.
		var wg sync.WaitGroup
		for i, src := range selected {
			wg.Add(1)
			go func(i int, src LegacySource) {
				defer wg.Done()
				runErrs[i] = s.migrateSource(ctx, src, batchSize, opts.DryRun, report.Source(src.Type()))
			}(i, src)
		}
		wg.Wait()
	} else {
		for i, src := range selected {
			runErrs[i] = s.migrateSource(ctx, src, batchSize, opts.DryRun, report.Source(src.Type()))
		}
	}

	report.FinishedAt = time.Now().UTC()
	return report, errors.Join(runErrs...)
}

func (s *MigrationService) selectSources(names []string) []LegacySource {
	if len(names) == 0 {
		return s.sources
	}
	wanted := make(map[models.SourceType]struct{}, len(names))
	for _, name := range names {
		wanted[models.SourceType(name)] = struct{}{}
	}
	selected := make([]LegacySource, 0, len(s.sources))
	for _, src := range s.sources {
		if _, ok := wanted[src.Type()]; ok {
			selected = append(selected, src)
		}
	}
	return selected
}

func (s *MigrationService) migrateSource(ctx context.Context, src LegacySource, batchSize int, dryRun bool, report *models.SourceReport) error {
	sourceType := src.Type()
	total, err := src.Count(ctx)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "legacy source "+string(sourceType)+" unreachable")
	}
	report.Total = total

	for offset := 0; offset < total; offset += batchSize {
		// Interruptible between batches, never mid-row.
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		start := time.Now()
		rows, err := src.Page(ctx, offset, batchSize)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "legacy source "+string(sourceType)+" unreachable")
		}
		if len(rows) == 0 {
			break
		}

		ids := make([]int64, len(rows))
		for i, row := range rows {
			ids[i] = row.RowID()
		}
		existing, err := s.store.ExistingRowIDs(ctx, sourceType, ids)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "migration audit store unreachable")
		}

		now := time.Now().UTC()
		for _, row := range rows {
			if _, done := existing[row.RowID()]; done {
				report.Skipped++
				s.metrics.RowOutcome(sourceType, "skipped")
				continue
			}
			record, err := MapRow(row, now, s.statuses)
			if err != nil {
				report.Failures = append(report.Failures, models.RowFailure{RowID: row.RowID(), Error: err.Error()})
				s.metrics.RowOutcome(sourceType, "failed")
				continue
			}
			if dryRun {
				report.Migrated++
				continue
			}
			audit := &models.MigrationRecord{SourceType: sourceType, SourceRowID: row.RowID()}
			migrated, err := s.store.CommitRow(ctx, record, audit)
			if err != nil {
				report.Failures = append(report.Failures, models.RowFailure{RowID: row.RowID(), Error: err.Error()})
				s.metrics.RowOutcome(sourceType, "failed")
				continue
			}
			if migrated {
				report.Migrated++
				s.metrics.RowOutcome(sourceType, "migrated")
			} else {
				report.Skipped++
				s.metrics.RowOutcome(sourceType, "skipped")
			}
		}
		s.metrics.ObserveMigrationBatch(sourceType, time.Since(start))
	}

	s.logger.Sugar().Infow("source migration finished",
		"source", sourceType,
		"total", report.Total,
		"migrated", report.Migrated,
		"skipped", report.Skipped,
		"failures", len(report.Failures),
		"dry_run", dryRun,
	)
	return nil
}
