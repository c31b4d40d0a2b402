package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/attendance-ledger/internal/models"
)

type mockSource struct {
	kind     models.SourceType
	rows     []models.LegacyRow
	countErr error
	pageErr  error
}

func (m *mockSource) Type() models.SourceType { return m.kind }

func (m *mockSource) Count(ctx context.Context) (int, error) {
	if m.countErr != nil {
		return 0, m.countErr
	}
	return len(m.rows), nil
}

func (m *mockSource) Page(ctx context.Context, offset, limit int) ([]models.LegacyRow, error) {
	if m.pageErr != nil {
		return nil, m.pageErr
	}
	if offset >= len(m.rows) {
		return nil, nil
	}
	end := offset + limit
	if end > len(m.rows) {
		end = len(m.rows)
	}
	return m.rows[offset:end], nil
}

// mockMigrationStore keeps ledger and audit writes together so the atomicity
// contract of the real store holds in tests: a commit either lands both or
// neither.
type mockMigrationStore struct {
	mu        sync.Mutex
	audits    map[models.SourceType]map[int64]string
	records   map[string]models.AttendanceRecord
	commitErr map[int64]error
	lookupErr error
	commits   int
}

func newMockMigrationStore() *mockMigrationStore {
	return &mockMigrationStore{
		audits:    make(map[models.SourceType]map[int64]string),
		records:   make(map[string]models.AttendanceRecord),
		commitErr: make(map[int64]error),
	}
}

func ledgerKey(r *models.AttendanceRecord) string {
	return fmt.Sprintf("%s|%s|%s|%s", r.StudentID, r.ClassID, r.ActivityID, r.Date.Format("2006-01-02"))
}

func (m *mockMigrationStore) ExistingRowIDs(ctx context.Context, source models.SourceType, ids []int64) (map[int64]struct{}, error) {
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	existing := make(map[int64]struct{})
	for _, id := range ids {
		if _, ok := m.audits[source][id]; ok {
			existing[id] = struct{}{}
		}
	}
	return existing, nil
}

func (m *mockMigrationStore) CommitRow(ctx context.Context, record *models.AttendanceRecord, audit *models.MigrationRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.commitErr[audit.SourceRowID]; err != nil {
		return false, err
	}
	if m.audits[audit.SourceType] == nil {
		m.audits[audit.SourceType] = make(map[int64]string)
	}
	if _, ok := m.audits[audit.SourceType][audit.SourceRowID]; ok {
		return false, nil
	}
	if record.ID == "" {
		record.ID = fmt.Sprintf("rec-%d", len(m.records)+1)
	}
	m.records[ledgerKey(record)] = *record
	m.audits[audit.SourceType][audit.SourceRowID] = record.ID
	m.commits++
	return true, nil
}

func (m *mockMigrationStore) auditCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, bySource := range m.audits {
		total += len(bySource)
	}
	return total
}

func testDate(day int) time.Time {
	return time.Date(2024, 5, day, 0, 0, 0, 0, time.UTC)
}

func presenceRows(n int) []models.LegacyRow {
	rows := make([]models.LegacyRow, n)
	for i := 0; i < n; i++ {
		rows[i] = models.SourceARow{
			ID:         int64(i + 1),
			StudentID:  fmt.Sprintf("student-%d", i+1),
			ClassID:    "class-1",
			ActivityID: "activity-1",
			Date:       testDate(2),
			Present:    true,
		}
	}
	return rows
}

func newTestEngine(store *mockMigrationStore, sources ...LegacySource) *MigrationService {
	return NewMigrationService(sources, store, DefaultStatusTable(), nil, nil, nil)
}

func TestMigrateIdempotent(t *testing.T) {
	store := newMockMigrationStore()
	source := &mockSource{kind: models.SourceTypePresenceLog, rows: presenceRows(5)}
	engine := newTestEngine(store, source)

	report, err := engine.Migrate(context.Background(), MigrateOptions{BatchSize: 2})
	require.NoError(t, err)
	sr := report.Sources[models.SourceTypePresenceLog]
	assert.Equal(t, 5, sr.Total)
	assert.Equal(t, 5, sr.Migrated)
	assert.Equal(t, 0, sr.Skipped)
	assert.Empty(t, sr.Failures)
	assert.Equal(t, 5, store.auditCount())
	assert.Len(t, store.records, 5)

	// A second full run reprocesses nothing.
	report, err = engine.Migrate(context.Background(), MigrateOptions{BatchSize: 2})
	require.NoError(t, err)
	sr = report.Sources[models.SourceTypePresenceLog]
	assert.Equal(t, 0, sr.Migrated)
	assert.Equal(t, 5, sr.Skipped)
	assert.Equal(t, 5, store.auditCount())
	assert.Len(t, store.records, 5)
}

func TestMigrateDryRunWritesNothing(t *testing.T) {
	store := newMockMigrationStore()
	source := &mockSource{kind: models.SourceTypePresenceLog, rows: presenceRows(3)}
	engine := newTestEngine(store, source)

	report, err := engine.Migrate(context.Background(), MigrateOptions{DryRun: true})
	require.NoError(t, err)
	sr := report.Sources[models.SourceTypePresenceLog]
	assert.True(t, report.DryRun)
	assert.Equal(t, 3, sr.Migrated)
	assert.Equal(t, 0, store.auditCount())
	assert.Empty(t, store.records)
}

func TestMigrateRowFailureDoesNotAbortBatch(t *testing.T) {
	rows := presenceRows(3)
	bad := rows[1].(models.SourceARow)
	bad.StudentID = ""
	rows[1] = bad

	store := newMockMigrationStore()
	source := &mockSource{kind: models.SourceTypePresenceLog, rows: rows}
	engine := newTestEngine(store, source)

	report, err := engine.Migrate(context.Background(), MigrateOptions{})
	require.NoError(t, err)
	sr := report.Sources[models.SourceTypePresenceLog]
	assert.Equal(t, 2, sr.Migrated)
	require.Len(t, sr.Failures, 1)
	assert.Equal(t, int64(2), sr.Failures[0].RowID)
	assert.Equal(t, 2, store.auditCount())
}

func TestMigrateCommitFaultLeavesRowRetriable(t *testing.T) {
	store := newMockMigrationStore()
	store.commitErr[2] = fmt.Errorf("simulated transaction failure")
	source := &mockSource{kind: models.SourceTypePresenceLog, rows: presenceRows(3)}
	engine := newTestEngine(store, source)

	report, err := engine.Migrate(context.Background(), MigrateOptions{})
	require.NoError(t, err)
	sr := report.Sources[models.SourceTypePresenceLog]
	assert.Equal(t, 2, sr.Migrated)
	require.Len(t, sr.Failures, 1)
	assert.Contains(t, sr.Failures[0].Error, "simulated transaction failure")

	// Neither half of the row landed, so the rerun picks it up.
	assert.Equal(t, 2, store.auditCount())
	assert.Len(t, store.records, 2)

	delete(store.commitErr, 2)
	report, err = engine.Migrate(context.Background(), MigrateOptions{})
	require.NoError(t, err)
	sr = report.Sources[models.SourceTypePresenceLog]
	assert.Equal(t, 1, sr.Migrated)
	assert.Equal(t, 2, sr.Skipped)
	assert.Equal(t, 3, store.auditCount())
}

func TestMigrateSourceUnreachableIsFatal(t *testing.T) {
	store := newMockMigrationStore()
	broken := &mockSource{kind: models.SourceTypeConvocation, countErr: fmt.Errorf("connection refused")}
	healthy := &mockSource{kind: models.SourceTypePresenceLog, rows: presenceRows(2)}
	engine := newTestEngine(store, healthy, broken)

	report, err := engine.Migrate(context.Background(), MigrateOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unreachable")
	// The healthy source still completes.
	assert.Equal(t, 2, report.Sources[models.SourceTypePresenceLog].Migrated)
}

func TestMigrateSourceSelection(t *testing.T) {
	store := newMockMigrationStore()
	a := &mockSource{kind: models.SourceTypePresenceLog, rows: presenceRows(2)}
	c := &mockSource{kind: models.SourceTypeConvocation, rows: []models.LegacyRow{
		models.SourceCRow{ID: 1, StudentID: "student-9", ClassID: "class-1", ActivityID: "activity-1", Date: testDate(3), Convoked: true},
	}}
	engine := newTestEngine(store, a, c)

	report, err := engine.Migrate(context.Background(), MigrateOptions{Sources: []string{"convocation"}})
	require.NoError(t, err)
	assert.NotContains(t, report.Sources, models.SourceTypePresenceLog)
	assert.Equal(t, 1, report.Sources[models.SourceTypeConvocation].Migrated)
}

func TestMigrateRejectsUnknownSource(t *testing.T) {
	engine := newTestEngine(newMockMigrationStore())
	_, err := engine.Migrate(context.Background(), MigrateOptions{Sources: []string{"spreadsheet"}})
	require.Error(t, err)
}

func TestMigrateParallelSources(t *testing.T) {
	store := newMockMigrationStore()
	a := &mockSource{kind: models.SourceTypePresenceLog, rows: presenceRows(4)}
	summoned := true
	b := &mockSource{kind: models.SourceTypeActivityCall, rows: []models.LegacyRow{
		models.SourceBRow{ID: 1, StudentID: "student-10", ClassID: "class-2", ActivityID: "activity-1", Date: testDate(6), Status: "falta", Summoned: &summoned},
	}}
	c := &mockSource{kind: models.SourceTypeConvocation, rows: []models.LegacyRow{
		models.SourceCRow{ID: 1, StudentID: "student-11", ClassID: "class-2", ActivityID: "activity-1", Date: testDate(7), Convoked: false},
	}}
	engine := newTestEngine(store, a, b, c)

	report, err := engine.Migrate(context.Background(), MigrateOptions{Parallel: true, BatchSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 4, report.Sources[models.SourceTypePresenceLog].Migrated)
	assert.Equal(t, 1, report.Sources[models.SourceTypeActivityCall].Migrated)
	assert.Equal(t, 1, report.Sources[models.SourceTypeConvocation].Migrated)
	assert.Equal(t, 6, store.auditCount())
}

func TestMigrateInterruptedBetweenBatches(t *testing.T) {
	store := newMockMigrationStore()
	source := &mockSource{kind: models.SourceTypePresenceLog, rows: presenceRows(10)}
	engine := newTestEngine(store, source)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := engine.Migrate(ctx, MigrateOptions{BatchSize: 3})
	require.Error(t, err)
	// Nothing was left half-written; re-invoking completes the run.
	report, err := engine.Migrate(context.Background(), MigrateOptions{BatchSize: 3})
	require.NoError(t, err)
	sr := report.Sources[models.SourceTypePresenceLog]
	assert.Equal(t, 10, sr.Migrated+sr.Skipped)
	assert.Equal(t, 10, store.auditCount())
}

// Seeds one row per legacy source for the same tuple and checks the bulletin
// derived from the migrated ledger.
func TestMigrateEndToEndBulletin(t *testing.T) {
	reason := "medical"
	tuple := struct {
		student, class, activity string
		date                     time.Time
	}{"student-s", "class-c", "activity-a", testDate(2)}

	a := &mockSource{kind: models.SourceTypePresenceLog, rows: []models.LegacyRow{
		models.SourceARow{ID: 1, StudentID: tuple.student, ClassID: tuple.class, ActivityID: tuple.activity, Date: tuple.date, Present: false, Justification: &reason},
	}}

	store := newMockMigrationStore()
	engine := newTestEngine(store, a)
	report, err := engine.Migrate(context.Background(), MigrateOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, report.Sources[models.SourceTypePresenceLog].Migrated)

	var stored models.AttendanceRecord
	for _, record := range store.records {
		stored = record
	}
	assert.Equal(t, models.StatusAbsent, stored.Status)
	assert.True(t, stored.Summoned)
	require.NotNil(t, stored.Justification)
	assert.Equal(t, "medical", *stored.Justification)

	ledger := &mockLedger{records: []models.AttendanceRecord{stored}}
	aggregation := NewAggregationService(ledger, &mockConfigs{}, 70.0, nil, nil, nil)
	bulletin, err := aggregation.StudentBulletin(context.Background(), BulletinRequest{
		StudentID: tuple.student,
		ClassID:   tuple.class,
		Month:     5,
		Year:      2024,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, bulletin.Convocations)
	assert.Equal(t, 0, bulletin.Presences)
	assert.Equal(t, 1, bulletin.Absences)
	assert.Equal(t, 0.00, bulletin.Percentage)
}
