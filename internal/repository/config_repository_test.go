package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func configRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "class_id", "activity_id", "minimum_percentage", "mandatory", "weight", "active", "created_at", "updated_at",
	})
}

func TestConfigRepositoryGetByClassActivity(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewConfigRepository(db)

	rows := configRows().AddRow("cfg-1", "class-1", "activity-1", 85.0, true, 1.0, true, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM attendance_configs WHERE class_id = $1 AND activity_id = $2 AND active = true")).
		WithArgs("class-1", "activity-1").
		WillReturnRows(rows)

	cfg, err := repo.GetByClassActivity(context.Background(), "class-1", "activity-1")
	require.NoError(t, err)
	require.NotNil(t, cfg)
	require.Equal(t, 85.0, cfg.MinimumPercentage)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConfigRepositoryGetByClassActivityMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewConfigRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM attendance_configs WHERE class_id = $1 AND activity_id = $2 AND active = true")).
		WithArgs("class-1", "activity-9").
		WillReturnRows(configRows())

	cfg, err := repo.GetByClassActivity(context.Background(), "class-1", "activity-9")
	require.NoError(t, err, "a missing policy is not an error")
	require.Nil(t, cfg)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConfigRepositoryListActiveByClass(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewConfigRepository(db)

	rows := configRows().
		AddRow("cfg-1", "class-1", "activity-1", 75.0, true, 1.0, true, time.Now(), time.Now()).
		AddRow("cfg-2", "class-1", "activity-2", 80.0, false, 2.0, true, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM attendance_configs WHERE class_id = $1 AND active = true ORDER BY activity_id ASC")).
		WithArgs("class-1").
		WillReturnRows(rows)

	configs, err := repo.ListActiveByClass(context.Background(), "class-1")
	require.NoError(t, err)
	require.Len(t, configs, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}
