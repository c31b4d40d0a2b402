package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/attendance-ledger/internal/models"
)

// ConfigRepository reads attendance policies. Policies are written by the
// administrative app; this subsystem only consumes them.
type ConfigRepository struct {
	db *sqlx.DB
}

// NewConfigRepository constructs the repository.
func NewConfigRepository(db *sqlx.DB) *ConfigRepository {
	return &ConfigRepository{db: db}
}

const configColumns = `id, class_id, activity_id, minimum_percentage, mandatory, weight, active, created_at, updated_at`

// GetByClassActivity returns the active policy for a class+activity pair, or
// nil when none is configured.
func (r *ConfigRepository) GetByClassActivity(ctx context.Context, classID, activityID string) (*models.AttendanceConfig, error) {
	query := `SELECT ` + configColumns + ` FROM attendance_configs WHERE class_id = $1 AND activity_id = $2 AND active = true`
	var cfg models.AttendanceConfig
	if err := r.db.GetContext(ctx, &cfg, query, classID, activityID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get attendance config: %w", err)
	}
	return &cfg, nil
}

// ListActiveByClass returns every active policy configured for a class.
func (r *ConfigRepository) ListActiveByClass(ctx context.Context, classID string) ([]models.AttendanceConfig, error) {
	query := `SELECT ` + configColumns + ` FROM attendance_configs WHERE class_id = $1 AND active = true ORDER BY activity_id ASC`
	var configs []models.AttendanceConfig
	if err := r.db.SelectContext(ctx, &configs, query, classID); err != nil {
		return nil, fmt.Errorf("list attendance configs: %w", err)
	}
	return configs, nil
}
