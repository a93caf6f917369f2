package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/blockedby/stockwatch-os/internal/models"
)

// RunLogRepository persists batch runs and their dispatch results.
type RunLogRepository struct {
	db *gorm.DB
}

// NewRunLogRepository creates a new run log repository.
func NewRunLogRepository(db *gorm.DB) *RunLogRepository {
	return &RunLogRepository{db: db}
}

// SaveRun stores a finished run with all its results in one transaction.
func (r *RunLogRepository) SaveRun(ctx context.Context, run *models.NotificationRun, results []models.DispatchResult) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(run).Error; err != nil {
			return fmt.Errorf("create run: %w", err)
		}
		if len(results) == 0 {
			return nil
		}
		if err := tx.Create(&results).Error; err != nil {
			return fmt.Errorf("create results: %w", err)
		}
		return nil
	})
}

// GetRun loads one run by id.
func (r *RunLogRepository) GetRun(ctx context.Context, id uuid.UUID) (*models.NotificationRun, error) {
	var run models.NotificationRun
	if err := r.db.WithContext(ctx).First(&run, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return &run, nil
}

// ListResults returns the dispatch results of one run, oldest first.
func (r *RunLogRepository) ListResults(ctx context.Context, runID uuid.UUID) ([]models.DispatchResult, error) {
	var results []models.DispatchResult
	err := r.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("created_at ASC").
		Find(&results).Error
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	return results, nil
}
