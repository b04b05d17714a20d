// Package repository persists network snapshots and analysis tasks in MySQL.
package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/stywzn/qdashboard/internal/model"
)

var ErrTaskNotFound = errors.New("analysis task not found")

const maxSnapshotPage = 500

type Repository struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) SaveSnapshot(ctx context.Context, s *model.NetworkSnapshot) error {
	if err := r.db.WithContext(ctx).Create(s).Error; err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// ListSnapshots returns the newest snapshots first.
func (r *Repository) ListSnapshots(ctx context.Context, limit int) ([]model.NetworkSnapshot, error) {
	if limit <= 0 || limit > maxSnapshotPage {
		limit = maxSnapshotPage
	}
	var out []model.NetworkSnapshot
	if err := r.db.WithContext(ctx).Order("id desc").Limit(limit).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return out, nil
}

func (r *Repository) CreateTask(ctx context.Context, t *model.AnalysisTask) error {
	if err := r.db.WithContext(ctx).Create(t).Error; err != nil {
		return fmt.Errorf("create task %s: %w", t.ID, err)
	}
	return nil
}

func (r *Repository) GetTask(ctx context.Context, id string) (*model.AnalysisTask, error) {
	var t model.AnalysisTask
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return &t, nil
}

// UpdateTask sets the status, result and error columns of a task.
func (r *Repository) UpdateTask(ctx context.Context, id, status, result, errMsg string) error {
	res := r.db.WithContext(ctx).Model(&model.AnalysisTask{}).Where("id = ?", id).Updates(map[string]any{
		"status": status,
		"result": result,
		"error":  errMsg,
	})
	if res.Error != nil {
		return fmt.Errorf("update task %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrTaskNotFound
	}
	return nil
}
