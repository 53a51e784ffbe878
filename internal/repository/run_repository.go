package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"crashanalytix-console/internal/model"
)

const (
	defaultRecentLimit = 50
	maxRecentLimit     = 500
)

type RunRepository interface {
	Record(ctx context.Context, run *model.DetectionRun) error
	Recent(ctx context.Context, limit int) ([]model.DetectionRun, error)
}

// NewRunRepository returns the gorm-backed audit repository, or a no-op one
// when db is nil.
func NewRunRepository(db *gorm.DB) RunRepository {
	if db == nil {
		return NopRunRepository{}
	}
	return &GormRunRepository{db: db}
}

type GormRunRepository struct {
	db *gorm.DB
}

func (r *GormRunRepository) Record(ctx context.Context, run *model.DetectionRun) error {
	if err := insertQuery(r.db.WithContext(ctx), run).Error; err != nil {
		return fmt.Errorf("insert detection run: %w", err)
	}
	return nil
}

func (r *GormRunRepository) Recent(ctx context.Context, limit int) ([]model.DetectionRun, error) {
	var runs []model.DetectionRun
	if err := recentQuery(r.db.WithContext(ctx), limit).Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("list detection runs: %w", err)
	}
	return runs, nil
}

// insertQuery assigns an id to runs that have none and inserts them.
func insertQuery(db *gorm.DB, run *model.DetectionRun) *gorm.DB {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	return db.Create(run)
}

func recentQuery(db *gorm.DB, limit int) *gorm.DB {
	return db.Model(&model.DetectionRun{}).
		Order("created_at DESC").
		Limit(clampLimit(limit))
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultRecentLimit
	case limit > maxRecentLimit:
		return maxRecentLimit
	default:
		return limit
	}
}

// NopRunRepository drops every run. It backs the console when no database is
// configured.
type NopRunRepository struct{}

func (NopRunRepository) Record(context.Context, *model.DetectionRun) error {
	return nil
}

func (NopRunRepository) Recent(context.Context, int) ([]model.DetectionRun, error) {
	return []model.DetectionRun{}, nil
}
