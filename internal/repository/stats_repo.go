package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/examflow/examflow-api/internal/models"
)

// StatsRepository aggregates read-only counts for the admin dashboard.
type StatsRepository interface {
	CountUsersByRole(ctx context.Context) (map[string]int64, error)
	CountPapersByStatus(ctx context.Context) (map[string]int64, error)
	CountDepartments(ctx context.Context) (int64, error)
	CountSubjects(ctx context.Context) (int64, error)
}

type statsRepository struct {
	db *gorm.DB
}

// NewStatsRepository constructs the repository.
func NewStatsRepository(db *gorm.DB) StatsRepository {
	return &statsRepository{db: db}
}

type countRow struct {
	Key   string
	Count int64
}

func (r *statsRepository) CountUsersByRole(ctx context.Context) (map[string]int64, error) {
	var rows []countRow
	err := r.db.WithContext(ctx).Model(&models.UserRole{}).
		Select("role AS key, COUNT(*) AS count").
		Group("role").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	return rowsToMap(rows), nil
}

func (r *statsRepository) CountPapersByStatus(ctx context.Context) (map[string]int64, error) {
	var rows []countRow
	err := r.db.WithContext(ctx).Model(&models.Paper{}).
		Select("status AS key, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	return rowsToMap(rows), nil
}

func (r *statsRepository) CountDepartments(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Department{}).Count(&count).Error
	return count, err
}

func (r *statsRepository) CountSubjects(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Subject{}).Count(&count).Error
	return count, err
}

func rowsToMap(rows []countRow) map[string]int64 {
	result := make(map[string]int64, len(rows))
	for _, row := range rows {
		result[row.Key] = row.Count
	}
	return result
}
