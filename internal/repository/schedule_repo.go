package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/examflow/examflow-api/internal/models"
)

// ScheduleRepository persists exam schedules.
type ScheduleRepository interface {
	List(ctx context.Context, status *string) ([]models.ExamSchedule, error)
	GetByID(ctx context.Context, id uint) (models.ExamSchedule, error)
	GetByPaper(ctx context.Context, paperID uint) (models.ExamSchedule, error)
	Create(ctx context.Context, schedule *models.ExamSchedule) error
	Update(ctx context.Context, schedule *models.ExamSchedule) error
}

type scheduleRepository struct {
	db *gorm.DB
}

// NewScheduleRepository constructs the repository.
func NewScheduleRepository(db *gorm.DB) ScheduleRepository {
	return &scheduleRepository{db: db}
}

func (r *scheduleRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.ExamSchedule{}).
		Preload("Paper").
		Preload("Paper.Subject")
}

func (r *scheduleRepository) List(ctx context.Context, status *string) ([]models.ExamSchedule, error) {
	query := r.baseQuery(ctx)
	if status != nil {
		query = query.Where("exam_schedules.status = ?", *status)
	}

	var schedules []models.ExamSchedule
	if err := query.Order("scheduled_at ASC").Find(&schedules).Error; err != nil {
		return nil, err
	}
	return schedules, nil
}

func (r *scheduleRepository) GetByID(ctx context.Context, id uint) (models.ExamSchedule, error) {
	var schedule models.ExamSchedule
	if err := r.baseQuery(ctx).First(&schedule, id).Error; err != nil {
		return models.ExamSchedule{}, err
	}
	return schedule, nil
}

func (r *scheduleRepository) GetByPaper(ctx context.Context, paperID uint) (models.ExamSchedule, error) {
	var schedule models.ExamSchedule
	if err := r.baseQuery(ctx).Where("paper_id = ?", paperID).First(&schedule).Error; err != nil {
		return models.ExamSchedule{}, err
	}
	return schedule, nil
}

func (r *scheduleRepository) Create(ctx context.Context, schedule *models.ExamSchedule) error {
	return r.db.WithContext(ctx).Create(schedule).Error
}

func (r *scheduleRepository) Update(ctx context.Context, schedule *models.ExamSchedule) error {
	return r.db.WithContext(ctx).Save(schedule).Error
}
