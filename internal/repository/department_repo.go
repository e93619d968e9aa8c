package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/examflow/examflow-api/internal/models"
)

// DepartmentRepository manages departments.
type DepartmentRepository interface {
	List(ctx context.Context) ([]models.Department, error)
	GetByID(ctx context.Context, id uint) (models.Department, error)
	Create(ctx context.Context, department *models.Department) error
	Update(ctx context.Context, department *models.Department) error
	Delete(ctx context.Context, id uint) error
	CountLinked(ctx context.Context, id uint) (users int64, subjects int64, err error)
}

type departmentRepository struct {
	db *gorm.DB
}

// NewDepartmentRepository constructs the repository.
func NewDepartmentRepository(db *gorm.DB) DepartmentRepository {
	return &departmentRepository{db: db}
}

func (r *departmentRepository) List(ctx context.Context) ([]models.Department, error) {
	var departments []models.Department
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&departments).Error; err != nil {
		return nil, err
	}
	return departments, nil
}

func (r *departmentRepository) GetByID(ctx context.Context, id uint) (models.Department, error) {
	var department models.Department
	if err := r.db.WithContext(ctx).First(&department, id).Error; err != nil {
		return models.Department{}, err
	}
	return department, nil
}

func (r *departmentRepository) Create(ctx context.Context, department *models.Department) error {
	return r.db.WithContext(ctx).Create(department).Error
}

func (r *departmentRepository) Update(ctx context.Context, department *models.Department) error {
	return r.db.WithContext(ctx).Save(department).Error
}

func (r *departmentRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Department{}, id).Error
}

func (r *departmentRepository) CountLinked(ctx context.Context, id uint) (int64, int64, error) {
	var users int64
	if err := r.db.WithContext(ctx).Model(&models.Profile{}).Where("department_id = ?", id).Count(&users).Error; err != nil {
		return 0, 0, err
	}

	var subjects int64
	if err := r.db.WithContext(ctx).Model(&models.Subject{}).Where("department_id = ?", id).Count(&subjects).Error; err != nil {
		return 0, 0, err
	}

	return users, subjects, nil
}
