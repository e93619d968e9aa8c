package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/examflow/examflow-api/internal/models"
)

// ErrSelectionConflict indicates the selection target was no longer approved
// when the cascade ran, typically because a concurrent selection won.
var ErrSelectionConflict = errors.New("paper is no longer approved")

// SelectionFeedback is written to approved siblings force-rejected by the
// selection cascade.
const SelectionFeedback = "Another paper was selected for this exam"

// PaperFilter narrows paper queries.
type PaperFilter struct {
	SubjectID     *uint
	ExamType      *string
	Status        *string
	UploadedBy    *uint
	DepartmentID  *uint
	ExcludeStatus *string
	IsSelected    *bool
}

// PaperRepository defines data operations for exam papers.
type PaperRepository interface {
	List(ctx context.Context, filter PaperFilter) ([]models.Paper, error)
	GetByID(ctx context.Context, id uint) (models.Paper, error)
	Create(ctx context.Context, paper *models.Paper) error
	Update(ctx context.Context, paper *models.Paper) error
	CountVersions(ctx context.Context, subjectID uint, examType string, uploadedBy uint, setName string) (int64, error)
	Select(ctx context.Context, paperID, subjectID uint, examType string) error
}

type paperRepository struct {
	db *gorm.DB
}

// NewPaperRepository instantiates the repository.
func NewPaperRepository(db *gorm.DB) PaperRepository {
	return &paperRepository{db: db}
}

func (r *paperRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Paper{}).
		Preload("Subject").
		Preload("Subject.Department").
		Preload("Uploader")
}

func (r *paperRepository) List(ctx context.Context, filter PaperFilter) ([]models.Paper, error) {
	query := r.baseQuery(ctx)

	if filter.SubjectID != nil {
		query = query.Where("papers.subject_id = ?", *filter.SubjectID)
	}

	if filter.ExamType != nil {
		query = query.Where("papers.exam_type = ?", *filter.ExamType)
	}

	if filter.Status != nil {
		query = query.Where("papers.status = ?", *filter.Status)
	}

	if filter.UploadedBy != nil {
		query = query.Where("papers.uploaded_by = ?", *filter.UploadedBy)
	}

	if filter.ExcludeStatus != nil {
		query = query.Where("papers.status <> ?", *filter.ExcludeStatus)
	}

	if filter.IsSelected != nil {
		query = query.Where("papers.is_selected = ?", *filter.IsSelected)
	}

	if filter.DepartmentID != nil {
		query = query.
			Joins("JOIN subjects ON subjects.id = papers.subject_id").
			Where("subjects.department_id = ?", *filter.DepartmentID)
	}

	// The id tiebreaker keeps the order deterministic when uploaded_at
	// collides; anonymous review labels depend on a stable scan order.
	var papers []models.Paper
	if err := query.Order("papers.uploaded_at DESC").Order("papers.id DESC").Find(&papers).Error; err != nil {
		return nil, err
	}

	return papers, nil
}

func (r *paperRepository) GetByID(ctx context.Context, id uint) (models.Paper, error) {
	var paper models.Paper
	if err := r.baseQuery(ctx).First(&paper, id).Error; err != nil {
		return models.Paper{}, err
	}

	return paper, nil
}

func (r *paperRepository) Create(ctx context.Context, paper *models.Paper) error {
	return r.db.WithContext(ctx).Create(paper).Error
}

func (r *paperRepository) Update(ctx context.Context, paper *models.Paper) error {
	return r.db.WithContext(ctx).Save(paper).Error
}

func (r *paperRepository) CountVersions(ctx context.Context, subjectID uint, examType string, uploadedBy uint, setName string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Paper{}).
		Where("subject_id = ?", subjectID).
		Where("exam_type = ?", examType).
		Where("uploaded_by = ?", uploadedBy).
		Where("set_name = ?", setName).
		Count(&count).Error
	return count, err
}

// Select applies the three-step selection cascade as one transaction: clear
// the selected flag on siblings, lock the target while it is still approved,
// then force-reject the remaining approved siblings. The step order is
// idempotent, so a replay after a partial failure converges to the same end
// state.
func (r *paperRepository) Select(ctx context.Context, paperID, subjectID uint, examType string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		group := tx.Model(&models.Paper{}).
			Where("subject_id = ?", subjectID).
			Where("exam_type = ?", examType)

		if err := group.Session(&gorm.Session{}).
			Where("id <> ?", paperID).
			Where("is_selected = ?", true).
			Update("is_selected", false).Error; err != nil {
			return err
		}

		lock := tx.Model(&models.Paper{}).
			Where("id = ?", paperID).
			Where("status IN ?", []string{models.PaperStatusApproved, models.PaperStatusLocked}).
			Updates(map[string]interface{}{
				"is_selected": true,
				"status":      models.PaperStatusLocked,
			})
		if lock.Error != nil {
			return lock.Error
		}
		if lock.RowsAffected == 0 {
			return ErrSelectionConflict
		}

		return group.Session(&gorm.Session{}).
			Where("id <> ?", paperID).
			Where("status = ?", models.PaperStatusApproved).
			Updates(map[string]interface{}{
				"status":   models.PaperStatusRejected,
				"feedback": SelectionFeedback,
			}).Error
	})
}
