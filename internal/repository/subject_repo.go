package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/examflow/examflow-api/internal/models"
)

// SubjectRepository manages subjects and teacher-subject assignments.
type SubjectRepository interface {
	List(ctx context.Context, departmentID *uint) ([]models.Subject, error)
	GetByID(ctx context.Context, id uint) (models.Subject, error)
	Create(ctx context.Context, subject *models.Subject) error
	Update(ctx context.Context, subject *models.Subject) error
	Delete(ctx context.Context, id uint) error
	AssignTeacher(ctx context.Context, teacherID, subjectID uint) error
	UnassignTeacher(ctx context.Context, teacherID, subjectID uint) error
	DeleteAssignmentsByTeacher(ctx context.Context, teacherID uint) error
	IsAssigned(ctx context.Context, teacherID, subjectID uint) (bool, error)
	ListAssignedSubjects(ctx context.Context, teacherID uint) ([]models.Subject, error)
	ListTeacherIDsBySubjects(ctx context.Context, subjectIDs []uint) ([]uint, error)
}

type subjectRepository struct {
	db *gorm.DB
}

// NewSubjectRepository constructs the repository.
func NewSubjectRepository(db *gorm.DB) SubjectRepository {
	return &subjectRepository{db: db}
}

func (r *subjectRepository) List(ctx context.Context, departmentID *uint) ([]models.Subject, error) {
	query := r.db.WithContext(ctx).Model(&models.Subject{}).Preload("Department")
	if departmentID != nil {
		query = query.Where("department_id = ?", *departmentID)
	}

	var subjects []models.Subject
	if err := query.Order("name ASC").Find(&subjects).Error; err != nil {
		return nil, err
	}
	return subjects, nil
}

func (r *subjectRepository) GetByID(ctx context.Context, id uint) (models.Subject, error) {
	var subject models.Subject
	if err := r.db.WithContext(ctx).Preload("Department").First(&subject, id).Error; err != nil {
		return models.Subject{}, err
	}
	return subject, nil
}

func (r *subjectRepository) Create(ctx context.Context, subject *models.Subject) error {
	return r.db.WithContext(ctx).Create(subject).Error
}

func (r *subjectRepository) Update(ctx context.Context, subject *models.Subject) error {
	return r.db.WithContext(ctx).Save(subject).Error
}

func (r *subjectRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Subject{}, id).Error
}

func (r *subjectRepository) AssignTeacher(ctx context.Context, teacherID, subjectID uint) error {
	assignment := models.TeacherSubjectAssignment{TeacherID: teacherID, SubjectID: subjectID}
	return r.db.WithContext(ctx).FirstOrCreate(&assignment, models.TeacherSubjectAssignment{
		TeacherID: teacherID,
		SubjectID: subjectID,
	}).Error
}

func (r *subjectRepository) UnassignTeacher(ctx context.Context, teacherID, subjectID uint) error {
	return r.db.WithContext(ctx).
		Where("teacher_id = ? AND subject_id = ?", teacherID, subjectID).
		Delete(&models.TeacherSubjectAssignment{}).Error
}

func (r *subjectRepository) DeleteAssignmentsByTeacher(ctx context.Context, teacherID uint) error {
	return r.db.WithContext(ctx).
		Where("teacher_id = ?", teacherID).
		Delete(&models.TeacherSubjectAssignment{}).Error
}

func (r *subjectRepository) IsAssigned(ctx context.Context, teacherID, subjectID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.TeacherSubjectAssignment{}).
		Where("teacher_id = ? AND subject_id = ?", teacherID, subjectID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *subjectRepository) ListAssignedSubjects(ctx context.Context, teacherID uint) ([]models.Subject, error) {
	var subjects []models.Subject
	err := r.db.WithContext(ctx).Model(&models.Subject{}).
		Joins("JOIN teacher_subject_assignments ON teacher_subject_assignments.subject_id = subjects.id").
		Where("teacher_subject_assignments.teacher_id = ?", teacherID).
		Preload("Department").
		Find(&subjects).Error
	if err != nil {
		return nil, err
	}
	return subjects, nil
}

func (r *subjectRepository) ListTeacherIDsBySubjects(ctx context.Context, subjectIDs []uint) ([]uint, error) {
	if len(subjectIDs) == 0 {
		return nil, nil
	}

	var teacherIDs []uint
	err := r.db.WithContext(ctx).Model(&models.TeacherSubjectAssignment{}).
		Distinct("teacher_id").
		Where("subject_id IN ?", subjectIDs).
		Pluck("teacher_id", &teacherIDs).Error
	if err != nil {
		return nil, err
	}
	return teacherIDs, nil
}
