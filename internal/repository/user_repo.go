package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/examflow/examflow-api/internal/models"
)

// UserRepository manages profiles and their role assignments. The role lives
// in a separate one-row-per-user relation so it can be reassigned without
// touching the profile.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (models.Profile, error)
	GetByEmail(ctx context.Context, email string) (models.Profile, error)
	Create(ctx context.Context, profile *models.Profile) error
	Update(ctx context.Context, profile *models.Profile) error
	Delete(ctx context.Context, id uint) error
	GetRole(ctx context.Context, userID uint) (string, error)
	SetRole(ctx context.Context, userID uint, role string) error
	ListByRoleAndDepartment(ctx context.Context, role string, departmentID uint) ([]models.Profile, error)
	ListByIDs(ctx context.Context, ids []uint) ([]models.Profile, error)
	List(ctx context.Context) ([]models.Profile, error)
	GetRoles(ctx context.Context, userIDs []uint) (map[uint]string, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository constructs a repository backed by GORM.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (models.Profile, error) {
	var profile models.Profile
	if err := r.db.WithContext(ctx).Preload("Department").First(&profile, id).Error; err != nil {
		return models.Profile{}, err
	}
	return profile, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (models.Profile, error) {
	var profile models.Profile
	if err := r.db.WithContext(ctx).Preload("Department").Where("email = ?", email).First(&profile).Error; err != nil {
		return models.Profile{}, err
	}
	return profile, nil
}

func (r *userRepository) Create(ctx context.Context, profile *models.Profile) error {
	return r.db.WithContext(ctx).Create(profile).Error
}

func (r *userRepository) Update(ctx context.Context, profile *models.Profile) error {
	return r.db.WithContext(ctx).Save(profile).Error
}

func (r *userRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&models.UserRole{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Profile{}, id).Error
	})
}

func (r *userRepository) GetRole(ctx context.Context, userID uint) (string, error) {
	var assignment models.UserRole
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&assignment).Error; err != nil {
		return "", err
	}
	return assignment.Role, nil
}

func (r *userRepository) SetRole(ctx context.Context, userID uint, role string) error {
	var assignment models.UserRole
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&assignment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r.db.WithContext(ctx).Create(&models.UserRole{UserID: userID, Role: role}).Error
	}
	if err != nil {
		return err
	}

	if assignment.Role == role {
		return nil
	}

	assignment.Role = role
	return r.db.WithContext(ctx).Save(&assignment).Error
}

func (r *userRepository) ListByRoleAndDepartment(ctx context.Context, role string, departmentID uint) ([]models.Profile, error) {
	var profiles []models.Profile
	err := r.db.WithContext(ctx).Model(&models.Profile{}).
		Joins("JOIN user_roles ON user_roles.user_id = profiles.id").
		Where("user_roles.role = ?", role).
		Where("profiles.department_id = ?", departmentID).
		Find(&profiles).Error
	if err != nil {
		return nil, err
	}
	return profiles, nil
}

func (r *userRepository) List(ctx context.Context) ([]models.Profile, error) {
	var profiles []models.Profile
	if err := r.db.WithContext(ctx).Preload("Department").Order("created_at DESC").Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}

func (r *userRepository) GetRoles(ctx context.Context, userIDs []uint) (map[uint]string, error) {
	roles := make(map[uint]string, len(userIDs))
	if len(userIDs) == 0 {
		return roles, nil
	}

	var assignments []models.UserRole
	if err := r.db.WithContext(ctx).Where("user_id IN ?", userIDs).Find(&assignments).Error; err != nil {
		return nil, err
	}
	for _, assignment := range assignments {
		roles[assignment.UserID] = assignment.Role
	}
	return roles, nil
}

func (r *userRepository) ListByIDs(ctx context.Context, ids []uint) ([]models.Profile, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var profiles []models.Profile
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}
