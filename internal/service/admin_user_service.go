package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/examflow/examflow-api/internal/dto"
	"github.com/examflow/examflow-api/internal/models"
	"github.com/examflow/examflow-api/internal/repository"
)

var (
	// ErrUserNotFound indicates the referenced profile does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailTaken indicates the email already belongs to another profile.
	ErrEmailTaken = errors.New("email already in use")
	// ErrDepartmentNotFound indicates the referenced department does not exist.
	ErrDepartmentNotFound = errors.New("department not found")
	// ErrDepartmentInUse indicates the department still has users or subjects.
	ErrDepartmentInUse = errors.New("department has linked users or subjects")
	// ErrSelfDemotion indicates an admin tried to change their own account.
	ErrSelfDemotion = errors.New("admins cannot modify their own role or delete themselves")
	// ErrRoleNeedsDepartment indicates a hod or teacher role without a department.
	ErrRoleNeedsDepartment = errors.New("teacher and hod accounts require a department")
)

// AdminUserService manages accounts, departments, subjects and
// teacher-subject assignments. Every operation requires the admin role.
type AdminUserService interface {
	ListUsers(ctx context.Context, actor Actor) ([]dto.UserResponse, error)
	CreateUser(ctx context.Context, actor Actor, payload dto.AdminUserCreateRequest) (dto.UserResponse, error)
	UpdateUser(ctx context.Context, actor Actor, id uint, payload dto.AdminUserUpdateRequest) (dto.UserResponse, error)
	DeleteUser(ctx context.Context, actor Actor, id uint) error

	ListDepartments(ctx context.Context, actor Actor) ([]dto.DepartmentResponse, error)
	CreateDepartment(ctx context.Context, actor Actor, payload dto.DepartmentRequest) (dto.DepartmentResponse, error)
	UpdateDepartment(ctx context.Context, actor Actor, id uint, payload dto.DepartmentRequest) (dto.DepartmentResponse, error)
	DeleteDepartment(ctx context.Context, actor Actor, id uint) error

	ListSubjects(ctx context.Context, actor Actor, departmentID *uint) ([]dto.SubjectResponse, error)
	CreateSubject(ctx context.Context, actor Actor, payload dto.SubjectRequest) (dto.SubjectResponse, error)
	UpdateSubject(ctx context.Context, actor Actor, id uint, payload dto.SubjectRequest) (dto.SubjectResponse, error)
	DeleteSubject(ctx context.Context, actor Actor, id uint) error

	AssignSubject(ctx context.Context, actor Actor, payload dto.SubjectAssignmentRequest) error
	UnassignSubject(ctx context.Context, actor Actor, payload dto.SubjectAssignmentRequest) error
}

type adminUserService struct {
	users       repository.UserRepository
	departments repository.DepartmentRepository
	subjects    repository.SubjectRepository
	audit       AuditRecorder
	validator   *validator.Validate
	logger      zerolog.Logger
	hashCost    int
}

// NewAdminUserService constructs the admin management service.
func NewAdminUserService(users repository.UserRepository, departments repository.DepartmentRepository, subjects repository.SubjectRepository, audit AuditRecorder, validate *validator.Validate, logger zerolog.Logger) AdminUserService {
	return &adminUserService{
		users:       users,
		departments: departments,
		subjects:    subjects,
		audit:       audit,
		validator:   validate,
		logger:      logger.With().Str("component", "admin_user_service").Logger(),
		hashCost:    bcrypt.DefaultCost,
	}
}

func (s *adminUserService) requireAdmin(actor Actor) error {
	if actor.Role != models.RoleAdmin {
		return ErrRoleNotAllowed
	}
	return nil
}

func (s *adminUserService) ListUsers(ctx context.Context, actor Actor) ([]dto.UserResponse, error) {
	if err := s.requireAdmin(actor); err != nil {
		return nil, err
	}

	profiles, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(profiles))
	for _, profile := range profiles {
		ids = append(ids, profile.ID)
	}
	roles, err := s.users.GetRoles(ctx, ids)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.UserResponse, 0, len(profiles))
	for _, profile := range profiles {
		responses = append(responses, dto.NewUserResponse(profile, roles[profile.ID]))
	}
	return responses, nil
}

func (s *adminUserService) CreateUser(ctx context.Context, actor Actor, payload dto.AdminUserCreateRequest) (dto.UserResponse, error) {
	if err := s.requireAdmin(actor); err != nil {
		return dto.UserResponse{}, err
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.UserResponse{}, err
	}
	if err := roleDepartmentConsistent(payload.Role, payload.DepartmentID); err != nil {
		return dto.UserResponse{}, err
	}

	email := strings.ToLower(strings.TrimSpace(payload.Email))
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return dto.UserResponse{}, ErrEmailTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.UserResponse{}, err
	}

	if payload.DepartmentID != nil {
		if _, err := s.departments.GetByID(ctx, *payload.DepartmentID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return dto.UserResponse{}, ErrDepartmentNotFound
			}
			return dto.UserResponse{}, err
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(payload.Password), s.hashCost)
	if err != nil {
		return dto.UserResponse{}, err
	}

	profile := models.Profile{
		FullName:     strings.TrimSpace(payload.FullName),
		Email:        email,
		PasswordHash: string(hash),
		DepartmentID: payload.DepartmentID,
	}
	if err := s.users.Create(ctx, &profile); err != nil {
		return dto.UserResponse{}, err
	}
	if err := s.users.SetRole(ctx, profile.ID, payload.Role); err != nil {
		return dto.UserResponse{}, err
	}

	_, _ = s.audit.Record(ctx, actor, AuditEntry{
		Action:     "user.created",
		EntityType: "user",
		EntityID:   &profile.ID,
		Details:    datatypes.JSONMap{"email": email, "role": payload.Role},
	})

	return dto.NewUserResponse(profile, payload.Role), nil
}

func (s *adminUserService) UpdateUser(ctx context.Context, actor Actor, id uint, payload dto.AdminUserUpdateRequest) (dto.UserResponse, error) {
	if err := s.requireAdmin(actor); err != nil {
		return dto.UserResponse{}, err
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.UserResponse{}, err
	}
	if id == actor.ID && payload.Role != nil {
		return dto.UserResponse{}, ErrSelfDemotion
	}

	profile, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.UserResponse{}, ErrUserNotFound
		}
		return dto.UserResponse{}, err
	}

	if payload.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*payload.Email))
		if email != profile.Email {
			if existing, err := s.users.GetByEmail(ctx, email); err == nil && existing.ID != id {
				return dto.UserResponse{}, ErrEmailTaken
			} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return dto.UserResponse{}, err
			}
			profile.Email = email
		}
	}
	if payload.FullName != nil {
		profile.FullName = strings.TrimSpace(*payload.FullName)
	}
	if payload.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*payload.Password), s.hashCost)
		if err != nil {
			return dto.UserResponse{}, err
		}
		profile.PasswordHash = string(hash)
	}
	if payload.DepartmentID != nil {
		if _, err := s.departments.GetByID(ctx, *payload.DepartmentID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return dto.UserResponse{}, ErrDepartmentNotFound
			}
			return dto.UserResponse{}, err
		}
		profile.DepartmentID = payload.DepartmentID
	}

	role, err := s.users.GetRole(ctx, id)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.UserResponse{}, err
	}
	if payload.Role != nil {
		role = *payload.Role
	}
	if err := roleDepartmentConsistent(role, profile.DepartmentID); err != nil {
		return dto.UserResponse{}, err
	}

	if err := s.users.Update(ctx, &profile); err != nil {
		return dto.UserResponse{}, err
	}
	if payload.Role != nil {
		if err := s.users.SetRole(ctx, id, *payload.Role); err != nil {
			return dto.UserResponse{}, err
		}
	}

	_, _ = s.audit.Record(ctx, actor, AuditEntry{
		Action:     "user.updated",
		EntityType: "user",
		EntityID:   &id,
		Details:    datatypes.JSONMap{"role": role},
	})

	return dto.NewUserResponse(profile, role), nil
}

func (s *adminUserService) DeleteUser(ctx context.Context, actor Actor, id uint) error {
	if err := s.requireAdmin(actor); err != nil {
		return err
	}
	if id == actor.ID {
		return ErrSelfDemotion
	}

	if _, err := s.users.GetByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	if err := s.subjects.DeleteAssignmentsByTeacher(ctx, id); err != nil {
		return err
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}

	_, _ = s.audit.Record(ctx, actor, AuditEntry{
		Action:     "user.deleted",
		EntityType: "user",
		EntityID:   &id,
	})

	return nil
}

func (s *adminUserService) ListDepartments(ctx context.Context, actor Actor) ([]dto.DepartmentResponse, error) {
	if err := s.requireAdmin(actor); err != nil {
		return nil, err
	}

	departments, err := s.departments.List(ctx)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.DepartmentResponse, 0, len(departments))
	for _, department := range departments {
		responses = append(responses, dto.NewDepartmentResponse(department))
	}
	return responses, nil
}

func (s *adminUserService) CreateDepartment(ctx context.Context, actor Actor, payload dto.DepartmentRequest) (dto.DepartmentResponse, error) {
	if err := s.requireAdmin(actor); err != nil {
		return dto.DepartmentResponse{}, err
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.DepartmentResponse{}, err
	}

	department := models.Department{
		Name: strings.TrimSpace(payload.Name),
		Code: strings.ToUpper(strings.TrimSpace(payload.Code)),
	}
	if err := s.departments.Create(ctx, &department); err != nil {
		return dto.DepartmentResponse{}, err
	}

	_, _ = s.audit.Record(ctx, actor, AuditEntry{
		Action:     "department.created",
		EntityType: "department",
		EntityID:   &department.ID,
		Details:    datatypes.JSONMap{"name": department.Name},
	})

	return dto.NewDepartmentResponse(department), nil
}

func (s *adminUserService) UpdateDepartment(ctx context.Context, actor Actor, id uint, payload dto.DepartmentRequest) (dto.DepartmentResponse, error) {
	if err := s.requireAdmin(actor); err != nil {
		return dto.DepartmentResponse{}, err
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.DepartmentResponse{}, err
	}

	department, err := s.departments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.DepartmentResponse{}, ErrDepartmentNotFound
		}
		return dto.DepartmentResponse{}, err
	}

	department.Name = strings.TrimSpace(payload.Name)
	if payload.Code != "" {
		department.Code = strings.ToUpper(strings.TrimSpace(payload.Code))
	}
	if err := s.departments.Update(ctx, &department); err != nil {
		return dto.DepartmentResponse{}, err
	}

	_, _ = s.audit.Record(ctx, actor, AuditEntry{
		Action:     "department.updated",
		EntityType: "department",
		EntityID:   &id,
	})

	return dto.NewDepartmentResponse(department), nil
}

// DeleteDepartment refuses to remove a department that still has users or
// subjects attached.
func (s *adminUserService) DeleteDepartment(ctx context.Context, actor Actor, id uint) error {
	if err := s.requireAdmin(actor); err != nil {
		return err
	}

	if _, err := s.departments.GetByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrDepartmentNotFound
		}
		return err
	}

	users, subjects, err := s.departments.CountLinked(ctx, id)
	if err != nil {
		return err
	}
	if users > 0 || subjects > 0 {
		return ErrDepartmentInUse
	}

	if err := s.departments.Delete(ctx, id); err != nil {
		return err
	}

	_, _ = s.audit.Record(ctx, actor, AuditEntry{
		Action:     "department.deleted",
		EntityType: "department",
		EntityID:   &id,
	})

	return nil
}

func (s *adminUserService) ListSubjects(ctx context.Context, actor Actor, departmentID *uint) ([]dto.SubjectResponse, error) {
	if err := s.requireAdmin(actor); err != nil {
		return nil, err
	}

	subjects, err := s.subjects.List(ctx, departmentID)
	if err != nil {
		return nil, err
	}
	return dto.NewSubjectResponseSlice(subjects), nil
}

func (s *adminUserService) CreateSubject(ctx context.Context, actor Actor, payload dto.SubjectRequest) (dto.SubjectResponse, error) {
	if err := s.requireAdmin(actor); err != nil {
		return dto.SubjectResponse{}, err
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.SubjectResponse{}, err
	}

	if _, err := s.departments.GetByID(ctx, payload.DepartmentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubjectResponse{}, ErrDepartmentNotFound
		}
		return dto.SubjectResponse{}, err
	}

	subject := models.Subject{
		Name:         strings.TrimSpace(payload.Name),
		Code:         strings.ToUpper(strings.TrimSpace(payload.Code)),
		Semester:     payload.Semester,
		DepartmentID: payload.DepartmentID,
	}
	if err := s.subjects.Create(ctx, &subject); err != nil {
		return dto.SubjectResponse{}, err
	}

	_, _ = s.audit.Record(ctx, actor, AuditEntry{
		Action:     "subject.created",
		EntityType: "subject",
		EntityID:   &subject.ID,
		Details:    datatypes.JSONMap{"name": subject.Name, "department_id": subject.DepartmentID},
	})

	return dto.NewSubjectResponse(subject), nil
}

func (s *adminUserService) UpdateSubject(ctx context.Context, actor Actor, id uint, payload dto.SubjectRequest) (dto.SubjectResponse, error) {
	if err := s.requireAdmin(actor); err != nil {
		return dto.SubjectResponse{}, err
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.SubjectResponse{}, err
	}

	subject, err := s.subjects.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubjectResponse{}, ErrSubjectNotFound
		}
		return dto.SubjectResponse{}, err
	}

	if _, err := s.departments.GetByID(ctx, payload.DepartmentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubjectResponse{}, ErrDepartmentNotFound
		}
		return dto.SubjectResponse{}, err
	}

	subject.Name = strings.TrimSpace(payload.Name)
	if payload.Code != "" {
		subject.Code = strings.ToUpper(strings.TrimSpace(payload.Code))
	}
	subject.Semester = payload.Semester
	subject.DepartmentID = payload.DepartmentID
	if err := s.subjects.Update(ctx, &subject); err != nil {
		return dto.SubjectResponse{}, err
	}

	_, _ = s.audit.Record(ctx, actor, AuditEntry{
		Action:     "subject.updated",
		EntityType: "subject",
		EntityID:   &id,
	})

	return dto.NewSubjectResponse(subject), nil
}

func (s *adminUserService) DeleteSubject(ctx context.Context, actor Actor, id uint) error {
	if err := s.requireAdmin(actor); err != nil {
		return err
	}

	if _, err := s.subjects.GetByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSubjectNotFound
		}
		return err
	}

	if err := s.subjects.Delete(ctx, id); err != nil {
		return err
	}

	_, _ = s.audit.Record(ctx, actor, AuditEntry{
		Action:     "subject.deleted",
		EntityType: "subject",
		EntityID:   &id,
	})

	return nil
}

func (s *adminUserService) AssignSubject(ctx context.Context, actor Actor, payload dto.SubjectAssignmentRequest) error {
	if err := s.requireAdmin(actor); err != nil {
		return err
	}
	if err := s.validator.Struct(payload); err != nil {
		return err
	}

	role, err := s.users.GetRole(ctx, payload.TeacherID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if role != models.RoleTeacher {
		return ErrRoleNotAllowed
	}

	if _, err := s.subjects.GetByID(ctx, payload.SubjectID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSubjectNotFound
		}
		return err
	}

	if err := s.subjects.AssignTeacher(ctx, payload.TeacherID, payload.SubjectID); err != nil {
		return err
	}

	_, _ = s.audit.Record(ctx, actor, AuditEntry{
		Action:     "subject.assigned",
		EntityType: "subject",
		EntityID:   &payload.SubjectID,
		Details:    datatypes.JSONMap{"teacher_id": payload.TeacherID},
	})

	return nil
}

func (s *adminUserService) UnassignSubject(ctx context.Context, actor Actor, payload dto.SubjectAssignmentRequest) error {
	if err := s.requireAdmin(actor); err != nil {
		return err
	}
	if err := s.validator.Struct(payload); err != nil {
		return err
	}

	if err := s.subjects.UnassignTeacher(ctx, payload.TeacherID, payload.SubjectID); err != nil {
		return err
	}

	_, _ = s.audit.Record(ctx, actor, AuditEntry{
		Action:     "subject.unassigned",
		EntityType: "subject",
		EntityID:   &payload.SubjectID,
		Details:    datatypes.JSONMap{"teacher_id": payload.TeacherID},
	})

	return nil
}

func roleDepartmentConsistent(role string, departmentID *uint) error {
	if (role == models.RoleTeacher || role == models.RoleHOD) && departmentID == nil {
		return ErrRoleNeedsDepartment
	}
	return nil
}
