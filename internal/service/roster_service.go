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
	// ErrNotTeacherAccount indicates the matched profile holds a non-teacher role.
	ErrNotTeacherAccount = errors.New("account exists but is not a teacher")
	// ErrTeacherElsewhere indicates the teacher belongs to another department.
	ErrTeacherElsewhere = errors.New("teacher belongs to another department")
	// ErrPasswordRequired indicates a new account needs an initial password.
	ErrPasswordRequired = errors.New("password is required when creating a new account")
)

// RosterService lets a head of department manage which teachers belong to
// their department.
type RosterService interface {
	List(ctx context.Context, actor Actor) ([]dto.UserResponse, error)
	AddTeacher(ctx context.Context, actor Actor, payload dto.RosterAddRequest) (dto.UserResponse, error)
	RemoveTeacher(ctx context.Context, actor Actor, payload dto.RosterRemoveRequest) error
}

type rosterService struct {
	users     repository.UserRepository
	subjects  repository.SubjectRepository
	audit     AuditRecorder
	validator *validator.Validate
	logger    zerolog.Logger
	hashCost  int
}

// NewRosterService constructs the roster service.
func NewRosterService(users repository.UserRepository, subjects repository.SubjectRepository, audit AuditRecorder, validate *validator.Validate, logger zerolog.Logger) RosterService {
	return &rosterService{
		users:     users,
		subjects:  subjects,
		audit:     audit,
		validator: validate,
		logger:    logger.With().Str("component", "roster_service").Logger(),
		hashCost:  bcrypt.DefaultCost,
	}
}

func (s *rosterService) requireHead(actor Actor) error {
	if actor.Role != models.RoleHOD {
		return ErrRoleNotAllowed
	}
	if actor.DepartmentID == nil {
		return ErrNoDepartment
	}
	return nil
}

func (s *rosterService) List(ctx context.Context, actor Actor) ([]dto.UserResponse, error) {
	if err := s.requireHead(actor); err != nil {
		return nil, err
	}

	profiles, err := s.users.ListByRoleAndDepartment(ctx, models.RoleTeacher, *actor.DepartmentID)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.UserResponse, 0, len(profiles))
	for _, profile := range profiles {
		responses = append(responses, dto.NewUserResponse(profile, models.RoleTeacher))
	}
	return responses, nil
}

// AddTeacher attaches a teacher to the caller's department. An unknown email
// creates a fresh teacher account; an existing unattached teacher account is
// adopted. Accounts with other roles, or teachers already attached elsewhere,
// are refused.
func (s *rosterService) AddTeacher(ctx context.Context, actor Actor, payload dto.RosterAddRequest) (dto.UserResponse, error) {
	if err := s.requireHead(actor); err != nil {
		return dto.UserResponse{}, err
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.UserResponse{}, err
	}

	email := strings.ToLower(strings.TrimSpace(payload.Email))
	profile, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.createTeacher(ctx, actor, email, payload)
	}
	if err != nil {
		return dto.UserResponse{}, err
	}

	role, err := s.users.GetRole(ctx, profile.ID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.UserResponse{}, err
	}
	if role != models.RoleTeacher {
		return dto.UserResponse{}, ErrNotTeacherAccount
	}
	if profile.DepartmentID != nil && *profile.DepartmentID != *actor.DepartmentID {
		return dto.UserResponse{}, ErrTeacherElsewhere
	}

	if profile.DepartmentID == nil {
		profile.DepartmentID = actor.DepartmentID
		if err := s.users.Update(ctx, &profile); err != nil {
			return dto.UserResponse{}, err
		}
	}

	_, _ = s.audit.Record(ctx, actor, AuditEntry{
		Action:     "roster.teacher_added",
		EntityType: "user",
		EntityID:   &profile.ID,
		Details:    datatypes.JSONMap{"email": email},
	})

	return dto.NewUserResponse(profile, models.RoleTeacher), nil
}

func (s *rosterService) createTeacher(ctx context.Context, actor Actor, email string, payload dto.RosterAddRequest) (dto.UserResponse, error) {
	if strings.TrimSpace(payload.Password) == "" {
		return dto.UserResponse{}, ErrPasswordRequired
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(payload.Password), s.hashCost)
	if err != nil {
		return dto.UserResponse{}, err
	}

	fullName := strings.TrimSpace(payload.FullName)
	if fullName == "" {
		fullName = email
	}

	profile := models.Profile{
		FullName:     fullName,
		Email:        email,
		PasswordHash: string(hash),
		DepartmentID: actor.DepartmentID,
	}
	if err := s.users.Create(ctx, &profile); err != nil {
		return dto.UserResponse{}, err
	}
	if err := s.users.SetRole(ctx, profile.ID, models.RoleTeacher); err != nil {
		return dto.UserResponse{}, err
	}

	_, _ = s.audit.Record(ctx, actor, AuditEntry{
		Action:     "roster.teacher_created",
		EntityType: "user",
		EntityID:   &profile.ID,
		Details:    datatypes.JSONMap{"email": email},
	})

	return dto.NewUserResponse(profile, models.RoleTeacher), nil
}

// RemoveTeacher detaches a teacher from the caller's department and clears
// their subject assignments. The account itself survives.
func (s *rosterService) RemoveTeacher(ctx context.Context, actor Actor, payload dto.RosterRemoveRequest) error {
	if err := s.requireHead(actor); err != nil {
		return err
	}
	if err := s.validator.Struct(payload); err != nil {
		return err
	}

	profile, err := s.users.GetByID(ctx, payload.TeacherID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	role, err := s.users.GetRole(ctx, profile.ID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	if role != models.RoleTeacher {
		return ErrNotTeacherAccount
	}
	if profile.DepartmentID == nil || *profile.DepartmentID != *actor.DepartmentID {
		return ErrTeacherElsewhere
	}

	if err := s.subjects.DeleteAssignmentsByTeacher(ctx, profile.ID); err != nil {
		return err
	}

	profile.DepartmentID = nil
	if err := s.users.Update(ctx, &profile); err != nil {
		return err
	}

	_, _ = s.audit.Record(ctx, actor, AuditEntry{
		Action:     "roster.teacher_removed",
		EntityType: "user",
		EntityID:   &profile.ID,
	})

	return nil
}
