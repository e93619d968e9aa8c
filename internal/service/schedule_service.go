package service

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/examflow/examflow-api/internal/dto"
	"github.com/examflow/examflow-api/internal/models"
	"github.com/examflow/examflow-api/internal/repository"
)

var (
	// ErrPaperNotSchedulable indicates the paper is not a locked selection.
	ErrPaperNotSchedulable = errors.New("only locked selected papers can be scheduled")
	// ErrAlreadyScheduled indicates the paper already has a schedule entry.
	ErrAlreadyScheduled = errors.New("paper is already scheduled")
	// ErrScheduleNotFound indicates the schedule entry does not exist.
	ErrScheduleNotFound = errors.New("schedule not found")
	// ErrInvalidExamStatus indicates an unknown exam status value.
	ErrInvalidExamStatus = errors.New("invalid exam status")
)

// ScheduleService places locked papers on the exam calendar. All operations
// require the exam cell role.
type ScheduleService interface {
	List(ctx context.Context, actor Actor, status *string) ([]dto.ScheduleResponse, error)
	ListSelected(ctx context.Context, actor Actor) ([]dto.PaperResponse, error)
	Create(ctx context.Context, actor Actor, payload dto.ScheduleCreateRequest) (dto.ScheduleResponse, error)
	SetStatus(ctx context.Context, actor Actor, id uint, status string) (dto.ScheduleResponse, error)
}

type scheduleService struct {
	schedules repository.ScheduleRepository
	papers    repository.PaperRepository
	audit     AuditRecorder
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewScheduleService constructs the schedule service.
func NewScheduleService(schedules repository.ScheduleRepository, papers repository.PaperRepository, audit AuditRecorder, validate *validator.Validate, logger zerolog.Logger) ScheduleService {
	return &scheduleService{
		schedules: schedules,
		papers:    papers,
		audit:     audit,
		validator: validate,
		logger:    logger.With().Str("component", "schedule_service").Logger(),
	}
}

func (s *scheduleService) requireExamCell(actor Actor) error {
	if actor.Role != models.RoleExamCell {
		return ErrRoleNotAllowed
	}
	return nil
}

func (s *scheduleService) List(ctx context.Context, actor Actor, status *string) ([]dto.ScheduleResponse, error) {
	if err := s.requireExamCell(actor); err != nil {
		return nil, err
	}

	if status != nil && !models.ValidExamStatus(*status) {
		return nil, ErrInvalidExamStatus
	}

	schedules, err := s.schedules.List(ctx, status)
	if err != nil {
		return nil, err
	}
	return dto.NewScheduleResponseSlice(schedules), nil
}

// ListSelected returns the locked selected papers across all departments,
// the pool the exam cell schedules from.
func (s *scheduleService) ListSelected(ctx context.Context, actor Actor) ([]dto.PaperResponse, error) {
	if err := s.requireExamCell(actor); err != nil {
		return nil, err
	}

	locked := models.PaperStatusLocked
	selected := true
	papers, err := s.papers.List(ctx, repository.PaperFilter{Status: &locked, IsSelected: &selected})
	if err != nil {
		return nil, err
	}
	return dto.NewPaperResponseSlice(papers), nil
}

func (s *scheduleService) Create(ctx context.Context, actor Actor, payload dto.ScheduleCreateRequest) (dto.ScheduleResponse, error) {
	if err := s.requireExamCell(actor); err != nil {
		return dto.ScheduleResponse{}, err
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.ScheduleResponse{}, err
	}

	paper, err := s.papers.GetByID(ctx, payload.PaperID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ScheduleResponse{}, ErrPaperNotFound
		}
		return dto.ScheduleResponse{}, err
	}
	if !paper.IsLocked() || !paper.IsSelected {
		return dto.ScheduleResponse{}, ErrPaperNotSchedulable
	}

	if _, err := s.schedules.GetByPaper(ctx, paper.ID); err == nil {
		return dto.ScheduleResponse{}, ErrAlreadyScheduled
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.ScheduleResponse{}, err
	}

	schedule := models.ExamSchedule{
		PaperID:     paper.ID,
		ScheduledAt: payload.ScheduledAt.UTC(),
		DurationMin: payload.DurationMin,
		Room:        payload.Room,
		Status:      models.ExamStatusScheduled,
		CreatedBy:   actor.ID,
	}
	if err := s.schedules.Create(ctx, &schedule); err != nil {
		return dto.ScheduleResponse{}, err
	}

	_, _ = s.audit.Record(ctx, actor, AuditEntry{
		Action:     "exam.scheduled",
		EntityType: "schedule",
		EntityID:   &schedule.ID,
		Details:    datatypes.JSONMap{"paper_id": paper.ID, "scheduled_at": schedule.ScheduledAt},
	})

	created, err := s.schedules.GetByID(ctx, schedule.ID)
	if err != nil {
		return dto.ScheduleResponse{}, err
	}
	return dto.NewScheduleResponse(created), nil
}

// SetStatus marks a schedule completed or cancelled.
func (s *scheduleService) SetStatus(ctx context.Context, actor Actor, id uint, status string) (dto.ScheduleResponse, error) {
	if err := s.requireExamCell(actor); err != nil {
		return dto.ScheduleResponse{}, err
	}
	if status != models.ExamStatusCompleted && status != models.ExamStatusCancelled {
		return dto.ScheduleResponse{}, ErrInvalidExamStatus
	}

	schedule, err := s.schedules.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ScheduleResponse{}, ErrScheduleNotFound
		}
		return dto.ScheduleResponse{}, err
	}

	schedule.Status = status
	if err := s.schedules.Update(ctx, &schedule); err != nil {
		return dto.ScheduleResponse{}, err
	}

	_, _ = s.audit.Record(ctx, actor, AuditEntry{
		Action:     "exam.status_changed",
		EntityType: "schedule",
		EntityID:   &id,
		Details:    datatypes.JSONMap{"status": status},
	})

	return dto.NewScheduleResponse(schedule), nil
}
