package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/examflow/examflow-api/internal/dto"
	"github.com/examflow/examflow-api/internal/models"
	"github.com/examflow/examflow-api/internal/observability"
	"github.com/examflow/examflow-api/internal/repository"
)

var (
	// ErrPaperNotFound indicates the paper could not be located.
	ErrPaperNotFound = errors.New("paper not found")
	// ErrNotDepartmentHead indicates the actor does not head the paper's department.
	ErrNotDepartmentHead = errors.New("actor is not head of the paper's department")
	// ErrFeedbackRequired indicates a rejection without reviewer feedback.
	ErrFeedbackRequired = errors.New("rejection feedback must not be empty")
	// ErrInvalidTransition indicates the lifecycle graph forbids the move.
	ErrInvalidTransition = errors.New("invalid paper status transition")
	// ErrSelectionConflict mirrors the storage-level conflict for callers.
	ErrSelectionConflict = repository.ErrSelectionConflict
)

// ReviewService is the HOD side of the paper lifecycle: anonymous review
// listing, approval, rejection and the selection cascade.
type ReviewService interface {
	ListForReview(ctx context.Context, actor Actor) ([]dto.ReviewGroupResponse, error)
	Approve(ctx context.Context, actor Actor, paperID uint) (dto.AnonymousPaperResponse, error)
	Reject(ctx context.Context, actor Actor, paperID uint, payload dto.RejectPaperRequest) (dto.AnonymousPaperResponse, error)
	Select(ctx context.Context, actor Actor, paperID uint) (dto.AnonymousPaperResponse, error)
}

type reviewService struct {
	papers    repository.PaperRepository
	audit     AuditRecorder
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewReviewService constructs a ReviewService instance.
func NewReviewService(papers repository.PaperRepository, audit AuditRecorder, validate *validator.Validate, logger zerolog.Logger) ReviewService {
	return &reviewService{
		papers:    papers,
		audit:     audit,
		validator: validate,
		logger:    logger.With().Str("component", "review_service").Logger(),
		tracer:    otel.Tracer("github.com/examflow/examflow-api/internal/service/review"),
		now:       time.Now,
	}
}

// ListForReview returns the actor's department papers grouped by subject and
// exam type with uploader identity replaced by per-group sequential labels.
// Labels are a projection recomputed per fetch, not stored identifiers.
func (s *reviewService) ListForReview(ctx context.Context, actor Actor) ([]dto.ReviewGroupResponse, error) {
	if actor.Role != models.RoleHOD {
		return nil, ErrRoleNotAllowed
	}
	if actor.DepartmentID == nil {
		return nil, ErrNoDepartment
	}

	papers, err := s.papers.List(ctx, repository.PaperFilter{DepartmentID: actor.DepartmentID})
	if err != nil {
		return nil, err
	}

	return groupPapersForReview(papers), nil
}

func (s *reviewService) Approve(ctx context.Context, actor Actor, paperID uint) (dto.AnonymousPaperResponse, error) {
	ctx, span := s.tracer.Start(ctx, "paper.approve")
	span.SetAttributes(attribute.Int64("paper.id", int64(paperID)))
	defer span.End()

	paper, err := s.guardedFetch(ctx, actor, paperID)
	if err != nil {
		span.RecordError(err)
		return dto.AnonymousPaperResponse{}, err
	}

	next, ok := models.NextPaperStatus(paper.Status, models.PaperEventApprove)
	if !ok {
		span.SetStatus(codes.Error, "invalid_transition")
		return dto.AnonymousPaperResponse{}, fmt.Errorf("%w: %s -> approve", ErrInvalidTransition, paper.Status)
	}

	approvedAt := s.now()
	approvedBy := actor.ID
	paper.Status = next
	paper.ApprovedBy = &approvedBy
	paper.ApprovedAt = &approvedAt

	if err := s.papers.Update(ctx, &paper); err != nil {
		span.RecordError(err)
		return dto.AnonymousPaperResponse{}, err
	}

	observability.PaperTransitions().WithLabelValues(models.PaperEventApprove, next).Inc()
	s.recordAudit(ctx, actor, "paper.approved", paper, nil)
	s.logger.Info().Uint("paper_id", paper.ID).Msg("paper approved")

	return dto.NewAnonymousPaperResponse(paper, ""), nil
}

func (s *reviewService) Reject(ctx context.Context, actor Actor, paperID uint, payload dto.RejectPaperRequest) (dto.AnonymousPaperResponse, error) {
	ctx, span := s.tracer.Start(ctx, "paper.reject")
	span.SetAttributes(attribute.Int64("paper.id", int64(paperID)))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		return dto.AnonymousPaperResponse{}, err
	}

	feedback := strings.TrimSpace(payload.Feedback)
	if feedback == "" {
		span.SetStatus(codes.Error, "feedback_required")
		return dto.AnonymousPaperResponse{}, ErrFeedbackRequired
	}

	paper, err := s.guardedFetch(ctx, actor, paperID)
	if err != nil {
		span.RecordError(err)
		return dto.AnonymousPaperResponse{}, err
	}

	next, ok := models.NextPaperStatus(paper.Status, models.PaperEventReject)
	if !ok {
		span.SetStatus(codes.Error, "invalid_transition")
		return dto.AnonymousPaperResponse{}, fmt.Errorf("%w: %s -> reject", ErrInvalidTransition, paper.Status)
	}

	paper.Status = next
	paper.Feedback = feedback

	if err := s.papers.Update(ctx, &paper); err != nil {
		span.RecordError(err)
		return dto.AnonymousPaperResponse{}, err
	}

	observability.PaperTransitions().WithLabelValues(models.PaperEventReject, next).Inc()
	s.recordAudit(ctx, actor, "paper.rejected", paper, map[string]interface{}{"feedback": feedback})
	s.logger.Info().Uint("paper_id", paper.ID).Msg("paper rejected")

	return dto.NewAnonymousPaperResponse(paper, ""), nil
}

// Select locks the target paper and applies the cascade to its group: the
// repository runs the three steps as one transaction, and the steps are
// idempotent so a retry after a partial failure converges.
func (s *reviewService) Select(ctx context.Context, actor Actor, paperID uint) (dto.AnonymousPaperResponse, error) {
	ctx, span := s.tracer.Start(ctx, "paper.select")
	span.SetAttributes(attribute.Int64("paper.id", int64(paperID)))
	defer span.End()

	paper, err := s.guardedFetch(ctx, actor, paperID)
	if err != nil {
		span.RecordError(err)
		return dto.AnonymousPaperResponse{}, err
	}

	if _, ok := models.NextPaperStatus(paper.Status, models.PaperEventSelect); !ok {
		span.SetStatus(codes.Error, "invalid_transition")
		return dto.AnonymousPaperResponse{}, fmt.Errorf("%w: %s -> select", ErrInvalidTransition, paper.Status)
	}

	if err := s.papers.Select(ctx, paper.ID, paper.SubjectID, paper.ExamType); err != nil {
		span.RecordError(err)
		if errors.Is(err, repository.ErrSelectionConflict) {
			span.SetStatus(codes.Error, "selection_conflict")
		}
		return dto.AnonymousPaperResponse{}, err
	}

	observability.PaperTransitions().WithLabelValues(models.PaperEventSelect, models.PaperStatusLocked).Inc()
	s.recordAudit(ctx, actor, "paper.selected", paper, map[string]interface{}{
		"subject_id": paper.SubjectID,
		"exam_type":  paper.ExamType,
	})
	s.logger.Info().
		Uint("paper_id", paper.ID).
		Uint("subject_id", paper.SubjectID).
		Str("exam_type", paper.ExamType).
		Msg("paper selected and locked")

	locked, err := s.papers.GetByID(ctx, paper.ID)
	if err != nil {
		return dto.AnonymousPaperResponse{}, err
	}

	return dto.NewAnonymousPaperResponse(locked, ""), nil
}

// guardedFetch loads the paper and enforces the department-scoped HOD guard.
// Authorization failures do not reveal whether the paper exists.
func (s *reviewService) guardedFetch(ctx context.Context, actor Actor, paperID uint) (models.Paper, error) {
	if actor.Role != models.RoleHOD {
		return models.Paper{}, ErrRoleNotAllowed
	}
	if actor.DepartmentID == nil {
		return models.Paper{}, ErrNoDepartment
	}

	paper, err := s.papers.GetByID(ctx, paperID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Paper{}, ErrPaperNotFound
		}
		return models.Paper{}, err
	}

	if !actor.IsHeadOf(paper.Subject.DepartmentID) {
		return models.Paper{}, ErrNotDepartmentHead
	}

	return paper, nil
}

func (s *reviewService) recordAudit(ctx context.Context, actor Actor, action string, paper models.Paper, extra map[string]interface{}) {
	if s.audit == nil {
		return
	}

	details := map[string]interface{}{
		"subject_id": paper.SubjectID,
		"exam_type":  paper.ExamType,
		"status":     paper.Status,
	}
	for key, value := range extra {
		details[key] = value
	}

	_, _ = s.audit.Record(ctx, actor, AuditEntry{
		Action:     action,
		EntityType: "paper",
		EntityID:   &paper.ID,
		Details:    details,
	})
}

// groupPapersForReview is the anonymization projection: papers arrive ordered
// by upload time descending, are grouped by (subject, exam type), and each
// group member gets a sequential label in that order. The uploader identity
// never leaves this function.
func groupPapersForReview(papers []models.Paper) []dto.ReviewGroupResponse {
	type groupAccumulator struct {
		response dto.ReviewGroupResponse
		order    int
	}

	groups := make(map[models.PaperGroupKey]*groupAccumulator)
	sequence := 0

	for _, paper := range papers {
		key := paper.GroupKey()
		group, exists := groups[key]
		if !exists {
			group = &groupAccumulator{
				response: dto.ReviewGroupResponse{
					SubjectID:   paper.SubjectID,
					SubjectName: paper.Subject.Name,
					ExamType:    paper.ExamType,
				},
				order: sequence,
			}
			groups[key] = group
			sequence++
		}

		label := fmt.Sprintf("Submission %d", len(group.response.Submissions)+1)
		group.response.Submissions = append(group.response.Submissions, dto.NewAnonymousPaperResponse(paper, label))
	}

	ordered := make([]*groupAccumulator, 0, len(groups))
	for _, group := range groups {
		ordered = append(ordered, group)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].order < ordered[j].order })

	responses := make([]dto.ReviewGroupResponse, 0, len(ordered))
	for _, group := range ordered {
		responses = append(responses, group.response)
	}

	return responses
}
