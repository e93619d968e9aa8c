package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"time"

	"github.com/gabriel-vasile/mimetype"
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
	// ErrPaperFileRequired indicates no file accompanied the upload.
	ErrPaperFileRequired = errors.New("paper file is required")
	// ErrPaperTooLarge indicates the upload exceeded the configured limit.
	ErrPaperTooLarge = errors.New("paper exceeds maximum allowed size")
	// ErrPaperNotPDF indicates the upload is not a PDF document.
	ErrPaperNotPDF = errors.New("paper must be a PDF document")
	// ErrSubjectNotFound indicates the referenced subject does not exist.
	ErrSubjectNotFound = errors.New("subject not found")
	// ErrSubjectNotAssigned indicates the uploader is not assigned to the subject.
	ErrSubjectNotAssigned = errors.New("subject is not assigned to the uploader")
)

// FileStorage abstracts the blob store. Upload returns an opaque storage key,
// never a public URL.
type FileStorage interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// PaperService handles paper uploads and teacher-facing reads.
type PaperService interface {
	Upload(ctx context.Context, actor Actor, payload dto.PaperUploadRequest, file *multipart.FileHeader) (dto.PaperResponse, error)
	ListMine(ctx context.Context, actor Actor) ([]dto.PaperResponse, error)
	ListAssignedSubjects(ctx context.Context, actor Actor) ([]dto.SubjectResponse, error)
}

type paperService struct {
	papers    repository.PaperRepository
	subjects  repository.SubjectRepository
	storage   FileStorage
	audit     AuditRecorder
	validator *validator.Validate
	logger    zerolog.Logger
	maxSize   int64
	tracer    trace.Tracer
	now       func() time.Time
}

// NewPaperService constructs a PaperService instance.
func NewPaperService(papers repository.PaperRepository, subjects repository.SubjectRepository, storage FileStorage, audit AuditRecorder, validate *validator.Validate, maxSizeMB int, logger zerolog.Logger) PaperService {
	if maxSizeMB <= 0 {
		maxSizeMB = 50
	}
	return &paperService{
		papers:    papers,
		subjects:  subjects,
		storage:   storage,
		audit:     audit,
		validator: validate,
		logger:    logger.With().Str("component", "paper_service").Logger(),
		maxSize:   int64(maxSizeMB) * 1024 * 1024,
		tracer:    otel.Tracer("github.com/examflow/examflow-api/internal/service/paper"),
		now:       time.Now,
	}
}

// Upload validates the file and guards before any store or blob write: a
// non-PDF or oversized upload is rejected with nothing persisted.
func (s *paperService) Upload(ctx context.Context, actor Actor, payload dto.PaperUploadRequest, file *multipart.FileHeader) (dto.PaperResponse, error) {
	ctx, span := s.tracer.Start(ctx, "paper.upload")
	defer span.End()

	start := s.now()
	defer func() {
		observability.UploadLatency().Observe(time.Since(start).Seconds())
	}()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		return dto.PaperResponse{}, err
	}

	if actor.Role != models.RoleTeacher {
		span.SetStatus(codes.Error, "role_not_allowed")
		return dto.PaperResponse{}, ErrRoleNotAllowed
	}

	if file == nil {
		observability.UploadRejected().WithLabelValues("missing").Inc()
		return dto.PaperResponse{}, ErrPaperFileRequired
	}

	if file.Size > s.maxSize {
		observability.UploadRejected().WithLabelValues("size").Inc()
		span.RecordError(ErrPaperTooLarge)
		span.SetStatus(codes.Error, "payload_too_large")
		return dto.PaperResponse{}, ErrPaperTooLarge
	}

	handle, err := file.Open()
	if err != nil {
		span.RecordError(err)
		return dto.PaperResponse{}, err
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, s.maxSize+1)); err != nil {
		span.RecordError(err)
		return dto.PaperResponse{}, err
	}
	if int64(buf.Len()) > s.maxSize {
		observability.UploadRejected().WithLabelValues("size").Inc()
		return dto.PaperResponse{}, ErrPaperTooLarge
	}

	if !mimetype.Detect(buf.Bytes()).Is("application/pdf") {
		observability.UploadRejected().WithLabelValues("type").Inc()
		span.RecordError(ErrPaperNotPDF)
		span.SetStatus(codes.Error, "type_not_allowed")
		return dto.PaperResponse{}, ErrPaperNotPDF
	}

	subject, err := s.subjects.GetByID(ctx, payload.SubjectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.PaperResponse{}, ErrSubjectNotFound
		}
		span.RecordError(err)
		return dto.PaperResponse{}, err
	}

	assigned, err := s.subjects.IsAssigned(ctx, actor.ID, subject.ID)
	if err != nil {
		span.RecordError(err)
		return dto.PaperResponse{}, err
	}
	if !assigned {
		observability.UploadRejected().WithLabelValues("assignment").Inc()
		span.SetStatus(codes.Error, "subject_not_assigned")
		return dto.PaperResponse{}, ErrSubjectNotAssigned
	}

	versions, err := s.papers.CountVersions(ctx, subject.ID, payload.ExamType, actor.ID, payload.SetName)
	if err != nil {
		span.RecordError(err)
		return dto.PaperResponse{}, err
	}

	path, err := s.storage.Upload(ctx, file.Filename, bytes.NewReader(buf.Bytes()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage_failed")
		return dto.PaperResponse{}, err
	}

	paper := models.Paper{
		SubjectID:  subject.ID,
		ExamType:   payload.ExamType,
		SetName:    payload.SetName,
		Status:     models.PaperStatusPendingReview,
		Deadline:   payload.Deadline,
		UploadedBy: actor.ID,
		UploadedAt: s.now(),
		Version:    int(versions) + 1,
		FilePath:   path,
	}

	if err := s.papers.Create(ctx, &paper); err != nil {
		span.RecordError(err)
		return dto.PaperResponse{}, err
	}

	observability.PaperTransitions().WithLabelValues(models.PaperEventUpload, paper.Status).Inc()

	if s.audit != nil {
		_, _ = s.audit.Record(ctx, actor, AuditEntry{
			Action:     "paper.uploaded",
			EntityType: "paper",
			EntityID:   &paper.ID,
			Details: map[string]interface{}{
				"subject_id": subject.ID,
				"exam_type":  paper.ExamType,
				"set_name":   paper.SetName,
				"version":    paper.Version,
				"size_bytes": buf.Len(),
			},
		})
	}

	created, err := s.papers.GetByID(ctx, paper.ID)
	if err != nil {
		return dto.PaperResponse{}, err
	}

	s.logger.Info().Uint("paper_id", created.ID).Int("version", created.Version).Msg("paper uploaded")
	span.SetAttributes(
		attribute.Int64("paper.id", int64(created.ID)),
		attribute.String("paper.exam_type", created.ExamType),
	)

	return dto.NewPaperResponse(created), nil
}

// ListMine returns the actor's own submissions. Rejected papers are excluded:
// a rejected paper is expected to be replaced by a fresh upload rather than
// tracked here.
func (s *paperService) ListMine(ctx context.Context, actor Actor) ([]dto.PaperResponse, error) {
	if actor.Role != models.RoleTeacher {
		return nil, ErrRoleNotAllowed
	}

	rejected := models.PaperStatusRejected
	papers, err := s.papers.List(ctx, repository.PaperFilter{
		UploadedBy:    &actor.ID,
		ExcludeStatus: &rejected,
	})
	if err != nil {
		return nil, err
	}

	return dto.NewPaperResponseSlice(papers), nil
}

func (s *paperService) ListAssignedSubjects(ctx context.Context, actor Actor) ([]dto.SubjectResponse, error) {
	if actor.Role != models.RoleTeacher {
		return nil, ErrRoleNotAllowed
	}

	subjects, err := s.subjects.ListAssignedSubjects(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	return dto.NewSubjectResponseSlice(subjects), nil
}
