package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/examflow/examflow-api/internal/dto"
	"github.com/examflow/examflow-api/internal/models"
	"github.com/examflow/examflow-api/internal/observability"
	"github.com/examflow/examflow-api/internal/repository"
)

// AuditEntry captures the details required to persist an audit record.
type AuditEntry struct {
	Action     string
	EntityType string
	EntityID   *uint
	Details    map[string]interface{}
}

// AuditRecorder defines behaviour for recording audit entries. Writes are
// best-effort: a failure is logged and counted but never propagated into the
// primary mutation.
type AuditRecorder interface {
	Record(ctx context.Context, actor Actor, entry AuditEntry) (dto.AuditEntryResponse, error)
}

// AuditService exposes methods to query and persist the audit trail.
type AuditService interface {
	AuditRecorder
	List(ctx context.Context, req dto.AuditListRequest) (dto.AuditListResponse, error)
}

type auditService struct {
	repo      repository.AuditLogRepository
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewAuditService constructs the audit service.
func NewAuditService(repo repository.AuditLogRepository, validator *validator.Validate, logger zerolog.Logger) AuditService {
	return &auditService{
		repo:      repo,
		validator: validator,
		logger:    logger.With().Str("component", "audit_service").Logger(),
	}
}

func (s *auditService) Record(ctx context.Context, actor Actor, entry AuditEntry) (dto.AuditEntryResponse, error) {
	if strings.TrimSpace(entry.Action) == "" {
		return dto.AuditEntryResponse{}, fmt.Errorf("action is required")
	}
	if strings.TrimSpace(entry.EntityType) == "" {
		return dto.AuditEntryResponse{}, fmt.Errorf("entity type is required")
	}

	model := models.AuditLog{
		ActorID:    actor.ID,
		ActorRole:  normalizeActorRole(actor.Role),
		Action:     strings.ToLower(strings.TrimSpace(entry.Action)),
		EntityType: strings.ToLower(strings.TrimSpace(entry.EntityType)),
		EntityID:   entry.EntityID,
		Details:    sanitizeDetails(entry.Details),
	}

	if err := s.repo.Create(ctx, &model); err != nil {
		s.logger.Warn().Err(err).Str("action", model.Action).Msg("failed to persist audit entry")
		observability.AuditWriteDrops().Inc()
		return dto.AuditEntryResponse{}, err
	}

	return dto.NewAuditEntryResponse(model), nil
}

func (s *auditService) List(ctx context.Context, req dto.AuditListRequest) (dto.AuditListResponse, error) {
	filter := repository.AuditLogFilter{
		Page:       req.Page,
		PageSize:   req.PageSize,
		Action:     strings.TrimSpace(req.Action),
		EntityType: strings.TrimSpace(req.EntityType),
	}
	if req.ActorID > 0 {
		filter.ActorID = &req.ActorID
	}

	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return dto.AuditListResponse{}, err
	}

	responses := make([]dto.AuditEntryResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, dto.NewAuditEntryResponse(entry))
	}

	pagination := dto.PaginationMeta{
		Page:       maxInt(req.Page, 1),
		PageSize:   req.PageSize,
		TotalItems: total,
	}
	if req.PageSize > 0 {
		pagination.TotalPages = int(math.Ceil(float64(total) / float64(req.PageSize)))
	} else {
		pagination.TotalPages = 1
	}

	return dto.AuditListResponse{Items: responses, Pagination: pagination}, nil
}

// sanitizeDetails masks credential-adjacent keys before persisting.
func sanitizeDetails(details map[string]interface{}) datatypes.JSONMap {
	if details == nil {
		return datatypes.JSONMap{}
	}

	sanitized := datatypes.JSONMap{}
	for key, value := range details {
		lower := strings.ToLower(key)
		if strings.Contains(lower, "password") || strings.Contains(lower, "token") {
			sanitized[key] = "***"
			continue
		}
		sanitized[key] = value
	}
	return sanitized
}

func normalizeActorRole(role string) string {
	r := strings.ToLower(strings.TrimSpace(role))
	if r == "" {
		return "system"
	}
	return r
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
