package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/examflow/examflow-api/internal/dto"
	"github.com/examflow/examflow-api/internal/models"
	"github.com/examflow/examflow-api/internal/repository"
)

const statsCacheKey = "examflow:stats:overview"

// StatsService aggregates dashboard counts with a short-lived redis cache in
// front of the database.
type StatsService interface {
	Overview(ctx context.Context, actor Actor) (dto.StatsResponse, error)
	Invalidate(ctx context.Context)
}

type statsService struct {
	stats       repository.StatsRepository
	auditLogs   repository.AuditLogRepository
	users       repository.UserRepository
	redis       *redis.Client
	cacheTTL    time.Duration
	recentLimit int
	logger      zerolog.Logger
	tracer      trace.Tracer
}

// NewStatsService constructs the stats service. A nil redis client disables
// caching and every call hits the database.
func NewStatsService(stats repository.StatsRepository, auditLogs repository.AuditLogRepository, users repository.UserRepository, redisClient *redis.Client, cacheTTL time.Duration, recentLimit int, logger zerolog.Logger) StatsService {
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	if recentLimit <= 0 {
		recentLimit = 20
	}

	return &statsService{
		stats:       stats,
		auditLogs:   auditLogs,
		users:       users,
		redis:       redisClient,
		cacheTTL:    cacheTTL,
		recentLimit: recentLimit,
		logger:      logger.With().Str("component", "stats_service").Logger(),
		tracer:      otel.Tracer("github.com/examflow/examflow-api/internal/service/stats"),
	}
}

func (s *statsService) Overview(ctx context.Context, actor Actor) (dto.StatsResponse, error) {
	if actor.Role != models.RoleAdmin {
		return dto.StatsResponse{}, ErrRoleNotAllowed
	}

	spanCtx, span := s.tracer.Start(ctx, "stats.overview")
	defer span.End()

	if cached, ok := s.fromCache(spanCtx); ok {
		span.SetAttributes(attribute.Bool("stats.cache_hit", true))
		cached.CacheHit = true
		return cached, nil
	}

	response, err := s.build(spanCtx)
	if err != nil {
		span.RecordError(err)
		return dto.StatsResponse{}, err
	}

	s.toCache(spanCtx, response)
	span.SetAttributes(attribute.Bool("stats.cache_hit", false))
	return response, nil
}

// Invalidate drops the cached overview so the next read reflects fresh data.
func (s *statsService) Invalidate(ctx context.Context) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, statsCacheKey).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to invalidate stats cache")
	}
}

func (s *statsService) build(ctx context.Context) (dto.StatsResponse, error) {
	usersByRole, err := s.stats.CountUsersByRole(ctx)
	if err != nil {
		return dto.StatsResponse{}, err
	}

	papersByStatus, err := s.stats.CountPapersByStatus(ctx)
	if err != nil {
		return dto.StatsResponse{}, err
	}

	departmentCount, err := s.stats.CountDepartments(ctx)
	if err != nil {
		return dto.StatsResponse{}, err
	}

	subjectCount, err := s.stats.CountSubjects(ctx)
	if err != nil {
		return dto.StatsResponse{}, err
	}

	recent, err := s.recentActivity(ctx)
	if err != nil {
		return dto.StatsResponse{}, err
	}

	return dto.StatsResponse{
		UsersByRole:     usersByRole,
		PapersByStatus:  papersByStatus,
		DepartmentCount: departmentCount,
		SubjectCount:    subjectCount,
		RecentActivity:  recent,
	}, nil
}

// recentActivity enriches the latest audit entries with actor display names.
// A missing profile leaves the name blank rather than failing the dashboard.
func (s *statsService) recentActivity(ctx context.Context) ([]dto.AuditEntryResponse, error) {
	entries, err := s.auditLogs.ListRecent(ctx, s.recentLimit)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}

	actorIDs := make([]uint, 0, len(entries))
	seen := make(map[uint]struct{}, len(entries))
	for _, entry := range entries {
		if _, exists := seen[entry.ActorID]; exists {
			continue
		}
		seen[entry.ActorID] = struct{}{}
		actorIDs = append(actorIDs, entry.ActorID)
	}

	profiles, err := s.users.ListByIDs(ctx, actorIDs)
	if err != nil {
		return nil, err
	}
	names := make(map[uint]string, len(profiles))
	for _, profile := range profiles {
		names[profile.ID] = profile.FullName
	}

	responses := make([]dto.AuditEntryResponse, 0, len(entries))
	for _, entry := range entries {
		response := dto.NewAuditEntryResponse(entry)
		response.ActorName = names[entry.ActorID]
		responses = append(responses, response)
	}
	return responses, nil
}

func (s *statsService) fromCache(ctx context.Context) (dto.StatsResponse, bool) {
	if s.redis == nil {
		return dto.StatsResponse{}, false
	}

	raw, err := s.redis.Get(ctx, statsCacheKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("stats cache read failed")
		}
		return dto.StatsResponse{}, false
	}

	var response dto.StatsResponse
	if err := json.Unmarshal(raw, &response); err != nil {
		s.logger.Warn().Err(err).Msg("stats cache payload corrupt")
		return dto.StatsResponse{}, false
	}
	return response, true
}

func (s *statsService) toCache(ctx context.Context, response dto.StatsResponse) {
	if s.redis == nil {
		return
	}

	payload, err := json.Marshal(response)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, statsCacheKey, payload, s.cacheTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("stats cache write failed")
	}
}
