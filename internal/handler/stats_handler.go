package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/examflow/examflow-api/internal/service"
	"github.com/examflow/examflow-api/internal/utils"
)

// StatsHandler exposes the admin dashboard aggregation.
type StatsHandler struct {
	service service.StatsService
	logger  zerolog.Logger
}

// NewStatsHandler builds a stats handler instance.
func NewStatsHandler(service service.StatsService, logger zerolog.Logger) *StatsHandler {
	return &StatsHandler{
		service: service,
		logger:  logger.With().Str("component", "stats_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *StatsHandler) Register(router fiber.Router) {
	router.Get("", h.overview)
}

func (h *StatsHandler) overview(c *fiber.Ctx) error {
	stats, err := h.service.Overview(c.UserContext(), actorFromContext(c))
	if err != nil {
		if errors.Is(err, service.ErrRoleNotAllowed) {
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}

	return utils.SendSuccess(c, "stats retrieved", stats)
}
