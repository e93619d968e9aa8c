package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/examflow/examflow-api/internal/dto"
	"github.com/examflow/examflow-api/internal/service"
	"github.com/examflow/examflow-api/internal/utils"
)

// AuditHandler exposes the audit trail to administrators. Route-level RBAC
// restricts access; the listing itself is read only.
type AuditHandler struct {
	service service.AuditService
	logger  zerolog.Logger
}

// NewAuditHandler builds an audit handler instance.
func NewAuditHandler(service service.AuditService, logger zerolog.Logger) *AuditHandler {
	return &AuditHandler{
		service: service,
		logger:  logger.With().Str("component", "audit_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *AuditHandler) Register(router fiber.Router) {
	router.Get("", h.list)
}

func (h *AuditHandler) list(c *fiber.Ctx) error {
	var req dto.AuditListRequest
	if err := c.QueryParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	entries, err := h.service.List(c.UserContext(), req)
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}

	return utils.SendSuccess(c, "audit entries retrieved", entries)
}
