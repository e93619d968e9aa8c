package handler

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/examflow/examflow-api/internal/dto"
	"github.com/examflow/examflow-api/internal/service"
	"github.com/examflow/examflow-api/internal/utils"
)

// ScheduleHandler exposes exam scheduling for the exam cell.
type ScheduleHandler struct {
	service service.ScheduleService
	logger  zerolog.Logger
}

// NewScheduleHandler builds a schedule handler instance.
func NewScheduleHandler(service service.ScheduleService, logger zerolog.Logger) *ScheduleHandler {
	return &ScheduleHandler{
		service: service,
		logger:  logger.With().Str("component", "schedule_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *ScheduleHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Get("/papers", h.listSelected)
	router.Post("", h.create)
	router.Patch("/:id/status", h.setStatus)
}

func (h *ScheduleHandler) list(c *fiber.Ctx) error {
	var status *string
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status = &raw
	}

	schedules, err := h.service.List(c.UserContext(), actorFromContext(c), status)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "schedules retrieved", schedules)
}

func (h *ScheduleHandler) listSelected(c *fiber.Ctx) error {
	papers, err := h.service.ListSelected(c.UserContext(), actorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "selected papers retrieved", papers)
}

func (h *ScheduleHandler) create(c *fiber.Ctx) error {
	var payload dto.ScheduleCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	schedule, err := h.service.Create(c.UserContext(), actorFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	requestLogger(h.logger, c).Info().Uint("schedule_id", schedule.ID).Msg("exam scheduled")
	return utils.SendCreated(c, "exam scheduled", schedule)
}

func (h *ScheduleHandler) setStatus(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid schedule id")
	}

	var payload struct {
		Status string `json:"status"`
	}
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	schedule, err := h.service.SetStatus(c.UserContext(), actorFromContext(c), id, payload.Status)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "schedule updated", schedule)
}

func (h *ScheduleHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrRoleNotAllowed):
		return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
	case errors.Is(err, service.ErrPaperNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "paper not found")
	case errors.Is(err, service.ErrScheduleNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "schedule not found")
	case errors.Is(err, service.ErrPaperNotSchedulable):
		return utils.SendError(c, fiber.StatusConflict, "only locked selected papers can be scheduled")
	case errors.Is(err, service.ErrAlreadyScheduled):
		return utils.SendError(c, fiber.StatusConflict, "paper is already scheduled")
	case errors.Is(err, service.ErrInvalidExamStatus):
		return utils.SendError(c, fiber.StatusBadRequest, "invalid exam status")
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
