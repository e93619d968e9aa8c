package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/examflow/examflow-api/internal/dto"
	"github.com/examflow/examflow-api/internal/service"
	"github.com/examflow/examflow-api/internal/utils"
)

// RosterHandler exposes department roster management for heads of department.
type RosterHandler struct {
	service service.RosterService
	logger  zerolog.Logger
}

// NewRosterHandler builds a roster handler instance.
func NewRosterHandler(service service.RosterService, logger zerolog.Logger) *RosterHandler {
	return &RosterHandler{
		service: service,
		logger:  logger.With().Str("component", "roster_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *RosterHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("", h.addTeacher)
	router.Delete("", h.removeTeacher)
}

func (h *RosterHandler) list(c *fiber.Ctx) error {
	teachers, err := h.service.List(c.UserContext(), actorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "roster retrieved", teachers)
}

func (h *RosterHandler) addTeacher(c *fiber.Ctx) error {
	var payload dto.RosterAddRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	teacher, err := h.service.AddTeacher(c.UserContext(), actorFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	requestLogger(h.logger, c).Info().Uint("teacher_id", teacher.ID).Msg("teacher added to roster")
	return utils.SendCreated(c, "teacher added", teacher)
}

func (h *RosterHandler) removeTeacher(c *fiber.Ctx) error {
	var payload dto.RosterRemoveRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.service.RemoveTeacher(c.UserContext(), actorFromContext(c), payload); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "teacher removed", nil)
}

func (h *RosterHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrRoleNotAllowed), errors.Is(err, service.ErrNoDepartment):
		return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
	case errors.Is(err, service.ErrUserNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "user not found")
	case errors.Is(err, service.ErrNotTeacherAccount):
		return utils.SendError(c, fiber.StatusConflict, "account exists but is not a teacher")
	case errors.Is(err, service.ErrTeacherElsewhere):
		return utils.SendError(c, fiber.StatusConflict, "teacher belongs to another department")
	case errors.Is(err, service.ErrPasswordRequired):
		return utils.SendError(c, fiber.StatusBadRequest, "password is required for new accounts")
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
