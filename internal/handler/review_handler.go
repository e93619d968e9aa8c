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

// ReviewHandler exposes the anonymized review endpoints for heads of
// department.
type ReviewHandler struct {
	service service.ReviewService
	logger  zerolog.Logger
}

// NewReviewHandler builds a review handler instance.
func NewReviewHandler(service service.ReviewService, logger zerolog.Logger) *ReviewHandler {
	return &ReviewHandler{
		service: service,
		logger:  logger.With().Str("component", "review_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *ReviewHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("/:id/approve", h.approve)
	router.Post("/:id/reject", h.reject)
	router.Post("/:id/select", h.selectPaper)
}

func (h *ReviewHandler) list(c *fiber.Ctx) error {
	groups, err := h.service.ListForReview(c.UserContext(), actorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "papers retrieved", groups)
}

func (h *ReviewHandler) approve(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid paper id")
	}

	paper, err := h.service.Approve(c.UserContext(), actorFromContext(c), id)
	if err != nil {
		return h.handleError(c, err)
	}

	requestLogger(h.logger, c).Info().Uint("paper_id", id).Msg("paper approved")
	return utils.SendSuccess(c, "paper approved", paper)
}

func (h *ReviewHandler) reject(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid paper id")
	}

	var payload dto.RejectPaperRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	paper, err := h.service.Reject(c.UserContext(), actorFromContext(c), id, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	requestLogger(h.logger, c).Info().Uint("paper_id", id).Msg("paper rejected")
	return utils.SendSuccess(c, "paper rejected", paper)
}

func (h *ReviewHandler) selectPaper(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid paper id")
	}

	paper, err := h.service.Select(c.UserContext(), actorFromContext(c), id)
	if err != nil {
		return h.handleError(c, err)
	}

	requestLogger(h.logger, c).Info().Uint("paper_id", id).Msg("paper selected")
	return utils.SendSuccess(c, "paper selected and locked", paper)
}

func (h *ReviewHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrRoleNotAllowed), errors.Is(err, service.ErrNotDepartmentHead), errors.Is(err, service.ErrNoDepartment):
		return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
	case errors.Is(err, service.ErrPaperNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "paper not found")
	case errors.Is(err, service.ErrFeedbackRequired):
		return utils.SendError(c, fiber.StatusBadRequest, "feedback is required")
	case errors.Is(err, service.ErrInvalidTransition):
		return utils.SendError(c, fiber.StatusConflict, "paper is not in a reviewable state")
	case errors.Is(err, service.ErrSelectionConflict):
		return utils.SendError(c, fiber.StatusConflict, "another paper was selected concurrently")
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
