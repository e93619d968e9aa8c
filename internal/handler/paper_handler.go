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

// PaperHandler exposes teacher-facing paper endpoints.
type PaperHandler struct {
	service service.PaperService
	logger  zerolog.Logger
}

// NewPaperHandler builds a paper handler instance.
func NewPaperHandler(service service.PaperService, logger zerolog.Logger) *PaperHandler {
	return &PaperHandler{
		service: service,
		logger:  logger.With().Str("component", "paper_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *PaperHandler) Register(router fiber.Router) {
	router.Post("", h.upload)
	router.Get("", h.listMine)
	router.Get("/subjects", h.listSubjects)
}

func (h *PaperHandler) upload(c *fiber.Ctx) error {
	var payload dto.PaperUploadRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	file, err := c.FormFile("file")
	if err != nil {
		file = nil
	}

	paper, err := h.service.Upload(c.UserContext(), actorFromContext(c), payload, file)
	if err != nil {
		return h.handleError(c, err)
	}

	requestLogger(h.logger, c).Info().Uint("paper_id", paper.ID).Msg("paper uploaded")
	return utils.SendCreated(c, "paper uploaded", paper)
}

func (h *PaperHandler) listMine(c *fiber.Ctx) error {
	papers, err := h.service.ListMine(c.UserContext(), actorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "papers retrieved", papers)
}

func (h *PaperHandler) listSubjects(c *fiber.Ctx) error {
	subjects, err := h.service.ListAssignedSubjects(c.UserContext(), actorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "subjects retrieved", subjects)
}

func (h *PaperHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrRoleNotAllowed):
		return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
	case errors.Is(err, service.ErrPaperFileRequired):
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	case errors.Is(err, service.ErrPaperTooLarge):
		return utils.SendError(c, fiber.StatusRequestEntityTooLarge, "file exceeds the size limit")
	case errors.Is(err, service.ErrPaperNotPDF):
		return utils.SendError(c, fiber.StatusUnsupportedMediaType, "file must be a PDF")
	case errors.Is(err, service.ErrSubjectNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "subject not found")
	case errors.Is(err, service.ErrSubjectNotAssigned):
		return utils.SendError(c, fiber.StatusForbidden, "subject is not assigned to you")
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
