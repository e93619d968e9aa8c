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

// AdminUserHandler exposes account, department, subject and assignment
// management for administrators.
type AdminUserHandler struct {
	service service.AdminUserService
	logger  zerolog.Logger
}

// NewAdminUserHandler builds an admin handler instance.
func NewAdminUserHandler(service service.AdminUserService, logger zerolog.Logger) *AdminUserHandler {
	return &AdminUserHandler{
		service: service,
		logger:  logger.With().Str("component", "admin_user_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *AdminUserHandler) Register(router fiber.Router) {
	router.Get("/users", h.listUsers)
	router.Post("/users", h.createUser)
	router.Patch("/users/:id", h.updateUser)
	router.Delete("/users/:id", h.deleteUser)

	router.Get("/departments", h.listDepartments)
	router.Post("/departments", h.createDepartment)
	router.Patch("/departments/:id", h.updateDepartment)
	router.Delete("/departments/:id", h.deleteDepartment)

	router.Get("/subjects", h.listSubjects)
	router.Post("/subjects", h.createSubject)
	router.Patch("/subjects/:id", h.updateSubject)
	router.Delete("/subjects/:id", h.deleteSubject)

	router.Post("/assignments", h.assignSubject)
	router.Delete("/assignments", h.unassignSubject)
}

func (h *AdminUserHandler) listUsers(c *fiber.Ctx) error {
	users, err := h.service.ListUsers(c.UserContext(), actorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "users retrieved", users)
}

func (h *AdminUserHandler) createUser(c *fiber.Ctx) error {
	var payload dto.AdminUserCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	user, err := h.service.CreateUser(c.UserContext(), actorFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	requestLogger(h.logger, c).Info().Uint("user_id", user.ID).Msg("user created")
	return utils.SendCreated(c, "user created", user)
}

func (h *AdminUserHandler) updateUser(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid user id")
	}

	var payload dto.AdminUserUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	user, err := h.service.UpdateUser(c.UserContext(), actorFromContext(c), id, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "user updated", user)
}

func (h *AdminUserHandler) deleteUser(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid user id")
	}

	if err := h.service.DeleteUser(c.UserContext(), actorFromContext(c), id); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "user deleted", nil)
}

func (h *AdminUserHandler) listDepartments(c *fiber.Ctx) error {
	departments, err := h.service.ListDepartments(c.UserContext(), actorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "departments retrieved", departments)
}

func (h *AdminUserHandler) createDepartment(c *fiber.Ctx) error {
	var payload dto.DepartmentRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	department, err := h.service.CreateDepartment(c.UserContext(), actorFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendCreated(c, "department created", department)
}

func (h *AdminUserHandler) updateDepartment(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid department id")
	}

	var payload dto.DepartmentRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	department, err := h.service.UpdateDepartment(c.UserContext(), actorFromContext(c), id, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "department updated", department)
}

func (h *AdminUserHandler) deleteDepartment(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid department id")
	}

	if err := h.service.DeleteDepartment(c.UserContext(), actorFromContext(c), id); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "department deleted", nil)
}

func (h *AdminUserHandler) listSubjects(c *fiber.Ctx) error {
	departmentID, err := parseQueryUint(c, "department_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid department id")
	}

	subjects, err := h.service.ListSubjects(c.UserContext(), actorFromContext(c), departmentID)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "subjects retrieved", subjects)
}

func (h *AdminUserHandler) createSubject(c *fiber.Ctx) error {
	var payload dto.SubjectRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	subject, err := h.service.CreateSubject(c.UserContext(), actorFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendCreated(c, "subject created", subject)
}

func (h *AdminUserHandler) updateSubject(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid subject id")
	}

	var payload dto.SubjectRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	subject, err := h.service.UpdateSubject(c.UserContext(), actorFromContext(c), id, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "subject updated", subject)
}

func (h *AdminUserHandler) deleteSubject(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid subject id")
	}

	if err := h.service.DeleteSubject(c.UserContext(), actorFromContext(c), id); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "subject deleted", nil)
}

func (h *AdminUserHandler) assignSubject(c *fiber.Ctx) error {
	var payload dto.SubjectAssignmentRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.service.AssignSubject(c.UserContext(), actorFromContext(c), payload); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendCreated(c, "subject assigned", nil)
}

func (h *AdminUserHandler) unassignSubject(c *fiber.Ctx) error {
	var payload dto.SubjectAssignmentRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.service.UnassignSubject(c.UserContext(), actorFromContext(c), payload); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "subject unassigned", nil)
}

func (h *AdminUserHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrRoleNotAllowed):
		return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
	case errors.Is(err, service.ErrUserNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "user not found")
	case errors.Is(err, service.ErrDepartmentNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "department not found")
	case errors.Is(err, service.ErrSubjectNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "subject not found")
	case errors.Is(err, service.ErrEmailTaken):
		return utils.SendError(c, fiber.StatusConflict, "email already in use")
	case errors.Is(err, service.ErrDepartmentInUse):
		return utils.SendError(c, fiber.StatusConflict, "department has linked users or subjects")
	case errors.Is(err, service.ErrSelfDemotion):
		return utils.SendError(c, fiber.StatusConflict, "cannot modify your own account this way")
	case errors.Is(err, service.ErrRoleNeedsDepartment):
		return utils.SendError(c, fiber.StatusBadRequest, "teacher and hod accounts require a department")
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
