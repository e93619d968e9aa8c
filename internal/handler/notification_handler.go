package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/examflow/examflow-api/internal/dto"
	"github.com/examflow/examflow-api/internal/middleware"
	"github.com/examflow/examflow-api/internal/service"
	"github.com/examflow/examflow-api/internal/utils"
)

// NotificationHandler manages SSE notification streams, broadcasts and reads.
type NotificationHandler struct {
	service service.NotificationService
	logger  zerolog.Logger
	timeout time.Duration
}

// NewNotificationHandler constructs a handler instance.
func NewNotificationHandler(service service.NotificationService, logger zerolog.Logger, timeout time.Duration) *NotificationHandler {
	return &NotificationHandler{
		service: service,
		logger:  logger.With().Str("component", "notification_handler").Logger(),
		timeout: timeout,
	}
}

// Register binds the notification routes.
func (h *NotificationHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Get("/stream", h.stream)
	router.Patch("/:id/read", h.markRead)
}

// RegisterBroadcast binds the broadcast route on a hod-guarded group.
func (h *NotificationHandler) RegisterBroadcast(router fiber.Router) {
	router.Post("", h.broadcast)
}

func (h *NotificationHandler) broadcast(c *fiber.Ctx) error {
	var payload dto.BroadcastRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.service.Broadcast(h.requestContext(c), actorFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	requestLogger(h.logger, c).Info().Int("recipients", result.RecipientCount).Msg("broadcast sent")
	return utils.SendCreated(c, "broadcast sent", result)
}

func (h *NotificationHandler) list(c *fiber.Ctx) error {
	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}
	offset, err := parseQueryInt(c, "offset")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid offset")
	}

	notifications, err := h.service.List(h.requestContext(c), actorFromContext(c), limit, offset)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "notifications", notifications)
}

func (h *NotificationHandler) stream(c *fiber.Ctx) error {
	actor := actorFromContext(c)
	if actor.ID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	ctx, cancel := context.WithCancel(h.requestContext(c))

	stream, cleanup := h.service.Subscribe(actor.ID)

	keepAliveInterval := h.timeout
	if keepAliveInterval <= 0 {
		keepAliveInterval = 30 * time.Second
	}

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer func() {
			cleanup()
			cancel()
		}()

		ticker := time.NewTicker(keepAliveInterval / 2)
		defer ticker.Stop()

		for {
			select {
			case notification, ok := <-stream:
				if !ok {
					return
				}
				if err := writeNotificationEvent(w, notification); err != nil {
					h.logger.Debug().Err(err).Msg("failed to write notification event")
					return
				}
			case <-ticker.C:
				if err := writeKeepAlive(w); err != nil {
					h.logger.Debug().Err(err).Msg("failed to write notification keepalive")
					return
				}
			case <-ctx.Done():
				return
			}
		}
	})

	return nil
}

func (h *NotificationHandler) markRead(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid notification id")
	}

	notification, err := h.service.MarkRead(h.requestContext(c), actorFromContext(c), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "notification updated", notification)
}

func (h *NotificationHandler) requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
}

func (h *NotificationHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrRoleNotAllowed), errors.Is(err, service.ErrNoDepartment):
		return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
	case errors.Is(err, service.ErrEmptyMessage):
		return utils.SendError(c, fiber.StatusBadRequest, "message is empty")
	case errors.Is(err, gorm.ErrRecordNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "notification not found")
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}

func writeNotificationEvent(w *bufio.Writer, notification interface{}) error {
	payload, err := json.Marshal(notification)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: notification\n"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	return w.Flush()
}

func writeKeepAlive(w *bufio.Writer) error {
	if _, err := fmt.Fprintf(w, ": keep-alive %s\n\n", time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	return w.Flush()
}
