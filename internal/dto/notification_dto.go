package dto

import (
	"time"

	"github.com/examflow/examflow-api/internal/models"
)

// BroadcastRequest creates per-recipient notification rows for a department-
// or subject-scoped alert.
type BroadcastRequest struct {
	Title      string     `json:"title" validate:"required,max=255"`
	Message    string     `json:"message" validate:"required"`
	Type       string     `json:"type" validate:"required,oneof=info warning critical success"`
	TargetMode string     `json:"target_mode" validate:"required,oneof=department subjects"`
	SubjectIDs []uint     `json:"subject_ids" validate:"omitempty,dive,gt=0"`
	ExpiresAt  *time.Time `json:"expires_at"`
}

// BroadcastResponse reports how many notification rows were written.
type BroadcastResponse struct {
	RecipientCount int `json:"recipient_count"`
}

// NotificationResponse serializes one per-recipient notification row.
type NotificationResponse struct {
	ID        uint       `json:"id"`
	UserID    uint       `json:"user_id"`
	SenderID  uint       `json:"sender_id"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	Type      string     `json:"type"`
	Read      bool       `json:"read"`
	ExpiresAt *time.Time `json:"expires_at"`
	CreatedAt time.Time  `json:"created_at"`
}

// NewNotificationResponse converts a Notification model into a DTO.
func NewNotificationResponse(model models.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        model.ID,
		UserID:    model.UserID,
		SenderID:  model.SenderID,
		Title:     model.Title,
		Message:   model.Message,
		Type:      model.Type,
		Read:      model.Read,
		ExpiresAt: model.ExpiresAt,
		CreatedAt: model.CreatedAt,
	}
}

// NewNotificationResponseSlice converts notification models into DTOs.
func NewNotificationResponseSlice(notifications []models.Notification) []NotificationResponse {
	responses := make([]NotificationResponse, 0, len(notifications))
	for _, notification := range notifications {
		responses = append(responses, NewNotificationResponse(notification))
	}

	return responses
}
