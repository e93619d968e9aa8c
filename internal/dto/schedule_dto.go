package dto

import (
	"time"

	"github.com/examflow/examflow-api/internal/models"
)

// ScheduleCreateRequest places a locked paper on the exam calendar.
type ScheduleCreateRequest struct {
	PaperID     uint      `json:"paper_id" validate:"required,gt=0"`
	ScheduledAt time.Time `json:"scheduled_at" validate:"required"`
	DurationMin int       `json:"duration_min" validate:"required,gte=30,lte=480"`
	Room        string    `json:"room" validate:"omitempty,max=64"`
}

// ScheduleResponse serializes an exam schedule.
type ScheduleResponse struct {
	ID          uint        `json:"id"`
	PaperID     uint        `json:"paper_id"`
	ScheduledAt time.Time   `json:"scheduled_at"`
	DurationMin int         `json:"duration_min"`
	Room        string      `json:"room"`
	Status      string      `json:"status"`
	CreatedBy   uint        `json:"created_by"`
	Subject     SubjectLite `json:"subject"`
	CreatedAt   time.Time   `json:"created_at"`
}

// NewScheduleResponse converts an exam schedule model into a DTO.
func NewScheduleResponse(model models.ExamSchedule) ScheduleResponse {
	response := ScheduleResponse{
		ID:          model.ID,
		PaperID:     model.PaperID,
		ScheduledAt: model.ScheduledAt,
		DurationMin: model.DurationMin,
		Room:        model.Room,
		Status:      model.Status,
		CreatedBy:   model.CreatedBy,
		CreatedAt:   model.CreatedAt,
	}

	if model.Paper.Subject.ID != 0 {
		response.Subject = SubjectLite{
			ID:           model.Paper.Subject.ID,
			Name:         model.Paper.Subject.Name,
			Code:         model.Paper.Subject.Code,
			Semester:     model.Paper.Subject.Semester,
			DepartmentID: model.Paper.Subject.DepartmentID,
		}
	}

	return response
}

// NewScheduleResponseSlice converts schedule models into DTOs.
func NewScheduleResponseSlice(schedules []models.ExamSchedule) []ScheduleResponse {
	responses := make([]ScheduleResponse, 0, len(schedules))
	for _, schedule := range schedules {
		responses = append(responses, NewScheduleResponse(schedule))
	}

	return responses
}
