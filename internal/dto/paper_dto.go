package dto

import (
	"time"

	"github.com/examflow/examflow-api/internal/models"
)

// PaperUploadRequest describes the multipart payload for a paper upload.
type PaperUploadRequest struct {
	SubjectID uint      `form:"subject_id" validate:"required,gt=0"`
	ExamType  string    `form:"exam_type" validate:"required,oneof=mid_term end_term practical internal"`
	SetName   string    `form:"set_name" validate:"required,max=64"`
	Deadline  time.Time `form:"deadline"`
}

// SubjectLite summarizes a subject in paper responses.
type SubjectLite struct {
	ID           uint   `json:"id"`
	Name         string `json:"name"`
	Code         string `json:"code"`
	Semester     int    `json:"semester"`
	DepartmentID uint   `json:"department_id"`
}

// PaperResponse is returned to teachers and the exam cell. It carries the
// uploader identity; the anonymized review projection never uses this type.
type PaperResponse struct {
	ID         uint        `json:"id"`
	SubjectID  uint        `json:"subject_id"`
	ExamType   string      `json:"exam_type"`
	SetName    string      `json:"set_name"`
	Status     string      `json:"status"`
	Deadline   time.Time   `json:"deadline"`
	UploadedBy uint        `json:"uploaded_by"`
	UploadedAt time.Time   `json:"uploaded_at"`
	Version    int         `json:"version"`
	IsSelected bool        `json:"is_selected"`
	FilePath   string      `json:"file_path"`
	Feedback   string      `json:"feedback"`
	ApprovedBy *uint       `json:"approved_by"`
	ApprovedAt *time.Time  `json:"approved_at"`
	Subject    SubjectLite `json:"subject"`
}

// NewPaperResponse converts a Paper model into a DTO.
func NewPaperResponse(model models.Paper) PaperResponse {
	response := PaperResponse{
		ID:         model.ID,
		SubjectID:  model.SubjectID,
		ExamType:   model.ExamType,
		SetName:    model.SetName,
		Status:     model.Status,
		Deadline:   model.Deadline,
		UploadedBy: model.UploadedBy,
		UploadedAt: model.UploadedAt,
		Version:    model.Version,
		IsSelected: model.IsSelected,
		FilePath:   model.FilePath,
		Feedback:   model.Feedback,
		ApprovedBy: model.ApprovedBy,
		ApprovedAt: model.ApprovedAt,
	}

	if model.Subject.ID != 0 {
		response.Subject = SubjectLite{
			ID:           model.Subject.ID,
			Name:         model.Subject.Name,
			Code:         model.Subject.Code,
			Semester:     model.Subject.Semester,
			DepartmentID: model.Subject.DepartmentID,
		}
	}

	return response
}

// NewPaperResponseSlice converts paper models into DTOs.
func NewPaperResponseSlice(papers []models.Paper) []PaperResponse {
	responses := make([]PaperResponse, 0, len(papers))
	for _, paper := range papers {
		responses = append(responses, NewPaperResponse(paper))
	}

	return responses
}
