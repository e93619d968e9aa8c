package dto

import (
	"time"

	"github.com/examflow/examflow-api/internal/models"
)

// AnonymousPaperResponse is the HOD-facing projection of a paper. The uploader
// identity is replaced by a per-group sequential label; no field of this type
// may carry uploaded_by.
type AnonymousPaperResponse struct {
	ID         uint       `json:"id"`
	Label      string     `json:"label"`
	SetName    string     `json:"set_name"`
	Status     string     `json:"status"`
	Deadline   time.Time  `json:"deadline"`
	UploadedAt time.Time  `json:"uploaded_at"`
	Version    int        `json:"version"`
	IsSelected bool       `json:"is_selected"`
	Feedback   string     `json:"feedback"`
	ApprovedAt *time.Time `json:"approved_at"`
}

// ReviewGroupResponse groups competing submissions for one exam.
type ReviewGroupResponse struct {
	SubjectID   uint                     `json:"subject_id"`
	SubjectName string                   `json:"subject_name"`
	ExamType    string                   `json:"exam_type"`
	Submissions []AnonymousPaperResponse `json:"submissions"`
}

// RejectPaperRequest carries mandatory reviewer feedback.
type RejectPaperRequest struct {
	Feedback string `json:"feedback" validate:"required"`
}

// NewAnonymousPaperResponse projects a paper for review under the given label.
func NewAnonymousPaperResponse(model models.Paper, label string) AnonymousPaperResponse {
	return AnonymousPaperResponse{
		ID:         model.ID,
		Label:      label,
		SetName:    model.SetName,
		Status:     model.Status,
		Deadline:   model.Deadline,
		UploadedAt: model.UploadedAt,
		Version:    model.Version,
		IsSelected: model.IsSelected,
		Feedback:   model.Feedback,
		ApprovedAt: model.ApprovedAt,
	}
}
