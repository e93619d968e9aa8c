package dto

import (
	"time"

	"gorm.io/datatypes"

	"github.com/examflow/examflow-api/internal/models"
)

// AdminUserCreateRequest creates an account, its profile and its role row.
type AdminUserCreateRequest struct {
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required,min=8"`
	FullName     string `json:"full_name" validate:"required,max=255"`
	Role         string `json:"role" validate:"required,oneof=admin teacher hod exam_cell"`
	DepartmentID *uint  `json:"department_id" validate:"omitempty,gt=0"`
}

// AdminUserUpdateRequest overwrites profile fields and the role assignment.
type AdminUserUpdateRequest struct {
	Email        *string `json:"email" validate:"omitempty,email"`
	Password     *string `json:"password" validate:"omitempty,min=8"`
	FullName     *string `json:"full_name" validate:"omitempty,max=255"`
	Role         *string `json:"role" validate:"omitempty,oneof=admin teacher hod exam_cell"`
	DepartmentID *uint   `json:"department_id" validate:"omitempty,gt=0"`
}

// UserResponse serializes a profile together with its role.
type UserResponse struct {
	ID           uint      `json:"id"`
	FullName     string    `json:"full_name"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	DepartmentID *uint     `json:"department_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewUserResponse converts a profile and its role into a DTO.
func NewUserResponse(profile models.Profile, role string) UserResponse {
	return UserResponse{
		ID:           profile.ID,
		FullName:     profile.FullName,
		Email:        profile.Email,
		Role:         role,
		DepartmentID: profile.DepartmentID,
		CreatedAt:    profile.CreatedAt,
	}
}

// DepartmentRequest creates or renames a department.
type DepartmentRequest struct {
	Name string `json:"name" validate:"required,max=255"`
	Code string `json:"code" validate:"omitempty,max=32"`
}

// DepartmentResponse serializes a department.
type DepartmentResponse struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"created_at"`
}

// NewDepartmentResponse converts a department model into a DTO.
func NewDepartmentResponse(model models.Department) DepartmentResponse {
	return DepartmentResponse{
		ID:        model.ID,
		Name:      model.Name,
		Code:      model.Code,
		CreatedAt: model.CreatedAt,
	}
}

// SubjectRequest creates or updates a subject.
type SubjectRequest struct {
	Name         string `json:"name" validate:"required,max=255"`
	Code         string `json:"code" validate:"omitempty,max=32"`
	Semester     int    `json:"semester" validate:"required,gte=1,lte=12"`
	DepartmentID uint   `json:"department_id" validate:"required,gt=0"`
}

// SubjectResponse serializes a subject.
type SubjectResponse struct {
	ID           uint      `json:"id"`
	Name         string    `json:"name"`
	Code         string    `json:"code"`
	Semester     int       `json:"semester"`
	DepartmentID uint      `json:"department_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewSubjectResponse converts a subject model into a DTO.
func NewSubjectResponse(model models.Subject) SubjectResponse {
	return SubjectResponse{
		ID:           model.ID,
		Name:         model.Name,
		Code:         model.Code,
		Semester:     model.Semester,
		DepartmentID: model.DepartmentID,
		CreatedAt:    model.CreatedAt,
	}
}

// NewSubjectResponseSlice converts subject models into DTOs.
func NewSubjectResponseSlice(subjects []models.Subject) []SubjectResponse {
	responses := make([]SubjectResponse, 0, len(subjects))
	for _, subject := range subjects {
		responses = append(responses, NewSubjectResponse(subject))
	}
	return responses
}

// SubjectAssignmentRequest links a teacher to a subject.
type SubjectAssignmentRequest struct {
	TeacherID uint `json:"teacher_id" validate:"required,gt=0"`
	SubjectID uint `json:"subject_id" validate:"required,gt=0"`
}

// AuditEntryResponse serializes an audit log row, optionally enriched with
// the actor display name.
type AuditEntryResponse struct {
	ID         uint              `json:"id"`
	ActorID    uint              `json:"actor_id"`
	ActorName  string            `json:"actor_name,omitempty"`
	ActorRole  string            `json:"actor_role"`
	Action     string            `json:"action"`
	EntityType string            `json:"entity_type"`
	EntityID   *uint             `json:"entity_id"`
	Details    datatypes.JSONMap `json:"details"`
	CreatedAt  time.Time         `json:"created_at"`
}

// AuditListRequest filters audit log listings.
type AuditListRequest struct {
	Page       int    `query:"page"`
	PageSize   int    `query:"page_size"`
	ActorID    uint   `query:"actor_id"`
	Action     string `query:"action"`
	EntityType string `query:"entity_type"`
}

// AuditListResponse is a paginated audit log listing.
type AuditListResponse struct {
	Items      []AuditEntryResponse `json:"items"`
	Pagination PaginationMeta       `json:"pagination"`
}

// NewAuditEntryResponse converts an audit log model into a DTO.
func NewAuditEntryResponse(model models.AuditLog) AuditEntryResponse {
	return AuditEntryResponse{
		ID:         model.ID,
		ActorID:    model.ActorID,
		ActorRole:  model.ActorRole,
		Action:     model.Action,
		EntityType: model.EntityType,
		EntityID:   model.EntityID,
		Details:    model.Details,
		CreatedAt:  model.CreatedAt,
	}
}
