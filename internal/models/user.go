package models

import "time"

// Role values assignable to a profile. The set is closed; new roles require a
// coordinated schema and client update.
const (
	RoleAdmin    = "admin"
	RoleTeacher  = "teacher"
	RoleHOD      = "hod"
	RoleExamCell = "exam_cell"
)

// ValidRole reports whether the given role belongs to the closed role set.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleTeacher, RoleHOD, RoleExamCell:
		return true
	default:
		return false
	}
}

// Profile represents an account holder. The role is intentionally not a field
// here: it lives in UserRole so it can be reassigned without rewriting the
// identity record.
type Profile struct {
	ID           uint        `gorm:"primaryKey" json:"id"`
	FullName     string      `gorm:"size:255;not null" json:"full_name"`
	Email        string      `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash string      `gorm:"size:255;not null" json:"-"`
	DepartmentID *uint       `gorm:"index" json:"department_id"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
	Department   *Department `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"department,omitempty"`
}

// UserRole assigns exactly one role to a profile, one row per user.
type UserRole struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	Role      string    `gorm:"size:32;not null" json:"role"`
	CreatedAt time.Time `json:"created_at"`
}
