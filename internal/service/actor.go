package service

import (
	"errors"

	"github.com/examflow/examflow-api/internal/models"
)

// Actor is the authenticated identity performing an operation: id, role and
// department resolved from the store per request. It is passed explicitly so
// lifecycle guards stay testable without ambient session state.
type Actor struct {
	ID           uint
	Role         string
	DepartmentID *uint
}

// ErrRoleNotAllowed indicates the actor's role may not invoke the operation.
var ErrRoleNotAllowed = errors.New("role not allowed for this action")

// ErrNoDepartment indicates the operation requires a department affiliation
// the actor does not have.
var ErrNoDepartment = errors.New("actor has no department")

// InDepartment reports whether the actor belongs to the given department.
func (a Actor) InDepartment(departmentID uint) bool {
	return a.DepartmentID != nil && *a.DepartmentID == departmentID
}

// IsHeadOf reports whether the actor is the HOD for the given department.
func (a Actor) IsHeadOf(departmentID uint) bool {
	return a.Role == models.RoleHOD && a.InDepartment(departmentID)
}
