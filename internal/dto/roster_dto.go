package dto

// RosterAddRequest attaches an existing teacher account to the caller's
// department, creating the account first when no profile matches the email.
type RosterAddRequest struct {
	Email    string `json:"email" validate:"required,email"`
	FullName string `json:"full_name" validate:"omitempty,max=255"`
	Password string `json:"password" validate:"omitempty,min=8"`
}

// RosterRemoveRequest detaches a teacher from the caller's department.
type RosterRemoveRequest struct {
	TeacherID uint `json:"teacher_id" validate:"required,gt=0"`
}
