package models

import "time"

// Department owns subjects and profiles. Deleting one is refused while any
// profile or subject still references it.
type Department struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;uniqueIndex;not null" json:"name"`
	Code      string    `gorm:"size:32" json:"code"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Subject is a course unit belonging to exactly one department.
type Subject struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Name         string     `gorm:"size:255;not null" json:"name"`
	Code         string     `gorm:"size:32" json:"code"`
	Semester     int        `gorm:"not null" json:"semester"`
	DepartmentID uint       `gorm:"index;not null" json:"department_id"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	Department   Department `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"department"`
}

// TeacherSubjectAssignment links a teacher-role profile to a subject it may
// upload papers for. Subject-scoped broadcasts resolve recipients through it.
type TeacherSubjectAssignment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TeacherID uint      `gorm:"index:idx_teacher_subject,unique;not null" json:"teacher_id"`
	SubjectID uint      `gorm:"index:idx_teacher_subject,unique;not null" json:"subject_id"`
	CreatedAt time.Time `json:"created_at"`
	Subject   Subject   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"subject"`
}
