package models

import "time"

// Exam schedule statuses. Closed enumeration.
const (
	ExamStatusScheduled = "scheduled"
	ExamStatusCompleted = "completed"
	ExamStatusCancelled = "cancelled"
)

// ValidExamStatus reports whether s names a known exam schedule status.
func ValidExamStatus(s string) bool {
	switch s {
	case ExamStatusScheduled, ExamStatusCompleted, ExamStatusCancelled:
		return true
	}
	return false
}

// ExamSchedule places a locked, selected paper on the exam calendar. Created
// by exam cell users only.
type ExamSchedule struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	PaperID     uint      `gorm:"uniqueIndex;not null" json:"paper_id"`
	ScheduledAt time.Time `gorm:"not null" json:"scheduled_at"`
	DurationMin int       `gorm:"not null" json:"duration_min"`
	Room        string    `gorm:"size:64" json:"room"`
	Status      string    `gorm:"size:32;not null;default:scheduled" json:"status"`
	CreatedBy   uint      `gorm:"not null" json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Paper       Paper     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"paper"`
}
