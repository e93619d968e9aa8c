package models

import "time"

// Paper statuses. The set is closed; transitions follow the lifecycle table
// below and never revisit pending_review once left.
const (
	PaperStatusDraft         = "draft"
	PaperStatusSubmitted     = "submitted"
	PaperStatusPendingReview = "pending_review"
	PaperStatusApproved      = "approved"
	PaperStatusRejected      = "rejected"
	PaperStatusLocked        = "locked"
)

// Exam types. Closed enumeration.
const (
	ExamTypeMidTerm   = "mid_term"
	ExamTypeEndTerm   = "end_term"
	ExamTypePractical = "practical"
	ExamTypeInternal  = "internal"
)

// Lifecycle events applied to papers.
const (
	PaperEventUpload  = "upload"
	PaperEventApprove = "approve"
	PaperEventReject  = "reject"
	PaperEventSelect  = "select"
)

// ValidExamType reports whether the exam type belongs to the closed set.
func ValidExamType(examType string) bool {
	switch examType {
	case ExamTypeMidTerm, ExamTypeEndTerm, ExamTypePractical, ExamTypeInternal:
		return true
	default:
		return false
	}
}

// paperTransitions is the lifecycle graph: current status -> event -> next
// status. Forced rejection of approved siblings during selection is applied by
// the cascade, not through this table.
var paperTransitions = map[string]map[string]string{
	PaperStatusPendingReview: {
		PaperEventApprove: PaperStatusApproved,
		PaperEventReject:  PaperStatusRejected,
	},
	PaperStatusApproved: {
		PaperEventSelect: PaperStatusLocked,
	},
}

// NextPaperStatus resolves the status reached by applying event to current.
// The second return value is false when the transition is not allowed; locked
// papers have no outgoing transitions.
func NextPaperStatus(current, event string) (string, bool) {
	next, ok := paperTransitions[current][event]
	return next, ok
}

// Paper is one submitted exam-question-paper artifact.
type Paper struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	SubjectID  uint       `gorm:"index:idx_paper_group;not null" json:"subject_id"`
	ExamType   string     `gorm:"size:32;index:idx_paper_group;not null" json:"exam_type"`
	SetName    string     `gorm:"size:64" json:"set_name"`
	Status     string     `gorm:"size:32;not null;default:pending_review" json:"status"`
	Deadline   time.Time  `json:"deadline"`
	UploadedBy uint       `gorm:"index;not null" json:"uploaded_by"`
	UploadedAt time.Time  `gorm:"not null" json:"uploaded_at"`
	Version    int        `gorm:"not null;default:1" json:"version"`
	IsSelected bool       `gorm:"not null;default:false" json:"is_selected"`
	FilePath   string     `gorm:"size:512" json:"file_path"`
	Feedback   string     `gorm:"type:text" json:"feedback"`
	ApprovedBy *uint      `json:"approved_by"`
	ApprovedAt *time.Time `json:"approved_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	Subject    Subject    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"subject"`
	Uploader   Profile    `gorm:"foreignKey:UploadedBy;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"uploader"`
}

// IsLocked reports whether the paper reached the terminal locked state.
func (p Paper) IsLocked() bool {
	return p.Status == PaperStatusLocked
}

// GroupKey identifies the (subject, exam type) review group of the paper.
func (p Paper) GroupKey() PaperGroupKey {
	return PaperGroupKey{SubjectID: p.SubjectID, ExamType: p.ExamType}
}

// PaperGroupKey identifies a set of competing papers for one exam.
type PaperGroupKey struct {
	SubjectID uint
	ExamType  string
}
