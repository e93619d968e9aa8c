package models

import "time"

// Notification types understood by clients.
const (
	NotificationTypeInfo     = "info"
	NotificationTypeWarning  = "warning"
	NotificationTypeCritical = "critical"
	NotificationTypeSuccess  = "success"
)

// Broadcast target modes.
const (
	BroadcastTargetDepartment = "department"
	BroadcastTargetSubjects   = "subjects"
)

// Notification is a per-recipient alert row. Broadcasts are denormalized into
// one row per recipient so read state stays independent per user.
type Notification struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"index;not null" json:"user_id"`
	SenderID  uint       `gorm:"index" json:"sender_id"`
	Title     string     `gorm:"size:255;not null" json:"title"`
	Message   string     `gorm:"type:text;not null" json:"message"`
	Type      string     `gorm:"size:32;not null;default:info" json:"type"`
	Read      bool       `gorm:"not null;default:false" json:"read"`
	ExpiresAt *time.Time `json:"expires_at"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Expired reports whether the notification passed its optional expiry.
func (n Notification) Expired(reference time.Time) bool {
	return n.ExpiresAt != nil && reference.After(*n.ExpiresAt)
}
