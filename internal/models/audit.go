package models

import (
	"time"

	"gorm.io/datatypes"
)

// AuditLog is an append-only record of sensitive actions. Rows are never
// mutated or deleted.
type AuditLog struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	ActorID    uint              `gorm:"not null" json:"actor_id"`
	ActorRole  string            `gorm:"size:32;not null" json:"actor_role"`
	Action     string            `gorm:"size:64;not null" json:"action"`
	EntityType string            `gorm:"size:64;not null" json:"entity_type"`
	EntityID   *uint             `json:"entity_id"`
	Details    datatypes.JSONMap `gorm:"type:json" json:"details"`
	CreatedAt  time.Time         `json:"created_at"`
}
