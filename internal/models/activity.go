package models

import (
	"time"

	"gorm.io/datatypes"
)

// ActivityLog captures one auditable command invocation.
type ActivityLog struct {
	ID           uint              `gorm:"primaryKey" json:"id"`
	ActorID      string            `gorm:"size:64;index;not null" json:"actor_id"`
	Action       string            `gorm:"size:64;not null" json:"action"`
	RoomID       string            `gorm:"size:64" json:"room_id"`
	ThreadID     string            `gorm:"size:64;index" json:"thread_id,omitempty"`
	DiscussionID string            `gorm:"size:64" json:"discussion_id,omitempty"`
	Outcome      string            `gorm:"size:16;index;not null" json:"outcome"`
	Metadata     datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	CreatedAt    time.Time         `json:"created_at"`
}
