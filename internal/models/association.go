package models

import (
	"time"

	"gorm.io/datatypes"
)

// ThreadDiscussion records that a discussion was created for a thread. A row without a
// DiscussionID is a claim held by an invocation that is still creating the discussion.
type ThreadDiscussion struct {
	ID           uint              `gorm:"primaryKey" json:"id"`
	ThreadID     string            `gorm:"size:64;uniqueIndex;not null" json:"thread_id"`
	DiscussionID string            `gorm:"size:64;index" json:"discussion_id,omitempty"`
	ParentRoomID string            `gorm:"size:64" json:"parent_room_id,omitempty"`
	RoomType     string            `gorm:"size:16" json:"room_type,omitempty"`
	Slug         string            `gorm:"size:128" json:"slug,omitempty"`
	DisplayName  string            `gorm:"size:255" json:"display_name,omitempty"`
	Snapshot     datatypes.JSONMap `gorm:"type:json" json:"snapshot,omitempty"`
	ClaimedBy    string            `gorm:"size:64" json:"claimed_by,omitempty"`
	ClaimedAt    time.Time         `json:"claimed_at"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Pending reports whether the row is only a claim.
func (t ThreadDiscussion) Pending() bool {
	return t.DiscussionID == ""
}

// NewThreadDiscussion snapshots the fields of a discussion room needed for later lookups.
func NewThreadDiscussion(discussion Room, threadID string) ThreadDiscussion {
	return ThreadDiscussion{
		ThreadID:     threadID,
		DiscussionID: discussion.ID,
		ParentRoomID: discussion.ParentID,
		RoomType:     discussion.Type,
		Slug:         discussion.Name,
		DisplayName:  discussion.DisplayName,
		Snapshot: datatypes.JSONMap{
			"id":           discussion.ID,
			"type":         discussion.Type,
			"name":         discussion.Name,
			"display_name": discussion.DisplayName,
			"parent_id":    discussion.ParentID,
			"creator_id":   discussion.CreatorID,
		},
	}
}

// DiscussionRoom rebuilds the minimal room view stored in the association.
func (t ThreadDiscussion) DiscussionRoom() Room {
	return Room{
		ID:          t.DiscussionID,
		Type:        t.RoomType,
		ParentID:    t.ParentRoomID,
		Name:        t.Slug,
		DisplayName: t.DisplayName,
	}
}
