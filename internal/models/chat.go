package models

import (
	"time"

	"gorm.io/datatypes"
)

// Room types understood by the room directory.
const (
	RoomTypeChannel = "channel"
	RoomTypePrivate = "private"
	RoomTypeDirect  = "direct"
)

// User is a chat identity. The application itself is represented by a user as well.
type User struct {
	ID          string    `gorm:"primaryKey;size:64" json:"id"`
	Username    string    `gorm:"size:64;uniqueIndex;not null" json:"username"`
	DisplayName string    `gorm:"size:128" json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Room is a chat room. Discussions are rooms with a parent.
type Room struct {
	ID             string            `gorm:"primaryKey;size:64" json:"id"`
	Type           string            `gorm:"size:16;not null;default:channel" json:"type"`
	ParentID       string            `gorm:"size:64;not null;default:'';uniqueIndex:ux_room_parent_name,priority:1" json:"parent_id,omitempty"`
	Name           string            `gorm:"size:128;not null;uniqueIndex:ux_room_parent_name,priority:2" json:"name"`
	DisplayName    string            `gorm:"size:255" json:"display_name"`
	CreatorID      string            `gorm:"size:64;index" json:"creator_id"`
	ReadOnly       bool              `gorm:"not null;default:false" json:"read_only"`
	OriginThreadID string            `gorm:"size:64;index" json:"origin_thread_id,omitempty"`
	Metadata       datatypes.JSONMap `gorm:"type:json" json:"metadata,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// IsDiscussion reports whether the room was started as a discussion of another room.
func (r Room) IsDiscussion() bool {
	return r.ParentID != ""
}

// IsDirect reports whether the room is a direct message conversation.
func (r Room) IsDirect() bool {
	return r.Type == RoomTypeDirect
}

// Label returns the most readable name of the room.
func (r Room) Label() string {
	if r.DisplayName != "" {
		return r.DisplayName
	}
	return r.Name
}

// RoomMember links a user to a room.
type RoomMember struct {
	RoomID    string    `gorm:"primaryKey;size:64" json:"room_id"`
	UserID    string    `gorm:"primaryKey;size:64" json:"user_id"`
	Username  string    `gorm:"size:64" json:"username"`
	CreatedAt time.Time `json:"joined_at"`
}

// Attachment is a rich block rendered below a message.
type Attachment struct {
	Color     string `json:"color,omitempty"`
	Text      string `json:"text,omitempty"`
	Title     string `json:"title,omitempty"`
	TitleLink string `json:"title_link,omitempty"`
}

// ChatMessage represents a single chat payload posted into a room. ThreadID references the
// original message of the thread the message replies to.
type ChatMessage struct {
	ID          string                          `gorm:"primaryKey;size:64" json:"id"`
	RoomID      string                          `gorm:"size:64;index" json:"room_id"`
	SenderID    string                          `gorm:"size:64;index" json:"sender_id"`
	ThreadID    string                          `gorm:"size:64;index" json:"thread_id,omitempty"`
	Content     string                          `gorm:"type:text" json:"content"`
	Type        string                          `gorm:"size:32;default:text" json:"type"`
	Attachments datatypes.JSONSlice[Attachment] `gorm:"type:json" json:"attachments,omitempty"`
	CreatedAt   time.Time                       `json:"created_at"`
	UpdatedAt   time.Time                       `json:"updated_at"`
}

// Notification is a message delivered to a single user only.
type Notification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"size:64;index" json:"user_id"`
	SenderID  string    `gorm:"size:64" json:"sender_id"`
	RoomID    string    `gorm:"size:64" json:"room_id"`
	ThreadID  string    `gorm:"size:64" json:"thread_id"`
	Type      string    `gorm:"size:64" json:"type"`
	Message   string    `gorm:"type:text" json:"message"`
	Read      bool      `gorm:"not null;default:false" json:"read"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
