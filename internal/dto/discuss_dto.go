package dto

import "time"

// DiscussCommandRequest is one invocation of the /discuss command. Arguments are the
// host-tokenized command arguments; Text is accepted when the caller has not tokenized them.
type DiscussCommandRequest struct {
	RoomID    string   `json:"room_id" validate:"required,max=64"`
	ThreadID  string   `json:"thread_id" validate:"omitempty,max=64"`
	Arguments []string `json:"arguments" validate:"omitempty,max=64,dive,max=512"`
	Text      string   `json:"text" validate:"omitempty,max=4000"`
}

// DiscussCommandResponse reports how an invocation ended.
type DiscussCommandResponse struct {
	Outcome        string `json:"outcome"`
	DiscussionID   string `json:"discussion_id,omitempty"`
	DiscussionName string `json:"discussion_name,omitempty"`
	URL            string `json:"url,omitempty"`
	Message        string `json:"message,omitempty"`
	Notified       bool   `json:"notified"`
	PersistenceGap bool   `json:"persistence_gap,omitempty"`
}

// AssociationResponse describes the discussion recorded for a thread.
type AssociationResponse struct {
	ThreadID       string    `json:"thread_id"`
	Status         string    `json:"status"`
	DiscussionID   string    `json:"discussion_id,omitempty"`
	DiscussionName string    `json:"discussion_name,omitempty"`
	DisplayName    string    `json:"display_name,omitempty"`
	ParentRoomID   string    `json:"parent_room_id,omitempty"`
	URL            string    `json:"url,omitempty"`
	ClaimedBy      string    `json:"claimed_by,omitempty"`
	ClaimedAt      time.Time `json:"claimed_at,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
