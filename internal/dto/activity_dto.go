package dto

import (
	"time"

	"github.com/noah-isme/gema-discuss/internal/models"
)

// PaginationMeta captures pagination metadata for list responses.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// ActivityListRequest defines filters for retrieving activity logs.
type ActivityListRequest struct {
	Page     int
	PageSize int
	ActorID  string
	Action   string
	Outcome  string
	ThreadID string
}

// ActivityResponse serializes activity log entries.
type ActivityResponse struct {
	ID           uint                   `json:"id"`
	ActorID      string                 `json:"actor_id"`
	Action       string                 `json:"action"`
	RoomID       string                 `json:"room_id"`
	ThreadID     string                 `json:"thread_id,omitempty"`
	DiscussionID string                 `json:"discussion_id,omitempty"`
	Outcome      string                 `json:"outcome"`
	Metadata     map[string]interface{} `json:"metadata"`
	CreatedAt    time.Time              `json:"created_at"`
}

// ActivityListResponse wraps paginated activity logs.
type ActivityListResponse struct {
	Items      []ActivityResponse `json:"items"`
	Pagination PaginationMeta     `json:"pagination"`
}

// NewActivityResponse maps the model to its response.
func NewActivityResponse(model models.ActivityLog) ActivityResponse {
	metadata := map[string]interface{}{}
	for key, value := range model.Metadata {
		metadata[key] = value
	}
	return ActivityResponse{
		ID:           model.ID,
		ActorID:      model.ActorID,
		Action:       model.Action,
		RoomID:       model.RoomID,
		ThreadID:     model.ThreadID,
		DiscussionID: model.DiscussionID,
		Outcome:      model.Outcome,
		Metadata:     metadata,
		CreatedAt:    model.CreatedAt,
	}
}
