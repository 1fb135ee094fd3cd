package dto

import (
	"time"

	"github.com/noah-isme/gema-discuss/internal/models"
)

// RoomCreateRequest creates a top-level room.
type RoomCreateRequest struct {
	Name        string   `json:"name" validate:"required,min=2,max=128,excludesall=# "`
	DisplayName string   `json:"display_name" validate:"omitempty,max=255"`
	Type        string   `json:"type" validate:"omitempty,oneof=channel private direct"`
	ReadOnly    bool     `json:"read_only"`
	Members     []string `json:"members" validate:"omitempty,max=100,dive,min=1,max=64"`
}

// RoomResponse describes a room returned by the API.
type RoomResponse struct {
	ID             string            `json:"id"`
	Type           string            `json:"type"`
	Name           string            `json:"name"`
	DisplayName    string            `json:"display_name"`
	ParentID       string            `json:"parent_id,omitempty"`
	OriginThreadID string            `json:"origin_thread_id,omitempty"`
	ReadOnly       bool              `json:"read_only"`
	Members        []string          `json:"members,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// NewRoomResponse converts a room and its members to DTO.
func NewRoomResponse(room models.Room, members []models.RoomMember) RoomResponse {
	response := RoomResponse{
		ID:             room.ID,
		Type:           room.Type,
		Name:           room.Name,
		DisplayName:    room.DisplayName,
		ParentID:       room.ParentID,
		OriginThreadID: room.OriginThreadID,
		ReadOnly:       room.ReadOnly,
		CreatedAt:      room.CreatedAt,
	}
	if len(room.Metadata) > 0 {
		response.Metadata = make(map[string]string, len(room.Metadata))
		for key, value := range room.Metadata {
			if str, ok := value.(string); ok {
				response.Metadata[key] = str
			}
		}
	}
	for _, member := range members {
		response.Members = append(response.Members, member.Username)
	}
	return response
}
