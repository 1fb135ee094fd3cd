package service

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/noah-isme/gema-discuss/internal/models"
)

// Permalinks builds links into the chat web client.
type Permalinks struct {
	baseURL string
}

// NewPermalinks creates a link builder rooted at the site url.
func NewPermalinks(siteURL string) Permalinks {
	return Permalinks{baseURL: strings.TrimRight(strings.TrimSpace(siteURL), "/")}
}

// RoomURL links to a room.
func (p Permalinks) RoomURL(room models.Room) string {
	return fmt.Sprintf("%s/%s/%s", p.baseURL, roomSegment(room.Type), url.PathEscape(room.ID))
}

// MessageURL links to a message inside a room. The room is addressed by name, falling back to
// its id for unnamed rooms.
func (p Permalinks) MessageURL(room models.Room, messageID string) string {
	name := strings.TrimSpace(room.Name)
	if name == "" {
		name = room.ID
	}
	return fmt.Sprintf("%s/%s/%s?msg=%s", p.baseURL, roomSegment(room.Type), url.PathEscape(name), url.QueryEscape(messageID))
}

func roomSegment(roomType string) string {
	switch roomType {
	case models.RoomTypePrivate:
		return "group"
	case models.RoomTypeDirect:
		return "direct"
	default:
		return "channel"
	}
}
