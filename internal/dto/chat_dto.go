package dto

import (
	"time"

	"github.com/noah-isme/gema-discuss/internal/models"
)

// ChatSendRequest represents the payload sent from clients to post a chat message.
type ChatSendRequest struct {
	RoomID   string `json:"room_id" validate:"required,max=64"`
	ThreadID string `json:"thread_id" validate:"omitempty,max=64"`
	Content  string `json:"content" validate:"required,min=1,max=4000"`
	Type     string `json:"type" validate:"omitempty,oneof=text image file system"`
}

// ChatHistoryQuery represents query filters for retrieving chat history.
type ChatHistoryQuery struct {
	RoomID   string     `query:"room_id" validate:"required,max=64"`
	ThreadID string     `query:"thread_id" validate:"omitempty,max=64"`
	Before   *time.Time `query:"before"`
	Limit    int        `query:"limit" validate:"omitempty,min=1,max=100"`
}

// AttachmentResponse is the serialized form of a message attachment.
type AttachmentResponse struct {
	Color     string `json:"color,omitempty"`
	Text      string `json:"text,omitempty"`
	Title     string `json:"title,omitempty"`
	TitleLink string `json:"title_link,omitempty"`
}

// ChatMessageResponse is the serialized representation of a chat message.
type ChatMessageResponse struct {
	ID          string               `json:"id"`
	RoomID      string               `json:"room_id"`
	SenderID    string               `json:"sender_id"`
	ThreadID    string               `json:"thread_id,omitempty"`
	Content     string               `json:"content"`
	Type        string               `json:"type"`
	Attachments []AttachmentResponse `json:"attachments,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
}

// NewChatMessageResponse converts a model into a DTO.
func NewChatMessageResponse(message models.ChatMessage) ChatMessageResponse {
	response := ChatMessageResponse{
		ID:        message.ID,
		RoomID:    message.RoomID,
		SenderID:  message.SenderID,
		ThreadID:  message.ThreadID,
		Content:   message.Content,
		Type:      message.Type,
		CreatedAt: message.CreatedAt,
	}
	for _, attachment := range message.Attachments {
		response.Attachments = append(response.Attachments, AttachmentResponse(attachment))
	}
	return response
}

// NewChatMessageResponseSlice converts a slice of models into DTOs.
func NewChatMessageResponseSlice(messages []models.ChatMessage) []ChatMessageResponse {
	out := make([]ChatMessageResponse, 0, len(messages))
	for _, message := range messages {
		out = append(out, NewChatMessageResponse(message))
	}
	return out
}

// NotificationCreateRequest describes the payload to create a notification.
type NotificationCreateRequest struct {
	UserID   string `json:"user_id" validate:"required,max=64"`
	SenderID string `json:"sender_id" validate:"omitempty,max=64"`
	RoomID   string `json:"room_id" validate:"omitempty,max=64"`
	ThreadID string `json:"thread_id" validate:"omitempty,max=64"`
	Type     string `json:"type" validate:"required,max=64"`
	Message  string `json:"message" validate:"required,min=1,max=2000"`
}

// NotificationResponse represents notification data returned to clients.
type NotificationResponse struct {
	ID        uint      `json:"id"`
	UserID    string    `json:"user_id"`
	SenderID  string    `json:"sender_id,omitempty"`
	RoomID    string    `json:"room_id,omitempty"`
	ThreadID  string    `json:"thread_id,omitempty"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewNotificationResponse converts a notification model to DTO.
func NewNotificationResponse(model models.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        model.ID,
		UserID:    model.UserID,
		SenderID:  model.SenderID,
		RoomID:    model.RoomID,
		ThreadID:  model.ThreadID,
		Type:      model.Type,
		Message:   model.Message,
		Read:      model.Read,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}

// NewNotificationResponseSlice converts a slice to DTOs.
func NewNotificationResponseSlice(items []models.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewNotificationResponse(item))
	}
	return out
}
