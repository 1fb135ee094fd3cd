package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-discuss/internal/models"
)

// ChatRepository persists chat messages and serves as the message directory.
type ChatRepository interface {
	Save(ctx context.Context, message *models.ChatMessage) error
	FindByID(ctx context.Context, id string) (models.ChatMessage, error)
	ListByRoom(ctx context.Context, roomID string, before time.Time, limit int) ([]models.ChatMessage, error)
	ListThread(ctx context.Context, threadID string, limit int) ([]models.ChatMessage, error)
}

type chatRepository struct {
	db *gorm.DB
}

// NewChatRepository constructs a chat repository backed by GORM.
func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db}
}

func (r *chatRepository) Save(ctx context.Context, message *models.ChatMessage) error {
	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Create(message).Error
}

func (r *chatRepository) FindByID(ctx context.Context, id string) (models.ChatMessage, error) {
	var message models.ChatMessage
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&message).Error; err != nil {
		return models.ChatMessage{}, translateError(err)
	}
	return message, nil
}

func (r *chatRepository) ListByRoom(ctx context.Context, roomID string, before time.Time, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := r.db.WithContext(ctx).Where("room_id = ?", roomID)
	if !before.IsZero() {
		query = query.Where("created_at < ?", before)
	}

	var messages []models.ChatMessage
	if err := query.Order("created_at DESC").Limit(limit).Find(&messages).Error; err != nil {
		return nil, err
	}

	// Reverse to chronological order ascending for clients.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

// ListThread returns the replies of a thread, oldest first.
func (r *chatRepository) ListThread(ctx context.Context, threadID string, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var messages []models.ChatMessage
	if err := r.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("created_at ASC").
		Limit(limit).
		Find(&messages).Error; err != nil {
		return nil, err
	}

	return messages, nil
}
