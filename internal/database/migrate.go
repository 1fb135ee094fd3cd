package database

import (
	"gorm.io/gorm"

	"github.com/noah-isme/gema-discuss/internal/models"
)

// Models lists every table owned by the service.
func Models() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Room{},
		&models.RoomMember{},
		&models.ChatMessage{},
		&models.Notification{},
		&models.ThreadDiscussion{},
		&models.ActivityLog{},
	}
}

// Migrate creates or updates the schema.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
