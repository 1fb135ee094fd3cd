package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-discuss/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Room{},
		&models.RoomMember{},
		&models.ChatMessage{},
		&models.Notification{},
		&models.ThreadDiscussion{},
		&models.ActivityLog{},
	))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func seedUser(t *testing.T, db *gorm.DB, id, username string) models.User {
	t.Helper()
	user := models.User{ID: id, Username: username, DisplayName: username}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func seedRoom(t *testing.T, repo RoomRepository, room models.Room, members ...models.User) models.Room {
	t.Helper()
	require.NoError(t, repo.Create(context.Background(), &room, members))
	return room
}
