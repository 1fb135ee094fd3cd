package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/noah-isme/gema-discuss/internal/models"
)

func TestActivityLogRepositoryFilters(t *testing.T) {
	db := setupTestDB(t)
	repo := NewActivityLogRepository(db)
	ctx := context.Background()

	entries := []models.ActivityLog{
		{ActorID: "u-alice", Action: "discuss", RoomID: "room-general", ThreadID: "msg-1", Outcome: "created", Metadata: datatypes.JSONMap{"path": "thread"}},
		{ActorID: "u-bob", Action: "discuss", RoomID: "room-general", ThreadID: "msg-1", Outcome: "joined"},
		{ActorID: "u-bob", Action: "discuss", RoomID: "room-general", Outcome: "rejected"},
	}
	for i := range entries {
		require.NoError(t, repo.Create(ctx, &entries[i]))
	}

	all, total, err := repo.List(ctx, ActivityLogFilter{})
	require.NoError(t, err)
	require.Equal(t, int64(3), total)
	require.Len(t, all, 3)
	require.Equal(t, "rejected", all[0].Outcome)

	bob, total, err := repo.List(ctx, ActivityLogFilter{ActorID: "u-bob", PageSize: 1})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Len(t, bob, 1)

	thread, total, err := repo.List(ctx, ActivityLogFilter{ThreadID: "msg-1", Outcome: "created"})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, "u-alice", thread[0].ActorID)
	require.Equal(t, "thread", thread[0].Metadata["path"])
}
