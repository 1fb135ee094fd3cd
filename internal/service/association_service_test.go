package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-discuss/internal/models"
)

func TestAssociationLookup(t *testing.T) {
	store := newAssociationStoreStub()
	store.rows["msg-1"] = models.NewThreadDiscussion(models.Room{
		ID:          "disc-1",
		Type:        models.RoomTypePrivate,
		ParentID:    "room-secret",
		Name:        "plan",
		DisplayName: "Plan",
	}, "msg-1")
	store.rows["msg-2"] = models.ThreadDiscussion{ThreadID: "msg-2", ClaimedBy: "inv-1"}

	svc := NewAssociationService(store, NewPermalinks("https://chat.example.com/"), testLogger())
	ctx := context.Background()

	complete, err := svc.Lookup(ctx, " msg-1 ")
	require.NoError(t, err)
	require.Equal(t, "complete", complete.Status)
	require.Equal(t, "disc-1", complete.DiscussionID)
	require.Equal(t, "plan", complete.DiscussionName)
	require.Equal(t, "room-secret", complete.ParentRoomID)
	require.Equal(t, "https://chat.example.com/group/disc-1", complete.URL)

	pending, err := svc.Lookup(ctx, "msg-2")
	require.NoError(t, err)
	require.Equal(t, "pending", pending.Status)
	require.Equal(t, "inv-1", pending.ClaimedBy)
	require.Empty(t, pending.URL)

	_, err = svc.Lookup(ctx, "msg-3")
	require.ErrorIs(t, err, ErrAssociationNotFound)

	_, err = svc.Lookup(ctx, "  ")
	require.ErrorIs(t, err, ErrAssociationNotFound)

	store.findErr = errBoom
	_, err = svc.Lookup(ctx, "msg-1")
	require.ErrorIs(t, err, errBoom)
}
