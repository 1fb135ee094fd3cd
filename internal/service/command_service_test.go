package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-discuss/internal/dto"
	"github.com/noah-isme/gema-discuss/internal/models"
)

type commandFixture struct {
	*resolverFixture
	app           models.User
	notifications *notificationStub
	audit         *activityRecorderStub
	service       CommandService
}

func newCommandFixture(t *testing.T) *commandFixture {
	t.Helper()

	f := &commandFixture{
		resolverFixture: newResolverFixture(t),
		app:             models.User{ID: "u-app", Username: "discuss.bot"},
		notifications:   &notificationStub{},
		audit:           &activityRecorderStub{},
	}
	f.rooms.members[f.general.ID] = map[string]bool{f.alice.ID: true, f.bob.ID: true}
	f.service = NewCommandService(
		f.users,
		f.rooms,
		f.app,
		f.resolver,
		NewCLITargetResolver(f.rooms),
		f.gateway,
		f.notifications,
		f.audit,
		NewPermalinks("https://chat.example.com"),
		testLogger(),
	)
	return f
}

func TestDiscussCreatedFromThreadDoesNotNotify(t *testing.T) {
	f := newCommandFixture(t)

	resp, err := f.service.Discuss(context.Background(), f.bob.ID, dto.DiscussCommandRequest{RoomID: f.general.ID, ThreadID: "msg-1"})
	require.NoError(t, err)
	require.Equal(t, "created", resp.Outcome)
	require.Equal(t, "disc-ship-v2", resp.DiscussionID)
	require.Equal(t, "Ship v2", resp.DiscussionName)
	require.Equal(t, "https://chat.example.com/channel/disc-ship-v2", resp.URL)
	require.False(t, resp.Notified)
	require.Empty(t, f.notifications.published)

	require.Len(t, f.audit.entries, 1)
	entry := f.audit.entries[0]
	require.Equal(t, f.bob.ID, entry.ActorID)
	require.Equal(t, "discuss", entry.Action)
	require.Equal(t, "created", entry.Outcome)
	require.Equal(t, "msg-1", entry.ThreadID)
	require.Equal(t, "disc-ship-v2", entry.DiscussionID)
	require.Equal(t, "thread", entry.Metadata["path"])
}

func TestDiscussJoinNotifiesOnce(t *testing.T) {
	f := newCommandFixture(t)
	ctx := context.Background()

	_, err := f.service.Discuss(ctx, f.bob.ID, dto.DiscussCommandRequest{RoomID: f.general.ID, ThreadID: "msg-1"})
	require.NoError(t, err)
	f.rooms.rooms["disc-ship-v2"] = models.Room{ID: "disc-ship-v2", Type: models.RoomTypeChannel, ParentID: f.general.ID}

	resp, err := f.service.Discuss(ctx, f.alice.ID, dto.DiscussCommandRequest{RoomID: f.general.ID, ThreadID: "msg-1"})
	require.NoError(t, err)
	require.Equal(t, "joined", resp.Outcome)
	require.True(t, resp.Notified)
	require.Len(t, f.gateway.requests, 1)

	require.Len(t, f.notifications.published, 1)
	note := f.notifications.published[0]
	require.Equal(t, f.alice.ID, note.UserID)
	require.Equal(t, f.app.ID, note.SenderID)
	require.Equal(t, f.general.ID, note.RoomID)
	require.Equal(t, "msg-1", note.ThreadID)
	require.Equal(t, "discuss", note.Type)
	require.Equal(t, "A discussion already exists, please join [here](https://chat.example.com/channel/disc-ship-v2).", note.Message)
}

func TestDiscussFromCLI(t *testing.T) {
	f := newCommandFixture(t)

	resp, err := f.service.Discuss(context.Background(), f.alice.ID, dto.DiscussCommandRequest{
		RoomID:    f.general.ID,
		Arguments: []string{"#general", "Release", "plan"},
	})
	require.NoError(t, err)
	require.Equal(t, "created", resp.Outcome)
	require.Equal(t, "disc-release-plan", resp.DiscussionID)
	require.Empty(t, f.notifications.published)

	require.Len(t, f.gateway.requests, 1)
	require.Empty(t, f.gateway.requests[0].OriginThreadID)
	require.Empty(t, f.store.recorded)
}

func TestDiscussFromCLIUsesText(t *testing.T) {
	f := newCommandFixture(t)

	resp, err := f.service.Discuss(context.Background(), f.alice.ID, dto.DiscussCommandRequest{RoomID: f.general.ID, Text: "Release plan"})
	require.NoError(t, err)
	require.Equal(t, "created", resp.Outcome)
	require.Equal(t, "Release plan", f.gateway.requests[0].Title)
}

func TestDiscussRejectionsNotify(t *testing.T) {
	dm := models.Room{ID: "room-dm", Type: models.RoomTypeDirect, Name: "alice-bob"}

	cases := []struct {
		name    string
		req     dto.DiscussCommandRequest
		message string
	}{
		{
			name:    "missing name",
			req:     dto.DiscussCommandRequest{RoomID: "room-general"},
			message: "you must provide a discussion name",
		},
		{
			name:    "unknown target room",
			req:     dto.DiscussCommandRequest{RoomID: "room-general", Text: "#nowhere plan"},
			message: "room `nowhere` not found",
		},
		{
			name:    "direct message context",
			req:     dto.DiscussCommandRequest{RoomID: dm.ID, Text: "plan"},
			message: "this room isn't a public channel or private group, either pass a different `#RoomName` or execute `/discuss` in another room",
		},
		{
			name:    "thread in direct message",
			req:     dto.DiscussCommandRequest{RoomID: dm.ID, ThreadID: "msg-1"},
			message: "this room isn't a public channel or private group, either pass a `#RoomName` or execute `/discuss` in a different room",
		},
		{
			name:    "thread without name",
			req:     dto.DiscussCommandRequest{RoomID: "room-general", ThreadID: "msg-unknown"},
			message: "no thread message text found to use as discussion name, please provide one",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newCommandFixture(t)
			f.rooms.rooms[dm.ID] = dm
			f.rooms.members[dm.ID] = map[string]bool{f.alice.ID: true}

			resp, err := f.service.Discuss(context.Background(), f.alice.ID, tc.req)
			require.NoError(t, err)
			require.Equal(t, "rejected", resp.Outcome)
			require.Equal(t, tc.message, resp.Message)
			require.True(t, resp.Notified)
			require.Len(t, f.notifications.published, 1)
			require.Equal(t, tc.message, f.notifications.published[0].Message)
			require.Empty(t, f.gateway.requests)

			require.Len(t, f.audit.entries, 1)
			require.Equal(t, "rejected", f.audit.entries[0].Outcome)
			require.Equal(t, tc.message, f.audit.entries[0].Metadata["reason"])
		})
	}
}

func TestDiscussNotAMember(t *testing.T) {
	f := newCommandFixture(t)
	secret := models.Room{ID: "room-secret", Type: models.RoomTypePrivate, Name: "secret", DisplayName: "Secret"}
	f.rooms.rooms[secret.ID] = secret

	resp, err := f.service.Discuss(context.Background(), f.alice.ID, dto.DiscussCommandRequest{RoomID: f.general.ID, Text: "#secret plan"})
	require.NoError(t, err)
	require.Equal(t, "rejected", resp.Outcome)
	require.Equal(t, "You are not a member of said room: Secret", resp.Message)
	require.Empty(t, f.gateway.requests)
}

func TestDiscussHostRejectionUsesReason(t *testing.T) {
	f := newCommandFixture(t)
	f.gateway.err = &NotAllowedError{Reason: "room General is read-only"}

	resp, err := f.service.Discuss(context.Background(), f.alice.ID, dto.DiscussCommandRequest{RoomID: f.general.ID, Text: "plan"})
	require.NoError(t, err)
	require.Equal(t, "rejected", resp.Outcome)
	require.Equal(t, "room General is read-only", resp.Message)
	require.Len(t, f.notifications.published, 1)
}

func TestDiscussHostFailureIsGeneric(t *testing.T) {
	f := newCommandFixture(t)
	f.gateway.err = hostError("create discussion", errBoom)

	resp, err := f.service.Discuss(context.Background(), f.alice.ID, dto.DiscussCommandRequest{RoomID: f.general.ID, ThreadID: "msg-1"})
	require.NoError(t, err)
	require.Equal(t, "failed", resp.Outcome)
	require.Equal(t, "something went wrong while starting the discussion, please try again later", resp.Message)
	require.NotContains(t, resp.Message, "boom")
	require.Len(t, f.notifications.published, 1)
	require.Empty(t, f.store.recorded)
}

func TestDiscussNotificationFailureIsBestEffort(t *testing.T) {
	f := newCommandFixture(t)
	f.notifications.err = errBoom

	resp, err := f.service.Discuss(context.Background(), f.alice.ID, dto.DiscussCommandRequest{RoomID: f.general.ID})
	require.NoError(t, err)
	require.Equal(t, "rejected", resp.Outcome)
	require.False(t, resp.Notified)
}

func TestDiscussUnknownUserOrRoom(t *testing.T) {
	f := newCommandFixture(t)

	_, err := f.service.Discuss(context.Background(), "u-ghost", dto.DiscussCommandRequest{RoomID: f.general.ID})
	require.ErrorIs(t, err, ErrUnknownUser)

	_, err = f.service.Discuss(context.Background(), f.alice.ID, dto.DiscussCommandRequest{RoomID: "room-ghost"})
	require.ErrorIs(t, err, ErrUnknownRoom)

	require.Empty(t, f.notifications.published)
	require.Empty(t, f.audit.entries)
}

func TestDiscussAuditFailureDoesNotChangeOutcome(t *testing.T) {
	f := newCommandFixture(t)
	f.audit.err = errBoom

	resp, err := f.service.Discuss(context.Background(), f.alice.ID, dto.DiscussCommandRequest{RoomID: f.general.ID, Text: "plan"})
	require.NoError(t, err)
	require.Equal(t, "created", resp.Outcome)
}

func TestDiscussReportsPersistenceGap(t *testing.T) {
	f := newCommandFixture(t)
	f.store.recordErr = errBoom

	resp, err := f.service.Discuss(context.Background(), f.bob.ID, dto.DiscussCommandRequest{RoomID: f.general.ID, ThreadID: "msg-1"})
	require.NoError(t, err)
	require.Equal(t, "created", resp.Outcome)
	require.True(t, resp.PersistenceGap)
	require.Empty(t, f.notifications.published)
	require.Equal(t, true, f.audit.entries[0].Metadata["persistence_gap"])
}
