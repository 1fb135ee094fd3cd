package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-discuss/internal/models"
)

func TestRoomRepositoryCreateAndLookup(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRoomRepository(db)
	alice := seedUser(t, db, "u-alice", "alice")

	room := seedRoom(t, repo, models.Room{Type: models.RoomTypeChannel, Name: "general", DisplayName: "General"}, alice)
	require.NotEmpty(t, room.ID)

	found, err := repo.FindByName(context.Background(), " general ")
	require.NoError(t, err)
	require.Equal(t, room.ID, found.ID)

	_, err = repo.FindByName(context.Background(), "random")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = repo.FindByID(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)

	member, err := repo.IsMember(context.Background(), room.ID, alice.ID)
	require.NoError(t, err)
	require.True(t, member)
}

func TestRoomRepositoryRejectsDuplicateTopLevelName(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRoomRepository(db)

	seedRoom(t, repo, models.Room{Type: models.RoomTypeChannel, Name: "general"})
	err := repo.Create(context.Background(), &models.Room{Type: models.RoomTypeChannel, Name: "general"}, nil)
	require.ErrorIs(t, err, ErrDuplicateEntry)
}

func TestRoomRepositoryAddMemberIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRoomRepository(db)
	alice := seedUser(t, db, "u-alice", "alice")
	bob := seedUser(t, db, "u-bob", "bob")
	room := seedRoom(t, repo, models.Room{Type: models.RoomTypeChannel, Name: "general"}, alice)

	require.NoError(t, repo.AddMember(context.Background(), room.ID, bob))
	require.NoError(t, repo.AddMember(context.Background(), room.ID, bob))

	members, err := repo.ListMembers(context.Background(), room.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)

	err = repo.AddMember(context.Background(), "gone", bob)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRoomRepositoryCreateDiscussion(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRoomRepository(db)
	alice := seedUser(t, db, "u-alice", "alice")
	bob := seedUser(t, db, "u-bob", "bob")
	parent := seedRoom(t, repo, models.Room{Type: models.RoomTypePrivate, Name: "team"}, alice)

	discussion, err := repo.CreateDiscussion(context.Background(), DiscussionParams{
		ParentID:        parent.ID,
		Creator:         alice,
		DisplayName:     "Release Plan",
		Slug:            "release-plan",
		MemberUsernames: []string{"bob", "nobody"},
		OriginThreadID:  "msg-1",
		Metadata:        map[string]interface{}{"originThreadId": "msg-1"},
	})
	require.NoError(t, err)
	require.Equal(t, parent.ID, discussion.ParentID)
	require.Equal(t, models.RoomTypePrivate, discussion.Type)
	require.True(t, discussion.IsDiscussion())

	members, err := repo.ListMembers(context.Background(), discussion.ID)
	require.NoError(t, err)
	usernames := []string{}
	for _, member := range members {
		usernames = append(usernames, member.Username)
	}
	require.ElementsMatch(t, []string{alice.Username, bob.Username}, usernames)

	stored, err := repo.FindByID(context.Background(), discussion.ID)
	require.NoError(t, err)
	require.Equal(t, "msg-1", stored.Metadata["originThreadId"])

	// Discussions are not top-level rooms.
	_, err = repo.FindByName(context.Background(), "release-plan")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRoomRepositoryCreateDiscussionPolicy(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRoomRepository(db)
	alice := seedUser(t, db, "u-alice", "alice")
	mallory := seedUser(t, db, "u-mallory", "mallory")

	channel := seedRoom(t, repo, models.Room{Type: models.RoomTypeChannel, Name: "general"}, alice)
	readOnly := seedRoom(t, repo, models.Room{Type: models.RoomTypeChannel, Name: "announcements", ReadOnly: true}, alice)
	direct := seedRoom(t, repo, models.Room{Type: models.RoomTypeDirect, Name: "alice-mallory"}, alice, mallory)

	existing, err := repo.CreateDiscussion(context.Background(), DiscussionParams{
		ParentID: channel.ID, Creator: alice, DisplayName: "Plan", Slug: "plan",
	})
	require.NoError(t, err)

	cases := []struct {
		name   string
		params DiscussionParams
		reason string
	}{
		{"direct parent", DiscussionParams{ParentID: direct.ID, Creator: alice, DisplayName: "x", Slug: "x"}, "discussions can only be started in channels and private groups"},
		{"nested discussion", DiscussionParams{ParentID: existing.ID, Creator: alice, DisplayName: "x", Slug: "x"}, "discussions can only be started in channels and private groups"},
		{"read-only parent", DiscussionParams{ParentID: readOnly.ID, Creator: alice, DisplayName: "x", Slug: "x"}, "room announcements is read-only"},
		{"empty slug", DiscussionParams{ParentID: channel.ID, Creator: alice, DisplayName: "!!!", Slug: ""}, "discussion name is invalid"},
		{"non-member", DiscussionParams{ParentID: channel.ID, Creator: mallory, DisplayName: "x", Slug: "x"}, "you are not allowed to start a discussion in this room"},
		{"duplicate name", DiscussionParams{ParentID: channel.ID, Creator: alice, DisplayName: "Plan", Slug: "plan"}, `a discussion named "Plan" already exists in general`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := repo.CreateDiscussion(context.Background(), tc.params)
			var policyErr *PolicyError
			require.True(t, errors.As(err, &policyErr), "expected policy error, got %v", err)
			require.Equal(t, tc.reason, policyErr.Reason)
		})
	}

	_, err = repo.CreateDiscussion(context.Background(), DiscussionParams{ParentID: "missing", Creator: alice, Slug: "x"})
	require.ErrorIs(t, err, ErrNotFound)
}
