package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-discuss/internal/models"
	"github.com/noah-isme/gema-discuss/internal/repository"
)

type roomCreatorStub struct {
	params []repository.DiscussionParams
	err    error
}

func (r *roomCreatorStub) CreateDiscussion(_ context.Context, params repository.DiscussionParams) (models.Room, error) {
	r.params = append(r.params, params)
	if r.err != nil {
		return models.Room{}, r.err
	}
	return models.Room{ID: "disc-1", ParentID: params.ParentID, Name: params.Slug, DisplayName: params.DisplayName}, nil
}

func TestDiscussionGatewayBuildsParams(t *testing.T) {
	creator := &roomCreatorStub{}
	gateway := NewDiscussionGateway(creator, testLogger())

	room, err := gateway.Create(context.Background(), DiscussionRequest{
		Title:          "<b>What's</b> the   plan?",
		Parent:         models.Room{ID: "room-general"},
		Creator:        models.User{ID: "u-bob", Username: "bob"},
		SeedMembers:    []models.User{{ID: "u-alice", Username: "alice"}},
		OriginThreadID: "msg-1",
	})
	require.NoError(t, err)
	require.Equal(t, "disc-1", room.ID)

	require.Len(t, creator.params, 1)
	params := creator.params[0]
	require.Equal(t, "What's the   plan?", params.DisplayName)
	require.Equal(t, "whats-the-plan", params.Slug)
	require.Equal(t, []string{"alice"}, params.MemberUsernames)
	require.Equal(t, "msg-1", params.OriginThreadID)
	require.Equal(t, map[string]interface{}{"originThreadId": "msg-1"}, params.Metadata)
}

func TestDiscussionGatewayWithoutThreadHasNoMetadata(t *testing.T) {
	creator := &roomCreatorStub{}
	gateway := NewDiscussionGateway(creator, testLogger())

	_, err := gateway.Create(context.Background(), DiscussionRequest{
		Title:  strings.Repeat("x", 400),
		Parent: models.Room{ID: "room-general"},
	})
	require.NoError(t, err)
	require.Nil(t, creator.params[0].Metadata)
	require.Len(t, []rune(creator.params[0].DisplayName), maxTitleLength)
	require.Len(t, creator.params[0].Slug, maxSlugLength)
}

func TestDiscussionGatewayMapsErrors(t *testing.T) {
	creator := &roomCreatorStub{err: &repository.PolicyError{Reason: "room general is read-only"}}
	gateway := NewDiscussionGateway(creator, testLogger())

	_, err := gateway.Create(context.Background(), DiscussionRequest{Title: "plan"})
	var notAllowed *NotAllowedError
	require.ErrorAs(t, err, &notAllowed)
	require.Equal(t, "room general is read-only", notAllowed.Reason)

	creator.err = errBoom
	_, err = gateway.Create(context.Background(), DiscussionRequest{Title: "plan"})
	var hostErr *HostError
	require.ErrorAs(t, err, &hostErr)
	require.Equal(t, "create discussion", hostErr.Op)
	require.ErrorIs(t, err, errBoom)

	_, err = gateway.Create(context.Background(), DiscussionRequest{Title: "<script>alert(1)</script>"})
	require.ErrorIs(t, err, ErrMissingName)
}
