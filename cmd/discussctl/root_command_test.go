package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-discuss/internal/models"
	"github.com/noah-isme/gema-discuss/internal/repository"
)

type stubUsers struct {
	byID       map[string]models.User
	byUsername map[string]models.User
}

func (s stubUsers) FindByID(_ context.Context, id string) (models.User, error) {
	if user, ok := s.byID[id]; ok {
		return user, nil
	}
	return models.User{}, repository.ErrNotFound
}

func (s stubUsers) FindByUsername(_ context.Context, username string) (models.User, error) {
	if user, ok := s.byUsername[username]; ok {
		return user, nil
	}
	return models.User{}, repository.ErrNotFound
}

func TestResolveUserIDAcceptsIDOrUsername(t *testing.T) {
	alice := models.User{ID: "u-1", Username: "alice"}
	users := stubUsers{
		byID:       map[string]models.User{"u-1": alice},
		byUsername: map[string]models.User{"alice": alice},
	}

	id, err := resolveUserID(context.Background(), users, "u-1")
	require.NoError(t, err)
	require.Equal(t, "u-1", id)

	id, err = resolveUserID(context.Background(), users, "@alice")
	require.NoError(t, err)
	require.Equal(t, "u-1", id)

	_, err = resolveUserID(context.Background(), users, "bob")
	require.ErrorContains(t, err, `user "bob" not found`)

	_, err = resolveUserID(context.Background(), users, " ")
	require.Error(t, err)
}

type stubRooms struct {
	byID   map[string]models.Room
	byName map[string]models.Room
}

func (s stubRooms) FindByID(_ context.Context, id string) (models.Room, error) {
	if room, ok := s.byID[id]; ok {
		return room, nil
	}
	return models.Room{}, repository.ErrNotFound
}

func (s stubRooms) FindByName(_ context.Context, name string) (models.Room, error) {
	if room, ok := s.byName[name]; ok {
		return room, nil
	}
	return models.Room{}, repository.ErrNotFound
}

func TestResolveRoomIDAcceptsIDOrName(t *testing.T) {
	general := models.Room{ID: "2b4ea5f4-0d7e-4f7c-9a51-6f1f0c9f3e21", Type: models.RoomTypeChannel, Name: "general"}
	rooms := stubRooms{
		byID:   map[string]models.Room{general.ID: general},
		byName: map[string]models.Room{"general": general},
	}

	id, err := resolveRoomID(context.Background(), rooms, "general")
	require.NoError(t, err)
	require.Equal(t, general.ID, id)

	id, err = resolveRoomID(context.Background(), rooms, "#general")
	require.NoError(t, err)
	require.Equal(t, general.ID, id)

	id, err = resolveRoomID(context.Background(), rooms, general.ID)
	require.NoError(t, err)
	require.Equal(t, general.ID, id)

	_, err = resolveRoomID(context.Background(), rooms, "random")
	require.ErrorContains(t, err, `room "random" not found`)

	_, err = resolveRoomID(context.Background(), rooms, "")
	require.Error(t, err)
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCommand()

	for _, path := range [][]string{{"migrate"}, {"discuss"}, {"associations", "show"}, {"activity"}} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err)
		require.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestDiscussRequiresUserAndRoom(t *testing.T) {
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"discuss", "release", "plan"})

	err := root.Execute()
	require.ErrorContains(t, err, "required flag")
}

func TestPrintJSONIndents(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printJSON(&out, map[string]string{"outcome": "created"}))
	require.Equal(t, "{\n  \"outcome\": \"created\"\n}\n", out.String())
}
