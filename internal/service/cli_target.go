package service

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"github.com/noah-isme/gema-discuss/internal/models"
	"github.com/noah-isme/gema-discuss/internal/repository"
)

// CLIInvocation is the parsed form of `[#roomName] <discussionName>`.
type CLIInvocation struct {
	RoomName string
	HasRoom  bool
	Name     string
}

// ParseCLIInvocation splits an optional leading #room token from the discussion name.
func ParseCLIInvocation(argString string) CLIInvocation {
	input := strings.TrimSpace(argString)
	if !strings.HasPrefix(input, "#") {
		return CLIInvocation{Name: input}
	}

	token, rest := input, ""
	if idx := strings.IndexFunc(input, unicode.IsSpace); idx >= 0 {
		token, rest = input[:idx], input[idx:]
	}

	return CLIInvocation{
		RoomName: strings.TrimPrefix(token, "#"),
		HasRoom:  true,
		Name:     strings.TrimSpace(rest),
	}
}

// CLITarget is a validated destination for a discussion started outside a thread.
type CLITarget struct {
	Room models.Room
	Name string
}

// CLITargetResolver validates the target room of a standalone invocation.
type CLITargetResolver struct {
	rooms RoomDirectory
}

// NewCLITargetResolver constructs a resolver over the room directory.
func NewCLITargetResolver(rooms RoomDirectory) *CLITargetResolver {
	return &CLITargetResolver{rooms: rooms}
}

// Resolve parses argString and checks the invoking user may start a discussion in the target room.
func (r *CLITargetResolver) Resolve(ctx context.Context, inv Invocation, argString string) (CLITarget, error) {
	parsed := ParseCLIInvocation(argString)
	if parsed.Name == "" {
		return CLITarget{}, ErrMissingName
	}

	room := inv.Room
	if parsed.HasRoom {
		found, err := r.rooms.FindByName(ctx, parsed.RoomName)
		if errors.Is(err, repository.ErrNotFound) {
			return CLITarget{}, &RoomNotFoundError{Name: parsed.RoomName}
		}
		if err != nil {
			return CLITarget{}, hostError("find room by name", err)
		}
		room = found
	}

	member, err := r.rooms.IsMember(ctx, room.ID, inv.User.ID)
	if err != nil {
		return CLITarget{}, hostError("check room membership", err)
	}
	if !member {
		return CLITarget{}, &NotAMemberError{Room: room}
	}

	if room.IsDiscussion() || room.IsDirect() {
		return CLITarget{}, &InvalidContextError{Room: room}
	}

	return CLITarget{Room: room, Name: parsed.Name}, nil
}
