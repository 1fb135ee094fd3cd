package service

import (
	"errors"
	"fmt"

	"github.com/noah-isme/gema-discuss/internal/models"
)

var (
	// ErrInvalidContext indicates the target room cannot host a discussion.
	ErrInvalidContext = errors.New("room cannot host a discussion")
	// ErrMissingName indicates no discussion name could be derived.
	ErrMissingName = errors.New("discussion name required")
	// ErrRoomNotFound indicates a referenced room does not exist.
	ErrRoomNotFound = errors.New("room not found")
	// ErrNotAMember indicates the invoking user cannot access the target room.
	ErrNotAMember = errors.New("user is not a member of the room")
	// ErrNotAllowed indicates the host refused to create the discussion.
	ErrNotAllowed = errors.New("discussion creation not allowed")
	// ErrHost indicates an unexpected failure of the chat host.
	ErrHost = errors.New("chat host failure")
	// ErrPersistenceGap indicates a discussion was created but its thread association was not stored.
	ErrPersistenceGap = errors.New("discussion created but thread association not recorded")
	// ErrDiscussionPending indicates another invocation is creating the discussion for the thread.
	ErrDiscussionPending = errors.New("discussion creation already in progress for thread")
	// ErrDiscussionGone indicates the discussion recorded for a thread no longer exists.
	ErrDiscussionGone = errors.New("discussion recorded for thread no longer exists")
	// ErrUnknownUser indicates the invoking user is not known to the host.
	ErrUnknownUser = errors.New("invoking user not found")
	// ErrUnknownRoom indicates the room the command was invoked in does not exist.
	ErrUnknownRoom = errors.New("context room not found")
)

// InvalidContextError reports a room that is a discussion or a direct message.
type InvalidContextError struct {
	Room models.Room
}

func (e *InvalidContextError) Error() string {
	return fmt.Sprintf("room %s cannot host a discussion", e.Room.ID)
}

func (e *InvalidContextError) Is(target error) bool { return target == ErrInvalidContext }

// RoomNotFoundError reports a room name the host could not resolve.
type RoomNotFoundError struct {
	Name string
}

func (e *RoomNotFoundError) Error() string {
	return fmt.Sprintf("room %q not found", e.Name)
}

func (e *RoomNotFoundError) Is(target error) bool { return target == ErrRoomNotFound }

// NotAMemberError reports a target room the invoking user does not belong to.
type NotAMemberError struct {
	Room models.Room
}

func (e *NotAMemberError) Error() string {
	return fmt.Sprintf("user is not a member of room %s", e.Room.ID)
}

func (e *NotAMemberError) Is(target error) bool { return target == ErrNotAMember }

// NotAllowedError carries the reason the host gave for rejecting a discussion.
type NotAllowedError struct {
	Reason string
}

func (e *NotAllowedError) Error() string {
	return "discussion creation not allowed: " + e.Reason
}

func (e *NotAllowedError) Is(target error) bool { return target == ErrNotAllowed }

// HostError wraps an unexpected chat host failure.
type HostError struct {
	Op  string
	Err error
}

func (e *HostError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *HostError) Unwrap() error { return e.Err }

func (e *HostError) Is(target error) bool { return target == ErrHost }

func hostError(op string, err error) error {
	return &HostError{Op: op, Err: err}
}
