package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-discuss/internal/dto"
	"github.com/noah-isme/gema-discuss/internal/models"
	"github.com/noah-isme/gema-discuss/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

var errBoom = errors.New("boom")

type associationStoreStub struct {
	mu        sync.Mutex
	rows      map[string]models.ThreadDiscussion
	findErr   error
	recordErr error
	recorded  []models.ThreadDiscussion
}

func newAssociationStoreStub() *associationStoreStub {
	return &associationStoreStub{rows: map[string]models.ThreadDiscussion{}}
}

func (s *associationStoreStub) FindByThread(_ context.Context, threadID string) (models.ThreadDiscussion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return models.ThreadDiscussion{}, s.findErr
	}
	row, ok := s.rows[threadID]
	if !ok {
		return models.ThreadDiscussion{}, repository.ErrNotFound
	}
	return row, nil
}

func (s *associationStoreStub) Record(_ context.Context, association models.ThreadDiscussion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recordErr != nil {
		return s.recordErr
	}
	s.recorded = append(s.recorded, association)
	s.rows[association.ThreadID] = association
	return nil
}

type claimingStoreStub struct {
	*associationStoreStub
	claimResult bool
	claimErr    error
	claims      []string
	released    []string
	onClaim     func()
}

func (s *claimingStoreStub) Claim(_ context.Context, threadID, claimant string, _ time.Duration) (bool, error) {
	s.claims = append(s.claims, claimant)
	if s.onClaim != nil {
		s.onClaim()
	}
	return s.claimResult, s.claimErr
}

func (s *claimingStoreStub) Release(_ context.Context, threadID, claimant string) error {
	s.released = append(s.released, claimant)
	return nil
}

type roomDirectoryStub struct {
	rooms     map[string]models.Room
	members   map[string]map[string]bool
	addErr    error
	memberErr error
}

func newRoomDirectoryStub(rooms ...models.Room) *roomDirectoryStub {
	stub := &roomDirectoryStub{rooms: map[string]models.Room{}, members: map[string]map[string]bool{}}
	for _, room := range rooms {
		stub.rooms[room.ID] = room
	}
	return stub
}

func (s *roomDirectoryStub) FindByID(_ context.Context, id string) (models.Room, error) {
	room, ok := s.rooms[id]
	if !ok {
		return models.Room{}, repository.ErrNotFound
	}
	return room, nil
}

func (s *roomDirectoryStub) FindByName(_ context.Context, name string) (models.Room, error) {
	for _, room := range s.rooms {
		if room.Name == name && room.ParentID == "" {
			return room, nil
		}
	}
	return models.Room{}, repository.ErrNotFound
}

func (s *roomDirectoryStub) IsMember(_ context.Context, roomID, userID string) (bool, error) {
	if s.memberErr != nil {
		return false, s.memberErr
	}
	return s.members[roomID][userID], nil
}

func (s *roomDirectoryStub) AddMember(_ context.Context, roomID string, user models.User) error {
	if s.addErr != nil {
		return s.addErr
	}
	if _, ok := s.rooms[roomID]; !ok {
		return repository.ErrNotFound
	}
	if s.members[roomID] == nil {
		s.members[roomID] = map[string]bool{}
	}
	s.members[roomID][user.ID] = true
	return nil
}

type messageDirectoryStub struct {
	messages map[string]models.ChatMessage
	err      error
}

func (s messageDirectoryStub) FindByID(_ context.Context, id string) (models.ChatMessage, error) {
	if s.err != nil {
		return models.ChatMessage{}, s.err
	}
	message, ok := s.messages[id]
	if !ok {
		return models.ChatMessage{}, repository.ErrNotFound
	}
	return message, nil
}

type userDirectoryStub map[string]models.User

func (s userDirectoryStub) FindByID(_ context.Context, id string) (models.User, error) {
	user, ok := s[id]
	if !ok {
		return models.User{}, repository.ErrNotFound
	}
	return user, nil
}

type posterStub struct {
	posted []models.ChatMessage
	err    error
}

func (s *posterStub) Post(_ context.Context, message models.ChatMessage) (dto.ChatMessageResponse, error) {
	s.posted = append(s.posted, message)
	if s.err != nil {
		return dto.ChatMessageResponse{}, s.err
	}
	return dto.NewChatMessageResponse(message), nil
}

type gatewayStub struct {
	requests []DiscussionRequest
	room     models.Room
	err      error
}

func (g *gatewayStub) Create(_ context.Context, req DiscussionRequest) (models.Room, error) {
	g.requests = append(g.requests, req)
	if g.err != nil {
		return models.Room{}, g.err
	}
	room := g.room
	if room.ID == "" {
		room = models.Room{
			ID:          "disc-" + Slugify(req.Title),
			Type:        req.Parent.Type,
			ParentID:    req.Parent.ID,
			Name:        Slugify(req.Title),
			DisplayName: req.Title,
			CreatorID:   req.Creator.ID,
		}
	}
	return room, nil
}

type notificationStub struct {
	published []dto.NotificationCreateRequest
	err       error
}

func (n *notificationStub) Publish(_ context.Context, payload dto.NotificationCreateRequest) (dto.NotificationResponse, error) {
	n.published = append(n.published, payload)
	if n.err != nil {
		return dto.NotificationResponse{}, n.err
	}
	return dto.NotificationResponse{UserID: payload.UserID, Message: payload.Message, Type: payload.Type}, nil
}

type activityRecorderStub struct {
	entries []ActivityEntry
	err     error
}

func (a *activityRecorderStub) Record(_ context.Context, entry ActivityEntry) (dto.ActivityResponse, error) {
	if a.err != nil {
		return dto.ActivityResponse{}, a.err
	}
	a.entries = append(a.entries, entry)
	return dto.ActivityResponse{ActorID: entry.ActorID, Action: entry.Action, Outcome: entry.Outcome}, nil
}
