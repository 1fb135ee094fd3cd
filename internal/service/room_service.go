package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-discuss/internal/dto"
	"github.com/noah-isme/gema-discuss/internal/models"
	"github.com/noah-isme/gema-discuss/internal/repository"
)

// ErrRoomForbidden indicates the user attempted a room operation they are not allowed to perform.
var ErrRoomForbidden = errors.New("insufficient permissions for room operation")

// RoomService exposes room management use-cases.
type RoomService interface {
	Create(ctx context.Context, creatorID, role string, payload dto.RoomCreateRequest) (dto.RoomResponse, error)
	Get(ctx context.Context, id, userID string) (dto.RoomResponse, error)
	Join(ctx context.Context, id, userID string) (dto.RoomResponse, error)
}

type roomService struct {
	rooms     repository.RoomRepository
	users     repository.UserRepository
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewRoomService constructs a room service.
func NewRoomService(rooms repository.RoomRepository, users repository.UserRepository, validate *validator.Validate, logger zerolog.Logger) RoomService {
	return &roomService{
		rooms:     rooms,
		users:     users,
		validator: validate,
		logger:    logger.With().Str("component", "room_service").Logger(),
	}
}

func (s *roomService) Create(ctx context.Context, creatorID, role string, payload dto.RoomCreateRequest) (dto.RoomResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.RoomResponse{}, err
	}

	roomType := payload.Type
	if roomType == "" {
		roomType = models.RoomTypeChannel
	}
	if roomType == models.RoomTypeChannel && !isAdmin(role) {
		return dto.RoomResponse{}, ErrRoomForbidden
	}

	creator, err := s.users.FindByID(ctx, creatorID)
	if err != nil {
		return dto.RoomResponse{}, err
	}

	members := []models.User{creator}
	if len(payload.Members) > 0 {
		invited, err := s.users.FindByUsernames(ctx, payload.Members)
		if err != nil {
			return dto.RoomResponse{}, err
		}
		members = append(members, invited...)
	}

	room := models.Room{
		Type:        roomType,
		Name:        strings.ToLower(strings.TrimSpace(payload.Name)),
		DisplayName: strings.TrimSpace(payload.DisplayName),
		CreatorID:   creator.ID,
		ReadOnly:    payload.ReadOnly,
	}
	if room.DisplayName == "" {
		room.DisplayName = room.Name
	}

	if err := s.rooms.Create(ctx, &room, members); err != nil {
		return dto.RoomResponse{}, err
	}

	s.logger.Info().Str("room_id", room.ID).Str("user_id", creator.ID).Str("type", room.Type).Msg("room created")

	return s.describe(ctx, room)
}

func (s *roomService) Get(ctx context.Context, id, userID string) (dto.RoomResponse, error) {
	room, err := s.rooms.FindByID(ctx, id)
	if err != nil {
		return dto.RoomResponse{}, err
	}

	if room.Type != models.RoomTypeChannel {
		member, err := s.rooms.IsMember(ctx, room.ID, userID)
		if err != nil {
			return dto.RoomResponse{}, err
		}
		if !member {
			return dto.RoomResponse{}, ErrRoomForbidden
		}
	}

	return s.describe(ctx, room)
}

// Join adds the user to a channel. Private rooms and discussions of private rooms are invite only.
func (s *roomService) Join(ctx context.Context, id, userID string) (dto.RoomResponse, error) {
	room, err := s.rooms.FindByID(ctx, id)
	if err != nil {
		return dto.RoomResponse{}, err
	}
	if room.Type != models.RoomTypeChannel {
		return dto.RoomResponse{}, ErrRoomForbidden
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return dto.RoomResponse{}, err
	}

	if err := s.rooms.AddMember(ctx, room.ID, user); err != nil {
		return dto.RoomResponse{}, err
	}

	return s.describe(ctx, room)
}

func (s *roomService) describe(ctx context.Context, room models.Room) (dto.RoomResponse, error) {
	members, err := s.rooms.ListMembers(ctx, room.ID)
	if err != nil {
		return dto.RoomResponse{}, err
	}
	return dto.NewRoomResponse(room, members), nil
}

func isAdmin(role string) bool {
	role = strings.ToLower(strings.TrimSpace(role))
	return role == "admin"
}
