package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-discuss/internal/dto"
	"github.com/noah-isme/gema-discuss/internal/repository"
)

// ErrAssociationNotFound indicates no discussion has been recorded or claimed for a thread.
var ErrAssociationNotFound = errors.New("no discussion recorded for thread")

// AssociationService exposes recorded thread associations to operators.
type AssociationService interface {
	Lookup(ctx context.Context, threadID string) (dto.AssociationResponse, error)
}

type associationService struct {
	store  repository.AssociationRepository
	links  Permalinks
	logger zerolog.Logger
}

// NewAssociationService constructs an association lookup service.
func NewAssociationService(store repository.AssociationRepository, links Permalinks, logger zerolog.Logger) AssociationService {
	return &associationService{
		store:  store,
		links:  links,
		logger: logger.With().Str("component", "association_service").Logger(),
	}
}

func (s *associationService) Lookup(ctx context.Context, threadID string) (dto.AssociationResponse, error) {
	threadID = strings.TrimSpace(threadID)
	if threadID == "" {
		return dto.AssociationResponse{}, ErrAssociationNotFound
	}

	association, err := s.store.FindByThread(ctx, threadID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return dto.AssociationResponse{}, ErrAssociationNotFound
		}
		return dto.AssociationResponse{}, err
	}

	response := dto.AssociationResponse{
		ThreadID:  association.ThreadID,
		Status:    "complete",
		ClaimedBy: association.ClaimedBy,
		ClaimedAt: association.ClaimedAt,
		CreatedAt: association.CreatedAt,
	}
	if association.Pending() {
		response.Status = "pending"
		return response, nil
	}

	room := association.DiscussionRoom()
	response.DiscussionID = room.ID
	response.DiscussionName = room.Name
	response.DisplayName = room.DisplayName
	response.ParentRoomID = room.ParentID
	response.URL = s.links.RoomURL(room)

	return response, nil
}
