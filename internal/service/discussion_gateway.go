package service

import (
	"context"
	"errors"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-discuss/internal/models"
	"github.com/noah-isme/gema-discuss/internal/repository"
)

// DiscussionRequest describes one attempt to create a discussion.
type DiscussionRequest struct {
	Title          string
	Parent         models.Room
	Creator        models.User
	SeedMembers    []models.User
	OriginThreadID string
}

// DiscussionCreator creates discussion rooms.
type DiscussionCreator interface {
	Create(ctx context.Context, req DiscussionRequest) (models.Room, error)
}

// RoomCreator is the host primitive that creates discussion rooms.
type RoomCreator interface {
	CreateDiscussion(ctx context.Context, params repository.DiscussionParams) (models.Room, error)
}

type discussionGateway struct {
	rooms     RoomCreator
	logger    zerolog.Logger
	tracer    trace.Tracer
	sanitizer *bluemonday.Policy
}

// NewDiscussionGateway wraps the host room creation primitive. Host policy rejections are
// reported as *NotAllowedError, anything else as *HostError.
func NewDiscussionGateway(rooms RoomCreator, logger zerolog.Logger) DiscussionCreator {
	return &discussionGateway{
		rooms:     rooms,
		logger:    logger.With().Str("component", "discussion_gateway").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/gema-discuss/internal/service/discussion_gateway"),
		sanitizer: bluemonday.StrictPolicy(),
	}
}

func (g *discussionGateway) Create(ctx context.Context, req DiscussionRequest) (models.Room, error) {
	title := truncateRunes(stripMarkup(g.sanitizer, req.Title), maxTitleLength)
	if title == "" {
		return models.Room{}, ErrMissingName
	}

	attrs := []attribute.KeyValue{
		attribute.String("discussion.parent_id", req.Parent.ID),
		attribute.String("discussion.creator_id", req.Creator.ID),
		attribute.Int("discussion.seed_members", len(req.SeedMembers)),
	}
	if req.OriginThreadID != "" {
		attrs = append(attrs, attribute.String("discussion.origin_thread_id", req.OriginThreadID))
	}

	spanCtx, span := g.tracer.Start(ctx, "discussion.create", trace.WithAttributes(attrs...))
	defer span.End()

	params := repository.DiscussionParams{
		ParentID:        req.Parent.ID,
		Creator:         req.Creator,
		DisplayName:     title,
		Slug:            Slugify(title),
		MemberUsernames: usernames(req.SeedMembers),
		OriginThreadID:  req.OriginThreadID,
	}
	if req.OriginThreadID != "" {
		params.Metadata = map[string]interface{}{"originThreadId": req.OriginThreadID}
	}

	room, err := g.rooms.CreateDiscussion(spanCtx, params)
	if err != nil {
		span.RecordError(err)

		var policy *repository.PolicyError
		if errors.As(err, &policy) {
			return models.Room{}, &NotAllowedError{Reason: policy.Reason}
		}
		return models.Room{}, hostError("create discussion", err)
	}

	g.logger.Info().
		Str("discussion_id", room.ID).
		Str("room_id", req.Parent.ID).
		Str("user_id", req.Creator.ID).
		Str("slug", room.Name).
		Msg("discussion created")

	return room, nil
}

func usernames(users []models.User) []string {
	if len(users) == 0 {
		return nil
	}
	out := make([]string, 0, len(users))
	for _, user := range users {
		if user.Username != "" {
			out = append(out, user.Username)
		}
	}
	return out
}
