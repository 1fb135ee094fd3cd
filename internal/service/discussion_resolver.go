package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-discuss/internal/dto"
	"github.com/noah-isme/gema-discuss/internal/models"
	"github.com/noah-isme/gema-discuss/internal/observability"
	"github.com/noah-isme/gema-discuss/internal/repository"
)

const defaultClaimTTL = 2 * time.Minute

// Outcome is the terminal state of one command invocation.
type Outcome string

const (
	OutcomeCreated  Outcome = "created"
	OutcomeJoined   Outcome = "joined"
	OutcomeRejected Outcome = "rejected"
	OutcomeFailed   Outcome = "failed"
)

// Resolution describes the discussion an invocation ended up with.
type Resolution struct {
	Outcome        Outcome
	Discussion     models.Room
	URL            string
	PersistenceGap bool
}

// Invocation carries everything known about one command execution. A new value is built for
// every invocation.
type Invocation struct {
	ID            string
	User          models.User
	Room          models.Room
	App           models.User
	ThreadID      string
	CorrelationID string
}

// RoomDirectory resolves rooms and their members.
type RoomDirectory interface {
	FindByID(ctx context.Context, id string) (models.Room, error)
	FindByName(ctx context.Context, name string) (models.Room, error)
	IsMember(ctx context.Context, roomID, userID string) (bool, error)
	AddMember(ctx context.Context, roomID string, user models.User) error
}

// MessageDirectory resolves messages by id.
type MessageDirectory interface {
	FindByID(ctx context.Context, id string) (models.ChatMessage, error)
}

// UserDirectory resolves users by id.
type UserDirectory interface {
	FindByID(ctx context.Context, id string) (models.User, error)
}

// MessagePoster posts a message into a room on behalf of its sender.
type MessagePoster interface {
	Post(ctx context.Context, message models.ChatMessage) (dto.ChatMessageResponse, error)
}

// ResolverOptions tunes the thread claim behaviour.
type ResolverOptions struct {
	ClaimThreads bool
	ClaimTTL     time.Duration
}

// DiscussionResolver decides whether a thread joins an existing discussion or creates one.
type DiscussionResolver struct {
	store    repository.AssociationRepository
	claimer  repository.AssociationClaimer
	claimTTL time.Duration
	rooms    RoomDirectory
	messages MessageDirectory
	users    UserDirectory
	poster   MessagePoster
	gateway  DiscussionCreator
	links    Permalinks
	logger   zerolog.Logger
	tracer   trace.Tracer
}

// NewDiscussionResolver constructs a resolver. Claims are only used when requested and the
// store supports them.
func NewDiscussionResolver(
	store repository.AssociationRepository,
	rooms RoomDirectory,
	messages MessageDirectory,
	users UserDirectory,
	poster MessagePoster,
	gateway DiscussionCreator,
	links Permalinks,
	opts ResolverOptions,
	logger zerolog.Logger,
) *DiscussionResolver {
	resolver := &DiscussionResolver{
		store:    store,
		claimTTL: opts.ClaimTTL,
		rooms:    rooms,
		messages: messages,
		users:    users,
		poster:   poster,
		gateway:  gateway,
		links:    links,
		logger:   logger.With().Str("component", "discussion_resolver").Logger(),
		tracer:   otel.Tracer("github.com/noah-isme/gema-discuss/internal/service/discussion_resolver"),
	}
	if resolver.claimTTL <= 0 {
		resolver.claimTTL = defaultClaimTTL
	}
	if claimer, ok := store.(repository.AssociationClaimer); ok && opts.ClaimThreads {
		resolver.claimer = claimer
	}
	return resolver
}

// Resolve joins the invoking user to the discussion of the thread or creates it.
func (r *DiscussionResolver) Resolve(ctx context.Context, inv Invocation, threadID, requestedName string) (Resolution, error) {
	attrs := []attribute.KeyValue{
		attribute.String("discussion.thread_id", threadID),
		attribute.String("discussion.room_id", inv.Room.ID),
		attribute.String("discussion.user_id", inv.User.ID),
	}
	if inv.CorrelationID != "" {
		attrs = append(attrs, attribute.String("correlation_id", inv.CorrelationID))
	}

	spanCtx, span := r.tracer.Start(ctx, "discussion.resolve", trace.WithAttributes(attrs...))
	defer span.End()

	if inv.Room.IsDiscussion() || inv.Room.IsDirect() {
		return Resolution{}, &InvalidContextError{Room: inv.Room}
	}

	existing, found, err := r.lookup(spanCtx, threadID)
	if err != nil {
		span.RecordError(err)
		return Resolution{}, err
	}
	if found {
		return r.join(spanCtx, inv, existing)
	}

	resolution, err := r.create(spanCtx, inv, threadID, requestedName)
	if err != nil {
		span.RecordError(err)
	}
	return resolution, err
}

// lookup reports only completed associations; claims are settled by Claim itself.
func (r *DiscussionResolver) lookup(ctx context.Context, threadID string) (models.ThreadDiscussion, bool, error) {
	association, err := r.store.FindByThread(ctx, threadID)
	if errors.Is(err, repository.ErrNotFound) {
		return models.ThreadDiscussion{}, false, nil
	}
	if err != nil {
		return models.ThreadDiscussion{}, false, hostError("find thread association", err)
	}
	if association.Pending() {
		return association, false, nil
	}
	return association, true, nil
}

func (r *DiscussionResolver) join(ctx context.Context, inv Invocation, association models.ThreadDiscussion) (Resolution, error) {
	if err := r.rooms.AddMember(ctx, association.DiscussionID, inv.User); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			r.logger.Warn().
				Str("thread_id", association.ThreadID).
				Str("discussion_id", association.DiscussionID).
				Msg("thread association points at a missing discussion")
			return Resolution{}, ErrDiscussionGone
		}
		return Resolution{}, hostError("add discussion member", err)
	}

	discussion := association.DiscussionRoom()
	r.logger.Info().
		Str("thread_id", association.ThreadID).
		Str("discussion_id", discussion.ID).
		Str("user_id", inv.User.ID).
		Msg("user joined existing discussion")

	return Resolution{
		Outcome:    OutcomeJoined,
		Discussion: discussion,
		URL:        r.links.RoomURL(discussion),
	}, nil
}

func (r *DiscussionResolver) create(ctx context.Context, inv Invocation, threadID, requestedName string) (Resolution, error) {
	var thread *models.ChatMessage
	message, err := r.messages.FindByID(ctx, threadID)
	switch {
	case err == nil:
		thread = &message
	case !errors.Is(err, repository.ErrNotFound):
		return Resolution{}, hostError("fetch thread message", err)
	}

	title := discussionTitle(requestedName, thread)
	if title == "" {
		return Resolution{}, ErrMissingName
	}

	var author *models.User
	var seeds []models.User
	if thread != nil {
		user, err := r.users.FindByID(ctx, thread.SenderID)
		switch {
		case err == nil:
			author = &user
			if user.ID != inv.User.ID {
				seeds = append(seeds, user)
			}
		case !errors.Is(err, repository.ErrNotFound):
			return Resolution{}, hostError("fetch thread author", err)
		}
	}

	if r.claimer != nil {
		claimed, err := r.claimer.Claim(ctx, threadID, inv.ID, r.claimTTL)
		if err != nil {
			return Resolution{}, hostError("claim thread", err)
		}
		if !claimed {
			existing, found, err := r.lookup(ctx, threadID)
			if err != nil {
				return Resolution{}, err
			}
			if found {
				return r.join(ctx, inv, existing)
			}
			return Resolution{}, ErrDiscussionPending
		}
	}

	discussion, err := r.gateway.Create(ctx, DiscussionRequest{
		Title:          title,
		Parent:         inv.Room,
		Creator:        inv.User,
		SeedMembers:    seeds,
		OriginThreadID: threadID,
	})
	if err != nil {
		r.releaseClaim(ctx, inv, threadID)
		return Resolution{}, err
	}

	if thread != nil && author != nil {
		r.postSeedMessage(ctx, inv, *thread, *author, discussion)
	}

	resolution := Resolution{
		Outcome:    OutcomeCreated,
		Discussion: discussion,
		URL:        r.links.RoomURL(discussion),
	}

	association := models.NewThreadDiscussion(discussion, threadID)
	if r.claimer != nil {
		association.ClaimedBy = inv.ID
	}
	if err := r.store.Record(ctx, association); err != nil {
		resolution.PersistenceGap = true
		observability.DiscussAssociations().WithLabelValues("gap").Inc()
		r.logger.Warn().
			Err(err).
			AnErr("condition", ErrPersistenceGap).
			Str("thread_id", threadID).
			Str("discussion_id", discussion.ID).
			Msg("discussion created without thread association")
		return resolution, nil
	}

	observability.DiscussAssociations().WithLabelValues("recorded").Inc()
	return resolution, nil
}

func (r *DiscussionResolver) releaseClaim(ctx context.Context, inv Invocation, threadID string) {
	if r.claimer == nil {
		return
	}
	if err := r.claimer.Release(ctx, threadID, inv.ID); err != nil {
		r.logger.Warn().Err(err).Str("thread_id", threadID).Msg("failed to release thread claim")
	}
}

// postSeedMessage reposts the thread message into the discussion as its original sender,
// linking back to the thread.
func (r *DiscussionResolver) postSeedMessage(ctx context.Context, inv Invocation, thread models.ChatMessage, author models.User, discussion models.Room) {
	permalink := r.links.MessageURL(inv.Room, thread.ID)

	attachments := make([]models.Attachment, 0, len(thread.Attachments)+1)
	attachments = append(attachments, thread.Attachments...)
	if len(attachments) == 0 {
		attachments = append(attachments, models.Attachment{Color: "green", Text: thread.Content})
	}
	if attachments[0].TitleLink == "" {
		attachments[0].TitleLink = permalink
		if attachments[0].Title == "" {
			attachments[0].Title = "Started from a thread in " + inv.Room.Label()
		}
	} else {
		attachments = append(attachments, models.Attachment{
			Title:     "Started from a thread in " + inv.Room.Label(),
			TitleLink: permalink,
		})
	}

	_, err := r.poster.Post(ctx, models.ChatMessage{
		RoomID:      discussion.ID,
		SenderID:    author.ID,
		Type:        "text",
		Attachments: attachments,
	})
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("thread_id", thread.ID).
			Str("discussion_id", discussion.ID).
			Msg("failed to post discussion seed message")
	}
}

func discussionTitle(requestedName string, thread *models.ChatMessage) string {
	if name := strings.TrimSpace(requestedName); name != "" {
		return name
	}
	if thread != nil {
		return strings.TrimSpace(thread.Content)
	}
	return ""
}
