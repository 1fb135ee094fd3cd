package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-discuss/internal/dto"
	"github.com/noah-isme/gema-discuss/internal/middleware"
	"github.com/noah-isme/gema-discuss/internal/models"
	"github.com/noah-isme/gema-discuss/internal/observability"
	"github.com/noah-isme/gema-discuss/internal/repository"
)

const discussNotificationType = "discuss"

// NotificationPublisher exposes the subset of notification service needed by the command.
type NotificationPublisher interface {
	Publish(ctx context.Context, payload dto.NotificationCreateRequest) (dto.NotificationResponse, error)
}

// CommandService executes the /discuss slash command.
type CommandService interface {
	Discuss(ctx context.Context, userID string, req dto.DiscussCommandRequest) (dto.DiscussCommandResponse, error)
}

type commandService struct {
	users         UserDirectory
	rooms         RoomDirectory
	app           models.User
	resolver      *DiscussionResolver
	targets       *CLITargetResolver
	gateway       DiscussionCreator
	notifications NotificationPublisher
	audit         ActivityRecorder
	links         Permalinks
	logger        zerolog.Logger
}

// NewCommandService wires the command entry point. app is the identity notifications are sent as.
// audit may be nil.
func NewCommandService(
	users UserDirectory,
	rooms RoomDirectory,
	app models.User,
	resolver *DiscussionResolver,
	targets *CLITargetResolver,
	gateway DiscussionCreator,
	notifications NotificationPublisher,
	audit ActivityRecorder,
	links Permalinks,
	logger zerolog.Logger,
) CommandService {
	return &commandService{
		users:         users,
		rooms:         rooms,
		app:           app,
		resolver:      resolver,
		targets:       targets,
		gateway:       gateway,
		notifications: notifications,
		audit:         audit,
		links:         links,
		logger:        logger.With().Str("component", "discuss_command").Logger(),
	}
}

// Discuss runs one invocation to a terminal outcome. Only an unknown invoking user or context
// room is returned as an error; every other failure ends in a single notification.
func (s *commandService) Discuss(ctx context.Context, userID string, req dto.DiscussCommandRequest) (dto.DiscussCommandResponse, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return dto.DiscussCommandResponse{}, ErrUnknownUser
		}
		return dto.DiscussCommandResponse{}, err
	}

	room, err := s.rooms.FindByID(ctx, strings.TrimSpace(req.RoomID))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return dto.DiscussCommandResponse{}, ErrUnknownRoom
		}
		return dto.DiscussCommandResponse{}, err
	}

	inv := Invocation{
		ID:            uuid.NewString(),
		User:          user,
		Room:          room,
		App:           s.app,
		ThreadID:      strings.TrimSpace(req.ThreadID),
		CorrelationID: middleware.CorrelationIDFromContext(ctx),
	}

	argString := strings.Join(req.Arguments, " ")
	if len(req.Arguments) == 0 {
		argString = req.Text
	}

	path := "cli"
	var resolution Resolution
	if inv.ThreadID != "" {
		path = "thread"
		resolution, err = s.resolver.Resolve(ctx, inv, inv.ThreadID, argString)
	} else {
		resolution, err = s.startFromCLI(ctx, inv, argString)
	}

	response := s.finish(ctx, inv, resolution, err)
	observability.DiscussCommands().WithLabelValues(path, response.Outcome).Inc()
	s.record(ctx, inv, path, response)

	return response, nil
}

// record writes the audit entry of an invocation. Failures are logged only.
func (s *commandService) record(ctx context.Context, inv Invocation, path string, response dto.DiscussCommandResponse) {
	if s.audit == nil {
		return
	}

	metadata := map[string]interface{}{
		"invocation_id": inv.ID,
		"path":          path,
		"notified":      response.Notified,
	}
	if inv.CorrelationID != "" {
		metadata["correlation_id"] = inv.CorrelationID
	}
	if response.PersistenceGap {
		metadata["persistence_gap"] = true
	}
	if response.Message != "" && response.Outcome == string(OutcomeRejected) {
		metadata["reason"] = response.Message
	}

	_, err := s.audit.Record(ctx, ActivityEntry{
		ActorID:      inv.User.ID,
		Action:       "discuss",
		RoomID:       inv.Room.ID,
		ThreadID:     inv.ThreadID,
		DiscussionID: response.DiscussionID,
		Outcome:      response.Outcome,
		Metadata:     metadata,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("invocation_id", inv.ID).Msg("failed to record command activity")
	}
}

func (s *commandService) startFromCLI(ctx context.Context, inv Invocation, argString string) (Resolution, error) {
	target, err := s.targets.Resolve(ctx, inv, argString)
	if err != nil {
		return Resolution{}, err
	}

	discussion, err := s.gateway.Create(ctx, DiscussionRequest{
		Title:   target.Name,
		Parent:  target.Room,
		Creator: inv.User,
	})
	if err != nil {
		return Resolution{}, err
	}

	return Resolution{
		Outcome:    OutcomeCreated,
		Discussion: discussion,
		URL:        s.links.RoomURL(discussion),
	}, nil
}

func (s *commandService) finish(ctx context.Context, inv Invocation, resolution Resolution, err error) dto.DiscussCommandResponse {
	logger := s.logger.With().
		Str("user_id", inv.User.ID).
		Str("room_id", inv.Room.ID).
		Str("thread_id", inv.ThreadID).
		Str("correlation_id", inv.CorrelationID).
		Logger()

	if err != nil {
		response := dto.DiscussCommandResponse{Outcome: string(OutcomeRejected)}
		if errors.Is(err, ErrHost) || !isUserFacing(err) {
			response.Outcome = string(OutcomeFailed)
			logger.Error().Err(err).Msg("discuss command failed")
		} else {
			logger.Info().Err(err).Msg("discuss command rejected")
		}
		response.Message = s.describe(inv, err)
		response.Notified = s.notify(ctx, inv, response.Message)
		return response
	}

	response := dto.DiscussCommandResponse{
		Outcome:        string(resolution.Outcome),
		DiscussionID:   resolution.Discussion.ID,
		DiscussionName: resolution.Discussion.Label(),
		URL:            resolution.URL,
		PersistenceGap: resolution.PersistenceGap,
	}

	if resolution.Outcome == OutcomeJoined {
		response.Message = fmt.Sprintf("A discussion already exists, please join [here](%s).", resolution.URL)
		response.Notified = s.notify(ctx, inv, response.Message)
	}

	logger.Info().
		Str("outcome", response.Outcome).
		Str("discussion_id", response.DiscussionID).
		Bool("persistence_gap", response.PersistenceGap).
		Msg("discuss command completed")

	return response
}

// notify delivers text to the invoking user. Delivery is best-effort.
func (s *commandService) notify(ctx context.Context, inv Invocation, text string) bool {
	if s.notifications == nil {
		return false
	}

	_, err := s.notifications.Publish(ctx, dto.NotificationCreateRequest{
		UserID:   inv.User.ID,
		SenderID: inv.App.ID,
		RoomID:   inv.Room.ID,
		ThreadID: inv.ThreadID,
		Type:     discussNotificationType,
		Message:  text,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", inv.User.ID).Msg("failed to notify user")
		return false
	}
	return true
}

func (s *commandService) describe(inv Invocation, err error) string {
	var (
		invalid    *InvalidContextError
		notFound   *RoomNotFoundError
		notMember  *NotAMemberError
		notAllowed *NotAllowedError
	)

	switch {
	case errors.As(err, &invalid):
		if inv.ThreadID != "" {
			return "this room isn't a public channel or private group, either pass a `#RoomName` or execute `/discuss` in a different room"
		}
		subject := "this room"
		if invalid.Room.ID != inv.Room.ID {
			subject = fmt.Sprintf("`%s`", invalid.Room.Label())
		}
		return subject + " isn't a public channel or private group, either pass a different `#RoomName` or execute `/discuss` in another room"
	case errors.Is(err, ErrMissingName):
		if inv.ThreadID != "" {
			return "no thread message text found to use as discussion name, please provide one"
		}
		return "you must provide a discussion name"
	case errors.As(err, &notFound):
		return fmt.Sprintf("room `%s` not found", notFound.Name)
	case errors.As(err, &notMember):
		return "You are not a member of said room: " + notMember.Room.Label()
	case errors.As(err, &notAllowed):
		return notAllowed.Reason
	case errors.Is(err, ErrDiscussionPending):
		return "a discussion is already being created for this thread, please try again in a moment"
	case errors.Is(err, ErrDiscussionGone):
		return "the discussion started from this thread no longer exists"
	default:
		return "something went wrong while starting the discussion, please try again later"
	}
}

func isUserFacing(err error) bool {
	for _, target := range []error{
		ErrInvalidContext,
		ErrMissingName,
		ErrRoomNotFound,
		ErrNotAMember,
		ErrNotAllowed,
		ErrDiscussionPending,
		ErrDiscussionGone,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
