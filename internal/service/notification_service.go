package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-discuss/internal/dto"
	"github.com/noah-isme/gema-discuss/internal/models"
	"github.com/noah-isme/gema-discuss/internal/observability"
	"github.com/noah-isme/gema-discuss/internal/repository"
)

const (
	notificationBufferSize = 16
	notificationQueueGroup = "gema-discuss-notifications"
)

// ErrEmptyNotification is returned when nothing is left of a message once markup is stripped.
var ErrEmptyNotification = errors.New("notification message empty after sanitization")

// NotificationService is the private channel between the discuss command and one user. Every
// notification is stored, then pushed to the user's open SSE streams on this node and relayed to
// other nodes over redis and nats. Streams that fall behind miss pushes but can re-list.
type NotificationService interface {
	Publish(ctx context.Context, payload dto.NotificationCreateRequest) (dto.NotificationResponse, error)
	List(ctx context.Context, userID string, limit, offset int) ([]dto.NotificationResponse, error)
	MarkRead(ctx context.Context, id uint, userID string) (dto.NotificationResponse, error)
	Subscribe(userID string) (<-chan dto.NotificationResponse, func())
	Start(ctx context.Context)
}

type notificationService struct {
	repo      repository.NotificationRepository
	relay     notificationRelay
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
	sanitizer *bluemonday.Policy
	streams   *userStreams
}

// notificationEnvelope is what travels between nodes.
type notificationEnvelope struct {
	Origin       string                   `json:"origin"`
	Notification dto.NotificationResponse `json:"notification"`
	EmittedAt    time.Time                `json:"emitted_at"`
}

// notificationRelay fans notifications out to the other API nodes.
type notificationRelay struct {
	origin  string
	redis   *redis.Client
	channel string
	nats    *nats.Conn
	subject string
}

// userStreams tracks the open SSE streams per user.
type userStreams struct {
	mu      sync.RWMutex
	streams map[string]map[chan dto.NotificationResponse]struct{}
}

// NewNotificationService constructs the notification sink. redisClient and natsConn may be nil;
// without them notifications only reach streams on this node.
func NewNotificationService(repo repository.NotificationRepository, redisClient *redis.Client, channelBase string, natsConn *nats.Conn, validate *validator.Validate, logger zerolog.Logger) NotificationService {
	relay := notificationRelay{origin: uuid.NewString(), redis: redisClient, nats: natsConn}
	if channelBase != "" {
		relay.channel = channelBase + ":notifications"
		relay.subject = strings.ReplaceAll(channelBase, ":", ".") + ".notifications"
	}

	return &notificationService{
		repo:      repo,
		relay:     relay,
		validator: validate,
		logger:    logger.With().Str("component", "notification_sink").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/gema-discuss/internal/service/notification_sink"),
		sanitizer: bluemonday.StrictPolicy(),
		streams:   &userStreams{streams: make(map[string]map[chan dto.NotificationResponse]struct{})},
	}
}

// Start subscribes to notifications relayed by other nodes until ctx is done.
func (s *notificationService) Start(ctx context.Context) {
	if s.relay.redisEnabled() {
		go s.consumeRedis(ctx)
	}
	if s.relay.natsEnabled() {
		go s.consumeNATS(ctx)
	}
}

func (s *notificationService) Publish(ctx context.Context, payload dto.NotificationCreateRequest) (dto.NotificationResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.NotificationResponse{}, err
	}

	message := stripMarkup(s.sanitizer, payload.Message)
	if message == "" {
		return dto.NotificationResponse{}, ErrEmptyNotification
	}

	attrs := []attribute.KeyValue{
		attribute.String("notification.user_id", payload.UserID),
		attribute.String("notification.type", payload.Type),
	}
	if payload.RoomID != "" {
		attrs = append(attrs, attribute.String("notification.room_id", payload.RoomID))
	}
	if payload.ThreadID != "" {
		attrs = append(attrs, attribute.String("notification.thread_id", payload.ThreadID))
	}

	spanCtx, span := s.tracer.Start(ctx, "notification.deliver", trace.WithAttributes(attrs...))
	defer span.End()

	record := models.Notification{
		UserID:   payload.UserID,
		SenderID: payload.SenderID,
		RoomID:   payload.RoomID,
		ThreadID: payload.ThreadID,
		Type:     payload.Type,
		Message:  message,
	}
	if err := s.repo.Create(spanCtx, &record); err != nil {
		span.RecordError(err)
		return dto.NotificationResponse{}, err
	}

	response := dto.NewNotificationResponse(record)
	if dropped := s.streams.push(response); dropped > 0 {
		s.logger.Debug().Str("user_id", response.UserID).Int("dropped", dropped).Msg("notification stream behind")
	}
	if err := s.relay.emit(spanCtx, response); err != nil {
		s.logger.Warn().Err(err).Uint("notification_id", response.ID).Msg("failed to relay notification")
	}

	observability.NotificationsPublishedTotal().WithLabelValues(response.Type).Inc()
	return response, nil
}

func (s *notificationService) List(ctx context.Context, userID string, limit, offset int) ([]dto.NotificationResponse, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errors.New("user id is required")
	}

	records, err := s.repo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return dto.NewNotificationResponseSlice(records), nil
}

func (s *notificationService) MarkRead(ctx context.Context, id uint, userID string) (dto.NotificationResponse, error) {
	spanCtx, span := s.tracer.Start(ctx, "notification.mark_read", trace.WithAttributes(
		attribute.String("notification.user_id", userID),
		attribute.Int64("notification.id", int64(id)),
	))
	defer span.End()

	record, err := s.repo.MarkRead(spanCtx, id, userID)
	if err != nil {
		span.RecordError(err)
		return dto.NotificationResponse{}, err
	}
	return dto.NewNotificationResponse(record), nil
}

// Subscribe opens a stream for userID. The returned func closes it and is safe to call twice.
func (s *notificationService) Subscribe(userID string) (<-chan dto.NotificationResponse, func()) {
	stream := make(chan dto.NotificationResponse, notificationBufferSize)
	s.streams.open(userID, stream)
	observability.SSEClientsActive().Inc()

	var once sync.Once
	return stream, func() {
		once.Do(func() {
			s.streams.close(userID, stream)
			observability.SSEClientsActive().Dec()
		})
	}
}

func (s *notificationService) consumeRedis(ctx context.Context) {
	pubsub := s.relay.redis.Subscribe(ctx, s.relay.channel)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				s.logger.Error().Err(err).Msg("notification redis subscription closed")
			}
			return
		}
		s.receive([]byte(msg.Payload))
	}
}

func (s *notificationService) consumeNATS(ctx context.Context) {
	sub, err := s.relay.nats.QueueSubscribe(s.relay.subject, notificationQueueGroup, func(msg *nats.Msg) {
		s.receive(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats notifications subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain notification nats subscription")
		}
	}()
}

// receive pushes a notification relayed by another node. Own and addressless envelopes are ignored.
func (s *notificationService) receive(payload []byte) {
	var envelope notificationEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		s.logger.Warn().Err(err).Msg("invalid notification envelope")
		return
	}
	if envelope.Origin == s.relay.origin || envelope.Notification.UserID == "" {
		return
	}

	notification := envelope.Notification
	if notification.Type == "" {
		notification.Type = "generic"
	}
	s.streams.push(notification)
}

func (r notificationRelay) redisEnabled() bool { return r.redis != nil && r.channel != "" }

func (r notificationRelay) natsEnabled() bool { return r.nats != nil && r.subject != "" }

func (r notificationRelay) emit(ctx context.Context, notification dto.NotificationResponse) error {
	if !r.redisEnabled() && !r.natsEnabled() {
		return nil
	}

	payload, err := json.Marshal(notificationEnvelope{
		Origin:       r.origin,
		Notification: notification,
		EmittedAt:    time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	if r.redisEnabled() {
		if err := r.redis.Publish(ctx, r.channel, payload).Err(); err != nil {
			return err
		}
	}
	if r.natsEnabled() {
		return r.nats.Publish(r.subject, payload)
	}
	return nil
}

func (u *userStreams) open(userID string, stream chan dto.NotificationResponse) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if _, ok := u.streams[userID]; !ok {
		u.streams[userID] = make(map[chan dto.NotificationResponse]struct{})
	}
	u.streams[userID][stream] = struct{}{}
}

func (u *userStreams) close(userID string, stream chan dto.NotificationResponse) {
	u.mu.Lock()
	defer u.mu.Unlock()

	streams, ok := u.streams[userID]
	if !ok {
		return
	}
	if _, ok := streams[stream]; !ok {
		return
	}
	delete(streams, stream)
	close(stream)
	if len(streams) == 0 {
		delete(u.streams, userID)
	}
}

// push delivers to every open stream of the user without blocking and reports how many were full.
func (u *userStreams) push(notification dto.NotificationResponse) int {
	u.mu.RLock()
	defer u.mu.RUnlock()

	dropped := 0
	for stream := range u.streams[notification.UserID] {
		select {
		case stream <- notification:
		default:
			dropped++
		}
	}
	return dropped
}
