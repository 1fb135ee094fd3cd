package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-discuss/internal/dto"
	"github.com/noah-isme/gema-discuss/internal/middleware"
	"github.com/noah-isme/gema-discuss/internal/models"
	"github.com/noah-isme/gema-discuss/internal/observability"
	"github.com/noah-isme/gema-discuss/internal/repository"
)

const (
	chatRedisTTL       = 30 * time.Minute
	chatSendBufferSize = 32
)

var (
	// ErrChatNotAuthorised indicates the sender attempted to post into a room they are not a member of.
	ErrChatNotAuthorised = errors.New("sender not authorised for room")
	// ErrChatThreadInvalid indicates a reply referenced a thread outside the room.
	ErrChatThreadInvalid = errors.New("thread does not belong to room")
	// ErrChatEmptyMessage indicates the content was empty once markup was removed.
	ErrChatEmptyMessage = errors.New("message content empty after sanitization")
)

// RoomMembership answers whether a user belongs to a room.
type RoomMembership interface {
	IsMember(ctx context.Context, roomID, userID string) (bool, error)
}

// ChatConnectionOptions wraps metadata extracted during the HTTP upgrade.
type ChatConnectionOptions struct {
	UserID        string
	RoomID        string
	CorrelationID string
	Context       context.Context
}

// ChatService manages websocket chat connections and message delivery.
type ChatService interface {
	ServeConnection(conn *websocket.Conn, opts ChatConnectionOptions)
	Send(ctx context.Context, userID string, payload dto.ChatSendRequest) (dto.ChatMessageResponse, error)
	Post(ctx context.Context, message models.ChatMessage) (dto.ChatMessageResponse, error)
	History(ctx context.Context, userID string, query dto.ChatHistoryQuery) ([]dto.ChatMessageResponse, error)
	Start(ctx context.Context)
}

type chatService struct {
	repo        repository.ChatRepository
	rooms       RoomMembership
	redis       *redis.Client
	redisStream string
	redisCache  string
	nats        *nats.Conn
	natsSubject string
	validator   *validator.Validate
	logger      zerolog.Logger
	tracer      trace.Tracer
	sanitizer   *bluemonday.Policy
	hub         *chatHub
	nodeID      string
}

// chatHub keeps track of active websocket clients and handles broadcasting.
type chatHub struct {
	mu    sync.RWMutex
	rooms map[string]map[*chatClient]struct{}
	log   zerolog.Logger
}

type chatClient struct {
	conn          *websocket.Conn
	send          chan dto.ChatMessageResponse
	options       ChatConnectionOptions
	service       *chatService
	closed        chan struct{}
	once          sync.Once
	lastHeartbeat time.Time
	baseCtx       context.Context
}

type chatEvent struct {
	Source   string                  `json:"source"`
	Message  dto.ChatMessageResponse `json:"message"`
	SentAt   time.Time               `json:"sent_at"`
	Metadata map[string]string       `json:"metadata,omitempty"`
}

// NewChatService creates a websocket chat service instance.
func NewChatService(repo repository.ChatRepository, rooms RoomMembership, redisClient *redis.Client, channelBase string, natsConn *nats.Conn, validate *validator.Validate, logger zerolog.Logger) ChatService {
	sanitizer := bluemonday.UGCPolicy()
	sanitizer.AllowElements("br")

	hub := &chatHub{
		rooms: make(map[string]map[*chatClient]struct{}),
		log:   logger.With().Str("component", "chat_hub").Logger(),
	}

	tracer := otel.Tracer("github.com/noah-isme/gema-discuss/internal/service/chat")

	streamChannel := ""
	cachePrefix := ""
	natsSubject := ""
	if channelBase != "" {
		streamChannel = channelBase + ":chat"
		cachePrefix = channelBase + ":chat:last"
		natsSubject = strings.ReplaceAll(channelBase, ":", ".") + ".chat"
	}

	return &chatService{
		repo:        repo,
		rooms:       rooms,
		redis:       redisClient,
		redisStream: streamChannel,
		redisCache:  cachePrefix,
		nats:        natsConn,
		natsSubject: natsSubject,
		validator:   validate,
		logger:      logger.With().Str("component", "chat_service").Logger(),
		tracer:      tracer,
		sanitizer:   sanitizer,
		hub:         hub,
		nodeID:      uuid.NewString(),
	}
}

func (s *chatService) Start(ctx context.Context) {
	if s.redis != nil && s.redisStream != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		go s.consumeNATS(ctx)
	}
}

func (s *chatService) ServeConnection(conn *websocket.Conn, opts ChatConnectionOptions) {
	baseCtx := opts.Context
	if baseCtx == nil {
		baseCtx = context.Background()
	}

	if err := s.authorise(baseCtx, opts.UserID, opts.RoomID); err != nil {
		s.logger.Warn().Err(err).Str("room_id", opts.RoomID).Str("user_id", opts.UserID).Msg("rejecting chat connection")
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "not a member of room"))
		_ = conn.Close()
		return
	}

	client := &chatClient{
		conn:    conn,
		send:    make(chan dto.ChatMessageResponse, chatSendBufferSize),
		options: opts,
		service: s,
		closed:  make(chan struct{}),
		baseCtx: baseCtx,
	}

	s.hub.register(client)
	observability.ChatConnectionsTotal().Inc()

	if last := s.fetchLastMessage(baseCtx, opts.RoomID); last != nil {
		select {
		case client.send <- *last:
		default:
			s.logger.Debug().Str("room_id", opts.RoomID).Msg("dropping cached chat message due to slow consumer")
		}
	}

	go client.writer()
	client.reader()
}

func (s *chatService) History(ctx context.Context, userID string, query dto.ChatHistoryQuery) ([]dto.ChatMessageResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, err
	}

	if err := s.authorise(ctx, userID, query.RoomID); err != nil {
		return nil, err
	}

	if query.ThreadID != "" {
		root, err := s.repo.FindByID(ctx, query.ThreadID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrChatThreadInvalid
			}
			return nil, err
		}
		if root.RoomID != query.RoomID {
			return nil, ErrChatThreadInvalid
		}

		replies, err := s.repo.ListThread(ctx, root.ID, query.Limit)
		if err != nil {
			return nil, err
		}
		return dto.NewChatMessageResponseSlice(append([]models.ChatMessage{root}, replies...)), nil
	}

	before := time.Time{}
	if query.Before != nil {
		before = *query.Before
	}

	messages, err := s.repo.ListByRoom(ctx, query.RoomID, before, query.Limit)
	if err != nil {
		return nil, err
	}

	return dto.NewChatMessageResponseSlice(messages), nil
}

func (s *chatService) Send(ctx context.Context, userID string, payload dto.ChatSendRequest) (dto.ChatMessageResponse, error) {
	return s.processSend(ctx, userID, middleware.CorrelationIDFromContext(ctx), payload)
}

func (s *chatService) processSend(ctx context.Context, userID, correlation string, payload dto.ChatSendRequest) (dto.ChatMessageResponse, error) {
	payload.RoomID = strings.TrimSpace(payload.RoomID)
	payload.ThreadID = strings.TrimSpace(payload.ThreadID)

	if err := s.validator.Struct(payload); err != nil {
		return dto.ChatMessageResponse{}, err
	}

	if err := s.authorise(ctx, userID, payload.RoomID); err != nil {
		return dto.ChatMessageResponse{}, err
	}

	if payload.ThreadID != "" {
		parent, err := s.repo.FindByID(ctx, payload.ThreadID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return dto.ChatMessageResponse{}, ErrChatThreadInvalid
			}
			return dto.ChatMessageResponse{}, err
		}
		if parent.RoomID != payload.RoomID {
			return dto.ChatMessageResponse{}, ErrChatThreadInvalid
		}
		// Replies to a reply belong to the original thread.
		if parent.ThreadID != "" {
			payload.ThreadID = parent.ThreadID
		}
	}

	clean := stripMarkup(s.sanitizer, payload.Content)
	if clean == "" {
		return dto.ChatMessageResponse{}, ErrChatEmptyMessage
	}

	messageType := payload.Type
	if messageType == "" {
		messageType = "text"
	}

	if correlation != "" {
		ctx = middleware.ContextWithCorrelation(ctx, correlation)
	}

	return s.Post(ctx, models.ChatMessage{
		SenderID: userID,
		RoomID:   payload.RoomID,
		ThreadID: payload.ThreadID,
		Content:  clean,
		Type:     messageType,
	})
}

// Post stores and delivers a message without membership checks. It is used for messages the
// application posts on behalf of a user.
func (s *chatService) Post(ctx context.Context, message models.ChatMessage) (dto.ChatMessageResponse, error) {
	if message.Type == "" {
		message.Type = "text"
	}

	attrs := []attribute.KeyValue{
		attribute.String("chat.room_id", message.RoomID),
		attribute.String("chat.sender_id", message.SenderID),
		attribute.String("chat.type", message.Type),
	}
	if correlation := middleware.CorrelationIDFromContext(ctx); correlation != "" {
		attrs = append(attrs, attribute.String("correlation_id", correlation))
	}

	spanCtx, span := s.tracer.Start(ctx, "chat.broadcast", trace.WithAttributes(attrs...))
	defer span.End()

	if err := s.repo.Save(spanCtx, &message); err != nil {
		span.RecordError(err)
		return dto.ChatMessageResponse{}, err
	}

	response := dto.NewChatMessageResponse(message)
	s.cacheLastMessage(spanCtx, response)
	s.broadcast(response)
	if err := s.publish(spanCtx, response); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish chat event")
	}

	observability.ChatMessagesSent().WithLabelValues(message.Type).Inc()

	return response, nil
}

func (s *chatService) authorise(ctx context.Context, userID, roomID string) error {
	if s.rooms == nil {
		return nil
	}
	member, err := s.rooms.IsMember(ctx, roomID, userID)
	if err != nil {
		return err
	}
	if !member {
		return ErrChatNotAuthorised
	}
	return nil
}

func (s *chatService) cacheLastMessage(ctx context.Context, message dto.ChatMessageResponse) {
	if s.redis == nil || s.redisCache == "" {
		return
	}

	payload, err := json.Marshal(message)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to marshal chat message for cache")
		return
	}

	key := fmt.Sprintf("%s:%s", s.redisCache, message.RoomID)
	if err := s.redis.Set(ctx, key, payload, chatRedisTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to cache chat message")
	}
}

func (s *chatService) fetchLastMessage(ctx context.Context, roomID string) *dto.ChatMessageResponse {
	if s.redis == nil || s.redisCache == "" {
		return nil
	}

	key := fmt.Sprintf("%s:%s", s.redisCache, roomID)
	result, err := s.redis.Get(ctx, key).Result()
	if err != nil {
		return nil
	}

	var message dto.ChatMessageResponse
	if err := json.Unmarshal([]byte(result), &message); err != nil {
		s.logger.Warn().Err(err).Msg("failed to unmarshal cached chat message")
		return nil
	}

	return &message
}

func (s *chatService) broadcast(message dto.ChatMessageResponse) {
	s.hub.broadcast(message.RoomID, message)
}

func (s *chatService) publish(ctx context.Context, message dto.ChatMessageResponse) error {
	event := chatEvent{
		Source:  s.nodeID,
		Message: message,
		SentAt:  time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if s.redis != nil && s.redisStream != "" {
		if err := s.redis.Publish(ctx, s.redisStream, payload).Err(); err != nil {
			return err
		}
	}

	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			return err
		}
	}

	return nil
}

func (s *chatService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisStream)
	defer func() {
		_ = pubsub.Close()
	}()
	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Error().Err(err).Msg("chat redis subscription closed")
			return
		}
		s.handleEvent([]byte(msg.Payload))
	}
}

func (s *chatService) consumeNATS(ctx context.Context) {
	sub, err := s.nats.QueueSubscribe(s.natsSubject, "gema-discuss-chat", func(msg *nats.Msg) {
		s.handleEvent(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats chat subject")
		return
	}
	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain chat nats subscription")
		}
	}()
}

func (s *chatService) handleEvent(data []byte) {
	var event chatEvent
	if err := json.Unmarshal(data, &event); err != nil {
		s.logger.Warn().Err(err).Msg("invalid chat event")
		return
	}

	if event.Source == s.nodeID {
		return
	}

	messageType := event.Message.Type
	if messageType == "" {
		messageType = "text"
	}

	observability.ChatMessagesSent().WithLabelValues(messageType).Inc()
	s.broadcast(event.Message)
}

func (h *chatHub) register(client *chatClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room := client.options.RoomID
	if room == "" {
		room = "default"
	}

	if _, exists := h.rooms[room]; !exists {
		h.rooms[room] = make(map[*chatClient]struct{})
	}
	client.options.RoomID = room
	h.rooms[room][client] = struct{}{}
	h.log.Debug().Str("room_id", room).Str("user_id", client.options.UserID).Msg("chat client connected")
}

func (h *chatHub) unregister(client *chatClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room := client.options.RoomID
	if clients, ok := h.rooms[room]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.rooms, room)
		}
	}
	h.log.Debug().Str("room_id", room).Str("user_id", client.options.UserID).Msg("chat client disconnected")
}

func (h *chatHub) broadcast(roomID string, message dto.ChatMessageResponse) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients := h.rooms[roomID]
	for client := range clients {
		select {
		case client.send <- message:
		default:
			h.log.Warn().Str("room_id", roomID).Str("user_id", client.options.UserID).Msg("dropping chat message for slow client")
		}
	}
}

func (c *chatClient) reader() {
	defer c.close()

	connCtx := c.baseCtx
	if connCtx == nil {
		connCtx = context.Background()
	}
	correlation := c.options.CorrelationID
	if correlation == "" {
		correlation = middleware.CorrelationIDFromContext(connCtx)
	}

	for {
		var payload dto.ChatSendRequest
		if err := c.conn.ReadJSON(&payload); err != nil {
			c.service.logger.Debug().Err(err).Msg("chat read loop ended")
			return
		}

		if payload.RoomID == "" {
			payload.RoomID = c.options.RoomID
		}

		response, err := c.service.processSend(connCtx, c.options.UserID, correlation, payload)
		if err != nil {
			c.service.logger.Warn().Err(err).Msg("failed to process chat message")
			continue
		}

		select {
		case <-c.closed:
			return
		default:
		}

		select {
		case c.send <- response:
		default:
			c.service.logger.Warn().Msg("sender queue full, dropping ack message")
		}
	}
}

func (c *chatClient) writer() {
	defer c.close()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				c.service.logger.Debug().Err(err).Msg("chat write loop terminated")
				return
			}
		case <-time.After(30 * time.Second):
			if err := c.conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				c.service.logger.Debug().Err(err).Msg("chat ping failed")
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *chatClient) close() {
	c.once.Do(func() {
		close(c.closed)
		c.service.hub.unregister(c)
		_ = c.conn.Close()
	})
}
