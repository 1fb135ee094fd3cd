package bootstrap

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-discuss/internal/config"
	"github.com/noah-isme/gema-discuss/internal/database"
	"github.com/noah-isme/gema-discuss/internal/models"
	"github.com/noah-isme/gema-discuss/internal/repository"
	"github.com/noah-isme/gema-discuss/internal/service"
)

// Container holds the wired services shared by the API server and the operator CLI.
type Container struct {
	DB       *gorm.DB
	Redis    *redis.Client
	NATS     *nats.Conn
	Validate *validator.Validate
	AppUser  models.User

	Users        repository.UserRepository
	Rooms        repository.RoomRepository
	Associations repository.AssociationRepository

	Chat          service.ChatService
	Notifications service.NotificationService
	RoomService   service.RoomService
	Commands      service.CommandService
	Lookup        service.AssociationService
	Activity      service.ActivityService
}

// Connect opens the database and, when configured, redis and nats.
func Connect(cfg config.Config) (*gorm.DB, *redis.Client, *nats.Conn, error) {
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, err
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL, cfg.AppName)
		if err != nil {
			return nil, nil, nil, err
		}
	}

	natsConn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName)
	if err != nil {
		if redisClient != nil {
			_ = redisClient.Close()
		}
		return nil, nil, nil, err
	}

	return db, redisClient, natsConn, nil
}

// Build wires repositories and services over already opened connections.
func Build(ctx context.Context, cfg config.Config, db *gorm.DB, redisClient *redis.Client, natsConn *nats.Conn, logger zerolog.Logger) (*Container, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())

	users := repository.NewUserRepository(db)
	rooms := repository.NewRoomRepository(db)
	chatRepo := repository.NewChatRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	var associations repository.AssociationRepository
	switch cfg.Discuss.AssociationBackend {
	case config.AssociationBackendRedis:
		if redisClient == nil {
			return nil, fmt.Errorf("redis association backend requires a redis connection")
		}
		associations = repository.NewRedisAssociationRepository(redisClient, "gema:discuss")
	default:
		associations = repository.NewAssociationRepository(db)
	}

	appUser, err := users.EnsureByUsername(ctx, cfg.Discuss.AppUsername, "Discuss")
	if err != nil {
		return nil, fmt.Errorf("failed to provision app user: %w", err)
	}

	links := service.NewPermalinks(cfg.SiteURL)
	chat := service.NewChatService(chatRepo, rooms, redisClient, cfg.RealtimeChannel, natsConn, validate, logger)
	notifications := service.NewNotificationService(notificationRepo, redisClient, cfg.RealtimeChannel, natsConn, validate, logger)
	gateway := service.NewDiscussionGateway(rooms, logger)
	activity := service.NewActivityService(repository.NewActivityLogRepository(db), logger)

	resolver := service.NewDiscussionResolver(
		associations,
		rooms,
		chatRepo,
		users,
		chat,
		gateway,
		links,
		service.ResolverOptions{
			ClaimThreads: cfg.Discuss.ClaimThreads,
			ClaimTTL:     cfg.Discuss.ClaimTTL,
		},
		logger,
	)

	commands := service.NewCommandService(
		users,
		rooms,
		appUser,
		resolver,
		service.NewCLITargetResolver(rooms),
		gateway,
		notifications,
		activity,
		links,
		logger,
	)

	return &Container{
		DB:            db,
		Redis:         redisClient,
		NATS:          natsConn,
		Validate:      validate,
		AppUser:       appUser,
		Users:         users,
		Rooms:         rooms,
		Associations:  associations,
		Chat:          chat,
		Notifications: notifications,
		RoomService:   service.NewRoomService(rooms, users, validate, logger),
		Commands:      commands,
		Lookup:        service.NewAssociationService(associations, links, logger),
		Activity:      activity,
	}, nil
}

// Close releases the broker connections.
func (c *Container) Close() {
	if c.NATS != nil {
		c.NATS.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}
