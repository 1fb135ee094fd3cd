package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-discuss/internal/bootstrap"
	"github.com/noah-isme/gema-discuss/internal/config"
	"github.com/noah-isme/gema-discuss/internal/database"
	"github.com/noah-isme/gema-discuss/internal/handler"
	"github.com/noah-isme/gema-discuss/internal/middleware"
	"github.com/noah-isme/gema-discuss/internal/router"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()
	if cfg.AppEnv == "development" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	db, redisClient, natsConn, err := bootstrap.Connect(cfg)
	if err != nil {
		log.Fatalf("failed to connect backing services: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	container, err := bootstrap.Build(ctx, cfg, db, redisClient, natsConn, logger)
	if err != nil {
		log.Fatalf("failed to wire services: %v", err)
	}
	defer container.Close()

	container.Chat.Start(ctx)
	container.Notifications.Start(ctx)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		CommandHandler:      handler.NewCommandHandler(container.Commands, container.Validate, logger),
		RoomHandler:         handler.NewRoomHandler(container.RoomService, logger),
		ChatHandler:         handler.NewChatHandler(container.Chat, container.Validate, logger),
		NotificationHandler: handler.NewNotificationHandler(container.Notifications, logger, cfg.NotificationKeepAlive),
		AssociationHandler:  handler.NewAssociationHandler(container.Lookup, logger),
		ActivityHandler:     handler.NewActivityHandler(container.Activity, logger),
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
		UserSyncMiddleware:  middleware.SyncUser(container.Users, logger),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	logger.Info().
		Str("address", cfg.HTTPAddress()).
		Str("association_backend", cfg.Discuss.AssociationBackend).
		Bool("claim_threads", cfg.Discuss.ClaimThreads).
		Msg("server started")

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
