package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-discuss/internal/config"
	"github.com/noah-isme/gema-discuss/internal/handler"
	"github.com/noah-isme/gema-discuss/internal/middleware"
	"github.com/noah-isme/gema-discuss/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	CommandHandler      *handler.CommandHandler
	RoomHandler         *handler.RoomHandler
	ChatHandler         *handler.ChatHandler
	NotificationHandler *handler.NotificationHandler
	AssociationHandler  *handler.AssociationHandler
	ActivityHandler     *handler.ActivityHandler
	JWTMiddleware       fiber.Handler
	UserSyncMiddleware  fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	// Use provided middlewares, or a no-op if nil
	noop := func(c *fiber.Ctx) error { return c.Next() }
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = noop
	}
	syncMiddleware := deps.UserSyncMiddleware
	if syncMiddleware == nil {
		syncMiddleware = noop
	}

	if deps.CommandHandler != nil {
		commands := api.Group("/commands",
			jwtMiddleware,
			syncMiddleware,
			middleware.RateLimit("discuss", cfg.Discuss.RateLimit, rateWindow(cfg)),
		)
		deps.CommandHandler.Register(commands)
	}

	if deps.RoomHandler != nil {
		deps.RoomHandler.Register(api.Group("/rooms", jwtMiddleware, syncMiddleware))
	}

	if deps.ChatHandler != nil {
		deps.ChatHandler.Register(api.Group("/chat", jwtMiddleware, syncMiddleware))
	}

	if deps.NotificationHandler != nil {
		deps.NotificationHandler.Register(api.Group("/notifications", jwtMiddleware))
	}

	admin := api.Group("/admin", jwtMiddleware, middleware.RequireRole("admin", "owner"))
	if deps.AssociationHandler != nil {
		deps.AssociationHandler.Register(admin.Group("/associations"))
	}
	if deps.ActivityHandler != nil {
		deps.ActivityHandler.Register(admin.Group("/activity"))
	}
}

func rateWindow(cfg config.Config) time.Duration {
	if cfg.Discuss.RateWindow > 0 {
		return cfg.Discuss.RateWindow
	}
	return time.Minute
}
