package middleware

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-discuss/internal/utils"
)

// UserStore persists the identity carried by an authenticated token.
type UserStore interface {
	Upsert(ctx context.Context, id, username string) error
}

// SyncUser mirrors the token subject into the local user directory so rooms
// and commands can resolve it. It must run after JWTProtected.
func SyncUser(store UserStore, logger zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, _ := c.Locals("user_id").(string)
		if userID == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
		}

		username, _ := c.Locals("username").(string)
		if username == "" {
			username = userID
		}

		if err := store.Upsert(c.UserContext(), userID, username); err != nil {
			logger.Error().Err(err).Str("user_id", userID).Msg("failed to sync user")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to load user")
		}

		return c.Next()
	}
}
