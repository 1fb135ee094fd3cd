package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-discuss/internal/dto"
	"github.com/noah-isme/gema-discuss/internal/middleware"
	"github.com/noah-isme/gema-discuss/internal/service"
	"github.com/noah-isme/gema-discuss/internal/utils"
)

// CommandHandler exposes slash command execution over HTTP.
type CommandHandler struct {
	service   service.CommandService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewCommandHandler constructs a command handler.
func NewCommandHandler(service service.CommandService, validator *validator.Validate, logger zerolog.Logger) *CommandHandler {
	return &CommandHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "command_handler").Logger(),
	}
}

// Register binds the command routes.
func (h *CommandHandler) Register(router fiber.Router) {
	router.Post("/discuss", middleware.WithAuth(h.discuss, middleware.AuthOptions{Role: middleware.AuthRoleMember}))
}

// discuss always answers 200 once the invocation ran; the outcome travels in the body.
func (h *CommandHandler) discuss(c *fiber.Ctx) error {
	userID := userIDStringFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	var payload dto.DiscussCommandRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if err := h.validator.Struct(payload); err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, "validation failed", validationDetails(err))
	}

	response, err := h.service.Discuss(withRequestContext(c), userID, payload)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnknownUser):
			return utils.SendError(c, fiber.StatusNotFound, "user not found")
		case errors.Is(err, service.ErrUnknownRoom):
			return utils.SendError(c, fiber.StatusNotFound, "room not found")
		default:
			requestLogger(h.logger, c).Error().Err(err).Str("room_id", payload.RoomID).Msg("discuss command failed")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to run command")
		}
	}

	return utils.SendSuccess(c, "command completed", response)
}
