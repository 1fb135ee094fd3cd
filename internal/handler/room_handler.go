package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-discuss/internal/dto"
	"github.com/noah-isme/gema-discuss/internal/repository"
	"github.com/noah-isme/gema-discuss/internal/service"
	"github.com/noah-isme/gema-discuss/internal/utils"
)

// RoomHandler exposes room management endpoints.
type RoomHandler struct {
	service service.RoomService
	logger  zerolog.Logger
}

// NewRoomHandler constructs a room handler.
func NewRoomHandler(service service.RoomService, logger zerolog.Logger) *RoomHandler {
	return &RoomHandler{
		service: service,
		logger:  logger.With().Str("component", "room_handler").Logger(),
	}
}

// Register binds the room routes.
func (h *RoomHandler) Register(router fiber.Router) {
	router.Post("/", h.create)
	router.Get("/:id", h.get)
	router.Post("/:id/join", h.join)
}

func (h *RoomHandler) create(c *fiber.Ctx) error {
	userID := userIDStringFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	var payload dto.RoomCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	room, err := h.service.Create(withRequestContext(c), userID, userRoleFromContext(c), payload)
	if err != nil {
		return h.respondRoomError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "room created", room)
}

func (h *RoomHandler) get(c *fiber.Ctx) error {
	userID := userIDStringFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	room, err := h.service.Get(withRequestContext(c), c.Params("id"), userID)
	if err != nil {
		return h.respondRoomError(c, err)
	}

	return utils.SendSuccess(c, "room", room)
}

func (h *RoomHandler) join(c *fiber.Ctx) error {
	userID := userIDStringFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	room, err := h.service.Join(withRequestContext(c), c.Params("id"), userID)
	if err != nil {
		return h.respondRoomError(c, err)
	}

	return utils.SendSuccess(c, "joined room", room)
}

func (h *RoomHandler) respondRoomError(c *fiber.Ctx, err error) error {
	var policyErr *repository.PolicyError
	switch {
	case isValidationError(err):
		return utils.Fail(c, fiber.StatusBadRequest, "validation failed", validationDetails(err))
	case errors.Is(err, service.ErrRoomForbidden):
		return utils.SendError(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, repository.ErrNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "room not found")
	case errors.Is(err, repository.ErrDuplicateEntry):
		return utils.SendError(c, fiber.StatusConflict, "room name already taken")
	case errors.As(err, &policyErr):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, policyErr.Reason)
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("room request failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to process room request")
	}
}
