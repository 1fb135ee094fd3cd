package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-discuss/internal/service"
	"github.com/noah-isme/gema-discuss/internal/utils"
)

// AssociationHandler lets operators inspect thread to discussion associations.
type AssociationHandler struct {
	service service.AssociationService
	logger  zerolog.Logger
}

// NewAssociationHandler constructs the handler.
func NewAssociationHandler(service service.AssociationService, logger zerolog.Logger) *AssociationHandler {
	return &AssociationHandler{
		service: service,
		logger:  logger.With().Str("component", "association_handler").Logger(),
	}
}

// Register binds the association routes.
func (h *AssociationHandler) Register(router fiber.Router) {
	router.Get("/:thread_id", h.show)
}

func (h *AssociationHandler) show(c *fiber.Ctx) error {
	association, err := h.service.Lookup(withRequestContext(c), c.Params("thread_id"))
	if err != nil {
		if errors.Is(err, service.ErrAssociationNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, err.Error())
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to load association")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load association")
	}

	return utils.SendSuccess(c, "association", association)
}
