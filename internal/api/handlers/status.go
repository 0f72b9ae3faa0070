package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/amaumene/catalogarr/internal/store"
)

// StatusHandler handles status requests
type StatusHandler struct {
	store             *store.Store
	enrichmentEnabled bool
	logger            zerolog.Logger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(st *store.Store, enrichmentEnabled bool, logger zerolog.Logger) *StatusHandler {
	return &StatusHandler{
		store:             st,
		enrichmentEnabled: enrichmentEnabled,
		logger:            logger,
	}
}

// StatusResponse represents the status response
type StatusResponse struct {
	store.Stats
	EnrichmentEnabled bool `json:"enrichment_enabled"`
}

// Handle handles the status endpoint
func (h *StatusHandler) Handle(c *fiber.Ctx) error {
	stats, err := h.store.Stats(c.UserContext())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to collect catalog stats")
		return err
	}
	return c.JSON(StatusResponse{Stats: stats, EnrichmentEnabled: h.enrichmentEnabled})
}
