package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/amaumene/catalogarr/internal/controllers"
	"github.com/amaumene/catalogarr/internal/store"
)

// MediaHandler serves canonical records
type MediaHandler struct {
	store       *store.Store
	maintenance *controllers.MaintenanceController
}

// NewMediaHandler creates a new media handler
func NewMediaHandler(st *store.Store, maintenance *controllers.MaintenanceController) *MediaHandler {
	return &MediaHandler{store: st, maintenance: maintenance}
}

// Get returns the canonical record with its source references
func (h *MediaHandler) Get(c *fiber.Ctx) error {
	media, err := h.store.GetCanonical(c.UserContext(), c.Params("key"))
	if err != nil {
		return err
	}
	if media == nil {
		return fiber.NewError(fiber.StatusNotFound, "media not found")
	}
	return c.JSON(media)
}

type enrichmentSwitchRequest struct {
	Disabled *bool `json:"disabled"`
}

// SetEnrichment turns enrichment off or back on for one entity
func (h *MediaHandler) SetEnrichment(c *fiber.Ctx) error {
	var req enrichmentSwitchRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
	}
	if req.Disabled == nil {
		return fiber.NewError(fiber.StatusBadRequest, "disabled is required")
	}

	media, err := h.maintenance.SetEnrichmentDisabled(c.UserContext(), c.Params("key"), *req.Disabled)
	if err != nil {
		return err
	}
	if media == nil {
		return fiber.NewError(fiber.StatusNotFound, "media not found")
	}
	return c.JSON(media)
}
