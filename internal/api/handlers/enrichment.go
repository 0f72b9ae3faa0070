package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/amaumene/catalogarr/internal/enrichment"
)

// EnrichmentHandler triggers enrichment on demand
type EnrichmentHandler struct {
	orchestrator *enrichment.Orchestrator
}

// NewEnrichmentHandler creates a new enrichment handler
func NewEnrichmentHandler(o *enrichment.Orchestrator) *EnrichmentHandler {
	return &EnrichmentHandler{orchestrator: o}
}

// Run executes one enrichment cycle. A disabled orchestrator reports a disabled summary.
func (h *EnrichmentHandler) Run(c *fiber.Ctx) error {
	summary, err := h.orchestrator.RunCycle(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(summary)
}

// One enriches a single entity regardless of its cooldown
func (h *EnrichmentHandler) One(c *fiber.Ctx) error {
	key := c.Params("key")
	outcome, err := h.orchestrator.EnrichOne(c.UserContext(), key)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"canonical_key": key, "outcome": outcome})
}
