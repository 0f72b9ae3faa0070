package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/amaumene/catalogarr/internal/controllers"
	"github.com/amaumene/catalogarr/internal/models"
)

// MaxIngestBatch bounds the records accepted per request
const MaxIngestBatch = 1000

// IngestRequest is the payload pushed by ingestion sources
type IngestRequest struct {
	Records []models.IngestRecord `json:"records"`
}

// IngestHandler receives raw records from the ingestion sources
type IngestHandler struct {
	ctrl *controllers.IngestController
}

// NewIngestHandler creates a new ingest handler
func NewIngestHandler(ctrl *controllers.IngestController) *IngestHandler {
	return &IngestHandler{ctrl: ctrl}
}

// Handle upserts the posted batch and reports a per-record outcome
func (h *IngestHandler) Handle(c *fiber.Ctx) error {
	var req IngestRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
	}
	if len(req.Records) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "no records")
	}
	if len(req.Records) > MaxIngestBatch {
		return fiber.NewError(fiber.StatusRequestEntityTooLarge, "too many records")
	}

	report := h.ctrl.Ingest(c.UserContext(), req.Records)
	return c.JSON(report)
}
