package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/amaumene/catalogarr/internal/models"
	"github.com/amaumene/catalogarr/internal/resume"
)

// SaveResumeRequest is the body of a resume save
type SaveResumeRequest struct {
	ProfileID  string            `json:"profile_id"`
	PositionMs int64             `json:"position_ms"`
	DurationMs int64             `json:"duration_ms"`
	Source     *models.SourceRef `json:"source,omitempty"`
	Title      string            `json:"title,omitempty"`
}

// ResumeHandler serves playback positions
type ResumeHandler struct {
	tracker *resume.Tracker
}

// NewResumeHandler creates a new resume handler
func NewResumeHandler(tracker *resume.Tracker) *ResumeHandler {
	return &ResumeHandler{tracker: tracker}
}

// List returns the unfinished resume entries of a profile
func (h *ResumeHandler) List(c *fiber.Ctx) error {
	entries, err := h.tracker.GetAll(c.UserContext(), c.Query("profile"), c.QueryInt("limit", 50))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"items": entries})
}

// Get returns the resume mark of a key, or 204 when playback starts from zero
func (h *ResumeHandler) Get(c *fiber.Ctx) error {
	mark := h.tracker.Get(c.UserContext(), c.Params("key"), c.Query("profile"))
	if mark == nil {
		return c.SendStatus(fiber.StatusNoContent)
	}
	return c.JSON(mark)
}

// Put saves the playback position of a key
func (h *ResumeHandler) Put(c *fiber.Ctx) error {
	var req SaveResumeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
	}
	if req.PositionMs < 0 || req.DurationMs < 0 {
		return fiber.NewError(fiber.StatusBadRequest, "position and duration must not be negative")
	}

	mark := h.tracker.Save(c.UserContext(), resume.PlaybackContext{
		CanonicalKey: c.Params("key"),
		ProfileID:    req.ProfileID,
		Source:       req.Source,
		Title:        req.Title,
	}, req.PositionMs, req.DurationMs)
	if mark == nil {
		// Already logged and counted; playback goes on
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"saved": false})
	}
	return c.JSON(mark)
}

// Delete clears the playback position of a key
func (h *ResumeHandler) Delete(c *fiber.Ctx) error {
	if err := h.tracker.Clear(c.UserContext(), c.Params("key"), c.Query("profile")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
