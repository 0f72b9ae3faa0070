package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/amaumene/catalogarr/internal/home"
	"github.com/amaumene/catalogarr/internal/live"
)

// HomeHandler serves the home shelves
type HomeHandler struct {
	service        *home.Service
	defaultProfile string
	keepAlive      time.Duration
	logger         zerolog.Logger
}

// NewHomeHandler creates a new home handler
func NewHomeHandler(service *home.Service, defaultProfile string, logger zerolog.Logger) *HomeHandler {
	return &HomeHandler{
		service:        service,
		defaultProfile: defaultProfile,
		keepAlive:      DefaultKeepAlive,
		logger:         logger,
	}
}

// ContinueWatching returns the continue watching shelf
func (h *HomeHandler) ContinueWatching(c *fiber.Ctx) error {
	items, err := h.service.ContinueWatching(c.UserContext(), queryProfile(c, h.defaultProfile), c.QueryInt("limit", 0))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"items": items})
}

// RecentlyAdded returns the recently added shelf
func (h *HomeHandler) RecentlyAdded(c *fiber.Ctx) error {
	items, err := h.service.RecentlyAdded(c.UserContext(), c.QueryInt("limit", 0))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"items": items})
}

// StreamContinueWatching streams the continue watching shelf as server-sent events
func (h *HomeHandler) StreamContinueWatching(c *fiber.Ctx) error {
	profile := queryProfile(c, h.defaultProfile)
	return streamSSE(c, h.logger, h.keepAlive, func(ctx context.Context) <-chan live.Update[[]home.HomeItem] {
		return h.service.ObserveContinueWatching(ctx, profile)
	})
}

// StreamRecentlyAdded streams the recently added shelf as server-sent events
func (h *HomeHandler) StreamRecentlyAdded(c *fiber.Ctx) error {
	return streamSSE(c, h.logger, h.keepAlive, h.service.ObserveRecentlyAdded)
}
