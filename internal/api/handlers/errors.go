package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/amaumene/catalogarr/internal/enrichment"
	"github.com/amaumene/catalogarr/internal/store"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
}

// ErrorHandler maps domain errors onto HTTP status codes
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "internal server error"

	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		code, message = fe.Code, fe.Message
	case errors.Is(err, store.ErrNotFound):
		code, message = fiber.StatusNotFound, err.Error()
	case errors.Is(err, store.ErrInvalidRecord):
		code, message = fiber.StatusBadRequest, err.Error()
	case errors.Is(err, store.ErrDataIntegrity):
		code, message = fiber.StatusConflict, err.Error()
	case errors.Is(err, enrichment.ErrEnrichmentDisabled):
		code, message = fiber.StatusServiceUnavailable, err.Error()
	}
	return c.Status(code).JSON(ErrorResponse{Error: message})
}

func queryProfile(c *fiber.Ctx, fallback string) string {
	if p := c.Query("profile"); p != "" {
		return p
	}
	return fallback
}
