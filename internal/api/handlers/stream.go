package handlers

import (
	"bufio"
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"github.com/amaumene/catalogarr/internal/live"
)

// DefaultKeepAlive is the interval between SSE comment frames on an idle stream
const DefaultKeepAlive = 15 * time.Second

// streamSSE answers c with a server-sent event stream. subscribe is called once the
// response starts; the subscription ends when the client goes away.
func streamSSE[T any](c *fiber.Ctx, logger zerolog.Logger, keepAlive time.Duration, subscribe func(ctx context.Context) <-chan live.Update[T]) error {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	path := c.Path()
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		if err := writeStream(ctx, w, subscribe(ctx), keepAlive); err != nil {
			logger.Debug().Err(err).Str("path", path).Msg("Event stream closed")
		}
	}))
	return nil
}

// writeStream copies updates to w as SSE frames until the channel closes or a write fails.
// A failed flush means the client disconnected.
func writeStream[T any](ctx context.Context, w *bufio.Writer, updates <-chan live.Update[T], keepAlive time.Duration) error {
	if keepAlive <= 0 {
		keepAlive = DefaultKeepAlive
	}
	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.WriteString(": keep-alive\n\n"); err != nil {
				return err
			}
			if err := w.Flush(); err != nil {
				return err
			}
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if err := writeEvent(w, update); err != nil {
				return err
			}
		}
	}
}

func writeEvent[T any](w *bufio.Writer, update live.Update[T]) error {
	event, payload := "update", any(update.Value)
	if update.Err != nil {
		event, payload = "error", ErrorResponse{Error: update.Err.Error()}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	return w.Flush()
}
