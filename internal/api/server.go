package api

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/amaumene/catalogarr/internal/api/handlers"
	"github.com/amaumene/catalogarr/internal/api/middleware"
	"github.com/amaumene/catalogarr/internal/config"
	"github.com/amaumene/catalogarr/internal/controllers"
	"github.com/amaumene/catalogarr/internal/enrichment"
	"github.com/amaumene/catalogarr/internal/home"
	"github.com/amaumene/catalogarr/internal/resume"
	"github.com/amaumene/catalogarr/internal/store"
)

// Deps are the components served over HTTP
type Deps struct {
	Store        *store.Store
	Home         *home.Service
	Resume       *resume.Tracker
	Orchestrator *enrichment.Orchestrator
	Ingest       *controllers.IngestController
	Maintenance  *controllers.MaintenanceController
	Gatherer     prometheus.Gatherer
}

// Server represents the HTTP server
type Server struct {
	app    *fiber.App
	addr   string
	logger zerolog.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg *config.Config, deps Deps, logger zerolog.Logger) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "catalogarr",
		DisableStartupMessage: true,
		UnescapePath:          true,
		ReadTimeout:           15 * time.Second,
		IdleTimeout:           60 * time.Second,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ErrorHandler:          handlers.ErrorHandler,
	})
	app.Use(recover.New())
	app.Use(middleware.Logging(logger))

	s := &Server{
		app:    app,
		addr:   ":" + cfg.ServerPort,
		logger: logger.With().Str("component", "api").Logger(),
	}
	s.setupRoutes(cfg, deps, logger)
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(cfg *config.Config, deps Deps, logger zerolog.Logger) {
	// Health check
	s.app.Get("/health", handlers.NewHealthHandler().Handle)

	// Status endpoint
	s.app.Get("/status", handlers.NewStatusHandler(deps.Store, deps.Orchestrator.Enabled(), logger).Handle)

	// Prometheus
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := s.app.Group("/api")

	// Ingestion sources
	api.Post("/ingest", handlers.NewIngestHandler(deps.Ingest).Handle)

	// Home shelves
	homeHandler := handlers.NewHomeHandler(deps.Home, cfg.DefaultProfile, logger)
	api.Get("/home/continue-watching", homeHandler.ContinueWatching)
	api.Get("/home/continue-watching/stream", homeHandler.StreamContinueWatching)
	api.Get("/home/recently-added", homeHandler.RecentlyAdded)
	api.Get("/home/recently-added/stream", homeHandler.StreamRecentlyAdded)

	// Playback positions
	resumeHandler := handlers.NewResumeHandler(deps.Resume)
	api.Get("/resume", resumeHandler.List)
	api.Get("/resume/:key", resumeHandler.Get)
	api.Put("/resume/:key", resumeHandler.Put)
	api.Delete("/resume/:key", resumeHandler.Delete)

	// Enrichment
	enrichmentHandler := handlers.NewEnrichmentHandler(deps.Orchestrator)
	api.Post("/enrichment/run", enrichmentHandler.Run)
	api.Post("/enrichment/:key", enrichmentHandler.One)

	// Catalog
	mediaHandler := handlers.NewMediaHandler(deps.Store, deps.Maintenance)
	api.Get("/media/:key", mediaHandler.Get)
	api.Put("/media/:key/enrichment", mediaHandler.SetEnrichment)
}

// App exposes the fiber app for in-process requests
func (s *Server) App() *fiber.App {
	return s.app
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info().Str("addr", s.addr).Msg("Starting HTTP server")

	errChan := make(chan error, 1)
	go func() {
		if err := s.app.Listen(s.addr); err != nil {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown() error {
	s.logger.Info().Msg("Shutting down HTTP server")
	return s.app.ShutdownWithTimeout(10 * time.Second)
}
