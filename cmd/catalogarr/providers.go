package main

import (
	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/amaumene/catalogarr/internal/api"
	"github.com/amaumene/catalogarr/internal/config"
	"github.com/amaumene/catalogarr/internal/controllers"
	"github.com/amaumene/catalogarr/internal/enrichment"
	"github.com/amaumene/catalogarr/internal/home"
	"github.com/amaumene/catalogarr/internal/live"
	"github.com/amaumene/catalogarr/internal/metrics"
	"github.com/amaumene/catalogarr/internal/models"
	"github.com/amaumene/catalogarr/internal/resume"
	"github.com/amaumene/catalogarr/internal/scheduler"
	"github.com/amaumene/catalogarr/internal/services/tmdb"
	"github.com/amaumene/catalogarr/internal/store"
	"github.com/amaumene/catalogarr/internal/utils"
)

// App holds the wired components
type App struct {
	Config       *config.Config
	Logger       zerolog.Logger
	Store        *store.Store
	Orchestrator *enrichment.Orchestrator
	Maintenance  *controllers.MaintenanceController
	Scheduler    *scheduler.Scheduler
	Server       *api.Server
}

var providerSet = wire.NewSet(
	provideDatabase,
	provideRegistry,
	wire.Bind(new(prometheus.Registerer), new(*prometheus.Registry)),
	wire.Bind(new(prometheus.Gatherer), new(*prometheus.Registry)),
	metrics.New,
	store.NewNotifier,
	provideStore,
	live.NewObserver,
	provideHome,
	provideTracker,
	provideExclusions,
	provideCatalogClient,
	provideOrchestrator,
	provideIngest,
	controllers.NewMaintenanceController,
	provideScheduler,
	provideServer,
	wire.Struct(new(App), "*"),
)

func provideDatabase(cfg *config.Config, logger zerolog.Logger) (*models.Database, func(), error) {
	db, err := models.NewDatabase(cfg.DatabaseFile)
	if err != nil {
		return nil, nil, err
	}
	logger.Info().Str("path", cfg.DatabaseFile).Msg("Database initialized")
	return db, func() {
		if err := db.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close database")
		}
	}, nil
}

func provideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

func provideStore(db *models.Database, notifier *store.Notifier, m *metrics.Metrics, logger zerolog.Logger, cfg *config.Config) *store.Store {
	return store.New(db, notifier, m, logger, store.Config{CompletionThreshold: cfg.ResumeCompletionThreshold})
}

func provideHome(st *store.Store, observer *live.Observer, cfg *config.Config, logger zerolog.Logger) *home.Service {
	return home.NewService(st, observer, home.Config{
		ContinueLimit: cfg.HomeContinueLimit,
		RecentLimit:   cfg.HomeRecentLimit,
		NewWindow:     cfg.HomeNewWindow,
	}, logger)
}

func provideTracker(st *store.Store, observer *live.Observer, m *metrics.Metrics, logger zerolog.Logger, cfg *config.Config) *resume.Tracker {
	return resume.NewTracker(st, observer, m, logger, cfg.DefaultProfile)
}

func provideExclusions(cfg *config.Config, logger zerolog.Logger) (*utils.ExclusionList, error) {
	list, err := utils.LoadExclusionList(cfg.ExcludeFile)
	if err != nil {
		return nil, err
	}
	logger.Info().Int("terms", list.Len()).Msg("Enrichment exclusion list loaded")
	return list, nil
}

// provideCatalogClient returns a nil Client when no credential is configured, which
// disables enrichment.
func provideCatalogClient(cfg *config.Config, logger zerolog.Logger) (enrichment.Client, error) {
	if !cfg.EnrichmentEnabled() {
		logger.Warn().Msg("TMDB_API_KEY not set, enrichment disabled")
		return nil, nil
	}
	client, err := tmdb.NewClient(cfg, logger)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func provideOrchestrator(st *store.Store, client enrichment.Client, exclusions *utils.ExclusionList, m *metrics.Metrics, logger zerolog.Logger, cfg *config.Config) *enrichment.Orchestrator {
	return enrichment.NewOrchestrator(st, client, exclusions, m, logger, enrichment.Config{
		Enabled:        cfg.EnrichmentEnabled(),
		Cooldown:       cfg.EnrichCooldown,
		MaxCooldown:    cfg.EnrichMaxCooldown,
		Concurrency:    cfg.EnrichConcurrency,
		BatchSize:      cfg.EnrichBatchSize,
		MatchThreshold: cfg.EnrichMatchThreshold,
		RefreshAfter:   cfg.EnrichRefreshAfter,
		PendingTimeout: cfg.EnrichPendingTimeout,
	})
}

func provideIngest(st *store.Store, cfg *config.Config, logger zerolog.Logger) *controllers.IngestController {
	return controllers.NewIngestController(st, cfg.IngestWorkers, logger)
}

func provideScheduler(o *enrichment.Orchestrator, maintenance *controllers.MaintenanceController, cfg *config.Config, logger zerolog.Logger) *scheduler.Scheduler {
	return scheduler.NewScheduler(o, maintenance, scheduler.Config{
		EnrichSchedule:      cfg.EnrichSchedule,
		MaintenanceSchedule: cfg.MaintenanceSchedule,
		RunOnStart:          true,
	}, logger)
}

func provideServer(cfg *config.Config, st *store.Store, h *home.Service, tracker *resume.Tracker, o *enrichment.Orchestrator, ingest *controllers.IngestController, maintenance *controllers.MaintenanceController, gatherer prometheus.Gatherer, logger zerolog.Logger) *api.Server {
	return api.NewServer(cfg, api.Deps{
		Store:        st,
		Home:         h,
		Resume:       tracker,
		Orchestrator: o,
		Ingest:       ingest,
		Maintenance:  maintenance,
		Gatherer:     gatherer,
	}, logger)
}
