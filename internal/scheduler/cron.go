package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/amaumene/catalogarr/internal/enrichment"
)

// Enricher runs one enrichment cycle
type Enricher interface {
	RunCycle(ctx context.Context) (enrichment.Summary, error)
}

// Maintainer runs one maintenance pass
type Maintainer interface {
	Run(ctx context.Context) error
}

// Config holds the cron expressions of the scheduled jobs
type Config struct {
	EnrichSchedule      string
	MaintenanceSchedule string
	RunOnStart          bool
}

// Scheduler manages scheduled tasks
type Scheduler struct {
	cron       *cron.Cron
	enricher   Enricher
	maintainer Maintainer
	cfg        Config
	logger     zerolog.Logger
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewScheduler creates a new scheduler. Overlapping runs of the same job are skipped.
func NewScheduler(enricher Enricher, maintainer Maintainer, cfg Config, logger zerolog.Logger) *Scheduler {
	logger = logger.With().Str("component", "scheduler").Logger()
	cronLogger := cronLog{logger: logger}
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		enricher:   enricher,
		maintainer: maintainer,
		cfg:        cfg,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start registers the jobs and starts the scheduler
func (s *Scheduler) Start() error {
	s.logger.Info().Msg("Starting scheduler")

	enrichJob := cron.FuncJob(s.runEnrichment)
	enrichID, err := s.cron.AddJob(s.cfg.EnrichSchedule, enrichJob)
	if err != nil {
		return fmt.Errorf("failed to add enrichment job: %w", err)
	}

	if _, err := s.cron.AddFunc(s.cfg.MaintenanceSchedule, s.runMaintenance); err != nil {
		return fmt.Errorf("failed to add maintenance job: %w", err)
	}

	initial := s.cron.Entry(enrichID).WrappedJob

	s.cron.Start()
	s.logger.Info().
		Str("enrich_schedule", s.cfg.EnrichSchedule).
		Str("maintenance_schedule", s.cfg.MaintenanceSchedule).
		Msg("Scheduler started")

	if s.cfg.RunOnStart {
		// Through the chain so a tick firing meanwhile is skipped
		go initial.Run()
	}
	return nil
}

// Stop stops the scheduler, cancels running jobs and waits for them to return
func (s *Scheduler) Stop() {
	s.logger.Info().Msg("Stopping scheduler")
	s.cancel()
	<-s.cron.Stop().Done()
}

// runEnrichment executes the enrichment job
func (s *Scheduler) runEnrichment() {
	summary, err := s.enricher.RunCycle(s.ctx)
	switch {
	case err != nil && s.ctx.Err() != nil:
		s.logger.Info().Msg("Enrichment job interrupted by shutdown")
	case err != nil:
		s.logger.Error().Err(err).Msg("Enrichment job failed")
	case summary.Disabled:
		s.logger.Debug().Msg("Enrichment job skipped, enrichment disabled")
	case summary.Busy:
		s.logger.Debug().Msg("Enrichment job skipped, a cycle is already running")
	default:
		s.logger.Debug().Int("candidates", summary.Candidates).Msg("Enrichment job completed")
	}
}

// runMaintenance executes the maintenance job
func (s *Scheduler) runMaintenance() {
	s.logger.Info().Msg("Running scheduled maintenance")
	if err := s.maintainer.Run(s.ctx); err != nil {
		s.logger.Error().Err(err).Msg("Maintenance job failed")
	}
}

// cronLog adapts zerolog to cron.Logger
type cronLog struct {
	logger zerolog.Logger
}

func (l cronLog) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLog) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
