package controllers

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/amaumene/catalogarr/internal/models"
	"github.com/amaumene/catalogarr/internal/store"
)

// MaintenanceController handles integrity reporting and cleanup of orphaned media
type MaintenanceController struct {
	store  *store.Store
	logger zerolog.Logger
}

// NewMaintenanceController creates a new maintenance controller
func NewMaintenanceController(st *store.Store, logger zerolog.Logger) *MaintenanceController {
	return &MaintenanceController{
		store:  st,
		logger: logger.With().Str("component", "maintenance").Logger(),
	}
}

// Faults returns the most recent journaled integrity faults
func (c *MaintenanceController) Faults(ctx context.Context, limit int) ([]models.IntegrityFault, error) {
	return c.store.ListIntegrityFaults(ctx, limit)
}

// PruneOrphans removes canonical media that no source carries and nobody is watching.
// With dryRun set the candidates are only reported.
func (c *MaintenanceController) PruneOrphans(ctx context.Context, dryRun bool) ([]string, error) {
	c.logger.Info().Bool("dry_run", dryRun).Msg("Starting orphan cleanup")

	keys, err := c.store.DeleteOrphans(ctx, dryRun)
	if err != nil {
		return nil, fmt.Errorf("failed to prune orphans: %w", err)
	}

	for _, key := range keys {
		c.logger.Debug().Str("canonical_key", key).Bool("dry_run", dryRun).Msg("Orphaned media")
	}
	c.logger.Info().Int("orphans", len(keys)).Bool("dry_run", dryRun).Msg("Orphan cleanup completed")
	return keys, nil
}

// SetEnrichmentDisabled switches enrichment off or back on for one entity and returns
// the updated record
func (c *MaintenanceController) SetEnrichmentDisabled(ctx context.Context, key string, disabled bool) (*models.CanonicalMedia, error) {
	if err := c.store.SetEnrichmentDisabled(ctx, key, disabled); err != nil {
		return nil, err
	}
	c.logger.Info().Str("canonical_key", key).Bool("disabled", disabled).Msg("Enrichment switched for entity")
	return c.store.GetCanonical(ctx, key)
}

// Run is the scheduled maintenance pass: prune orphans and report catalog health
func (c *MaintenanceController) Run(ctx context.Context) error {
	if _, err := c.PruneOrphans(ctx, false); err != nil {
		return err
	}

	stats, err := c.store.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to collect stats: %w", err)
	}
	event := c.logger.Info()
	if stats.IntegrityFaults > 0 {
		event = c.logger.Warn()
	}
	event.
		Int64("canonical_media", stats.Total).
		Int64("integrity_faults", stats.IntegrityFaults).
		Int64("live_resume_marks", stats.LiveResumeMarks).
		Msg("Maintenance completed")
	return nil
}
