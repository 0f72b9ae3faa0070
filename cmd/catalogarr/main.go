package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/amaumene/catalogarr/internal/config"
	"github.com/amaumene/catalogarr/internal/enrichment"
	"github.com/amaumene/catalogarr/internal/utils"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "catalogarr",
		Short:         "Unified media catalog across Xtream, Telegram and local sources",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newEnrichCmd(), newMaintenanceCmd())
	return root
}

// setup loads the configuration, builds the logger and wires the application
func setup() (*App, func(), error) {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	// 2. Setup logger
	logger := utils.NewLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info().Str("config_dir", filepath.Dir(cfg.DatabaseFile)).Msg("Configuration loaded")

	// 3. Wire database, store and services
	app, cleanup, err := initializeApp(cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize: %w", err)
	}
	return app, cleanup, nil
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the scheduled enrichment and maintenance jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := setup()
			if err != nil {
				return err
			}
			defer cleanup()

			logger := app.Logger
			logger.Info().Msg("Starting catalogarr")

			shutdownTracing := utils.SetupTracing(logger)
			defer func() {
				if err := shutdownTracing(context.Background()); err != nil {
					logger.Error().Err(err).Msg("Failed to shut down tracing")
				}
			}()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// Start scheduler
			if err := app.Scheduler.Start(); err != nil {
				return fmt.Errorf("failed to start scheduler: %w", err)
			}
			defer app.Scheduler.Stop()

			// Serve until a signal arrives
			if err := app.Server.Start(ctx); err != nil {
				return err
			}
			logger.Info().Msg("Catalogarr stopped")
			return nil
		},
	}
}

func newEnrichCmd() *cobra.Command {
	var key string
	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Run one enrichment cycle, or enrich a single entity with --key",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := setup()
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if key != "" {
				outcome, err := app.Orchestrator.EnrichOne(ctx, key)
				if errors.Is(err, enrichment.ErrEnrichmentDisabled) {
					return fmt.Errorf("%w: set TMDB_API_KEY", err)
				}
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string]string{"canonical_key": key, "outcome": string(outcome)})
			}

			summary, err := app.Orchestrator.RunCycle(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd, summary)
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "canonical key of a single entity")
	return cmd
}

func newMaintenanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "maintenance",
		Short: "Catalog maintenance tasks",
	}

	var limit int
	faults := &cobra.Command{
		Use:   "faults",
		Short: "List journaled integrity faults",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := setup()
			if err != nil {
				return err
			}
			defer cleanup()

			list, err := app.Maintenance.Faults(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printJSON(cmd, list)
		},
	}
	faults.Flags().IntVar(&limit, "limit", 100, "maximum number of faults")

	var dryRun bool
	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete canonical media without sources or live resume marks",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := setup()
			if err != nil {
				return err
			}
			defer cleanup()

			keys, err := app.Maintenance.PruneOrphans(cmd.Context(), dryRun)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]interface{}{"dry_run": dryRun, "orphans": keys})
		},
	}
	prune.Flags().BoolVar(&dryRun, "dry-run", false, "only report what would be deleted")

	var (
		switchKey string
		enable    bool
	)
	disable := &cobra.Command{
		Use:   "disable-enrichment",
		Short: "Exclude one entity from enrichment, or include it again with --enable",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := setup()
			if err != nil {
				return err
			}
			defer cleanup()

			media, err := app.Maintenance.SetEnrichmentDisabled(cmd.Context(), switchKey, !enable)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]interface{}{
				"canonical_key":       media.CanonicalKey,
				"enrichment_disabled": media.EnrichmentDisabled,
			})
		},
	}
	disable.Flags().StringVar(&switchKey, "key", "", "canonical key of the entity")
	disable.Flags().BoolVar(&enable, "enable", false, "re-enable enrichment instead")
	_ = disable.MarkFlagRequired("key")

	cmd.AddCommand(faults, prune, disable)
	return cmd
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
