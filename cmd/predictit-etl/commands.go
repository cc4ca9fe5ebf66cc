package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/rickgao/predictit-etl/internal/config"
	"github.com/rickgao/predictit-etl/internal/pipeline"
	"github.com/rickgao/predictit-etl/internal/scheduler"
	"github.com/rickgao/predictit-etl/internal/version"
)

func newRunCmd() *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline once, or on an interval",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPipeline(cmd.Context(), func(ctx context.Context, cfg *config.Config, p *pipeline.Pipeline, logger *slog.Logger) error {
				if cmd.Flags().Changed("interval") {
					cfg.Schedule.Interval = interval
				}
				if err := p.Migrate(ctx); err != nil {
					return err
				}
				if cfg.Schedule.Interval <= 0 {
					_, err := p.Run(ctx)
					return err
				}
				return runDaemon(ctx, cfg, p, logger)
			})
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 0, "repeat the run on this interval (0 runs once)")
	return cmd
}

// runDaemon schedules the pipeline and serves /health until ctx ends.
func runDaemon(ctx context.Context, cfg *config.Config, p *pipeline.Pipeline, logger *slog.Logger) error {
	sched, err := scheduler.New(cfg.Schedule.Interval, func(ctx context.Context) error {
		_, err := p.Run(ctx)
		return err
	}, logger.With("component", "scheduler"))
	if err != nil {
		return err
	}

	healthServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Schedule.HealthPort),
		Handler:           newHealthHandler(p, sched, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("starting health server", "port", cfg.Schedule.HealthPort)
		if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("health server error", "error", err)
		}
	}()

	if err := sched.Start(ctx); err != nil {
		return err
	}

	logger.Info("predictit-etl running",
		"interval", cfg.Schedule.Interval,
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Schedule.HealthPort),
	)

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := sched.Stop(shutdownCtx); err != nil {
		logger.Warn("scheduler did not stop cleanly", "error", err)
	}
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("health server did not stop cleanly", "error", err)
	}

	logger.Info("predictit-etl stopped")
	return nil
}

func newExtractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract",
		Short: "Fetch the feed and land it in object storage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPipeline(cmd.Context(), func(ctx context.Context, _ *config.Config, p *pipeline.Pipeline, _ *slog.Logger) error {
				landed, err := p.Extract(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), landed.Key)
				return nil
			})
		},
	}
}

func newLoadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load [keys...]",
		Short: "Load landed objects into the raw table",
		Long:  "Loads the given object keys, or every landed object not yet recorded in the load manifest.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPipeline(cmd.Context(), func(ctx context.Context, _ *config.Config, p *pipeline.Pipeline, _ *slog.Logger) error {
				if err := p.Migrate(ctx); err != nil {
					return err
				}
				res, err := p.Load(ctx, args...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "loaded %d objects (%d rows), skipped %d, failed %d\n",
					res.Loaded, res.Rows, res.Skipped, res.Failed)
				return nil
			})
		},
	}
}

func newTransformCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transform",
		Short: "Rebuild market summaries, contract details and daily metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPipeline(cmd.Context(), func(ctx context.Context, _ *config.Config, p *pipeline.Pipeline, _ *slog.Logger) error {
				res, err := p.Transform(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "markets %d/%d, contracts %d/%d, metrics %d for %s\n",
					res.Markets.Written, res.Markets.Rows,
					res.Contracts.Written, res.Contracts.Rows,
					res.Metrics.Written, res.MetricDate.Format(time.DateOnly))
				return nil
			})
		},
	}
}

func newPruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Delete raw rows superseded by a newer snapshot of the same market",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPipeline(cmd.Context(), func(ctx context.Context, _ *config.Config, p *pipeline.Pipeline, _ *slog.Logger) error {
				n, err := p.Prune(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "pruned %d raw rows\n", n)
				return nil
			})
		},
	}
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run the warehouse quality checks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPipeline(cmd.Context(), func(ctx context.Context, _ *config.Config, p *pipeline.Pipeline, _ *slog.Logger) error {
				rep, err := p.Check(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "raw rows %d, missing names %d, duplicate metrics %d\n",
					rep.RawRows, rep.MissingNames, rep.DuplicateMetrics)
				return nil
			})
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the warehouse schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPipeline(cmd.Context(), func(ctx context.Context, _ *config.Config, p *pipeline.Pipeline, _ *slog.Logger) error {
				return p.Migrate(ctx)
			})
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
