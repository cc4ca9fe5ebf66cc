package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/rickgao/predictit-etl/internal/config"
	"github.com/rickgao/predictit-etl/internal/logging"
	"github.com/rickgao/predictit-etl/internal/pipeline"
	"github.com/rickgao/predictit-etl/internal/version"
)

var (
	configPath string
	envFile    string
)

func main() {
	root := &cobra.Command{
		Use:           "predictit-etl",
		Short:         "PredictIt market data ETL",
		Long:          "Fetches the PredictIt market feed, lands it in object storage, loads it into the warehouse and rebuilds the analytics tables.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "configs/etl.local.yaml", "path to config file")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config (missing file is ignored)")

	root.AddCommand(
		newRunCmd(),
		newExtractCmd(),
		newLoadCmd(),
		newTransformCmd(),
		newPruneCmd(),
		newCheckCmd(),
		newMigrateCmd(),
		newVersionCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		slog.Error("command failed", "error", err)
		stop()
		os.Exit(1)
	}
}

// setup loads the env file and config and installs the default logger.
func setup() (*config.Config, *slog.Logger, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("load env file: %w", err)
		}
	}

	cfg, err := config.LoadAndValidate(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.Setup(os.Stdout, cfg.Logging, cfg.Job.Name)
	if err != nil {
		return nil, nil, err
	}

	logger.Info("configuration loaded",
		"version", version.Version,
		"commit", version.Commit,
		"config", configPath,
	)
	return cfg, logger, nil
}

// withPipeline runs fn against a Pipeline built from the loaded config.
func withPipeline(ctx context.Context, fn func(context.Context, *config.Config, *pipeline.Pipeline, *slog.Logger) error) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	p, err := pipeline.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer p.Close()

	return fn(ctx, cfg, p, logger)
}
