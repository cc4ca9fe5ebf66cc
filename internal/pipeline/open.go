package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rickgao/predictit-etl/internal/api"
	"github.com/rickgao/predictit-etl/internal/config"
	"github.com/rickgao/predictit-etl/internal/database"
	"github.com/rickgao/predictit-etl/internal/extract"
	"github.com/rickgao/predictit-etl/internal/loader"
	"github.com/rickgao/predictit-etl/internal/storage"
	"github.com/rickgao/predictit-etl/internal/transform"
	"github.com/rickgao/predictit-etl/internal/warehouse"
)

// Open connects to object storage and the warehouse and builds a Pipeline
// from cfg. Callers must Close the result.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}

	scope, err := transform.ParseScope(cfg.Transform.ContractScope)
	if err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(cfg.Transform.MetricTimezone)
	if err != nil {
		return nil, fmt.Errorf("load metric timezone: %w", err)
	}

	store, err := storage.Open(ctx, cfg.Storage, logger.With("component", "storage"))
	if err != nil {
		return nil, fmt.Errorf("open object storage: %w", err)
	}

	pool, err := database.Connect(ctx, cfg.Database.Warehouse, cfg.Job.Name, logger.With("component", "database"))
	if err != nil {
		return nil, fmt.Errorf("connect warehouse: %w", err)
	}

	wh := warehouse.New(pool, cfg.Database.RawSchema, cfg.Database.AnalyticsSchema, logger.With("component", "warehouse"))

	client := api.NewClient(
		cfg.API.BaseURL,
		cfg.API.APIKey,
		api.WithLogger(logger.With("component", "api")),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, cfg.API.RetryBackoff),
	)

	ex := extract.New(client, store, extract.Config{
		Prefix:      cfg.Storage.Prefix,
		FilePrefix:  cfg.Storage.FilePrefix,
		Compression: cfg.Storage.Compression,
	}, logger.With("component", "extract"))

	ld := loader.New(store, wh, cfg.Storage.Prefix, cfg.Loader.Concurrency, logger.With("component", "loader"))

	runner := transform.NewRunner(wh, transform.Options{
		Scope:      scope,
		StaleAfter: cfg.Transform.StaleAfter,
		Location:   loc,
	}, logger.With("component", "transform"))

	p := New(ex, ld, runner, wh, cfg.Transform.ShouldPruneRaw(), logger)
	p.closers = append(p.closers, pool.Close)

	logger.Info("pipeline ready",
		"storage", cfg.Storage.Backend,
		"prefix", cfg.Storage.Prefix,
		"warehouse", cfg.Database.Warehouse.Name,
		"contract_scope", scope,
		"prune_raw", p.pruneRaw,
	)
	return p, nil
}
