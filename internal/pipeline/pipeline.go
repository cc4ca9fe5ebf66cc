package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rickgao/predictit-etl/internal/extract"
	"github.com/rickgao/predictit-etl/internal/loader"
	"github.com/rickgao/predictit-etl/internal/quality"
	"github.com/rickgao/predictit-etl/internal/transform"
)

// Warehouse is everything the stages need from the database.
type Warehouse interface {
	loader.Warehouse
	transform.Warehouse
	quality.Source
	PruneRaw(ctx context.Context) (int64, error)
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
}

// Result reports one full run.
type Result struct {
	Landed    extract.Landed
	Load      loader.Result
	Transform transform.Result
	Pruned    int64
	Quality   quality.Report
	Duration  time.Duration
}

// Pipeline runs the ETL stages against one warehouse.
type Pipeline struct {
	extractor *extract.Extractor
	loader    *loader.Loader
	runner    *transform.Runner
	wh        Warehouse
	pruneRaw  bool
	logger    *slog.Logger
	closers   []func()
}

// New assembles a Pipeline from its stages.
func New(ex *extract.Extractor, ld *loader.Loader, runner *transform.Runner, wh Warehouse, pruneRaw bool, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		extractor: ex,
		loader:    ld,
		runner:    runner,
		wh:        wh,
		pruneRaw:  pruneRaw,
		logger:    logger,
	}
}

// Close releases resources acquired by Open.
func (p *Pipeline) Close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		p.closers[i]()
	}
	p.closers = nil
}

// Run executes extract, load, transform, prune and check in order. The
// first failing stage stops the run.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	var res Result
	var err error

	p.logger.Info("pipeline run started")

	if res.Landed, err = p.Extract(ctx); err != nil {
		return res, err
	}
	if res.Load, err = p.Load(ctx); err != nil {
		return res, err
	}
	if res.Transform, err = p.Transform(ctx); err != nil {
		return res, err
	}
	if p.pruneRaw {
		if res.Pruned, err = p.Prune(ctx); err != nil {
			return res, err
		}
	}
	if res.Quality, err = p.Check(ctx); err != nil {
		return res, err
	}

	res.Duration = time.Since(start)
	p.logger.Info("pipeline run complete",
		"key", res.Landed.Key,
		"loaded", res.Load.Loaded,
		"raw_rows", res.Load.Rows,
		"markets", res.Transform.Markets.Written,
		"contracts", res.Transform.Contracts.Written,
		"metrics", res.Transform.Metrics.Written,
		"pruned", res.Pruned,
		"duration", res.Duration,
	)
	return res, nil
}

// Extract fetches the feed and lands it in object storage.
func (p *Pipeline) Extract(ctx context.Context) (extract.Landed, error) {
	landed, err := p.extractor.Extract(ctx)
	if err != nil {
		return landed, fmt.Errorf("extract: %w", err)
	}
	return landed, nil
}

// Load appends the given objects, or every pending one, to the raw table.
func (p *Pipeline) Load(ctx context.Context, keys ...string) (loader.Result, error) {
	res, err := p.loader.Load(ctx, keys...)
	if err != nil {
		return res, fmt.Errorf("load: %w", err)
	}
	return res, nil
}

// Transform rebuilds the projections and today's daily metrics.
func (p *Pipeline) Transform(ctx context.Context) (transform.Result, error) {
	res, err := p.runner.Run(ctx)
	if err != nil {
		return res, fmt.Errorf("transform: %w", err)
	}
	return res, nil
}

// Prune deletes raw rows superseded by a newer snapshot of the same market.
func (p *Pipeline) Prune(ctx context.Context) (int64, error) {
	n, err := p.wh.PruneRaw(ctx)
	if err != nil {
		return 0, fmt.Errorf("prune: %w", err)
	}
	p.logger.Info("pruned raw rows", "deleted", n)
	return n, nil
}

// Check runs the quality checks.
func (p *Pipeline) Check(ctx context.Context) (quality.Report, error) {
	rep, err := quality.Run(ctx, p.wh, p.logger)
	if err != nil {
		return rep, fmt.Errorf("check: %w", err)
	}
	return rep, nil
}

// Migrate creates or updates the warehouse schema.
func (p *Pipeline) Migrate(ctx context.Context) error {
	if err := p.wh.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Ping checks the warehouse connection.
func (p *Pipeline) Ping(ctx context.Context) error {
	return p.wh.Ping(ctx)
}
