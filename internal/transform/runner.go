package transform

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rickgao/predictit-etl/internal/model"
)

// Warehouse is the storage the Runner reads from and writes to. Upserts
// return the number of rows inserted or updated; rows guarded out by a newer
// existing row are not counted. ReplaceContracts also deletes every contract
// missing from its input.
type Warehouse interface {
	RawRecords(ctx context.Context) ([]model.RawRecord, error)
	UpsertMarkets(ctx context.Context, markets []model.MarketSummary) (int64, error)
	ReplaceContracts(ctx context.Context, contracts []model.ContractDetail) (written, deleted int64, err error)
	MarketSummaries(ctx context.Context) ([]model.MarketSummary, error)
	ContractDetails(ctx context.Context) ([]model.ContractDetail, error)
	UpsertDailyMetrics(ctx context.Context, metrics []model.DailyMetric) (int64, error)
}

// Options configures a Runner.
type Options struct {
	Scope      Scope
	StaleAfter time.Duration
	Location   *time.Location // Zone used to pick metric_date
}

// StageResult reports one transform stage.
type StageResult struct {
	Rows    int   // Rows produced by the projection
	Written int64 // Rows inserted or updated
	Deleted int64 // Rows removed because the projection no longer has them
}

// Skipped returns how many rows lost to a newer existing row.
func (r StageResult) Skipped() int64 {
	return int64(r.Rows) - r.Written
}

// Result reports a full transform.
type Result struct {
	Markets    StageResult
	Contracts  StageResult
	Metrics    StageResult
	MetricDate time.Time
}

// Runner applies the projections against a Warehouse.
type Runner struct {
	wh     Warehouse
	opts   Options
	logger *slog.Logger
	now    func() time.Time
}

// NewRunner creates a Runner. A nil logger uses slog.Default().
func NewRunner(wh Warehouse, opts Options, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Scope == "" {
		opts.Scope = ScopeAllSnapshots
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Runner{wh: wh, opts: opts, logger: logger, now: time.Now}
}

// Run projects markets, then contracts, then aggregates daily metrics.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	var res Result

	raws, err := r.wh.RawRecords(ctx)
	if err != nil {
		return res, fmt.Errorf("read raw records: %w", err)
	}

	if res.Markets, err = r.refreshMarkets(ctx, raws); err != nil {
		return res, err
	}
	if res.Contracts, err = r.refreshContracts(ctx, raws); err != nil {
		return res, err
	}
	if res.Metrics, res.MetricDate, err = r.RefreshDailyMetrics(ctx); err != nil {
		return res, err
	}

	return res, nil
}

// RefreshMarkets rebuilds market_summary from the raw table.
func (r *Runner) RefreshMarkets(ctx context.Context) (StageResult, error) {
	raws, err := r.wh.RawRecords(ctx)
	if err != nil {
		return StageResult{}, fmt.Errorf("read raw records: %w", err)
	}
	return r.refreshMarkets(ctx, raws)
}

// RefreshContracts rebuilds contract_details from the raw table. Contracts
// the projection no longer yields are removed.
func (r *Runner) RefreshContracts(ctx context.Context) (StageResult, error) {
	raws, err := r.wh.RawRecords(ctx)
	if err != nil {
		return StageResult{}, fmt.Errorf("read raw records: %w", err)
	}
	return r.refreshContracts(ctx, raws)
}

func (r *Runner) refreshMarkets(ctx context.Context, raws []model.RawRecord) (StageResult, error) {
	markets := ProjectMarkets(raws, r.now(), r.opts.StaleAfter)

	written, err := r.wh.UpsertMarkets(ctx, markets)
	if err != nil {
		return StageResult{}, fmt.Errorf("upsert markets: %w", err)
	}

	res := StageResult{Rows: len(markets), Written: written}
	r.logger.Info("projected markets",
		"raw_rows", len(raws),
		"markets", res.Rows,
		"written", res.Written,
		"skipped", res.Skipped(),
	)
	return res, nil
}

func (r *Runner) refreshContracts(ctx context.Context, raws []model.RawRecord) (StageResult, error) {
	contracts := ProjectContracts(raws, r.opts.Scope)

	written, deleted, err := r.wh.ReplaceContracts(ctx, contracts)
	if err != nil {
		return StageResult{}, fmt.Errorf("replace contracts: %w", err)
	}

	res := StageResult{Rows: len(contracts), Written: written, Deleted: deleted}
	r.logger.Info("projected contracts",
		"scope", r.opts.Scope,
		"contracts", res.Rows,
		"written", res.Written,
		"skipped", res.Skipped(),
		"deleted", res.Deleted,
	)
	return res, nil
}

// RefreshDailyMetrics aggregates the current market_summary and
// contract_details tables into today's daily_market_metrics rows.
func (r *Runner) RefreshDailyMetrics(ctx context.Context) (StageResult, time.Time, error) {
	markets, err := r.wh.MarketSummaries(ctx)
	if err != nil {
		return StageResult{}, time.Time{}, fmt.Errorf("read market summaries: %w", err)
	}
	contracts, err := r.wh.ContractDetails(ctx)
	if err != nil {
		return StageResult{}, time.Time{}, fmt.Errorf("read contract details: %w", err)
	}

	date := MetricDate(r.now(), r.opts.Location)
	metrics := Aggregate(markets, contracts, date)

	written, err := r.wh.UpsertDailyMetrics(ctx, metrics)
	if err != nil {
		return StageResult{}, date, fmt.Errorf("upsert daily metrics: %w", err)
	}

	res := StageResult{Rows: len(metrics), Written: written}
	r.logger.Info("aggregated daily metrics",
		"metric_date", date.Format(time.DateOnly),
		"markets", res.Rows,
		"written", res.Written,
	)
	return res, date, nil
}
