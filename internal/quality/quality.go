// Package quality runs post-load sanity checks against the warehouse.
package quality

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rickgao/predictit-etl/internal/model"
)

// Check failures.
var (
	ErrNoRawRows        = errors.New("raw table is empty")
	ErrDuplicateMetrics = errors.New("duplicate daily metric rows")
)

// SampleSize is the number of raw rows logged by Run.
const SampleSize = 3

// Source is the warehouse surface the checks query.
type Source interface {
	CountRaw(ctx context.Context) (int64, error)
	CountRawMissingNames(ctx context.Context) (int64, error)
	SampleRaw(ctx context.Context, limit int) ([]model.RawSample, error)
	CountDuplicateMetrics(ctx context.Context) (int64, error)
}

// Report holds the measured values of one Run.
type Report struct {
	RawRows          int64
	MissingNames     int64
	Sample           []model.RawSample
	DuplicateMetrics int64
}

// Run executes every check. An empty raw table or duplicate metric keys are
// errors; unnamed markets are only logged.
func Run(ctx context.Context, src Source, logger *slog.Logger) (Report, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var rep Report
	var err error

	if rep.RawRows, err = src.CountRaw(ctx); err != nil {
		return rep, err
	}
	if rep.RawRows == 0 {
		return rep, ErrNoRawRows
	}

	if rep.MissingNames, err = src.CountRawMissingNames(ctx); err != nil {
		return rep, err
	}
	if rep.MissingNames > 0 {
		logger.Warn("raw rows without market name", "count", rep.MissingNames)
	}

	if rep.Sample, err = src.SampleRaw(ctx, SampleSize); err != nil {
		return rep, err
	}
	for _, s := range rep.Sample {
		logger.Info("raw sample",
			"raw_id", s.RawID,
			"market_id", s.MarketID,
			"name", s.Name,
			"status", s.Status,
			"extracted_at", s.ExtractedAt,
		)
	}

	if rep.DuplicateMetrics, err = src.CountDuplicateMetrics(ctx); err != nil {
		return rep, err
	}
	if rep.DuplicateMetrics > 0 {
		return rep, fmt.Errorf("%w: %d keys", ErrDuplicateMetrics, rep.DuplicateMetrics)
	}

	logger.Info("quality checks passed", "raw_rows", rep.RawRows, "missing_names", rep.MissingNames)
	return rep, nil
}
