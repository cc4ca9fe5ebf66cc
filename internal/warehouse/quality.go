package warehouse

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/rickgao/predictit-etl/internal/model"
)

// CountRaw returns the number of raw rows.
func (s *Store) CountRaw(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, s.q(`SELECT count(*) FROM {raw}.predictit_raw`)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count raw rows: %w", err)
	}
	return n, nil
}

// CountRawMissingNames returns the number of raw rows without a market name.
func (s *Store) CountRawMissingNames(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, s.q(`SELECT count(*) FROM {raw}.predictit_raw WHERE market_name IS NULL`)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unnamed raw rows: %w", err)
	}
	return n, nil
}

// SampleRaw returns up to limit of the most recently loaded raw rows.
func (s *Store) SampleRaw(ctx context.Context, limit int) ([]model.RawSample, error) {
	rows, err := s.pool.Query(ctx, s.q(`
		SELECT raw_id, market_id, market_name, status, extraction_timestamp
		FROM {raw}.predictit_raw
		ORDER BY raw_id DESC
		LIMIT $1
	`), limit)
	if err != nil {
		return nil, fmt.Errorf("sample raw rows: %w", err)
	}
	defer rows.Close()

	var out []model.RawSample
	for rows.Next() {
		var (
			r    model.RawSample
			name pgtype.Text
		)
		if err := rows.Scan(&r.RawID, &r.MarketID, &name, &r.Status, &r.ExtractedAt); err != nil {
			return nil, fmt.Errorf("scan raw sample: %w", err)
		}
		r.Name = name.String
		r.ExtractedAt = r.ExtractedAt.UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate raw sample: %w", err)
	}
	return out, nil
}

// CountDuplicateMetrics returns how many (metric_date, market_id) keys have
// more than one row.
func (s *Store) CountDuplicateMetrics(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, s.q(`
		SELECT count(*) FROM (
			SELECT metric_date, market_id
			FROM {analytics}.daily_market_metrics
			GROUP BY metric_date, market_id
			HAVING count(*) > 1
		) dup
	`)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count duplicate metrics: %w", err)
	}
	return n, nil
}
