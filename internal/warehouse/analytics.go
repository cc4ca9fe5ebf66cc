package warehouse

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/rickgao/predictit-etl/internal/model"
)

const upsertMarketSQL = `
	INSERT INTO {analytics}.market_summary AS t
		(market_id, market_name, short_name, url, status, total_contracts, last_updated)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (market_id) DO UPDATE SET
		market_name     = EXCLUDED.market_name,
		short_name      = EXCLUDED.short_name,
		url             = EXCLUDED.url,
		status          = EXCLUDED.status,
		total_contracts = EXCLUDED.total_contracts,
		last_updated    = EXCLUDED.last_updated
	WHERE t.last_updated <= EXCLUDED.last_updated
`

const upsertContractSQL = `
	INSERT INTO {analytics}.contract_details AS t
		(contract_id, market_id, contract_name, status,
		 last_trade_price, best_buy_yes_cost, best_sell_yes_cost,
		 best_buy_no_cost, best_sell_no_cost, last_close_price,
		 display_order, last_updated)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (contract_id) DO UPDATE SET
		market_id          = EXCLUDED.market_id,
		contract_name      = EXCLUDED.contract_name,
		status             = EXCLUDED.status,
		last_trade_price   = EXCLUDED.last_trade_price,
		best_buy_yes_cost  = EXCLUDED.best_buy_yes_cost,
		best_sell_yes_cost = EXCLUDED.best_sell_yes_cost,
		best_buy_no_cost   = EXCLUDED.best_buy_no_cost,
		best_sell_no_cost  = EXCLUDED.best_sell_no_cost,
		last_close_price   = EXCLUDED.last_close_price,
		display_order      = EXCLUDED.display_order,
		last_updated       = EXCLUDED.last_updated
	WHERE t.last_updated <= EXCLUDED.last_updated
`

// An empty id array deletes every row.
const deleteAbsentContractsSQL = `
	DELETE FROM {analytics}.contract_details
	WHERE contract_id <> ALL($1::bigint[])
`

const upsertMetricSQL = `
	INSERT INTO {analytics}.daily_market_metrics
		(metric_date, market_id, total_contracts, priced_contracts,
		 total_volume, avg_trade_price, price_volatility, computed_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, now())
	ON CONFLICT (metric_date, market_id) DO UPDATE SET
		total_contracts  = EXCLUDED.total_contracts,
		priced_contracts = EXCLUDED.priced_contracts,
		total_volume     = EXCLUDED.total_volume,
		avg_trade_price  = EXCLUDED.avg_trade_price,
		price_volatility = EXCLUDED.price_volatility,
		computed_at      = EXCLUDED.computed_at
`

// UpsertMarkets writes market summaries in one transaction and returns the
// number of rows inserted or updated.
func (s *Store) UpsertMarkets(ctx context.Context, markets []model.MarketSummary) (int64, error) {
	batch := &pgx.Batch{}
	query := s.q(upsertMarketSQL)
	for _, m := range markets {
		batch.Queue(query,
			m.MarketID,
			nullText(m.Name),
			nullText(m.ShortName),
			nullText(m.URL),
			m.Status,
			m.TotalContracts,
			m.LastUpdated,
		)
	}
	return s.runBatch(ctx, "market_summary", batch)
}

// ReplaceContracts makes contract_details hold exactly contracts: rows are
// upserted and every other contract_id is deleted, in one transaction. It
// returns the rows inserted or updated and the rows deleted.
func (s *Store) ReplaceContracts(ctx context.Context, contracts []model.ContractDetail) (int64, int64, error) {
	start := time.Now()

	batch := &pgx.Batch{}
	query := s.q(upsertContractSQL)
	ids := make([]int64, 0, len(contracts))
	for _, c := range contracts {
		batch.Queue(query,
			c.ContractID,
			c.MarketID,
			nullText(c.Name),
			nullText(c.Status),
			toNullNumeric(c.LastTradePrice),
			toNullNumeric(c.BestBuyYesCost),
			toNullNumeric(c.BestSellYesCost),
			toNullNumeric(c.BestBuyNoCost),
			toNullNumeric(c.BestSellNoCost),
			toNullNumeric(c.LastClosePrice),
			c.DisplayOrder,
			c.LastUpdated,
		)
		ids = append(ids, c.ContractID)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("begin contract_details replace: %w", err)
	}
	defer tx.Rollback(ctx)

	var written int64
	if batch.Len() > 0 {
		if written, err = sendBatch(ctx, tx, batch); err != nil {
			return 0, 0, fmt.Errorf("upsert contract_details: %w", err)
		}
	}

	ct, err := tx.Exec(ctx, s.q(deleteAbsentContractsSQL), ids)
	if err != nil {
		return 0, 0, fmt.Errorf("delete absent contracts: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("commit contract_details replace: %w", err)
	}

	s.logger.Debug("replaced contract details",
		"queued", batch.Len(),
		"affected", written,
		"deleted", ct.RowsAffected(),
		"duration", time.Since(start),
	)
	return written, ct.RowsAffected(), nil
}

// UpsertDailyMetrics replaces the metrics for each (metric_date, market_id).
func (s *Store) UpsertDailyMetrics(ctx context.Context, metrics []model.DailyMetric) (int64, error) {
	batch := &pgx.Batch{}
	query := s.q(upsertMetricSQL)
	for _, m := range metrics {
		batch.Queue(query,
			pgtype.Date{Time: m.MetricDate, Valid: true},
			m.MarketID,
			m.TotalContracts,
			m.PricedContracts,
			toNumeric(m.TotalVolume),
			toNumeric(m.AvgTradePrice),
			toNumeric(m.PriceVolatility),
		)
	}
	return s.runBatch(ctx, "daily_market_metrics", batch)
}

func (s *Store) runBatch(ctx context.Context, table string, batch *pgx.Batch) (int64, error) {
	if batch.Len() == 0 {
		return 0, nil
	}

	start := time.Now()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin %s upsert: %w", table, err)
	}
	defer tx.Rollback(ctx)

	affected, err := sendBatch(ctx, tx, batch)
	if err != nil {
		return 0, fmt.Errorf("upsert %s: %w", table, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit %s upsert: %w", table, err)
	}

	s.logger.Debug("upserted rows",
		"table", table,
		"queued", batch.Len(),
		"affected", affected,
		"duration", time.Since(start),
	)
	return affected, nil
}

// MarketSummaries returns the market_summary table ordered by market_id.
func (s *Store) MarketSummaries(ctx context.Context) ([]model.MarketSummary, error) {
	rows, err := s.pool.Query(ctx, s.q(`
		SELECT market_id, market_name, short_name, url, status, total_contracts, last_updated
		FROM {analytics}.market_summary
		ORDER BY market_id
	`))
	if err != nil {
		return nil, fmt.Errorf("query market summaries: %w", err)
	}
	defer rows.Close()

	var out []model.MarketSummary
	for rows.Next() {
		var (
			m                    model.MarketSummary
			name, shortName, url pgtype.Text
		)
		if err := rows.Scan(&m.MarketID, &name, &shortName, &url, &m.Status, &m.TotalContracts, &m.LastUpdated); err != nil {
			return nil, fmt.Errorf("scan market summary: %w", err)
		}
		m.Name, m.ShortName, m.URL = name.String, shortName.String, url.String
		m.LastUpdated = m.LastUpdated.UTC()
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate market summaries: %w", err)
	}
	return out, nil
}

// ContractDetails returns the contract_details table ordered by contract_id.
func (s *Store) ContractDetails(ctx context.Context) ([]model.ContractDetail, error) {
	rows, err := s.pool.Query(ctx, s.q(`
		SELECT contract_id, market_id, contract_name, status,
		       last_trade_price, best_buy_yes_cost, best_sell_yes_cost,
		       best_buy_no_cost, best_sell_no_cost, last_close_price,
		       display_order, last_updated
		FROM {analytics}.contract_details
		ORDER BY contract_id
	`))
	if err != nil {
		return nil, fmt.Errorf("query contract details: %w", err)
	}
	defer rows.Close()

	var out []model.ContractDetail
	for rows.Next() {
		var (
			c            model.ContractDetail
			name, status pgtype.Text
			prices       [6]pgtype.Numeric
		)
		if err := rows.Scan(&c.ContractID, &c.MarketID, &name, &status,
			&prices[0], &prices[1], &prices[2], &prices[3], &prices[4], &prices[5],
			&c.DisplayOrder, &c.LastUpdated); err != nil {
			return nil, fmt.Errorf("scan contract detail: %w", err)
		}

		c.Name, c.Status = name.String, status.String
		c.LastTradePrice = fromNumeric(prices[0])
		c.BestBuyYesCost = fromNumeric(prices[1])
		c.BestSellYesCost = fromNumeric(prices[2])
		c.BestBuyNoCost = fromNumeric(prices[3])
		c.BestSellNoCost = fromNumeric(prices[4])
		c.LastClosePrice = fromNumeric(prices[5])
		c.LastUpdated = c.LastUpdated.UTC()
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contract details: %w", err)
	}
	return out, nil
}

// DailyMetrics returns the metric rows for one date ordered by market_id.
func (s *Store) DailyMetrics(ctx context.Context, date time.Time) ([]model.DailyMetric, error) {
	rows, err := s.pool.Query(ctx, s.q(`
		SELECT metric_date, market_id, total_contracts, priced_contracts,
		       total_volume, avg_trade_price, price_volatility
		FROM {analytics}.daily_market_metrics
		WHERE metric_date = $1
		ORDER BY market_id
	`), pgtype.Date{Time: date, Valid: true})
	if err != nil {
		return nil, fmt.Errorf("query daily metrics: %w", err)
	}
	defer rows.Close()

	var out []model.DailyMetric
	for rows.Next() {
		var (
			m                       model.DailyMetric
			day                     pgtype.Date
			volume, avg, volatility pgtype.Numeric
		)
		if err := rows.Scan(&day, &m.MarketID, &m.TotalContracts, &m.PricedContracts, &volume, &avg, &volatility); err != nil {
			return nil, fmt.Errorf("scan daily metric: %w", err)
		}
		m.MetricDate = day.Time
		m.TotalVolume = fromNumericOrZero(volume)
		m.AvgTradePrice = fromNumericOrZero(avg)
		m.PriceVolatility = fromNumericOrZero(volatility)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily metrics: %w", err)
	}
	return out, nil
}
