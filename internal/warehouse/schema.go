package warehouse

import (
	"context"
	"fmt"
)

// migrations are idempotent and applied in order on every Migrate call.
var migrations = []string{
	`CREATE SCHEMA IF NOT EXISTS {raw}`,
	`CREATE SCHEMA IF NOT EXISTS {analytics}`,

	`CREATE TABLE IF NOT EXISTS {raw}.predictit_raw (
    raw_id               BIGSERIAL PRIMARY KEY,
    market_id            BIGINT NOT NULL,
    market_name          TEXT,
    short_name           TEXT,
    url                  TEXT,
    status               TEXT NOT NULL DEFAULT 'Unknown',
    contract_data        JSONB NOT NULL DEFAULT '[]'::jsonb,
    extraction_timestamp TIMESTAMPTZ NOT NULL,
    loaded_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
    load_id              UUID NOT NULL,
    source_key           TEXT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS predictit_raw_recency_idx
    ON {raw}.predictit_raw (market_id, extraction_timestamp DESC, loaded_at DESC, raw_id DESC)`,

	`CREATE TABLE IF NOT EXISTS {raw}.load_manifest (
    object_key  TEXT PRIMARY KEY,
    load_id     UUID NOT NULL,
    loaded_at   TIMESTAMPTZ NOT NULL,
    documents   INTEGER NOT NULL,
    markets     INTEGER NOT NULL,
    warnings    INTEGER NOT NULL,
    error       TEXT
)`,
	`ALTER TABLE {raw}.load_manifest ADD COLUMN IF NOT EXISTS error TEXT`,

	`CREATE TABLE IF NOT EXISTS {analytics}.market_summary (
    market_id       BIGINT PRIMARY KEY,
    market_name     TEXT,
    short_name      TEXT,
    url             TEXT,
    status          TEXT NOT NULL,
    total_contracts INTEGER NOT NULL,
    last_updated    TIMESTAMPTZ NOT NULL
)`,

	`CREATE TABLE IF NOT EXISTS {analytics}.contract_details (
    contract_id        BIGINT PRIMARY KEY,
    market_id          BIGINT NOT NULL,
    contract_name      TEXT,
    status             TEXT,
    last_trade_price   NUMERIC(10,4),
    best_buy_yes_cost  NUMERIC(10,4),
    best_sell_yes_cost NUMERIC(10,4),
    best_buy_no_cost   NUMERIC(10,4),
    best_sell_no_cost  NUMERIC(10,4),
    last_close_price   NUMERIC(10,4),
    display_order      INTEGER NOT NULL DEFAULT 0,
    last_updated       TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS contract_details_market_idx
    ON {analytics}.contract_details (market_id)`,

	`CREATE TABLE IF NOT EXISTS {analytics}.daily_market_metrics (
    metric_date      DATE NOT NULL,
    market_id        BIGINT NOT NULL,
    total_contracts  INTEGER NOT NULL,
    priced_contracts INTEGER NOT NULL,
    total_volume     NUMERIC(14,4) NOT NULL,
    avg_trade_price  NUMERIC(12,6) NOT NULL,
    price_volatility NUMERIC(12,6) NOT NULL,
    computed_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (metric_date, market_id)
)`,

	`CREATE OR REPLACE VIEW {analytics}.open_markets AS
SELECT market_id, market_name, short_name, url, total_contracts, last_updated
FROM {analytics}.market_summary
WHERE status = 'Open'`,

	`CREATE OR REPLACE VIEW {analytics}.contract_spreads AS
SELECT c.contract_id,
       c.market_id,
       m.market_name,
       c.contract_name,
       c.best_buy_yes_cost,
       c.best_sell_yes_cost,
       c.best_sell_yes_cost - c.best_buy_yes_cost AS yes_spread,
       c.best_buy_no_cost,
       c.best_sell_no_cost,
       c.best_sell_no_cost - c.best_buy_no_cost AS no_spread,
       c.last_updated
FROM {analytics}.contract_details c
LEFT JOIN {analytics}.market_summary m ON m.market_id = c.market_id`,

	`CREATE OR REPLACE VIEW {analytics}.daily_metric_changes AS
SELECT metric_date,
       market_id,
       avg_trade_price,
       LAG(avg_trade_price) OVER w AS prev_avg_trade_price,
       avg_trade_price - LAG(avg_trade_price) OVER w AS price_change,
       CASE
           WHEN LAG(avg_trade_price) OVER w = 0 THEN NULL
           ELSE ROUND((avg_trade_price - LAG(avg_trade_price) OVER w)
                      / LAG(avg_trade_price) OVER w * 100, 2)
       END AS pct_change
FROM {analytics}.daily_market_metrics
WINDOW w AS (PARTITION BY market_id ORDER BY metric_date)`,
}

// Migrate creates the schemas, tables and views. It is safe to run on every
// start.
func (s *Store) Migrate(ctx context.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback(ctx)

	for i, stmt := range migrations {
		if _, err := tx.Exec(ctx, s.q(stmt)); err != nil {
			return fmt.Errorf("apply migration %d: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}

	s.logger.Info("warehouse schema up to date",
		"raw_schema", s.rawSchema,
		"analytics_schema", s.anaSchema,
		"statements", len(migrations),
	)
	return nil
}
