// Package warehouse is the PostgreSQL store behind the ETL job.
//
// Tables (schema names configurable, defaults shown):
//
//	raw_data.predictit_raw           append-only market snapshots
//	raw_data.load_manifest           one row per loaded storage object
//	analytics.market_summary         latest snapshot per market
//	analytics.contract_details       latest row per contract
//	analytics.daily_market_metrics   one row per (metric_date, market_id)
//
// Analytics writes are guarded upserts: a row is only replaced by one whose
// last_updated is not older, so an out-of-order run cannot roll data back.
// Prices are NUMERIC(10,4) and travel as pgtype.Numeric, never as floats.
package warehouse
