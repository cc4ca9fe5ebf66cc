// Package model defines shared data types used across the PredictIt ETL job.
//
// Types mirror the warehouse tables:
//   - RawRecord: raw_data.predictit_raw (one market snapshot per extraction)
//   - MarketSummary: analytics.market_summary (latest snapshot per market)
//   - ContractDetail: analytics.contract_details (latest snapshot per contract)
//   - DailyMetric: analytics.daily_market_metrics (one row per market per day)
//
// Conventions:
//   - Prices: shopspring decimals, scale 4 (0.0000-1.0000); NullDecimal when nullable
//   - Timestamps: time.Time in UTC
//   - IDs: int64 as published by the feed
package model
