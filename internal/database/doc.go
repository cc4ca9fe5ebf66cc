// Package database opens the PostgreSQL warehouse connection pool.
//
// The warehouse holds two schemas (names configurable):
//   - raw_data: append-only market snapshots and the load manifest
//   - analytics: market_summary, contract_details, daily_market_metrics and
//     the reporting views built on them
package database
