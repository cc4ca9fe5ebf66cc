// Package transform derives the analytics tables from raw snapshots.
//
// Every function here is pure: given the same rows it returns the same
// projection, so re-running a transform over unchanged raw data rewrites
// identical values. Recency is decided by a total order over snapshots:
//
//	extracted_at DESC, loaded_at DESC, raw_id DESC
//
// The Runner wires these functions to a Warehouse: it reads the raw table,
// upserts market_summary, then contract_details, then reads both tables back
// to compute daily_market_metrics.
package transform
