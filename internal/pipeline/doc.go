// Package pipeline wires the ETL stages together.
//
// A run lands one feed snapshot in object storage, loads every pending
// object into the raw table, rebuilds the projections and daily metrics,
// optionally prunes superseded raw rows, and finishes with the quality
// checks. Each stage is also exposed on its own for the CLI.
package pipeline
