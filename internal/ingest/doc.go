// Package ingest turns landed feed documents into raw market snapshots.
//
// A landed object holds one envelope document, newline-delimited envelopes,
// or a JSON array of envelopes. Each envelope looks like
//
//	{"extracted_at": "...", "source": "...", "data": {"markets": [...]}}
//
// and every market becomes one model.RawRecord. Malformed pieces are skipped
// and counted in a Report; they never fail the batch.
//
// Contracts arrive in one of two field-name versions:
//
//	v1: id, name, status, lastTradePrice, ...
//	v2: contractId, contractName, status, lastTradePrice, ...
//
// The version is detected per contract and both are rewritten onto the v1
// names, which is the canonical form stored in the warehouse.
package ingest
