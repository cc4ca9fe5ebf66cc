// Package api provides the PredictIt market data feed client.
//
// The feed is a single unauthenticated GET that returns every listed market
// together with its contracts:
//   - https://www.predictit.org/api/marketdata/all/
//
// The body is kept verbatim so it can be landed in object storage exactly as
// served; parsing happens later in the ingest stage.
package api
