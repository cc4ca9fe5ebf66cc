package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Market status values observed in the feed.
const (
	StatusOpen    = "Open"
	StatusClosed  = "Closed"
	StatusUnknown = "Unknown"
)

// PriceScale is the number of decimal places kept for contract prices.
const PriceScale = 4

// MetricScale is the number of decimal places kept for derived statistics.
const MetricScale = 6

// -----------------------------------------------------------------------------
// Raw Types
// -----------------------------------------------------------------------------

// ContractRecord is one contract nested inside a market snapshot.
// JSON tags are the canonical contract schema stored in contract_data.
type ContractRecord struct {
	ContractID      int64               `json:"id"`
	Name            string              `json:"name"`
	Status          string              `json:"status"`
	LastTradePrice  decimal.NullDecimal `json:"lastTradePrice"`
	BestBuyYesCost  decimal.NullDecimal `json:"bestBuyYesCost"`
	BestSellYesCost decimal.NullDecimal `json:"bestSellYesCost"`
	BestBuyNoCost   decimal.NullDecimal `json:"bestBuyNoCost"`
	BestSellNoCost  decimal.NullDecimal `json:"bestSellNoCost"`
	LastClosePrice  decimal.NullDecimal `json:"lastClosePrice"`
	DisplayOrder    int                 `json:"displayOrder"`
}

// RawRecord is one ingested snapshot of one market.
type RawRecord struct {
	RawID       int64  // Primary key (assigned by the warehouse)
	MarketID    int64  // Market identifier from the feed
	Name        string // Market name
	ShortName   string // Short display name
	URL         string // Market page URL
	Status      string // Open, Closed, Unknown
	Contracts   []ContractRecord
	ExtractedAt time.Time // When the feed was fetched
	LoadedAt    time.Time // When the row was written to the warehouse
	LoadID      uuid.UUID // Loader batch that wrote the row
	SourceKey   string    // Object storage key the row came from
}

// -----------------------------------------------------------------------------
// Analytics Types
// -----------------------------------------------------------------------------

// MarketSummary is the latest known projection of a market.
type MarketSummary struct {
	MarketID       int64
	Name           string
	ShortName      string
	URL            string
	Status         string
	TotalContracts int
	LastUpdated    time.Time // Extraction time of the winning snapshot
}

// ContractDetail is the latest known projection of a contract.
type ContractDetail struct {
	ContractID      int64
	MarketID        int64 // Market whose snapshot supplied this row
	Name            string
	Status          string
	LastTradePrice  decimal.NullDecimal
	BestBuyYesCost  decimal.NullDecimal
	BestSellYesCost decimal.NullDecimal
	BestBuyNoCost   decimal.NullDecimal
	BestSellNoCost  decimal.NullDecimal
	LastClosePrice  decimal.NullDecimal
	DisplayOrder    int
	LastUpdated     time.Time // Extraction time of the owning snapshot
}

// DailyMetric summarizes a market's contracts for one calendar date.
type DailyMetric struct {
	MarketID        int64
	MetricDate      time.Time // Midnight UTC of the metric date
	TotalContracts  int
	PricedContracts int             // Contracts with a non-null last trade price
	TotalVolume     decimal.Decimal // Sum of priced last trade prices
	AvgTradePrice   decimal.Decimal // 0 when no contract is priced
	PriceVolatility decimal.Decimal // Sample stddev, 0 with fewer than two prices
}

// Key returns the natural key of a daily metric row.
func (m DailyMetric) Key() DailyMetricKey {
	return DailyMetricKey{MarketID: m.MarketID, MetricDate: m.MetricDate.Format(time.DateOnly)}
}

// DailyMetricKey is the (market_id, metric_date) uniqueness key.
type DailyMetricKey struct {
	MarketID   int64
	MetricDate string // YYYY-MM-DD
}

// RawSample is a short view of a raw row for quality logging.
type RawSample struct {
	RawID       int64
	MarketID    int64
	Name        string
	Status      string
	ExtractedAt time.Time
}

// -----------------------------------------------------------------------------
// Envelope
// -----------------------------------------------------------------------------

// Envelope is the document landed in object storage for one extraction.
type Envelope struct {
	ExtractedAt string          `json:"extracted_at"` // RFC 3339, UTC
	Source      string          `json:"source"`       // Feed URL
	Data        json.RawMessage `json:"data"`         // Feed body
}
