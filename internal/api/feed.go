package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotJSON is returned when the feed answers 2xx with a body that is not JSON.
var ErrNotJSON = errors.New("response body is not valid JSON")

// MarketData is the top-level shape of the feed body. Markets are left raw;
// only their number is of interest before ingest.
type MarketData struct {
	Markets []json.RawMessage `json:"markets"`
}

// FetchMarketData downloads the full market list and returns the body verbatim.
func (c *Client) FetchMarketData(ctx context.Context) (json.RawMessage, error) {
	body, err := c.getWithRetry(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch market data: %w", err)
	}

	if !json.Valid(body) {
		return nil, fmt.Errorf("fetch market data: %w", ErrNotJSON)
	}

	c.logger.Debug("fetched market data", "url", c.baseURL, "bytes", len(body))

	return json.RawMessage(body), nil
}

// CountMarkets returns the number of entries in the body's markets array.
func CountMarkets(body json.RawMessage) (int, error) {
	var data MarketData
	if err := json.Unmarshal(body, &data); err != nil {
		return 0, fmt.Errorf("decode market data: %w", err)
	}
	return len(data.Markets), nil
}
