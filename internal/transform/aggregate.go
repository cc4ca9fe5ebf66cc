package transform

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/predictit-etl/internal/model"
)

// MetricDate truncates now to a calendar date in loc and returns that date as
// midnight UTC.
func MetricDate(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := now.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Aggregate computes one DailyMetric per market for date. Contracts are
// linked to markets by market_id; a market with no linked contracts gets a
// zero row. Contracts whose market is absent are ignored.
func Aggregate(markets []model.MarketSummary, contracts []model.ContractDetail, date time.Time) []model.DailyMetric {
	byMarket := make(map[int64][]model.ContractDetail, len(markets))
	for _, c := range contracts {
		byMarket[c.MarketID] = append(byMarket[c.MarketID], c)
	}

	out := make([]model.DailyMetric, 0, len(markets))
	seen := make(map[int64]bool, len(markets))
	for _, m := range markets {
		if seen[m.MarketID] {
			continue
		}
		seen[m.MarketID] = true

		linked := byMarket[m.MarketID]

		var prices []decimal.Decimal
		for _, c := range linked {
			if c.LastTradePrice.Valid {
				prices = append(prices, c.LastTradePrice.Decimal)
			}
		}

		total, avg, stddev := stats(prices)
		out = append(out, model.DailyMetric{
			MarketID:        m.MarketID,
			MetricDate:      date,
			TotalContracts:  len(linked),
			PricedContracts: len(prices),
			TotalVolume:     total,
			AvgTradePrice:   avg,
			PriceVolatility: stddev,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].MarketID < out[j].MarketID })
	return out
}

// stats returns the sum, mean and sample standard deviation of xs. The mean
// is 0 for an empty input and the deviation is 0 below two values.
func stats(xs []decimal.Decimal) (sum, mean, stddev decimal.Decimal) {
	sum = decimal.Sum(decimal.Zero, xs...)
	if len(xs) == 0 {
		return sum, decimal.Zero, decimal.Zero
	}

	n := decimal.NewFromInt(int64(len(xs)))
	exact := sum.DivRound(n, model.MetricScale+4)
	mean = exact.Round(model.MetricScale)

	if len(xs) < 2 {
		return sum, mean, decimal.Zero
	}

	var ss decimal.Decimal
	for _, x := range xs {
		d := x.Sub(exact)
		ss = ss.Add(d.Mul(d))
	}
	variance := ss.DivRound(decimal.NewFromInt(int64(len(xs)-1)), model.MetricScale+4)
	stddev = decimal.NewFromFloat(math.Sqrt(variance.InexactFloat64())).Round(model.MetricScale)

	return sum, mean, stddev
}
