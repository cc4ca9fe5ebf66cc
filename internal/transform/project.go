package transform

import (
	"fmt"
	"sort"
	"time"

	"github.com/rickgao/predictit-etl/internal/model"
)

// Scope selects which snapshots feed the contract projection.
type Scope string

const (
	// ScopeAllSnapshots picks each contract's newest appearance in any snapshot.
	ScopeAllSnapshots Scope = "all_snapshots"

	// ScopeMarketSnapshot only considers contracts carried by their market's
	// own latest snapshot.
	ScopeMarketSnapshot Scope = "market_snapshot"
)

// ParseScope validates a configured scope name.
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case ScopeAllSnapshots, ScopeMarketSnapshot:
		return Scope(s), nil
	case "":
		return ScopeAllSnapshots, nil
	default:
		return "", fmt.Errorf("unknown contract scope %q", s)
	}
}

// Newer reports whether snapshot a wins over b.
func Newer(a, b model.RawRecord) bool {
	if !a.ExtractedAt.Equal(b.ExtractedAt) {
		return a.ExtractedAt.After(b.ExtractedAt)
	}
	if !a.LoadedAt.Equal(b.LoadedAt) {
		return a.LoadedAt.After(b.LoadedAt)
	}
	return a.RawID > b.RawID
}

// EffectiveStatus marks a market Closed once it has not been seen for longer
// than window. A zero window disables the rule.
func EffectiveStatus(current string, lastExtracted, now time.Time, window time.Duration) string {
	if window > 0 && now.Sub(lastExtracted) > window {
		return model.StatusClosed
	}
	return current
}

// LatestByMarket returns the winning snapshot for every market_id.
func LatestByMarket(raws []model.RawRecord) map[int64]model.RawRecord {
	latest := make(map[int64]model.RawRecord, len(raws))
	for _, r := range raws {
		if cur, ok := latest[r.MarketID]; !ok || Newer(r, cur) {
			latest[r.MarketID] = r
		}
	}
	return latest
}

// ProjectMarkets returns one summary per market_id, ordered by market_id.
func ProjectMarkets(raws []model.RawRecord, now time.Time, staleAfter time.Duration) []model.MarketSummary {
	latest := LatestByMarket(raws)

	out := make([]model.MarketSummary, 0, len(latest))
	for _, r := range latest {
		out = append(out, model.MarketSummary{
			MarketID:       r.MarketID,
			Name:           r.Name,
			ShortName:      r.ShortName,
			URL:            r.URL,
			Status:         EffectiveStatus(r.Status, r.ExtractedAt, now, staleAfter),
			TotalContracts: len(r.Contracts),
			LastUpdated:    r.ExtractedAt,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].MarketID < out[j].MarketID })
	return out
}

// ProjectContracts returns one detail row per contract_id, ordered by
// contract_id. Each row comes from the newest snapshot in scope that carries
// the contract; a duplicate id within one snapshot keeps its first entry.
func ProjectContracts(raws []model.RawRecord, scope Scope) []model.ContractDetail {
	source := raws
	if scope == ScopeMarketSnapshot {
		latest := LatestByMarket(raws)
		source = make([]model.RawRecord, 0, len(latest))
		for _, r := range latest {
			source = append(source, r)
		}
	}

	type owned struct {
		detail model.ContractDetail
		owner  model.RawRecord
	}
	best := make(map[int64]owned)

	for _, r := range source {
		for _, c := range r.Contracts {
			cur, ok := best[c.ContractID]
			if ok && !Newer(r, cur.owner) {
				continue
			}
			best[c.ContractID] = owned{detail: detailOf(c, r), owner: r}
		}
	}

	out := make([]model.ContractDetail, 0, len(best))
	for _, o := range best {
		out = append(out, o.detail)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ContractID < out[j].ContractID })
	return out
}

func detailOf(c model.ContractRecord, owner model.RawRecord) model.ContractDetail {
	return model.ContractDetail{
		ContractID:      c.ContractID,
		MarketID:        owner.MarketID,
		Name:            c.Name,
		Status:          c.Status,
		LastTradePrice:  c.LastTradePrice,
		BestBuyYesCost:  c.BestBuyYesCost,
		BestSellYesCost: c.BestSellYesCost,
		BestBuyNoCost:   c.BestBuyNoCost,
		BestSellNoCost:  c.BestSellNoCost,
		LastClosePrice:  c.LastClosePrice,
		DisplayOrder:    c.DisplayOrder,
		LastUpdated:     owner.ExtractedAt,
	}
}
