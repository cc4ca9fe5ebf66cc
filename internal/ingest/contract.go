package ingest

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rickgao/predictit-etl/internal/model"
)

// Contract schema versions.
const (
	contractV1 = 1 // id, name
	contractV2 = 2 // contractId, contractName
)

// contractVersion detects which field-name version a contract uses.
func contractVersion(fields map[string]json.RawMessage) int {
	if _, ok := fields["id"]; ok {
		return contractV1
	}
	if _, ok := fields["contractId"]; ok {
		return contractV2
	}
	if _, ok := fields["contractName"]; ok {
		return contractV2
	}
	return contractV1
}

// priceFields maps canonical price names to their destination.
func priceFields(c *model.ContractRecord) map[string]*decimal.NullDecimal {
	return map[string]*decimal.NullDecimal{
		"lastTradePrice":  &c.LastTradePrice,
		"bestBuyYesCost":  &c.BestBuyYesCost,
		"bestSellYesCost": &c.BestSellYesCost,
		"bestBuyNoCost":   &c.BestBuyNoCost,
		"bestSellNoCost":  &c.BestSellNoCost,
		"lastClosePrice":  &c.LastClosePrice,
	}
}

// adaptContract rewrites one contract of either version into the canonical
// record. ok is false when the contract has no usable id.
func (n *Normalizer) adaptContract(raw json.RawMessage, marketID int64, rep *Report) (model.ContractRecord, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		rep.DroppedContracts++
		n.logger.Warn("dropping contract", "market_id", marketID, "error", fmt.Errorf("decode contract: %w", err))
		return model.ContractRecord{}, false
	}

	idKey, nameKey := "id", "name"
	if contractVersion(fields) == contractV2 {
		idKey, nameKey = "contractId", "contractName"
		rep.V2Contracts++
	}

	var c model.ContractRecord

	id, err := ParseID(fields[idKey])
	if err != nil {
		rep.DroppedContracts++
		n.logger.Warn("dropping contract", "market_id", marketID, "field", idKey, "error", err)
		return model.ContractRecord{}, false
	}
	c.ContractID = id

	if c.Name, err = parseString(fields[nameKey]); err != nil {
		rep.BadFields++
		n.logger.Debug("bad contract field", "contract_id", id, "field", nameKey, "error", err)
	}
	if c.Status, err = parseString(fields["status"]); err != nil {
		rep.BadFields++
		n.logger.Debug("bad contract field", "contract_id", id, "field", "status", "error", err)
	}
	if c.DisplayOrder, err = parseInt(fields["displayOrder"]); err != nil {
		rep.BadFields++
		n.logger.Debug("bad contract field", "contract_id", id, "field", "displayOrder", "error", err)
	}

	for name, dst := range priceFields(&c) {
		p, err := ParsePrice(fields[name])
		if err != nil {
			rep.BadPrices++
			n.logger.Debug("nulling bad price", "contract_id", id, "field", name, "error", err)
			continue
		}
		*dst = p
	}

	return c, true
}
