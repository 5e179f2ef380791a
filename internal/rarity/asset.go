package rarity

import (
	"encoding/json"
	"math"
)

// Asset is one item of a collection: its on-chain metadata plus everything
// the scoring pipeline derives from it. Sale amounts are kept in lovelace as
// observed; listing prices and derived values are in ADA.
type Asset struct {
	Name     string         `json:"name"`
	Metadata map[string]any `json:"metadata"`

	Sales []int64  `json:"sales,omitempty"`
	Price *float64 `json:"price,omitempty"`

	Rarity float64 `json:"rarity,omitempty"`
	Value  float64 `json:"value,omitempty"`
	Rank   int     `json:"rank,omitempty"`

	// Profit is Value minus the current listing price. Unlisted assets carry
	// -Inf so they always sort after every priced asset in profit order while
	// staying visible for rarity inspection.
	Profit float64 `json:"-"`

	// Weighted-mode fields, populated only when a points table is configured.
	Stats     map[string]float64 `json:"stats,omitempty"`
	StatTotal float64            `json:"stat_total,omitempty"`
	UnitCost  float64            `json:"unit_cost,omitempty"`
}

// Listed reports whether the asset currently has a marketplace listing.
func (a *Asset) Listed() bool {
	return a.Price != nil
}

// RecordSale appends a sale amount if it has not been seen before and clears
// any stale listing price, since a sale consumes the listing.
func (a *Asset) RecordSale(lovelace int64) {
	for _, s := range a.Sales {
		if s == lovelace {
			return
		}
	}
	a.Sales = append(a.Sales, lovelace)
	a.Price = nil
}

// assetJSON carries Profit as a nullable field: JSON has no -Inf, so the
// sentinel is represented by omission and restored on load.
type assetJSON struct {
	Name      string             `json:"name"`
	Metadata  map[string]any     `json:"metadata"`
	Sales     []int64            `json:"sales,omitempty"`
	Price     *float64           `json:"price,omitempty"`
	Rarity    float64            `json:"rarity,omitempty"`
	Value     float64            `json:"value,omitempty"`
	Rank      int                `json:"rank,omitempty"`
	Profit    *float64           `json:"profit,omitempty"`
	Stats     map[string]float64 `json:"stats,omitempty"`
	StatTotal float64            `json:"stat_total,omitempty"`
	UnitCost  float64            `json:"unit_cost,omitempty"`
}

func (a *Asset) MarshalJSON() ([]byte, error) {
	out := assetJSON{
		Name:      a.Name,
		Metadata:  a.Metadata,
		Sales:     a.Sales,
		Price:     a.Price,
		Rarity:    a.Rarity,
		Value:     a.Value,
		Rank:      a.Rank,
		Stats:     a.Stats,
		StatTotal: a.StatTotal,
		UnitCost:  a.UnitCost,
	}
	if !math.IsInf(a.Profit, -1) {
		profit := a.Profit
		out.Profit = &profit
	}
	return json.Marshal(out)
}

func (a *Asset) UnmarshalJSON(data []byte) error {
	var in assetJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	a.Name = in.Name
	a.Metadata = in.Metadata
	a.Sales = in.Sales
	a.Price = in.Price
	a.Rarity = in.Rarity
	a.Value = in.Value
	a.Rank = in.Rank
	a.Stats = in.Stats
	a.StatTotal = in.StatTotal
	a.UnitCost = in.UnitCost
	if in.Profit != nil {
		a.Profit = *in.Profit
	} else {
		a.Profit = math.Inf(-1)
	}
	return nil
}
