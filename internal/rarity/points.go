package rarity

import (
	"strings"
)

// StatBoost is the configured contribution of one trait value: points toward
// a base stat, plus an optional bonus that only applies in one context (a
// biome, an environment). Context bonuses are tracked under a composite
// "stat.context" key and are exempt from rank multipliers.
type StatBoost struct {
	Stat          string `json:"stat"`
	Points        int    `json:"points"`
	Context       string `json:"context,omitempty"`
	ContextPoints int    `json:"context_points,omitempty"`
}

// PointsTable maps "trait.value" keys to their stat contributions. Trait
// names are lowercased in the key; values keep their on-chain casing.
type PointsTable map[string]StatBoost

// PointsKey builds the lookup key for a trait/value pair.
func PointsKey(trait, value string) string {
	return strings.ToLower(trait) + "." + value
}

// MultiplierBand maps an inclusive rank range to a scalar factor.
type MultiplierBand struct {
	Min    int     `json:"min"`
	Max    int     `json:"max"`
	Factor float64 `json:"factor"`
}

// MultiplierTable is the full band configuration. Every rank the collection
// can produce must be covered; gaps are a configuration error.
type MultiplierTable []MultiplierBand

// MultiplierFor returns the factor for a rank, or NoBandError when the rank
// falls outside every band.
func (t MultiplierTable) MultiplierFor(rank int) (float64, error) {
	for _, band := range t {
		if rank >= band.Min && rank <= band.Max {
			return band.Factor, nil
		}
	}
	return 0, &NoBandError{Rank: rank}
}

// DefaultMultipliers is the standard band table: rank 1 trebles its stats,
// with factors stepping down through rank 10000.
var DefaultMultipliers = MultiplierTable{
	{Min: 1, Max: 1, Factor: 3},
	{Min: 2, Max: 100, Factor: 2.25},
	{Min: 101, Max: 250, Factor: 2.125},
	{Min: 251, Max: 500, Factor: 2},
	{Min: 501, Max: 1000, Factor: 1.75},
	{Min: 1001, Max: 2500, Factor: 1.5},
	{Min: 2501, Max: 5000, Factor: 1.25},
	{Min: 5001, Max: 10000, Factor: 1.125},
}

// ApplyStats runs the weighted scoring mode over ranked assets: per-trait
// point lookups, the rank multiplier on base stats only, a stat total over
// the configured subset, and price-per-stat unit cost for listed assets.
// Ranks must already be assigned; MultiplierFor's NoBandError is fatal.
func ApplyStats(assets []*Asset, properties []string, table PointsTable, multipliers MultiplierTable, statSubset []string) error {
	for _, asset := range assets {
		factor, err := multipliers.MultiplierFor(asset.Rank)
		if err != nil {
			return err
		}

		stats := make(map[string]float64)
		for _, prop := range properties {
			value := scalarString(asset.Metadata[prop])
			boost, ok := table[PointsKey(prop, value)]
			if !ok {
				continue
			}
			stats[boost.Stat] += float64(boost.Points)
			if boost.Context != "" {
				stats[boost.Stat+"."+boost.Context] += float64(boost.ContextPoints)
			}
		}

		// Composite "stat.context" entries stay unscaled.
		for name := range stats {
			if strings.Contains(name, ".") {
				continue
			}
			stats[name] *= factor
		}

		var total float64
		for _, name := range statSubset {
			total += stats[name]
		}

		asset.Stats = stats
		asset.StatTotal = total
		if asset.Price != nil && total > 0 {
			asset.UnitCost = *asset.Price / total
		}
	}
	return nil
}
