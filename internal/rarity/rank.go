package rarity

import (
	"math"
	"sort"
)

// AssignRanks orders assets by rarity descending and assigns dense 1-based
// ranks. The sort is stable, so equal-rarity assets keep their original
// corpus order: first seen wins.
func AssignRanks(assets []*Asset) {
	order := make([]*Asset, len(assets))
	copy(order, assets)
	sort.SliceStable(order, func(i, j int) bool {
		return order[i].Rarity > order[j].Rarity
	})
	for i, asset := range order {
		asset.Rank = i + 1
	}
}

// SortForDisplay reorders assets in place for deal selection: profit
// descending, then listing price ascending so the cheaper asset surfaces
// first among equal profits. Unlisted assets carry -Inf profit and therefore
// always trail every priced asset.
func SortForDisplay(assets []*Asset) {
	sort.SliceStable(assets, func(i, j int) bool {
		if assets[i].Profit != assets[j].Profit {
			return assets[i].Profit > assets[j].Profit
		}
		return displayPrice(assets[i]) < displayPrice(assets[j])
	})
}

func displayPrice(a *Asset) float64 {
	if a.Price == nil {
		return math.Inf(1)
	}
	return *a.Price
}
