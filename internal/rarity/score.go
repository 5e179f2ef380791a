package rarity

// ScoreAsset sums the inverse relative frequency of every elementary trait
// value the asset carries: a term seen on only one of N assets contributes N,
// one seen on every asset contributes 1. corpusSize must be the exact number
// of assets the index was built from; the two are driven from a single
// snapshot by Collection.Recompute.
func ScoreAsset(asset *Asset, facets FacetIndex, properties []string, corpusSize int) (float64, error) {
	var score float64
	for _, prop := range properties {
		for _, term := range Normalize(prop, asset.Metadata[prop]) {
			freq, err := facets.Frequency(term)
			if err != nil {
				return 0, err
			}
			score += float64(corpusSize) / float64(freq)
		}
	}
	return score, nil
}

// ScoreAll scores every asset against the same index. Any UnknownFacetError
// aborts the batch; callers must not persist a partially scored corpus.
func ScoreAll(assets []*Asset, facets FacetIndex, properties []string) error {
	for _, asset := range assets {
		score, err := ScoreAsset(asset, facets, properties, len(assets))
		if err != nil {
			return err
		}
		asset.Rarity = score
	}
	return nil
}
