package rarity

// FacetIndex counts, per namespaced facet key, how many assets in the corpus
// exhibit each normalized value. Keys look like "stringAttributes.background";
// a multi-valued asset contributes once per element.
type FacetIndex map[string]map[string]int

// BuildFacets indexes every asset exactly once for every configured trait.
// The result is keyed only by current corpus membership, so rebuilding after
// a membership change is always safe and idempotent.
func BuildFacets(assets []*Asset, properties []string) FacetIndex {
	facets := make(FacetIndex)
	for _, asset := range assets {
		for _, prop := range properties {
			for _, term := range Normalize(prop, asset.Metadata[prop]) {
				facets.increment(term)
			}
		}
	}
	return facets
}

func (f FacetIndex) increment(term Term) {
	key := term.FacetKey()
	if f[key] == nil {
		f[key] = make(map[string]int)
	}
	f[key][term.Value]++
}

// Frequency returns the occurrence count for a term. A term that was never
// seen during BuildFacets yields UnknownFacetError: the caller is scoring
// against a stale or mismatched index and must abort the batch.
func (f FacetIndex) Frequency(term Term) (int, error) {
	values, ok := f[term.FacetKey()]
	if !ok {
		return 0, &UnknownFacetError{Term: term}
	}
	count, ok := values[term.Value]
	if !ok {
		return 0, &UnknownFacetError{Term: term}
	}
	return count, nil
}
