package rarity

import (
	"errors"
	"fmt"
)

// ErrInsufficientData is returned when a value model is requested with too few
// sale observations to determine its parameters. Callers recover by leaving
// estimated values unset; rarity ranks are unaffected.
var ErrInsufficientData = errors.New("not enough sale observations to fit a value model")

// UnknownFacetError means a score was requested for a term that was never
// indexed. The scoring corpus does not match the index corpus, so the whole
// batch is invalid and must be aborted.
type UnknownFacetError struct {
	Term Term
}

func (e *UnknownFacetError) Error() string {
	return fmt.Sprintf("facet %s=%q was never indexed", e.Term.FacetKey(), e.Term.Value)
}

// NoBandError means a rank fell outside every configured multiplier band.
// The band table is required to cover every rank the collection can produce,
// so this is a configuration defect, not a runtime condition.
type NoBandError struct {
	Rank int
}

func (e *NoBandError) Error() string {
	return fmt.Sprintf("no multiplier band covers rank %d", e.Rank)
}
