// Package rarity computes statistical rarity scores, market value estimates,
// and ranks for the assets of an NFT collection. It works on an in-memory
// corpus snapshot and performs no I/O; persistence and ingestion live in
// the store and services packages.
package rarity

import (
	"strconv"
	"strings"
)

// ValueKind is the facet namespace a trait value is counted under.
type ValueKind string

const (
	KindNumeric ValueKind = "numericAttributes"
	KindString  ValueKind = "stringAttributes"
)

// NoneValue is the sentinel recorded when an asset lacks a trait entirely.
// Not having a trait is itself a fact worth faceting: it can be rare.
const NoneValue = "None"

// Term is one elementary (kind, trait, value) contribution produced by
// normalization. Every downstream component works on Terms, never on raw
// metadata shapes.
type Term struct {
	Kind  ValueKind `json:"kind"`
	Trait string    `json:"trait"`
	Value string    `json:"value"`
}

// FacetKey returns the namespaced facet key for this term, e.g.
// "stringAttributes.background".
func (t Term) FacetKey() string {
	return string(t.Kind) + "." + t.Trait
}

func newTerm(trait, value string) Term {
	kind := KindString
	if isDigits(value) {
		kind = KindNumeric
	}
	return Term{Kind: kind, Trait: trait, Value: value}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Normalize resolves a raw trait value into its elementary terms.
//
// Nested maps decompose into one term per inner key, with the inner key
// acting as the trait name. Lists contribute one term per element under the
// original trait. Strings containing a comma are treated as multi-valued and
// split on whitespace (see the snapshot format: persisted facet keys depend
// on splitting on whitespace, not on the comma itself). Absent, nil, and
// empty values normalize to the NoneValue sentinel.
func Normalize(trait string, raw any) []Term {
	switch v := raw.(type) {
	case nil:
		return []Term{newTerm(trait, NoneValue)}
	case map[string]any:
		if len(v) == 0 {
			return []Term{newTerm(trait, NoneValue)}
		}
		terms := make([]Term, 0, len(v))
		for inner, innerVal := range v {
			terms = append(terms, newTerm(inner, scalarString(innerVal)))
		}
		return terms
	case []any:
		if len(v) == 0 {
			return []Term{newTerm(trait, NoneValue)}
		}
		terms := make([]Term, 0, len(v))
		for _, elem := range v {
			terms = append(terms, newTerm(trait, scalarString(elem)))
		}
		return terms
	case string:
		if v == "" {
			return []Term{newTerm(trait, NoneValue)}
		}
		if strings.Contains(v, ",") {
			fields := strings.Fields(v)
			terms := make([]Term, 0, len(fields))
			for _, f := range fields {
				terms = append(terms, newTerm(trait, f))
			}
			return terms
		}
		return []Term{newTerm(trait, v)}
	default:
		return []Term{newTerm(trait, scalarString(raw))}
	}
}

// scalarString coerces a raw scalar to its facet-key string form. JSON
// numbers arrive as float64; whole values print without a decimal point so
// they land in the numeric namespace.
func scalarString(raw any) string {
	switch v := raw.(type) {
	case nil:
		return NoneValue
	case string:
		if v == "" {
			return NoneValue
		}
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return NoneValue
	}
}
