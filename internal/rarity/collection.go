package rarity

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ModelKind names which value-estimation strategy produced a collection's
// current estimates.
type ModelKind string

const (
	ModelNone    ModelKind = ""
	ModelSigmoid ModelKind = "sigmoid"
	ModelLinear  ModelKind = "linear"
)

// Collection is one corpus snapshot: the assets, the trait definition used
// for scoring, the facet index derived from exactly this asset set, and the
// fitted value model. TxCount is the marketplace transaction cursor that
// makes sale ingestion incremental.
type Collection struct {
	Name       string   `json:"name"`
	PolicyID   string   `json:"policy_id"`
	Properties []string `json:"properties"`
	TxCount    int      `json:"tx_count"`

	Facets FacetIndex `json:"facets"`
	Assets []*Asset   `json:"assets"`

	// Fitted model parameters, kept for audit and incremental reuse.
	Model     ModelKind     `json:"model,omitempty"`
	Sigmoid   *SigmoidModel `json:"sigmoid,omitempty"`
	UnitValue float64       `json:"rarity_unit_value,omitempty"`
}

// NewCollection starts an empty snapshot for a policy.
func NewCollection(name, policyID string) *Collection {
	return &Collection{
		Name:     name,
		PolicyID: policyID,
		Facets:   make(FacetIndex),
	}
}

// Asset returns the named asset, or nil.
func (c *Collection) Asset(name string) *Asset {
	for _, asset := range c.Assets {
		if asset.Name == name {
			return asset
		}
	}
	return nil
}

// Has reports whether an asset name is already part of the corpus.
func (c *Collection) Has(name string) bool {
	return c.Asset(name) != nil
}

// AddAsset appends a newly observed asset, initialized with the -Inf profit
// sentinel, and returns it. Duplicates by name return the existing asset.
// Adding an asset invalidates the facet index for scoring until the next
// Recompute.
func (c *Collection) AddAsset(name string, metadata map[string]any) *Asset {
	if existing := c.Asset(name); existing != nil {
		return existing
	}
	asset := &Asset{Name: name, Metadata: metadata, Profit: math.Inf(-1)}
	c.Assets = append(c.Assets, asset)
	return asset
}

// RebuildFacets re-indexes the current asset set under the current trait
// definition, discarding whatever was there before.
func (c *Collection) RebuildFacets() {
	c.Facets = BuildFacets(c.Assets, c.Properties)
}

// Recompute runs the whole scoring batch over the snapshot: rebuild facets,
// score every asset, fit a value model from recorded sales, price and rank
// everything. reduce selects the representative sale per asset; nil means
// MaxSale.
//
// The curve fit needs at least two distinct-rarity sale observations and
// falls back to the linear ratio below that; with no sales at all the
// collection keeps rarity and ranks but carries no value estimates, and
// every asset's profit stays at the -Inf sentinel. An UnknownFacetError from
// scoring aborts the batch.
func (c *Collection) Recompute(reduce SaleReducer) error {
	if reduce == nil {
		reduce = MaxSale
	}

	c.RebuildFacets()
	if err := ScoreAll(c.Assets, c.Facets, c.Properties); err != nil {
		return fmt.Errorf("scoring collection [%s]: %w", c.Name, err)
	}
	AssignRanks(c.Assets)

	points := SalePoints(c.Assets, reduce)

	sigmoid, err := FitSigmoid(points)
	if err == nil {
		c.Model = ModelSigmoid
		c.Sigmoid = &sigmoid
		c.UnitValue = 0
		ApplyEstimates(c.Assets, sigmoid)
		return nil
	}
	if !errors.Is(err, ErrInsufficientData) {
		return err
	}

	linear, err := FitLinear(points)
	if err == nil {
		c.Model = ModelLinear
		c.Sigmoid = nil
		c.UnitValue = linear.UnitValue
		ApplyEstimates(c.Assets, linear)
		return nil
	}

	// No sales at all: rarity and ranks stand, estimates stay absent.
	c.Model = ModelNone
	c.Sigmoid = nil
	c.UnitValue = 0
	for _, asset := range c.Assets {
		asset.Value = 0
		asset.Profit = math.Inf(-1)
	}
	return nil
}

// Snapshot serializes the collection. Snapshot then LoadSnapshot reproduces
// identical assets, facets, and properties.
func (c *Collection) Snapshot() ([]byte, error) {
	return json.Marshal(c)
}

// LoadSnapshot restores a collection serialized by Snapshot.
func LoadSnapshot(data []byte) (*Collection, error) {
	var c Collection
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decoding collection snapshot: %w", err)
	}
	if c.Facets == nil {
		c.Facets = make(FacetIndex)
	}
	return &c, nil
}
