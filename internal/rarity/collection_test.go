package rarity

import (
	"math"
	"reflect"
	"testing"
)

func buildTestCollection() *Collection {
	col := NewCollection("Clumsy Ghosts", "b000e9f3994de3226577b4d61280994e53c07948c8839d628f4a425a")
	col.Properties = []string{"color", "aura"}

	col.AddAsset("Ghost001", map[string]any{"color": "red", "aura": "dim"})
	col.AddAsset("Ghost002", map[string]any{"color": "red", "aura": "dim"})
	col.AddAsset("Ghost003", map[string]any{"color": "blue", "aura": "dim"})
	col.AddAsset("Ghost004", map[string]any{"color": "green", "aura": "bright"})
	return col
}

func TestAddAssetDedup(t *testing.T) {
	col := buildTestCollection()
	before := len(col.Assets)
	col.AddAsset("Ghost001", map[string]any{"color": "violet"})
	if len(col.Assets) != before {
		t.Errorf("Adding an existing name must not grow the corpus")
	}
	if col.Asset("Ghost001").Metadata["color"] != "red" {
		t.Errorf("Duplicate add must not overwrite the original metadata")
	}
}

func TestRecomputeFullPipeline(t *testing.T) {
	col := buildTestCollection()
	col.Asset("Ghost001").RecordSale(50_000_000)
	col.Asset("Ghost004").RecordSale(400_000_000)
	listing := 30.0
	col.Asset("Ghost002").Price = &listing

	if err := col.Recompute(nil); err != nil {
		t.Fatalf("Recompute failed: %v", err)
	}

	if col.Model != ModelSigmoid {
		t.Errorf("Two distinct-rarity sales should select the curve fit, got %q", col.Model)
	}
	if col.Sigmoid == nil {
		t.Fatal("Fitted curve parameters must be kept on the snapshot")
	}
	for _, asset := range col.Assets {
		if asset.Rarity <= 0 {
			t.Errorf("Asset %s missing rarity", asset.Name)
		}
		if asset.Rank == 0 {
			t.Errorf("Asset %s missing rank", asset.Name)
		}
	}
	// The never-sold, never-listed asset still gets a value but keeps the
	// sentinel profit.
	g3 := col.Asset("Ghost003")
	if !math.IsInf(g3.Profit, -1) {
		t.Errorf("Unlisted asset should keep -Inf profit, got %v", g3.Profit)
	}
	g2 := col.Asset("Ghost002")
	if math.IsInf(g2.Profit, -1) {
		t.Errorf("Listed asset should have a finite profit estimate")
	}
}

func TestRecomputeLinearFallback(t *testing.T) {
	col := buildTestCollection()
	// One sold asset: a single distinct rarity, so the curve fit is
	// underdetermined and the linear ratio takes over.
	col.Asset("Ghost001").RecordSale(100_000_000)

	if err := col.Recompute(nil); err != nil {
		t.Fatalf("Recompute failed: %v", err)
	}
	if col.Model != ModelLinear {
		t.Errorf("Expected linear fallback, got %q", col.Model)
	}
	if col.UnitValue <= 0 {
		t.Errorf("Linear mode must record the unit value, got %v", col.UnitValue)
	}

	sold := col.Asset("Ghost001")
	if math.Abs(sold.Value-col.UnitValue*sold.Rarity) > 1e-9 {
		t.Errorf("Linear estimate should be unitValue*rarity")
	}
}

func TestRecomputeNoSales(t *testing.T) {
	col := buildTestCollection()
	if err := col.Recompute(nil); err != nil {
		t.Fatalf("Recompute without sales must not fail: %v", err)
	}
	if col.Model != ModelNone {
		t.Errorf("No sales should leave the collection without a value model, got %q", col.Model)
	}
	for _, asset := range col.Assets {
		if asset.Rank == 0 {
			t.Errorf("Rarity ranks must still be assigned without sales")
		}
		if !math.IsInf(asset.Profit, -1) {
			t.Errorf("Without estimates every profit stays at the sentinel")
		}
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	col := buildTestCollection()
	col.Asset("Ghost001").RecordSale(75_000_000)
	col.Asset("Ghost004").RecordSale(250_000_000)
	col.TxCount = 17
	if err := col.Recompute(nil); err != nil {
		t.Fatal(err)
	}

	data, err := col.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	restored, err := LoadSnapshot(data)
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}

	if restored.Name != col.Name || restored.PolicyID != col.PolicyID || restored.TxCount != col.TxCount {
		t.Errorf("Collection metadata did not round-trip")
	}
	if !reflect.DeepEqual(restored.Properties, col.Properties) {
		t.Errorf("Properties did not round-trip: %v vs %v", restored.Properties, col.Properties)
	}
	if !reflect.DeepEqual(restored.Facets, col.Facets) {
		t.Errorf("Facets did not round-trip")
	}
	if len(restored.Assets) != len(col.Assets) {
		t.Fatalf("Asset count changed: %d vs %d", len(restored.Assets), len(col.Assets))
	}
	for i, asset := range col.Assets {
		got := restored.Assets[i]
		if got.Name != asset.Name || got.Rarity != asset.Rarity || got.Rank != asset.Rank {
			t.Errorf("Asset %s did not round-trip: %+v vs %+v", asset.Name, got, asset)
		}
		if math.IsInf(asset.Profit, -1) != math.IsInf(got.Profit, -1) {
			t.Errorf("Asset %s profit sentinel did not round-trip", asset.Name)
		}
		if !reflect.DeepEqual(got.Sales, asset.Sales) {
			t.Errorf("Asset %s sales did not round-trip", asset.Name)
		}
	}
}
