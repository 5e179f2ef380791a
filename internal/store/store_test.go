package store

import (
	"math"
	"reflect"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/clumsystudios/rarity-tracker/internal/models"
	"github.com/clumsystudios/rarity-tracker/internal/rarity"
)

func testStore(t *testing.T) (*Store, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("opening in-memory database: %v", err)
	}
	if err := db.AutoMigrate(&models.Project{}, &models.Collection{}, &models.Asset{}); err != nil {
		t.Fatalf("migrating schema: %v", err)
	}
	return New(db), db
}

func scoredCollection(t *testing.T) *rarity.Collection {
	t.Helper()
	col := rarity.NewCollection("Clumsy Ghosts", "b000e9f3994de322")
	col.Properties = []string{"color"}
	col.AddAsset("Ghost001", map[string]any{"color": "red"})
	col.AddAsset("Ghost002", map[string]any{"color": "blue"})
	col.AddAsset("Ghost003", map[string]any{"color": "blue"})
	col.Asset("Ghost001").RecordSale(90_000_000)
	listing := 12.5
	col.Asset("Ghost002").Price = &listing
	col.TxCount = 5
	if err := col.Recompute(nil); err != nil {
		t.Fatalf("recompute: %v", err)
	}
	return col
}

func TestSaveLoadSnapshotRoundTrip(t *testing.T) {
	s, _ := testStore(t)
	col := scoredCollection(t)

	if err := s.SaveSnapshot("project-1", col); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}
	restored, err := s.LoadSnapshot(col.PolicyID)
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}

	if restored.Name != col.Name || restored.TxCount != col.TxCount {
		t.Errorf("Collection fields did not round-trip: %+v", restored)
	}
	if !reflect.DeepEqual(restored.Properties, col.Properties) {
		t.Errorf("Properties did not round-trip: %v", restored.Properties)
	}
	if !reflect.DeepEqual(restored.Facets, col.Facets) {
		t.Errorf("Facets did not round-trip")
	}
	if restored.Model != col.Model {
		t.Errorf("Model kind did not round-trip: %q vs %q", restored.Model, col.Model)
	}
	if restored.UnitValue != col.UnitValue {
		t.Errorf("Unit value did not round-trip: %v vs %v", restored.UnitValue, col.UnitValue)
	}

	if len(restored.Assets) != len(col.Assets) {
		t.Fatalf("Asset count changed: %d vs %d", len(restored.Assets), len(col.Assets))
	}
	for i, want := range col.Assets {
		got := restored.Assets[i]
		if got.Name != want.Name {
			t.Errorf("Asset order changed at %d: %s vs %s", i, got.Name, want.Name)
		}
		if got.Rarity != want.Rarity || got.Rank != want.Rank || got.Value != want.Value {
			t.Errorf("Asset %s derived fields did not round-trip", want.Name)
		}
		if !reflect.DeepEqual(got.Metadata, want.Metadata) {
			t.Errorf("Asset %s metadata did not round-trip", want.Name)
		}
		if !reflect.DeepEqual(got.Sales, want.Sales) {
			t.Errorf("Asset %s sales did not round-trip", want.Name)
		}
		if math.IsInf(want.Profit, -1) != math.IsInf(got.Profit, -1) {
			t.Errorf("Asset %s profit sentinel did not round-trip", want.Name)
		}
	}
}

func TestSaveSnapshotUpsertsAssets(t *testing.T) {
	s, _ := testStore(t)
	col := scoredCollection(t)

	if err := s.SaveSnapshot("project-1", col); err != nil {
		t.Fatal(err)
	}

	// Second sync: a new sale and a recompute, then save again.
	col.Asset("Ghost002").RecordSale(200_000_000)
	if err := col.Recompute(nil); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveSnapshot("project-1", col); err != nil {
		t.Fatalf("Second SaveSnapshot failed: %v", err)
	}

	restored, err := s.LoadSnapshot(col.PolicyID)
	if err != nil {
		t.Fatal(err)
	}
	if len(restored.Assets) != 3 {
		t.Errorf("Upsert must not duplicate assets, got %d rows", len(restored.Assets))
	}
	if len(restored.Asset("Ghost002").Sales) != 1 {
		t.Errorf("Updated sales should persist, got %v", restored.Asset("Ghost002").Sales)
	}
}

func TestSaveSnapshotValueNullWithoutModel(t *testing.T) {
	s, db := testStore(t)

	// No sales: rarity and ranks exist, but no value model fits.
	col := rarity.NewCollection("Clumsy Ghosts", "b000e9f3994de322")
	col.Properties = []string{"color"}
	col.AddAsset("Ghost001", map[string]any{"color": "red"})
	col.AddAsset("Ghost002", map[string]any{"color": "blue"})
	if err := col.Recompute(nil); err != nil {
		t.Fatal(err)
	}
	if col.Model != rarity.ModelNone {
		t.Fatalf("Fixture should carry no model, got %q", col.Model)
	}
	if err := s.SaveSnapshot("project-1", col); err != nil {
		t.Fatal(err)
	}

	var rows []models.Asset
	if err := db.Find(&rows).Error; err != nil {
		t.Fatal(err)
	}
	for _, row := range rows {
		if row.Value != nil {
			t.Errorf("Asset %s: value column must be NULL without a model, got %v", row.Name, *row.Value)
		}
	}

	// A later sync that does fit a model fills the column in.
	col.Asset("Ghost001").RecordSale(60_000_000)
	if err := col.Recompute(nil); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveSnapshot("project-1", col); err != nil {
		t.Fatal(err)
	}
	var row models.Asset
	if err := db.Where("name = ?", "Ghost001").First(&row).Error; err != nil {
		t.Fatal(err)
	}
	if row.Value == nil {
		t.Error("Asset rows must carry the estimate once a model is fitted")
	}
}

func TestLoadSnapshotUnknownPolicy(t *testing.T) {
	s, _ := testStore(t)
	if _, err := s.LoadSnapshot("missing"); err != gorm.ErrRecordNotFound {
		t.Errorf("Expected gorm.ErrRecordNotFound, got %v", err)
	}
}

func TestPolicies(t *testing.T) {
	s, _ := testStore(t)
	col := scoredCollection(t)
	if err := s.SaveSnapshot("project-1", col); err != nil {
		t.Fatal(err)
	}
	policies, err := s.Policies()
	if err != nil {
		t.Fatal(err)
	}
	if len(policies) != 1 || policies[0] != col.PolicyID {
		t.Errorf("Expected single policy %q, got %v", col.PolicyID, policies)
	}
}
