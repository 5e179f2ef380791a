package services

import (
	"context"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/clumsystudios/rarity-tracker/internal/models"
	"github.com/clumsystudios/rarity-tracker/internal/rarity"
	"github.com/clumsystudios/rarity-tracker/internal/store"
)

func syncTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := db.AutoMigrate(&models.Project{}, &models.Collection{}, &models.Asset{}); err != nil {
		t.Fatal(err)
	}
	return store.New(db)
}

func TestSyncCollectionEndToEnd(t *testing.T) {
	chainServer := chainTestServer(t)
	defer chainServer.Close()
	marketServer := marketTestServer(t)
	defer marketServer.Close()

	st := syncTestStore(t)

	// Register the collection the way the API does: an empty snapshot with
	// the trait definition.
	col := rarity.NewCollection("Clumsy Ghosts", testPolicy)
	col.Properties = []string{"color"}
	if err := st.SaveSnapshot("project-1", col); err != nil {
		t.Fatal(err)
	}

	chain := NewChainService(chainServer.URL)
	market := NewMarketService(marketServer.URL, 100)
	svc := NewSyncService(st, chain, market, time.Hour)

	synced, err := svc.SyncCollection(context.Background(), testPolicy)
	if err != nil {
		t.Fatalf("SyncCollection failed: %v", err)
	}

	if len(synced.Assets) != 2 {
		t.Fatalf("Expected 2 assets after sync, got %d", len(synced.Assets))
	}
	for _, asset := range synced.Assets {
		if asset.Rarity <= 0 || asset.Rank == 0 {
			t.Errorf("Asset %s not scored: rarity=%v rank=%d", asset.Name, asset.Rarity, asset.Rank)
		}
	}

	ghost1 := synced.Asset("Ghost001")
	if len(ghost1.Sales) != 1 || ghost1.Sales[0] != 50_000_000 {
		t.Errorf("Ghost001 sale not merged: %v", ghost1.Sales)
	}
	ghost2 := synced.Asset("Ghost002")
	if len(ghost2.Sales) != 1 || ghost2.Sales[0] != 125_000_000 {
		t.Errorf("Ghost002 sale not merged: %v", ghost2.Sales)
	}
	if synced.TxCount != 42 {
		t.Errorf("Transaction cursor should advance to 42, got %d", synced.TxCount)
	}

	// Two distinct rarities... both assets share rarity here (one red, one
	// blue out of two), so the linear fallback applies.
	if synced.Model == rarity.ModelNone {
		t.Error("Synced collection with sales should carry a value model")
	}

	// Listing for Ghost #1 at 75 ADA was consumed by the recorded sale or
	// applied; either way the persisted snapshot must round-trip.
	restored, err := st.LoadSnapshot(testPolicy)
	if err != nil {
		t.Fatal(err)
	}
	if len(restored.Assets) != 2 {
		t.Errorf("Persisted snapshot lost assets: %d", len(restored.Assets))
	}
	if restored.TxCount != 42 {
		t.Errorf("Persisted cursor mismatch: %d", restored.TxCount)
	}
}

func TestSyncCollectionUnknownPolicy(t *testing.T) {
	chainServer := chainTestServer(t)
	defer chainServer.Close()
	marketServer := marketTestServer(t)
	defer marketServer.Close()

	st := syncTestStore(t)
	svc := NewSyncService(st, NewChainService(chainServer.URL), NewMarketService(marketServer.URL, 100), time.Hour)

	if _, err := svc.SyncCollection(context.Background(), "unregistered"); err == nil {
		t.Error("Syncing an unregistered policy must fail")
	}
}

func TestOnSyncRegistrationDuringRunningSync(t *testing.T) {
	chainServer := chainTestServer(t)
	defer chainServer.Close()
	marketServer := marketTestServer(t)
	defer marketServer.Close()

	st := syncTestStore(t)
	col := rarity.NewCollection("Clumsy Ghosts", testPolicy)
	col.Properties = []string{"color"}
	if err := st.SaveSnapshot("project-1", col); err != nil {
		t.Fatal(err)
	}

	svc := NewSyncService(st, NewChainService(chainServer.URL), NewMarketService(marketServer.URL, 100), time.Hour)

	// Startup order in main: the worker goroutine may already be mid-sync
	// when the router wires up the cache-invalidation callback.
	done := make(chan struct{})
	go func() {
		defer close(done)
		svc.SyncAll(context.Background())
	}()

	var invalidations atomic.Int32
	svc.OnSync(func(string) { invalidations.Add(1) })
	<-done

	if _, err := svc.SyncCollection(context.Background(), testPolicy); err != nil {
		t.Fatal(err)
	}
	if invalidations.Load() == 0 {
		t.Error("Callback registered during a running sync must fire on the next run")
	}
}

func TestFindByDisplayName(t *testing.T) {
	col := rarity.NewCollection("c", "p")
	col.AddAsset("Ghost001", map[string]any{"name": "Ghost #1"})
	col.AddAsset("Ghost002", map[string]any{})

	if findByDisplayName(col, "Ghost #1") != col.Asset("Ghost001") {
		t.Error("Should match on the metadata display name")
	}
	if findByDisplayName(col, "Ghost002") != col.Asset("Ghost002") {
		t.Error("Should fall back to the on-chain asset name")
	}
	if findByDisplayName(col, "Ghost #9") != nil {
		t.Error("Unknown display names should return nil")
	}
}

func TestRecordSaleClearsListing(t *testing.T) {
	asset := &rarity.Asset{Name: "x", Profit: math.Inf(-1)}
	price := 30.0
	asset.Price = &price

	asset.RecordSale(40_000_000)
	if asset.Price != nil {
		t.Error("A sale consumes the listing; price must be cleared")
	}
	asset.RecordSale(40_000_000)
	if len(asset.Sales) != 1 {
		t.Errorf("Duplicate sale amounts must not be recorded twice: %v", asset.Sales)
	}
}
