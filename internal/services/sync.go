package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/clumsystudios/rarity-tracker/internal/metrics"
	"github.com/clumsystudios/rarity-tracker/internal/rarity"
	"github.com/clumsystudios/rarity-tracker/internal/store"
)

// minNewTransactions is the smallest backlog worth a transactions request;
// below this the stored sales are considered current.
const minNewTransactions = 10

// SyncService drives the full pipeline for each stored collection: fetch new
// assets and market data, merge them into the snapshot, rescore, and persist.
// The scoring core only ever sees the complete merged corpus; all network
// concurrency stays on this side of the boundary.
type SyncService struct {
	store  *store.Store
	chain  *ChainService
	market *MarketService

	interval time.Duration

	// Weighted-mode configuration; nil statsTable means inverse-frequency
	// scoring only. A corpus scores by one mode, never both.
	statsTable  rarity.PointsTable
	multipliers rarity.MultiplierTable
	statSubset  []string

	mu sync.Mutex

	// onSync is invoked after each successful collection sync, for cache
	// invalidation. Guarded by mu: handler wiring registers it while the
	// worker may already be running.
	onSync func(policyID string)

	syncing        bool
	lastSyncTime   time.Time
	lastSyncError  string
	collectionsRun int
}

// SyncStatus is the worker's self-report for the status endpoint.
type SyncStatus struct {
	Syncing           bool      `json:"syncing"`
	LastSyncTime      time.Time `json:"last_sync_time"`
	NextSyncTime      time.Time `json:"next_sync_time"`
	LastSyncError     string    `json:"last_sync_error,omitempty"`
	CollectionsSynced int       `json:"collections_synced"`
	MarketRemaining   int       `json:"market_requests_remaining"`
}

func NewSyncService(st *store.Store, chain *ChainService, market *MarketService, interval time.Duration) *SyncService {
	return &SyncService{
		store:    st,
		chain:    chain,
		market:   market,
		interval: interval,
	}
}

// ConfigureWeightedMode switches collections synced by this service to the
// point-multiplier scoring mode.
func (s *SyncService) ConfigureWeightedMode(table rarity.PointsTable, multipliers rarity.MultiplierTable, statSubset []string) {
	s.statsTable = table
	s.multipliers = multipliers
	s.statSubset = statSubset
}

// OnSync registers a callback fired after each successful collection sync.
// Safe to call while the worker is running.
func (s *SyncService) OnSync(fn func(policyID string)) {
	s.mu.Lock()
	s.onSync = fn
	s.mu.Unlock()
}

// Start runs the background sync loop until the context is cancelled.
func (s *SyncService) Start(ctx context.Context) {
	log.Printf("Sync worker started: syncing every %s", s.interval)

	s.SyncAll(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Println("Sync worker stopping...")
			return
		case <-ticker.C:
			s.SyncAll(ctx)
		}
	}
}

// SyncAll syncs every stored collection in turn.
func (s *SyncService) SyncAll(ctx context.Context) {
	policies, err := s.store.Policies()
	if err != nil {
		log.Printf("Sync worker: failed to list collections: %v", err)
		return
	}

	s.mu.Lock()
	s.syncing = true
	s.mu.Unlock()

	var lastErr string
	for _, policy := range policies {
		if ctx.Err() != nil {
			break
		}
		if _, err := s.SyncCollection(ctx, policy); err != nil {
			log.Printf("Sync worker: collection %s failed: %v", policy, err)
			lastErr = err.Error()
			metrics.SyncRunsTotal.WithLabelValues("failed").Inc()
			continue
		}
		metrics.SyncRunsTotal.WithLabelValues("success").Inc()
	}

	s.mu.Lock()
	s.syncing = false
	s.lastSyncTime = time.Now()
	s.lastSyncError = lastErr
	s.collectionsRun = len(policies)
	s.mu.Unlock()
}

// SyncCollection runs one full ingest-and-rescore pass for a policy and
// returns the recomputed snapshot.
func (s *SyncService) SyncCollection(ctx context.Context, policyID string) (*rarity.Collection, error) {
	started := time.Now()
	defer func() {
		metrics.SyncDuration.Observe(time.Since(started).Seconds())
	}()

	col, err := s.store.LoadSnapshot(policyID)
	if err == gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("collection %s is not registered", policyID)
	}
	if err != nil {
		return nil, err
	}

	if err := s.ingest(ctx, col); err != nil {
		return nil, err
	}

	if err := col.Recompute(nil); err != nil {
		return nil, err
	}
	if s.statsTable != nil {
		if err := rarity.ApplyStats(col.Assets, col.Properties, s.statsTable, s.multipliers, s.statSubset); err != nil {
			return nil, err
		}
	}

	if err := s.store.SaveSnapshot("", col); err != nil {
		return nil, fmt.Errorf("persisting collection %s: %w", policyID, err)
	}

	s.reportCollection(col)
	s.mu.Lock()
	onSync := s.onSync
	s.mu.Unlock()
	if onSync != nil {
		onSync(policyID)
	}
	log.Printf("Sync worker: collection [%s] synced, %d assets, model=%s", col.Name, len(col.Assets), col.Model)
	return col, nil
}

// ingest merges new on-chain assets, new sales, and current listings into
// the snapshot. The three fetches run concurrently; the snapshot itself is
// only mutated after all of them complete, so scoring never sees a partial
// merge.
func (s *SyncService) ingest(ctx context.Context, col *rarity.Collection) error {
	var (
		raw      []RawAsset
		txs      []MarketTransaction
		txTotal  int
		listings []MarketListing
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		raw, err = s.chain.FetchAssets(gctx, col.PolicyID)
		return err
	})
	g.Go(func() error {
		total, err := s.market.TransactionCount(gctx, col.PolicyID)
		if err != nil {
			return err
		}
		txTotal = total
		backlog := total - col.TxCount
		if backlog < minNewTransactions {
			return nil
		}
		txs, err = s.market.Transactions(gctx, col.PolicyID, backlog)
		return err
	})
	g.Go(func() error {
		var err error
		listings, err = s.market.Listings(gctx, col.PolicyID)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	var added int
	for _, r := range raw {
		if !col.Has(r.Name) {
			col.AddAsset(r.Name, r.Metadata)
			added++
		}
	}
	if added > 0 {
		metrics.NewAssetsTotal.Add(float64(added))
		log.Printf("Sync worker: %d new assets for [%s]", added, col.Name)
	}

	if txs != nil {
		for _, tx := range txs {
			if asset := findByDisplayName(col, tx.DisplayName); asset != nil {
				asset.RecordSale(tx.AmountLovelace)
			}
		}
		col.TxCount = txTotal
	}

	// The listings endpoint returns the complete current set, so stale
	// prices are cleared before the fresh ones are applied.
	for _, asset := range col.Assets {
		asset.Price = nil
	}
	for _, listing := range listings {
		asset := findByDisplayName(col, listing.DisplayName)
		if asset == nil {
			continue
		}
		price, err := listing.PriceADA()
		if err != nil {
			log.Printf("Sync worker: skipping listing for %s: %v", listing.DisplayName, err)
			continue
		}
		asset.Price = &price
	}
	return nil
}

// findByDisplayName matches a marketplace display name against the metadata
// display name, falling back to the on-chain asset name.
func findByDisplayName(col *rarity.Collection, display string) *rarity.Asset {
	for _, asset := range col.Assets {
		if name, ok := asset.Metadata["name"].(string); ok && name == display {
			return asset
		}
	}
	return col.Asset(display)
}

func (s *SyncService) reportCollection(col *rarity.Collection) {
	var sold int
	for _, asset := range col.Assets {
		if len(asset.Sales) > 0 {
			sold++
		}
	}
	metrics.CollectionAssets.WithLabelValues(col.PolicyID).Set(float64(len(col.Assets)))
	metrics.CollectionSoldAssets.WithLabelValues(col.PolicyID).Set(float64(sold))
	metrics.AssetsIndexed.WithLabelValues(col.PolicyID).Set(float64(len(col.Assets)))
	for _, kind := range []rarity.ModelKind{rarity.ModelSigmoid, rarity.ModelLinear} {
		value := 0.0
		if col.Model == kind {
			value = 1
		}
		metrics.CollectionModelKind.WithLabelValues(col.PolicyID, string(kind)).Set(value)
	}
}

// Status reports the worker's current state.
func (s *SyncService) Status() SyncStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SyncStatus{
		Syncing:           s.syncing,
		LastSyncTime:      s.lastSyncTime,
		NextSyncTime:      s.lastSyncTime.Add(s.interval),
		LastSyncError:     s.lastSyncError,
		CollectionsSynced: s.collectionsRun,
		MarketRemaining:   s.market.GetRequestsRemaining(),
	}
}
