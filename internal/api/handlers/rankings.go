package handlers

import (
	"net/http"
	"sort"
	"strconv"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2"
	"gorm.io/gorm"

	"github.com/clumsystudios/rarity-tracker/internal/rarity"
	"github.com/clumsystudios/rarity-tracker/internal/store"
)

// RankedAsset is the flattened view served by the ranking endpoints.
type RankedAsset struct {
	Name      string   `json:"name"`
	Rank      int      `json:"rank"`
	Rarity    float64  `json:"rarity"`
	Value     float64  `json:"value"`
	Price     *float64 `json:"price,omitempty"`
	Profit    *float64 `json:"profit,omitempty"`
	StatTotal float64  `json:"stat_total,omitempty"`
	UnitCost  float64  `json:"unit_cost,omitempty"`
}

type RankingHandler struct {
	store *store.Store

	// Ranked views are recomputed per collection only when a sync lands;
	// between syncs they are served from this cache.
	cache *lru.Cache[string, []RankedAsset]
}

func NewRankingHandler(st *store.Store) *RankingHandler {
	cache, _ := lru.New[string, []RankedAsset](32)
	return &RankingHandler{store: st, cache: cache}
}

// Invalidate drops cached views for a policy; the sync worker calls this
// after every successful sync.
func (h *RankingHandler) Invalidate(policyID string) {
	h.cache.Remove(policyID + ":rarity")
	h.cache.Remove(policyID + ":deals")
}

// GetRankings serves assets in rarity order, rank 1 first.
func (h *RankingHandler) GetRankings(c *gin.Context) {
	h.serveOrdered(c, ":rarity", func(assets []*rarity.Asset) {
		sort.SliceStable(assets, func(i, j int) bool {
			return assets[i].Rank < assets[j].Rank
		})
	})
}

// GetDeals serves assets in display order: best profit first, cheaper
// listing first among ties, unlisted assets last.
func (h *RankingHandler) GetDeals(c *gin.Context) {
	h.serveOrdered(c, ":deals", rarity.SortForDisplay)
}

func (h *RankingHandler) serveOrdered(c *gin.Context, kind string, order func([]*rarity.Asset)) {
	policy := c.Param("policy")
	limit := parseLimit(c.Query("limit"))

	cached, ok := h.cache.Get(policy + kind)
	if !ok {
		col, err := h.store.LoadSnapshot(policy)
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "collection not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		order(col.Assets)
		cached = make([]RankedAsset, 0, len(col.Assets))
		for _, asset := range col.Assets {
			cached = append(cached, toRanked(asset))
		}
		h.cache.Add(policy+kind, cached)
	}

	if limit > 0 && limit < len(cached) {
		cached = cached[:limit]
	}
	c.JSON(http.StatusOK, cached)
}

func toRanked(asset *rarity.Asset) RankedAsset {
	ranked := RankedAsset{
		Name:      asset.Name,
		Rank:      asset.Rank,
		Rarity:    asset.Rarity,
		Value:     asset.Value,
		Price:     asset.Price,
		StatTotal: asset.StatTotal,
		UnitCost:  asset.UnitCost,
	}
	if asset.Listed() {
		profit := asset.Profit
		ranked.Profit = &profit
	}
	return ranked
}

func parseLimit(raw string) int {
	if raw == "" {
		return 0
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0
	}
	return limit
}
