package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/clumsystudios/rarity-tracker/internal/database"
	"github.com/clumsystudios/rarity-tracker/internal/models"
	"github.com/clumsystudios/rarity-tracker/internal/rarity"
	"github.com/clumsystudios/rarity-tracker/internal/store"
)

func newSnapshot(req models.CreateCollectionRequest) *rarity.Collection {
	col := rarity.NewCollection(req.Name, req.PolicyID)
	col.Properties = req.Properties
	return col
}

type CollectionHandler struct {
	store *store.Store
}

func NewCollectionHandler(st *store.Store) *CollectionHandler {
	return &CollectionHandler{store: st}
}

// CreateCollection registers a policy for tracking. The trait definition is
// supplied here; the sync worker fills in assets and scores on its next run.
func (h *CollectionHandler) CreateCollection(c *gin.Context) {
	var req models.CreateCollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Properties) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one trait name is required"})
		return
	}

	db := database.GetDB()

	var project models.Project
	if err := db.First(&project, "id = ?", req.ProjectID).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "project not found"})
		return
	}

	var existing models.Collection
	if err := db.Where("policy_id = ?", req.PolicyID).First(&existing).Error; err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "policy is already tracked"})
		return
	}

	col := newSnapshot(req)
	if err := h.store.SaveSnapshot(req.ProjectID, col); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var row models.Collection
	if err := db.Where("policy_id = ?", req.PolicyID).First(&row).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, row)
}

func (h *CollectionHandler) GetCollection(c *gin.Context) {
	db := database.GetDB()

	var row models.Collection
	if err := db.Where("policy_id = ?", c.Param("policy")).First(&row).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "collection not found"})
		return
	}
	c.JSON(http.StatusOK, row)
}

func (h *CollectionHandler) GetCollectionStats(c *gin.Context) {
	col, err := h.store.LoadSnapshot(c.Param("policy"))
	if err == gorm.ErrRecordNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "collection not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	stats := models.CollectionStats{
		TotalAssets: len(col.Assets),
		ModelKind:   string(col.Model),
		TxCount:     col.TxCount,
	}
	for _, asset := range col.Assets {
		if len(asset.Sales) > 0 {
			stats.SoldAssets++
		}
		if asset.Listed() {
			stats.ListedAssets++
			if stats.FloorPrice == 0 || *asset.Price < stats.FloorPrice {
				stats.FloorPrice = *asset.Price
			}
		}
	}
	c.JSON(http.StatusOK, stats)
}

func (h *CollectionHandler) ListAssets(c *gin.Context) {
	db := database.GetDB()

	var row models.Collection
	if err := db.Where("policy_id = ?", c.Param("policy")).First(&row).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "collection not found"})
		return
	}

	var assets []models.Asset
	if err := db.Where("collection_id = ?", row.ID).Order("id ASC").Find(&assets).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, assets)
}

func (h *CollectionHandler) GetAsset(c *gin.Context) {
	db := database.GetDB()

	var row models.Collection
	if err := db.Where("policy_id = ?", c.Param("policy")).First(&row).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "collection not found"})
		return
	}

	var asset models.Asset
	if err := db.Where("collection_id = ? AND name = ?", row.ID, c.Param("name")).First(&asset).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "asset not found"})
		return
	}
	c.JSON(http.StatusOK, asset)
}
