package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clumsystudios/rarity-tracker/internal/services"
)

type SyncHandler struct {
	syncService *services.SyncService
}

func NewSyncHandler(syncService *services.SyncService) *SyncHandler {
	return &SyncHandler{syncService: syncService}
}

// GetSyncStatus returns the background worker's state and remaining market
// quota.
func (h *SyncHandler) GetSyncStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.syncService.Status())
}

// TriggerSync runs one synchronous sync pass for a single collection.
func (h *SyncHandler) TriggerSync(c *gin.Context) {
	policy := c.Param("policy")
	if policy == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "policy id is required"})
		return
	}

	col, err := h.syncService.SyncCollection(c.Request.Context(), policy)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"policy_id": col.PolicyID,
		"assets":    len(col.Assets),
		"model":     col.Model,
		"tx_count":  col.TxCount,
	})
}
