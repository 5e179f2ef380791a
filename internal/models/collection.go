package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Collection is the persisted form of one scored corpus. Properties and
// Facets are stored as JSON documents; TxCount is the marketplace cursor
// that keeps sale ingestion incremental.
type Collection struct {
	ID        string `json:"id" gorm:"primaryKey"`
	ProjectID string `json:"project_id" gorm:"not null;index"`
	Name      string `json:"name" gorm:"not null"`
	PolicyID  string `json:"policy_id" gorm:"not null;uniqueIndex"`
	TxCount   int    `json:"tx_count"`

	Properties datatypes.JSON `json:"properties"`
	Facets     datatypes.JSON `json:"facets"`

	// Value-model audit trail: which strategy priced the assets last sync
	// and with what parameters.
	ModelKind   string         `json:"model_kind"`
	ModelParams datatypes.JSON `json:"model_params"`

	LastSyncedAt *time.Time `json:"last_synced_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (c *Collection) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}

type CreateCollectionRequest struct {
	ProjectID  string   `json:"project_id" binding:"required"`
	Name       string   `json:"name" binding:"required"`
	PolicyID   string   `json:"policy_id" binding:"required"`
	Properties []string `json:"properties" binding:"required"`
}

// CollectionStats is the aggregate view returned by the stats endpoint.
type CollectionStats struct {
	TotalAssets  int     `json:"total_assets"`
	SoldAssets   int     `json:"sold_assets"`
	ListedAssets int     `json:"listed_assets"`
	ModelKind    string  `json:"model_kind"`
	FloorPrice   float64 `json:"floor_price"`
	TxCount      int     `json:"tx_count"`
}
