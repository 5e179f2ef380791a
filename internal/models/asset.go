package models

import (
	"time"

	"gorm.io/datatypes"
)

// Asset is the persisted form of one collection item: raw on-chain metadata
// plus the derived scoring fields. Metadata, Sales, and Stats are JSON
// columns so arbitrary trait shapes survive the round-trip untouched.
type Asset struct {
	ID           uint   `json:"id" gorm:"primaryKey;autoIncrement"`
	CollectionID string `json:"collection_id" gorm:"not null;index;uniqueIndex:idx_collection_asset"`
	Name         string `json:"name" gorm:"not null;uniqueIndex:idx_collection_asset"`

	Metadata datatypes.JSON `json:"metadata"`
	Sales    datatypes.JSON `json:"sales"`
	Price    *float64       `json:"price"`

	Rarity float64 `json:"rarity"`
	Rank   int     `json:"rank" gorm:"index"`

	// Value and Profit are nullable: NULL value means the collection carried
	// no fitted model when the row was written, and NULL profit stands for
	// the -Inf sentinel of unlisted assets, which SQL and JSON cannot
	// represent directly.
	Value  *float64 `json:"value"`
	Profit *float64 `json:"profit"`

	Stats     datatypes.JSON `json:"stats"`
	StatTotal float64        `json:"stat_total"`
	UnitCost  float64        `json:"unit_cost"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
