// Package store persists collection snapshots. It is the bridge between the
// in-memory corpus the rarity package scores and the database rows the API
// serves: saving then loading a snapshot reproduces identical assets, facets,
// and trait definitions.
package store

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/clumsystudios/rarity-tracker/internal/models"
	"github.com/clumsystudios/rarity-tracker/internal/rarity"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// SaveSnapshot upserts the collection row and every asset row from an
// in-memory snapshot, inside one transaction so a half-written corpus is
// never visible.
func (s *Store) SaveSnapshot(projectID string, col *rarity.Collection) error {
	properties, err := json.Marshal(col.Properties)
	if err != nil {
		return fmt.Errorf("encoding properties: %w", err)
	}
	facets, err := json.Marshal(col.Facets)
	if err != nil {
		return fmt.Errorf("encoding facets: %w", err)
	}
	params, err := modelParams(col)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		var row models.Collection
		err := tx.Where("policy_id = ?", col.PolicyID).First(&row).Error
		if err == gorm.ErrRecordNotFound {
			row = models.Collection{
				ProjectID: projectID,
				Name:      col.Name,
				PolicyID:  col.PolicyID,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		now := time.Now()
		row.Name = col.Name
		row.TxCount = col.TxCount
		row.Properties = datatypes.JSON(properties)
		row.Facets = datatypes.JSON(facets)
		row.ModelKind = string(col.Model)
		row.ModelParams = datatypes.JSON(params)
		row.LastSyncedAt = &now
		if err := tx.Save(&row).Error; err != nil {
			return err
		}

		hasEstimates := col.Model != rarity.ModelNone
		for _, asset := range col.Assets {
			assetRow, err := assetToRow(row.ID, asset, hasEstimates)
			if err != nil {
				return err
			}
			err = tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "collection_id"}, {Name: "name"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"metadata", "sales", "price", "rarity", "value", "rank",
					"profit", "stats", "stat_total", "unit_cost", "updated_at",
				}),
			}).Create(&assetRow).Error
			if err != nil {
				return fmt.Errorf("upserting asset [%s]: %w", asset.Name, err)
			}
		}
		return nil
	})
}

// LoadSnapshot rebuilds the in-memory snapshot for a policy. Assets come
// back in insertion order, which is what keeps "first seen wins" rank
// tie-breaking stable across restarts. Returns gorm.ErrRecordNotFound for an
// unknown policy.
func (s *Store) LoadSnapshot(policyID string) (*rarity.Collection, error) {
	var row models.Collection
	if err := s.db.Where("policy_id = ?", policyID).First(&row).Error; err != nil {
		return nil, err
	}

	col := rarity.NewCollection(row.Name, row.PolicyID)
	col.TxCount = row.TxCount
	col.Model = rarity.ModelKind(row.ModelKind)

	if len(row.Properties) > 0 {
		if err := json.Unmarshal(row.Properties, &col.Properties); err != nil {
			return nil, fmt.Errorf("decoding properties: %w", err)
		}
	}
	if len(row.Facets) > 0 {
		if err := json.Unmarshal(row.Facets, &col.Facets); err != nil {
			return nil, fmt.Errorf("decoding facets: %w", err)
		}
	}
	if err := restoreModelParams(col, row.ModelParams); err != nil {
		return nil, err
	}

	var assetRows []models.Asset
	if err := s.db.Where("collection_id = ?", row.ID).Order("id ASC").Find(&assetRows).Error; err != nil {
		return nil, err
	}
	for _, assetRow := range assetRows {
		asset, err := rowToAsset(&assetRow)
		if err != nil {
			return nil, err
		}
		col.Assets = append(col.Assets, asset)
	}
	return col, nil
}

// Policies lists every stored collection policy ID, for the sync worker.
func (s *Store) Policies() ([]string, error) {
	var policies []string
	err := s.db.Model(&models.Collection{}).Order("created_at ASC").Pluck("policy_id", &policies).Error
	return policies, err
}

func modelParams(col *rarity.Collection) ([]byte, error) {
	switch col.Model {
	case rarity.ModelSigmoid:
		return json.Marshal(col.Sigmoid)
	case rarity.ModelLinear:
		return json.Marshal(rarity.LinearModel{UnitValue: col.UnitValue})
	default:
		return []byte("null"), nil
	}
}

func restoreModelParams(col *rarity.Collection, params datatypes.JSON) error {
	if len(params) == 0 {
		return nil
	}
	switch col.Model {
	case rarity.ModelSigmoid:
		var sigmoid rarity.SigmoidModel
		if err := json.Unmarshal(params, &sigmoid); err != nil {
			return fmt.Errorf("decoding sigmoid params: %w", err)
		}
		col.Sigmoid = &sigmoid
	case rarity.ModelLinear:
		var linear rarity.LinearModel
		if err := json.Unmarshal(params, &linear); err != nil {
			return fmt.Errorf("decoding linear params: %w", err)
		}
		col.UnitValue = linear.UnitValue
	}
	return nil
}

// assetToRow converts a snapshot asset for persistence. hasEstimates reports
// whether the collection carried a fitted value model; without one the value
// column stays NULL so "no estimate" is distinguishable from a zero estimate.
func assetToRow(collectionID string, asset *rarity.Asset, hasEstimates bool) (models.Asset, error) {
	metadata, err := json.Marshal(asset.Metadata)
	if err != nil {
		return models.Asset{}, fmt.Errorf("encoding metadata for [%s]: %w", asset.Name, err)
	}
	sales, err := json.Marshal(asset.Sales)
	if err != nil {
		return models.Asset{}, err
	}
	stats, err := json.Marshal(asset.Stats)
	if err != nil {
		return models.Asset{}, err
	}

	row := models.Asset{
		CollectionID: collectionID,
		Name:         asset.Name,
		Metadata:     datatypes.JSON(metadata),
		Sales:        datatypes.JSON(sales),
		Price:        asset.Price,
		Rarity:       asset.Rarity,
		Rank:         asset.Rank,
		Stats:        datatypes.JSON(stats),
		StatTotal:    asset.StatTotal,
		UnitCost:     asset.UnitCost,
	}
	if hasEstimates {
		value := asset.Value
		row.Value = &value
	}
	if !math.IsInf(asset.Profit, -1) {
		profit := asset.Profit
		row.Profit = &profit
	}
	return row, nil
}

func rowToAsset(row *models.Asset) (*rarity.Asset, error) {
	asset := &rarity.Asset{
		Name:      row.Name,
		Price:     row.Price,
		Rarity:    row.Rarity,
		Rank:      row.Rank,
		StatTotal: row.StatTotal,
		UnitCost:  row.UnitCost,
		Profit:    math.Inf(-1),
	}
	if row.Value != nil {
		asset.Value = *row.Value
	}
	if row.Profit != nil {
		asset.Profit = *row.Profit
	}
	if len(row.Metadata) > 0 {
		if err := json.Unmarshal(row.Metadata, &asset.Metadata); err != nil {
			return nil, fmt.Errorf("decoding metadata for [%s]: %w", row.Name, err)
		}
	}
	if len(row.Sales) > 0 {
		if err := json.Unmarshal(row.Sales, &asset.Sales); err != nil {
			return nil, err
		}
	}
	if len(row.Stats) > 0 {
		if err := json.Unmarshal(row.Stats, &asset.Stats); err != nil {
			return nil, err
		}
	}
	return asset, nil
}
