package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StockMove is the append-only inventory ledger. On-hand for any
// (item, warehouse[, batch][, location]) slice is SUM(qty); there is no
// mutable summary row to drift out of sync.
type StockMove struct {
	ID            string          `gorm:"primary_key;size:36" json:"id"`
	BusinessId    string          `gorm:"size:64;index;not null;index:idx_move_onhand,priority:1" json:"business_id"`
	ItemId        string          `gorm:"size:36;not null;index:idx_move_onhand,priority:2" json:"item_id"`
	WarehouseId   string          `gorm:"size:36;not null;index:idx_move_onhand,priority:3" json:"warehouse_id"`
	LocationId    *string         `gorm:"size:36;index" json:"location_id"`
	BatchId       *string         `gorm:"size:36;index:idx_move_onhand,priority:4" json:"batch_id"`
	Qty           decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"qty"`
	MoveType      StockMoveType   `gorm:"type:enum('sale','sale_return','receipt','adjustment','transfer_in','transfer_out');not null" json:"move_type"`
	SourceDocType string          `gorm:"size:40;index:idx_move_source,priority:1" json:"source_doc_type"`
	SourceDocId   string          `gorm:"size:36;index:idx_move_source,priority:2" json:"source_doc_id"`
	MovedAt       time.Time       `gorm:"index;not null" json:"moved_at"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime;index" json:"updated_at"`
}

// Append-only ledger: moves are corrected by compensating moves, never edited.
func (m *StockMove) BeforeUpdate(tx *gorm.DB) error {
	return errors.New("immutable ledger: stock_moves cannot be updated")
}

func (m *StockMove) BeforeDelete(tx *gorm.DB) error {
	return errors.New("immutable ledger: stock_moves cannot be deleted")
}

// OnHandTx sums the ledger for an item at a warehouse, optionally per batch.
func OnHandTx(tx *gorm.DB, businessId string, itemId string, warehouseId string, batchId *string) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	q := tx.Model(&StockMove{}).
		Select("SUM(qty)").
		Where("business_id = ? AND item_id = ? AND warehouse_id = ?", businessId, itemId, warehouseId)
	if batchId != nil {
		q = q.Where("batch_id = ?", *batchId)
	}
	if err := q.Scan(&total).Error; err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

// UnbatchedOnHandTx sums ledger rows with no batch reference.
func UnbatchedOnHandTx(tx *gorm.DB, businessId string, itemId string, warehouseId string) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := tx.Model(&StockMove{}).
		Select("SUM(qty)").
		Where("business_id = ? AND item_id = ? AND warehouse_id = ? AND batch_id IS NULL", businessId, itemId, warehouseId).
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}
