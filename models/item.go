package models

import (
	"time"

	"github.com/cedarpos/pos_backend/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Item struct {
	ID           string `gorm:"primary_key;size:36" json:"id"`
	BusinessId   string `gorm:"size:64;index;not null;uniqueIndex:uniq_item_sku,priority:1" json:"business_id"`
	Sku          string `gorm:"size:64;not null;uniqueIndex:uniq_item_sku,priority:2" json:"sku" binding:"required"`
	Name         string `gorm:"size:255;not null" json:"name" binding:"required"`
	BaseUomId    string `gorm:"size:36;not null" json:"base_uom_id"`
	TrackBatches bool   `gorm:"not null;default:false" json:"track_batches"`
	TrackExpiry  bool   `gorm:"not null;default:false" json:"track_expiry"`
	// Days of shelf life a batch must retain to be sellable. The stricter of
	// item and warehouse wins at allocation time.
	MinShelfLifeDaysForSale int `gorm:"not null;default:0" json:"min_shelf_life_days_for_sale"`
	// nil inherits the business default.
	AllowNegativeStock *bool           `json:"allow_negative_stock"`
	SalesPriceUsd      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"sales_price_usd"`
	SalesPriceLbp      decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"sales_price_lbp"`
	LastCostUsd        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"last_cost_usd"`
	LastCostLbp        decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"last_cost_lbp"`
	TaxCode            string          `gorm:"size:40" json:"tax_code"`
	IsActive           *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt          time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"autoUpdateTime;index" json:"updated_at"`
}

type Uom struct {
	ID         string    `gorm:"primary_key;size:36" json:"id"`
	BusinessId string    `gorm:"size:64;index;not null" json:"business_id"`
	Name       string    `gorm:"size:50;not null" json:"name" binding:"required"`
	Precision  int       `gorm:"not null;default:0" json:"precision"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime;index" json:"updated_at"`
}

type UomConversion struct {
	ID         string `gorm:"primary_key;size:36" json:"id"`
	BusinessId string `gorm:"size:64;index;not null" json:"business_id"`
	ItemId     string `gorm:"size:36;not null;uniqueIndex:uniq_item_uom,priority:1" json:"item_id"`
	UomId      string `gorm:"size:36;not null;uniqueIndex:uniq_item_uom,priority:2" json:"uom_id"`
	// Multiplying an entered quantity by this factor yields base units. Must be > 0.
	ToBaseFactor decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"to_base_factor"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime;index" json:"updated_at"`
}

type Warehouse struct {
	ID                      string    `gorm:"primary_key;size:36" json:"id"`
	BusinessId              string    `gorm:"size:64;index;not null" json:"business_id"`
	BranchId                string    `gorm:"size:36;index" json:"branch_id"`
	Name                    string    `gorm:"size:100;not null" json:"name" binding:"required"`
	MinShelfLifeDaysForSale int       `gorm:"not null;default:0" json:"min_shelf_life_days_for_sale"`
	AllowNegativeStock      bool      `gorm:"not null;default:false" json:"allow_negative_stock"`
	IsActive                *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt               time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt               time.Time `gorm:"autoUpdateTime;index" json:"updated_at"`
}

type StockLocation struct {
	ID          string    `gorm:"primary_key;size:36" json:"id"`
	BusinessId  string    `gorm:"size:64;index;not null" json:"business_id"`
	WarehouseId string    `gorm:"size:36;index;not null" json:"warehouse_id"`
	Code        string    `gorm:"size:50;not null" json:"code"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime;index" json:"updated_at"`
}

type ItemBatch struct {
	ID         string `gorm:"primary_key;size:36" json:"id"`
	BusinessId string `gorm:"size:64;index;not null;uniqueIndex:uniq_item_batch,priority:1" json:"business_id"`
	ItemId     string `gorm:"size:36;not null;uniqueIndex:uniq_item_batch,priority:2" json:"item_id"`
	BatchNo    string `gorm:"size:64;not null;uniqueIndex:uniq_item_batch,priority:3" json:"batch_no"`
	// nil expiry sorts last at allocation time (non-perishable batch rows).
	ExpiryDate *time.Time      `gorm:"type:date;index" json:"expiry_date"`
	Status     BatchStatus     `gorm:"type:enum('available','blocked','expired');default:'available'" json:"status"`
	CostUsd    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"cost_usd"`
	CostLbp    decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"cost_lbp"`
	ReceivedAt time.Time       `gorm:"index" json:"received_at"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime;index" json:"updated_at"`
}

func GetItemTx(tx *gorm.DB, businessId string, id string) (*Item, error) {
	var item Item
	err := tx.Where("business_id = ? AND id = ?", businessId, id).First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func GetWarehouseTx(tx *gorm.DB, businessId string, id string) (*Warehouse, error) {
	var wh Warehouse
	err := tx.Where("business_id = ? AND id = ?", businessId, id).First(&wh).Error
	if err == gorm.ErrRecordNotFound {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &wh, nil
}

// AllowNegativeStockFor resolves the oversell override. Warehouse setting wins,
// then item, then the business default.
func AllowNegativeStockFor(business *Business, item *Item, warehouse *Warehouse) bool {
	if warehouse != nil && warehouse.AllowNegativeStock {
		return true
	}
	if item != nil && item.AllowNegativeStock != nil {
		return *item.AllowNegativeStock
	}
	if business != nil {
		return business.DefaultAllowNegativeStock
	}
	return false
}

// MinShelfLifeDaysFor takes the stricter of the item and warehouse gates.
func MinShelfLifeDaysFor(item *Item, warehouse *Warehouse) int {
	days := 0
	if item != nil && item.MinShelfLifeDaysForSale > days {
		days = item.MinShelfLifeDaysForSale
	}
	if warehouse != nil && warehouse.MinShelfLifeDaysForSale > days {
		days = warehouse.MinShelfLifeDaysForSale
	}
	return days
}

// GetOrCreateStockLocationTx resolves a bin code inside a warehouse, creating
// the row on first sight.
func GetOrCreateStockLocationTx(tx *gorm.DB, businessId string, warehouseId string, code string) (*StockLocation, error) {
	var loc StockLocation
	err := tx.Where("business_id = ? AND warehouse_id = ? AND code = ?", businessId, warehouseId, code).
		First(&loc).Error
	if err == nil {
		return &loc, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	loc = StockLocation{
		ID:          uuid.NewString(),
		BusinessId:  businessId,
		WarehouseId: warehouseId,
		Code:        code,
	}
	if err := tx.Create(&loc).Error; err != nil {
		return nil, err
	}
	return &loc, nil
}

// FindItemBatchTx looks up a batch by its business-visible number.
func FindItemBatchTx(tx *gorm.DB, businessId string, itemId string, batchNo string) (*ItemBatch, error) {
	var batch ItemBatch
	err := tx.Where("business_id = ? AND item_id = ? AND batch_no = ?", businessId, itemId, batchNo).
		First(&batch).Error
	if err == gorm.ErrRecordNotFound {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

// GetOrCreateItemBatchTx reuses the batch keyed by (item, batch_no) or creates
// it. Replayed receipts race on the unique index; losers read the winner back.
func GetOrCreateItemBatchTx(tx *gorm.DB, businessId string, itemId string, batchNo string, expiryDate *time.Time, costUsd, costLbp decimal.Decimal, receivedAt time.Time) (*ItemBatch, error) {
	batch, err := FindItemBatchTx(tx, businessId, itemId, batchNo)
	if err == nil {
		return batch, nil
	}
	if err != utils.ErrorRecordNotFound {
		return nil, err
	}

	created := ItemBatch{
		ID:         uuid.NewString(),
		BusinessId: businessId,
		ItemId:     itemId,
		BatchNo:    batchNo,
		ExpiryDate: expiryDate,
		Status:     BatchStatusAvailable,
		CostUsd:    costUsd,
		CostLbp:    costLbp,
		ReceivedAt: receivedAt,
	}
	result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&created)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return FindItemBatchTx(tx, businessId, itemId, batchNo)
	}
	return &created, nil
}

// GetUomConversionTx looks up the item-specific conversion for a uom.
func GetUomConversionTx(tx *gorm.DB, businessId string, itemId string, uomId string) (*UomConversion, error) {
	var conv UomConversion
	err := tx.Where("business_id = ? AND item_id = ? AND uom_id = ?", businessId, itemId, uomId).
		First(&conv).Error
	if err == gorm.ErrRecordNotFound {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}
