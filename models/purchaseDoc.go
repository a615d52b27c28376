package models

import (
	"time"

	"github.com/cedarpos/pos_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GoodsReceipt records supplier inbound stock. Receipt lines create or reuse
// item batches and append positive stock moves.
type GoodsReceipt struct {
	ID            string             `gorm:"primary_key;size:36" json:"id"`
	BusinessId    string             `gorm:"size:64;index;not null;uniqueIndex:uniq_receipt_source,priority:1" json:"business_id"`
	BranchId      string             `gorm:"size:36;index" json:"branch_id"`
	WarehouseId   string             `gorm:"size:36;index;not null" json:"warehouse_id"`
	SupplierName  string             `gorm:"size:255" json:"supplier_name"`
	DocNo         string             `gorm:"size:64;index" json:"doc_no"`
	SourceEventId *string            `gorm:"size:36;uniqueIndex:uniq_receipt_source,priority:2" json:"source_event_id"`
	DocDate       time.Time          `gorm:"index;not null" json:"doc_date"`
	ExchangeRate  decimal.Decimal    `gorm:"type:decimal(20,6);default:0" json:"exchange_rate"`
	TotalCostUsd  decimal.Decimal    `gorm:"type:decimal(20,4);default:0" json:"total_cost_usd"`
	TotalCostLbp  decimal.Decimal    `gorm:"type:decimal(20,2);default:0" json:"total_cost_lbp"`
	Status        DocStatus          `gorm:"type:enum('posted','voided');default:'posted'" json:"status"`
	Lines         []GoodsReceiptLine `gorm:"foreignKey:GoodsReceiptId" json:"lines"`
	CreatedAt     time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time          `gorm:"autoUpdateTime;index" json:"updated_at"`
}

type GoodsReceiptLine struct {
	ID             string          `gorm:"primary_key;size:36" json:"id"`
	BusinessId     string          `gorm:"size:64;index;not null" json:"business_id"`
	GoodsReceiptId string          `gorm:"size:36;index;not null" json:"goods_receipt_id"`
	ItemId         string          `gorm:"size:36;index;not null" json:"item_id"`
	UomId          string          `gorm:"size:36" json:"uom_id"`
	QtyEntered     decimal.Decimal `gorm:"type:decimal(20,6);default:0" json:"qty_entered"`
	ToBaseFactor   decimal.Decimal `gorm:"type:decimal(20,6);default:1" json:"to_base_factor"`
	QtyBase        decimal.Decimal `gorm:"type:decimal(20,6);default:0" json:"qty_base"`
	BatchNo        *string         `gorm:"size:64" json:"batch_no"`
	ExpiryDate     *time.Time      `gorm:"type:date" json:"expiry_date"`
	UnitCostUsd    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_cost_usd"`
	UnitCostLbp    decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"unit_cost_lbp"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// PurchaseInvoice is the supplier bill matched against received goods.
// No stock effect; GL moves GRNI to accounts payable.
type PurchaseInvoice struct {
	ID            string                `gorm:"primary_key;size:36" json:"id"`
	BusinessId    string                `gorm:"size:64;index;not null;uniqueIndex:uniq_pinv_source,priority:1" json:"business_id"`
	BranchId      string                `gorm:"size:36;index" json:"branch_id"`
	SupplierName  string                `gorm:"size:255" json:"supplier_name"`
	DocNo         string                `gorm:"size:64;index" json:"doc_no"`
	SourceEventId *string               `gorm:"size:36;uniqueIndex:uniq_pinv_source,priority:2" json:"source_event_id"`
	ReceiptIds    string                `gorm:"type:text" json:"receipt_ids"`
	DocDate       time.Time             `gorm:"index;not null" json:"doc_date"`
	ExchangeRate  decimal.Decimal       `gorm:"type:decimal(20,6);default:0" json:"exchange_rate"`
	SubtotalUsd   decimal.Decimal       `gorm:"type:decimal(20,4);default:0" json:"subtotal_usd"`
	SubtotalLbp   decimal.Decimal       `gorm:"type:decimal(20,2);default:0" json:"subtotal_lbp"`
	TaxTotalUsd   decimal.Decimal       `gorm:"type:decimal(20,4);default:0" json:"tax_total_usd"`
	TaxTotalLbp   decimal.Decimal       `gorm:"type:decimal(20,2);default:0" json:"tax_total_lbp"`
	TotalUsd      decimal.Decimal       `gorm:"type:decimal(20,4);default:0" json:"total_usd"`
	TotalLbp      decimal.Decimal       `gorm:"type:decimal(20,2);default:0" json:"total_lbp"`
	Status        DocStatus             `gorm:"type:enum('posted','voided');default:'posted'" json:"status"`
	Lines         []PurchaseInvoiceLine `gorm:"foreignKey:PurchaseInvoiceId" json:"lines"`
	CreatedAt     time.Time             `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time             `gorm:"autoUpdateTime;index" json:"updated_at"`
}

type PurchaseInvoiceLine struct {
	ID                string          `gorm:"primary_key;size:36" json:"id"`
	BusinessId        string          `gorm:"size:64;index;not null" json:"business_id"`
	PurchaseInvoiceId string          `gorm:"size:36;index;not null" json:"purchase_invoice_id"`
	ItemId            *string         `gorm:"size:36;index" json:"item_id"`
	Description       string          `gorm:"size:255" json:"description"`
	Qty               decimal.Decimal `gorm:"type:decimal(20,6);default:0" json:"qty"`
	UnitCostUsd       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_cost_usd"`
	UnitCostLbp       decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"unit_cost_lbp"`
	TaxAmountUsd      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"tax_amount_usd"`
	TaxAmountLbp      decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"tax_amount_lbp"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func FindGoodsReceiptBySourceEventTx(tx *gorm.DB, businessId string, eventId string) (*GoodsReceipt, error) {
	var doc GoodsReceipt
	err := tx.Where("business_id = ? AND source_event_id = ?", businessId, eventId).
		First(&doc).Error
	if err == gorm.ErrRecordNotFound {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func FindPurchaseInvoiceBySourceEventTx(tx *gorm.DB, businessId string, eventId string) (*PurchaseInvoice, error) {
	var doc PurchaseInvoice
	err := tx.Where("business_id = ? AND source_event_id = ?", businessId, eventId).
		First(&doc).Error
	if err == gorm.ErrRecordNotFound {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}
