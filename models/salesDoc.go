package models

import (
	"time"

	"github.com/cedarpos/pos_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SalesDoc is a posted POS sale or return. The id is edge-authoritative:
// devices generate it offline and the cloud adopts it on import.
type SalesDoc struct {
	ID         string       `gorm:"primary_key;size:36" json:"id"`
	BusinessId string       `gorm:"size:64;index;not null;uniqueIndex:uniq_sales_source,priority:1;index:idx_sales_shift,priority:1" json:"business_id"`
	BranchId   string       `gorm:"size:36;index" json:"branch_id"`
	DeviceId   string       `gorm:"size:36;index" json:"device_id"`
	DocNo      string       `gorm:"size:64;index" json:"doc_no"`
	DocType    SalesDocType `gorm:"type:enum('sale','sale_return');not null" json:"doc_type"`
	// Outbox event that produced this document; processors are idempotent on it.
	SourceEventId *string           `gorm:"size:36;uniqueIndex:uniq_sales_source,priority:2" json:"source_event_id"`
	OriginalDocId *string           `gorm:"size:36;index" json:"original_doc_id"`
	CustomerId    *string           `gorm:"size:36;index" json:"customer_id"`
	ShiftId       *string           `gorm:"size:36;index:idx_sales_shift,priority:2" json:"shift_id"`
	DocDate       time.Time         `gorm:"index;not null" json:"doc_date"`
	ExchangeRate  decimal.Decimal   `gorm:"type:decimal(20,6);default:0" json:"exchange_rate"`
	SubtotalUsd   decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"subtotal_usd"`
	SubtotalLbp   decimal.Decimal   `gorm:"type:decimal(20,2);default:0" json:"subtotal_lbp"`
	TaxTotalUsd   decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"tax_total_usd"`
	TaxTotalLbp   decimal.Decimal   `gorm:"type:decimal(20,2);default:0" json:"tax_total_lbp"`
	TotalUsd      decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"total_usd"`
	TotalLbp      decimal.Decimal   `gorm:"type:decimal(20,2);default:0" json:"total_lbp"`
	RestockFeeUsd *decimal.Decimal  `gorm:"type:decimal(20,4)" json:"restock_fee_usd"`
	RestockFeeLbp *decimal.Decimal  `gorm:"type:decimal(20,2)" json:"restock_fee_lbp"`
	Status        DocStatus         `gorm:"type:enum('posted','voided');default:'posted'" json:"status"`
	Lines         []SalesDocLine    `gorm:"foreignKey:SalesDocId" json:"lines"`
	Payments      []SalesDocPayment `gorm:"foreignKey:SalesDocId" json:"payments"`
	TaxLines      []SalesDocTaxLine `gorm:"foreignKey:SalesDocId" json:"tax_lines"`
	// Edge deployments stamp this once the doc reaches the cloud; cloud rows keep it NULL.
	SyncedAt  *time.Time `gorm:"index" json:"synced_at"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime;index" json:"updated_at"`
}

type SalesDocLine struct {
	ID         string `gorm:"primary_key;size:36" json:"id"`
	BusinessId string `gorm:"size:64;index;not null" json:"business_id"`
	SalesDocId string `gorm:"size:36;index;not null" json:"sales_doc_id"`
	ItemId     string `gorm:"size:36;index;not null" json:"item_id"`
	UomId      string `gorm:"size:36" json:"uom_id"`
	// QtyEntered * ToBaseFactor == QtyBase, checked on ingest.
	QtyEntered   decimal.Decimal `gorm:"type:decimal(20,6);default:0" json:"qty_entered"`
	ToBaseFactor decimal.Decimal `gorm:"type:decimal(20,6);default:1" json:"to_base_factor"`
	QtyBase      decimal.Decimal `gorm:"type:decimal(20,6);default:0" json:"qty_base"`
	UnitPriceUsd decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_price_usd"`
	UnitPriceLbp decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"unit_price_lbp"`
	DiscountUsd  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"discount_usd"`
	DiscountLbp  decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"discount_lbp"`
	TaxAmountUsd decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"tax_amount_usd"`
	TaxAmountLbp decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"tax_amount_lbp"`
	LineTotalUsd decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"line_total_usd"`
	LineTotalLbp decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"line_total_lbp"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type SalesDocPayment struct {
	ID              string          `gorm:"primary_key;size:36" json:"id"`
	BusinessId      string          `gorm:"size:64;index;not null" json:"business_id"`
	SalesDocId      string          `gorm:"size:36;index;not null" json:"sales_doc_id"`
	PaymentMethodId string          `gorm:"size:36;index;not null" json:"payment_method_id"`
	AmountUsd       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount_usd"`
	AmountLbp       decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"amount_lbp"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type SalesDocTaxLine struct {
	ID         string          `gorm:"primary_key;size:36" json:"id"`
	BusinessId string          `gorm:"size:64;index;not null" json:"business_id"`
	SalesDocId string          `gorm:"size:36;index;not null" json:"sales_doc_id"`
	TaxCode    string          `gorm:"size:40;not null" json:"tax_code"`
	BaseUsd    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"base_usd"`
	BaseLbp    decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"base_lbp"`
	AmountUsd  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount_usd"`
	AmountLbp  decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"amount_lbp"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// FindSalesDocBySourceEventTx is the processor idempotency lookup.
func FindSalesDocBySourceEventTx(tx *gorm.DB, businessId string, eventId string) (*SalesDoc, error) {
	var doc SalesDoc
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

func GetSalesDocTx(tx *gorm.DB, businessId string, id string) (*SalesDoc, error) {
	var doc SalesDoc
	err := tx.Preload("Lines").Preload("Payments").Preload("TaxLines").
		Where("business_id = ? AND id = ?", businessId, id).
		First(&doc).Error
	if err == gorm.ErrRecordNotFound {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// CashSalesTotalsTx sums cash-method payments on posted docs of a shift.
// Sales add to the drawer, returns take from it; both are returned separately.
func CashSalesTotalsTx(tx *gorm.DB, businessId string, shiftId string, cashMethodIds map[string]bool) (salesUsd, salesLbp, refundsUsd, refundsLbp decimal.Decimal, err error) {
	salesUsd, salesLbp = decimal.Zero, decimal.Zero
	refundsUsd, refundsLbp = decimal.Zero, decimal.Zero
	// An empty cash-method set means no payment counts toward the drawer.
	if len(cashMethodIds) == 0 {
		return
	}

	type row struct {
		DocType   SalesDocType
		MethodId  string
		AmountUsd decimal.Decimal
		AmountLbp decimal.Decimal
	}
	var rows []row
	err = tx.Model(&SalesDocPayment{}).
		Select("sales_docs.doc_type AS doc_type, sales_doc_payments.payment_method_id AS method_id, sales_doc_payments.amount_usd AS amount_usd, sales_doc_payments.amount_lbp AS amount_lbp").
		Joins("JOIN sales_docs ON sales_docs.id = sales_doc_payments.sales_doc_id").
		Where("sales_docs.business_id = ? AND sales_docs.shift_id = ? AND sales_docs.status = ?",
			businessId, shiftId, DocStatusPosted).
		Scan(&rows).Error
	if err != nil {
		return
	}

	for _, r := range rows {
		if !cashMethodIds[r.MethodId] {
			continue
		}
		if r.DocType == SalesDocTypeSaleReturn {
			refundsUsd = refundsUsd.Add(r.AmountUsd)
			refundsLbp = refundsLbp.Add(r.AmountLbp)
		} else {
			salesUsd = salesUsd.Add(r.AmountUsd)
			salesLbp = salesLbp.Add(r.AmountLbp)
		}
	}
	return
}
