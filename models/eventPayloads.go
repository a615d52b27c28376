package models

import (
	"time"

	"github.com/cedarpos/pos_backend/utils"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var payloadValidator = validator.New()

// DecodePayload parses a raw outbox payload into its typed form and runs
// struct validation. Malformed payloads come back as ValidationError so the
// state machine records them as attempt failures.
func DecodePayload[T any](raw []byte) (*T, error) {
	var payload T
	if err := utils.UnmarshalFromJSON(raw, &payload); err != nil {
		return nil, utils.NewValidationError("malformed payload: %s", err.Error())
	}
	if err := payloadValidator.Struct(&payload); err != nil {
		return nil, utils.NewValidationError("invalid payload: %s", err.Error())
	}
	return &payload, nil
}

// ParseDateOnly reads an ISO date, tolerating a trailing timestamp.
func ParseDateOnly(s string) (time.Time, error) {
	if len(s) > 10 {
		s = s[:10]
	}
	return time.Parse("2006-01-02", s)
}

// ResolveDocDate picks the business date for a document: payload date when
// parseable, otherwise the event's occurred_at day.
func ResolveDocDate(raw string, occurredAt time.Time) time.Time {
	if raw != "" {
		if d, err := ParseDateOnly(raw); err == nil {
			return d
		}
	}
	return occurredAt.Truncate(24 * time.Hour)
}

type SaleLinePayload struct {
	ItemId     string  `json:"item_id" validate:"required"`
	UomId      *string `json:"uom_id"`
	// Qty is in the item's base unit. QtyEntered/QtyFactor, when present, must
	// reconcile with it through the item's conversion table.
	Qty          decimal.Decimal  `json:"qty"`
	QtyEntered   *decimal.Decimal `json:"qty_entered"`
	QtyFactor    *decimal.Decimal `json:"qty_factor"`
	UnitPriceUsd decimal.Decimal  `json:"unit_price_usd"`
	UnitPriceLbp decimal.Decimal  `json:"unit_price_lbp"`
	DiscountUsd  decimal.Decimal  `json:"discount_usd"`
	DiscountLbp  decimal.Decimal  `json:"discount_lbp"`
	TaxUsd       decimal.Decimal  `json:"tax_usd"`
	TaxLbp       decimal.Decimal  `json:"tax_lbp"`
	LineTotalUsd decimal.Decimal  `json:"line_total_usd"`
	LineTotalLbp decimal.Decimal  `json:"line_total_lbp"`
	UnitCostUsd  decimal.Decimal  `json:"unit_cost_usd"`
	UnitCostLbp  decimal.Decimal  `json:"unit_cost_lbp"`
	// Explicit lot request; bypasses FEFO for this line.
	BatchNo    *string `json:"batch_no"`
	ExpiryDate *string `json:"expiry_date"`
}

type PaymentPayload struct {
	PaymentMethodId string          `json:"payment_method_id" validate:"required"`
	AmountUsd       decimal.Decimal `json:"amount_usd"`
	AmountLbp       decimal.Decimal `json:"amount_lbp"`
}

type TaxLinePayload struct {
	TaxCode   string          `json:"tax_code" validate:"required"`
	BaseUsd   decimal.Decimal `json:"base_usd"`
	BaseLbp   decimal.Decimal `json:"base_lbp"`
	AmountUsd decimal.Decimal `json:"amount_usd"`
	AmountLbp decimal.Decimal `json:"amount_lbp"`
}

type SalePayload struct {
	DocNo          string            `json:"doc_no"`
	DocDate        string            `json:"doc_date"`
	BranchId       string            `json:"branch_id"`
	WarehouseId    string            `json:"warehouse_id" validate:"required"`
	CustomerId     *string           `json:"customer_id"`
	ShiftId        *string           `json:"shift_id"`
	ExchangeRate   decimal.Decimal   `json:"exchange_rate"`
	Lines          []SaleLinePayload `json:"lines" validate:"required,min=1,dive"`
	Payments       []PaymentPayload  `json:"payments" validate:"dive"`
	TaxLines       []TaxLinePayload  `json:"tax_lines" validate:"dive"`
	LoyaltyPoints  *decimal.Decimal  `json:"loyalty_points"`
	SkipStockMoves bool              `json:"skip_stock_moves"`
}

type SaleReturnPayload struct {
	DocNo            string            `json:"doc_no"`
	DocDate          string            `json:"doc_date"`
	BranchId         string            `json:"branch_id"`
	WarehouseId      string            `json:"warehouse_id" validate:"required"`
	OriginalDocId    *string           `json:"original_doc_id"`
	CustomerId       *string           `json:"customer_id"`
	ShiftId          *string           `json:"shift_id"`
	ExchangeRate     decimal.Decimal   `json:"exchange_rate"`
	Lines            []SaleLinePayload `json:"lines" validate:"required,min=1,dive"`
	Payments         []PaymentPayload  `json:"payments" validate:"dive"`
	TaxLines         []TaxLinePayload  `json:"tax_lines" validate:"dive"`
	RestockingFeeUsd decimal.Decimal   `json:"restocking_fee_usd"`
	RestockingFeeLbp decimal.Decimal   `json:"restocking_fee_lbp"`
	LoyaltyPoints    *decimal.Decimal  `json:"loyalty_points"`
	Reason           string            `json:"reason"`
	SkipStockMoves   bool              `json:"skip_stock_moves"`
}

type CashMovementPayload struct {
	MovementType string          `json:"movement_type" validate:"required"`
	AmountUsd    decimal.Decimal `json:"amount_usd"`
	AmountLbp    decimal.Decimal `json:"amount_lbp"`
	ShiftId      *string         `json:"shift_id"`
	Reason       string          `json:"reason"`
}

type ReceiptLinePayload struct {
	ItemId       string           `json:"item_id" validate:"required"`
	UomId        *string          `json:"uom_id"`
	Qty          decimal.Decimal  `json:"qty"`
	QtyEntered   *decimal.Decimal `json:"qty_entered"`
	QtyFactor    *decimal.Decimal `json:"qty_factor"`
	BatchNo      *string          `json:"batch_no"`
	ExpiryDate   *string          `json:"expiry_date"`
	UnitCostUsd  decimal.Decimal  `json:"unit_cost_usd"`
	UnitCostLbp  decimal.Decimal  `json:"unit_cost_lbp"`
	LocationCode *string          `json:"location_code"`
}

type GoodsReceiptPayload struct {
	DocNo        string               `json:"doc_no"`
	DocDate      string               `json:"doc_date"`
	BranchId     string               `json:"branch_id"`
	WarehouseId  string               `json:"warehouse_id" validate:"required"`
	SupplierName string               `json:"supplier_name"`
	ExchangeRate decimal.Decimal      `json:"exchange_rate"`
	Lines        []ReceiptLinePayload `json:"lines" validate:"required,min=1,dive"`
}

type PurchaseInvoiceLinePayload struct {
	ItemId      *string         `json:"item_id"`
	Description string          `json:"description"`
	Qty         decimal.Decimal `json:"qty"`
	UnitCostUsd decimal.Decimal `json:"unit_cost_usd"`
	UnitCostLbp decimal.Decimal `json:"unit_cost_lbp"`
	TaxUsd      decimal.Decimal `json:"tax_usd"`
	TaxLbp      decimal.Decimal `json:"tax_lbp"`
}

type PurchaseInvoicePayload struct {
	DocNo        string                       `json:"doc_no"`
	DocDate      string                       `json:"doc_date"`
	BranchId     string                       `json:"branch_id"`
	SupplierName string                       `json:"supplier_name"`
	ReceiptIds   []string                     `json:"receipt_ids"`
	ExchangeRate decimal.Decimal              `json:"exchange_rate"`
	Lines        []PurchaseInvoiceLinePayload `json:"lines" validate:"required,min=1,dive"`
}
