package models

import (
	"errors"
)

// PosEventType identifies what a device-submitted outbox event carries.
type PosEventType string

const (
	PosEventTypeSaleCompleted   PosEventType = "sale_completed"
	PosEventTypeSaleReturned    PosEventType = "sale_returned"
	PosEventTypeCashMovement    PosEventType = "cash_movement"
	PosEventTypeGoodsReceived   PosEventType = "goods_received"
	PosEventTypePurchaseInvoice PosEventType = "purchase_invoice"
)

func ParsePosEventType(s string) (PosEventType, error) {
	switch PosEventType(s) {
	case PosEventTypeSaleCompleted,
		PosEventTypeSaleReturned,
		PosEventTypeCashMovement,
		PosEventTypeGoodsReceived,
		PosEventTypePurchaseInvoice:
		return PosEventType(s), nil
	default:
		return "", errors.New("unknown event type: " + s)
	}
}

// OutboxEventStatus is the processing state of a pos_outbox_events row.
type OutboxEventStatus string

const (
	OutboxEventStatusPending   OutboxEventStatus = "pending"
	OutboxEventStatusProcessed OutboxEventStatus = "processed"
	OutboxEventStatusFailed    OutboxEventStatus = "failed"
	OutboxEventStatusDead      OutboxEventStatus = "dead"
)

type SalesDocType string

const (
	SalesDocTypeSale       SalesDocType = "sale"
	SalesDocTypeSaleReturn SalesDocType = "sale_return"
)

type DocStatus string

const (
	DocStatusPosted DocStatus = "posted"
	DocStatusVoided DocStatus = "voided"
)

type ShiftStatus string

const (
	ShiftStatusOpen   ShiftStatus = "open"
	ShiftStatusClosed ShiftStatus = "closed"
)

// CashMovementType classifies drawer movements. Everything except cash_in
// reduces the expected drawer balance.
type CashMovementType string

const (
	CashMovementTypeCashIn   CashMovementType = "cash_in"
	CashMovementTypeCashOut  CashMovementType = "cash_out"
	CashMovementTypePaidOut  CashMovementType = "paid_out"
	CashMovementTypeSafeDrop CashMovementType = "safe_drop"
	CashMovementTypeOther    CashMovementType = "other"
)

func ParseCashMovementType(s string) (CashMovementType, error) {
	switch CashMovementType(s) {
	case CashMovementTypeCashIn,
		CashMovementTypeCashOut,
		CashMovementTypePaidOut,
		CashMovementTypeSafeDrop,
		CashMovementTypeOther:
		return CashMovementType(s), nil
	default:
		return "", errors.New("unknown cash movement type: " + s)
	}
}

type BatchStatus string

const (
	BatchStatusAvailable BatchStatus = "available"
	BatchStatusBlocked   BatchStatus = "blocked"
	BatchStatusExpired   BatchStatus = "expired"
)

type StockMoveType string

const (
	StockMoveTypeSale        StockMoveType = "sale"
	StockMoveTypeSaleReturn  StockMoveType = "sale_return"
	StockMoveTypeReceipt     StockMoveType = "receipt"
	StockMoveTypeAdjustment  StockMoveType = "adjustment"
	StockMoveTypeTransferIn  StockMoveType = "transfer_in"
	StockMoveTypeTransferOut StockMoveType = "transfer_out"
)

type DeviceStatus string

const (
	DeviceStatusActive  DeviceStatus = "active"
	DeviceStatusRevoked DeviceStatus = "revoked"
)

// PaymentMethodRole drives GL account selection and cash-drawer math.
type PaymentMethodRole string

const (
	PaymentMethodRoleCash   PaymentMethodRole = "CASH"
	PaymentMethodRoleCard   PaymentMethodRole = "CARD"
	PaymentMethodRoleCredit PaymentMethodRole = "CREDIT"
	PaymentMethodRoleOther  PaymentMethodRole = "OTHER"
)

// GL account codes. Fixed chart; back office maps codes to its own ledger.
const (
	AccountCashOnHand          = "CASH_ON_HAND"
	AccountCardClearing        = "CARD_CLEARING"
	AccountAccountsReceivable  = "ACCOUNTS_RECEIVABLE"
	AccountSales               = "SALES"
	AccountSalesReturns        = "SALES_RETURNS"
	AccountVatPayable          = "VAT_PAYABLE"
	AccountVatRecoverable      = "VAT_RECOVERABLE"
	AccountCogs                = "COGS"
	AccountInventory           = "INVENTORY"
	AccountGrni                = "GRNI"
	AccountAccountsPayable     = "ACCOUNTS_PAYABLE"
	AccountRestockingFeeIncome = "RESTOCKING_FEE_INCOME"
	AccountCashOverShort       = "CASH_OVER_SHORT"
)

// ExportEntity keys the edge replication query-builder table.
type ExportEntity string

const (
	ExportEntityItems          ExportEntity = "items"
	ExportEntityUoms           ExportEntity = "uoms"
	ExportEntityUomConversions ExportEntity = "uom_conversions"
	ExportEntityItemBatches    ExportEntity = "item_batches"
	ExportEntityWarehouses     ExportEntity = "warehouses"
	ExportEntityStockLocations ExportEntity = "stock_locations"
	ExportEntityCustomers      ExportEntity = "customers"
	ExportEntityPaymentMethods ExportEntity = "payment_methods"
	ExportEntityExchangeRates  ExportEntity = "exchange_rates"
	ExportEntityBranches       ExportEntity = "branches"
	ExportEntityDevices        ExportEntity = "devices"
)

// ExportEntityPullOrder is the order an edge node replicates entities in.
// Parents come before the rows that reference them; customers last because
// their balances churn the most.
var ExportEntityPullOrder = []ExportEntity{
	ExportEntityUoms,
	ExportEntityItems,
	ExportEntityUomConversions,
	ExportEntityBranches,
	ExportEntityWarehouses,
	ExportEntityStockLocations,
	ExportEntityItemBatches,
	ExportEntityPaymentMethods,
	ExportEntityExchangeRates,
	ExportEntityDevices,
	ExportEntityCustomers,
}

func ParseExportEntity(s string) (ExportEntity, error) {
	switch ExportEntity(s) {
	case ExportEntityItems,
		ExportEntityUoms,
		ExportEntityUomConversions,
		ExportEntityItemBatches,
		ExportEntityWarehouses,
		ExportEntityStockLocations,
		ExportEntityCustomers,
		ExportEntityPaymentMethods,
		ExportEntityExchangeRates,
		ExportEntityBranches,
		ExportEntityDevices:
		return ExportEntity(s), nil
	default:
		return "", errors.New("unknown export entity: " + s)
	}
}
