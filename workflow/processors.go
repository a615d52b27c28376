package workflow

import (
	"context"

	"github.com/cedarpos/pos_backend/models"
	"github.com/cedarpos/pos_backend/utils"
	"gorm.io/gorm"
)

// DocumentRef points at the document a processed event produced.
type DocumentRef struct {
	DocType string `json:"doc_type"`
	DocId   string `json:"doc_id"`
}

const (
	DocRefTypeSale            = "sales_doc"
	DocRefTypeGoodsReceipt    = "goods_receipt"
	DocRefTypePurchaseInvoice = "purchase_invoice"
	DocRefTypeCashMovement    = "cash_movement"
)

// processEvent routes one claimed event to its document processor. It runs
// inside the caller's transaction; every processor is idempotent on
// source_event_id, so replaying a processed event returns the existing
// document instead of posting twice.
func processEvent(ctx context.Context, tx *gorm.DB, event *models.OutboxEvent) (*DocumentRef, error) {
	eventType, err := models.ParsePosEventType(string(event.EventType))
	if err != nil {
		return nil, utils.NewValidationError("%s", err.Error())
	}

	switch eventType {
	case models.PosEventTypeSaleCompleted:
		return processSale(ctx, tx, event)
	case models.PosEventTypeSaleReturned:
		return processSaleReturn(ctx, tx, event)
	case models.PosEventTypeCashMovement:
		return processCashMovement(ctx, tx, event)
	case models.PosEventTypeGoodsReceived:
		return processGoodsReceipt(ctx, tx, event)
	case models.PosEventTypePurchaseInvoice:
		return processPurchaseInvoice(ctx, tx, event)
	}
	return nil, utils.NewValidationError("no processor for event type %s", event.EventType)
}
