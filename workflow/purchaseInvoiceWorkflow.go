package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/cedarpos/pos_backend/models"
	"github.com/cedarpos/pos_backend/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// processPurchaseInvoice posts the supplier bill matched against received
// goods. No stock effect; the journal clears GRNI into accounts payable and
// books recoverable VAT.
func processPurchaseInvoice(ctx context.Context, tx *gorm.DB, event *models.OutboxEvent) (*DocumentRef, error) {
	businessId := event.BusinessId

	existing, err := models.FindPurchaseInvoiceBySourceEventTx(tx, businessId, event.ID)
	if err == nil {
		return &DocumentRef{DocType: DocRefTypePurchaseInvoice, DocId: existing.ID}, nil
	}
	if err != utils.ErrorRecordNotFound {
		return nil, err
	}

	payload, err := models.DecodePayload[models.PurchaseInvoicePayload](event.Payload)
	if err != nil {
		return nil, err
	}

	docDate := models.ResolveDocDate(payload.DocDate, event.OccurredAt)
	rate, err := ResolveExchangeRate(tx, businessId, payload.ExchangeRate, docDate)
	if err != nil {
		return nil, err
	}

	receiptIds := utils.UniqueSlice(payload.ReceiptIds)
	if len(receiptIds) > 0 {
		var count int64
		err := tx.Model(&models.GoodsReceipt{}).
			Where("business_id = ? AND id IN ?", businessId, receiptIds).
			Count(&count).Error
		if err != nil {
			return nil, err
		}
		if count != int64(len(receiptIds)) {
			return nil, utils.NewValidationError("one or more receipt ids do not exist")
		}
	}

	docNo := payload.DocNo
	if docNo == "" {
		docNo, err = models.NextDocNo(tx, businessId, "purchase_invoice", "POS-P")
		if err != nil {
			return nil, err
		}
	}

	doc := models.PurchaseInvoice{
		ID:            uuid.NewString(),
		BusinessId:    businessId,
		BranchId:      payload.BranchId,
		SupplierName:  payload.SupplierName,
		DocNo:         docNo,
		SourceEventId: &event.ID,
		ReceiptIds:    strings.Join(receiptIds, ","),
		DocDate:       docDate,
		ExchangeRate:  rate,
		Status:        models.DocStatusPosted,
	}

	subtotalUsd, subtotalLbp := decimal.Zero, decimal.Zero
	taxTotalUsd, taxTotalLbp := decimal.Zero, decimal.Zero
	lines := make([]models.PurchaseInvoiceLine, 0, len(payload.Lines))

	for i, lp := range payload.Lines {
		label := fmt.Sprintf("line %d", i+1)

		if lp.ItemId != nil {
			if _, err := models.GetItemTx(tx, businessId, *lp.ItemId); err == utils.ErrorRecordNotFound {
				return nil, utils.NewValidationError("%s: item not found: %s", label, *lp.ItemId)
			} else if err != nil {
				return nil, err
			}
		}

		// Service lines come through without a quantity; bill them as one unit.
		qty := QuantizeQty(lp.Qty)
		if !qty.IsPositive() {
			qty = decimal.New(1, 0)
		}
		costUsd, costLbp := NormalizeDualAmounts(lp.UnitCostUsd, lp.UnitCostLbp, rate)
		if costUsd.IsNegative() || costLbp.IsNegative() {
			return nil, utils.NewValidationError("%s: cost cannot be negative", label)
		}
		taxUsd, taxLbp := NormalizeDualAmounts(lp.TaxUsd, lp.TaxLbp, rate)
		if taxUsd.IsNegative() || taxLbp.IsNegative() {
			return nil, utils.NewValidationError("%s: tax cannot be negative", label)
		}

		lines = append(lines, models.PurchaseInvoiceLine{
			ID:                uuid.NewString(),
			BusinessId:        businessId,
			PurchaseInvoiceId: doc.ID,
			ItemId:            lp.ItemId,
			Description:       lp.Description,
			Qty:               qty,
			UnitCostUsd:       costUsd,
			UnitCostLbp:       costLbp,
			TaxAmountUsd:      taxUsd,
			TaxAmountLbp:      taxLbp,
		})

		subtotalUsd = subtotalUsd.Add(QuantizeUsd(costUsd.Mul(qty)))
		subtotalLbp = subtotalLbp.Add(QuantizeLbp(costLbp.Mul(qty)))
		taxTotalUsd = taxTotalUsd.Add(taxUsd)
		taxTotalLbp = taxTotalLbp.Add(taxLbp)
	}

	doc.SubtotalUsd, doc.SubtotalLbp = QuantizeUsd(subtotalUsd), QuantizeLbp(subtotalLbp)
	doc.TaxTotalUsd, doc.TaxTotalLbp = QuantizeUsd(taxTotalUsd), QuantizeLbp(taxTotalLbp)
	doc.TotalUsd = QuantizeUsd(doc.SubtotalUsd.Add(doc.TaxTotalUsd))
	doc.TotalLbp = QuantizeLbp(doc.SubtotalLbp.Add(doc.TaxTotalLbp))

	if err := tx.Create(&doc).Error; err != nil {
		return nil, err
	}
	if err := tx.Create(&lines).Error; err != nil {
		return nil, err
	}

	if doc.TotalUsd.IsPositive() || doc.TotalLbp.IsPositive() {
		glLines := []models.JournalLine{
			{AccountCode: models.AccountGrni, DebitUsd: doc.SubtotalUsd, DebitLbp: doc.SubtotalLbp},
			{AccountCode: models.AccountVatRecoverable, DebitUsd: doc.TaxTotalUsd, DebitLbp: doc.TaxTotalLbp},
			{AccountCode: models.AccountAccountsPayable, CreditUsd: doc.TotalUsd, CreditLbp: doc.TotalLbp},
		}
		memo := fmt.Sprintf("Purchase invoice %s", docNo)
		if payload.SupplierName != "" {
			memo = fmt.Sprintf("Purchase invoice %s from %s", docNo, payload.SupplierName)
		}
		if len(receiptIds) > 0 {
			memo = fmt.Sprintf("%s (receipts %s)", memo, strings.Join(receiptIds, ", "))
		}
		if _, err := models.PostJournalTx(ctx, tx, businessId, DocRefTypePurchaseInvoice, doc.ID, docDate, memo, glLines); err != nil {
			return nil, err
		}
	}

	return &DocumentRef{DocType: DocRefTypePurchaseInvoice, DocId: doc.ID}, nil
}
