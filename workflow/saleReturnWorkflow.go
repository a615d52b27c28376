package workflow

import (
	"context"
	"fmt"

	"github.com/cedarpos/pos_backend/models"
	"github.com/cedarpos/pos_backend/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// processSaleReturn posts a return against a prior sale: restocking moves,
// the refund's GL reversal, and the customer balance/loyalty claw-back.
// Totals stay positive; doc_type carries the direction.
func processSaleReturn(ctx context.Context, tx *gorm.DB, event *models.OutboxEvent) (*DocumentRef, error) {
	businessId := event.BusinessId

	existing, err := models.FindSalesDocBySourceEventTx(tx, businessId, event.ID)
	if err == nil {
		return &DocumentRef{DocType: DocRefTypeSale, DocId: existing.ID}, nil
	}
	if err != utils.ErrorRecordNotFound {
		return nil, err
	}

	payload, err := models.DecodePayload[models.SaleReturnPayload](event.Payload)
	if err != nil {
		return nil, err
	}

	business, err := models.GetBusinessByIdTx(tx, businessId)
	if err != nil {
		return nil, err
	}
	warehouse, err := models.GetWarehouseTx(tx, businessId, payload.WarehouseId)
	if err == utils.ErrorRecordNotFound {
		return nil, utils.NewValidationError("warehouse not found: %s", payload.WarehouseId)
	}
	if err != nil {
		return nil, err
	}

	docDate := models.ResolveDocDate(payload.DocDate, event.OccurredAt)
	rate, err := ResolveExchangeRate(tx, businessId, payload.ExchangeRate, docDate)
	if err != nil {
		return nil, err
	}

	if payload.ShiftId != nil {
		if err := checkShiftOpenForDevice(tx, businessId, event.DeviceId, *payload.ShiftId); err != nil {
			return nil, err
		}
	}

	var original *models.SalesDoc
	if payload.OriginalDocId != nil {
		original, err = models.GetSalesDocTx(tx, businessId, *payload.OriginalDocId)
		if err == utils.ErrorRecordNotFound {
			return nil, utils.NewValidationError("original document not found: %s", *payload.OriginalDocId)
		}
		if err != nil {
			return nil, err
		}
	}

	customerId := payload.CustomerId
	if customerId == nil && original != nil {
		customerId = original.CustomerId
	}
	var customer *models.Customer
	if customerId != nil {
		customer, err = models.GetCustomerTx(tx, businessId, *customerId)
		if err == utils.ErrorRecordNotFound {
			return nil, utils.NewValidationError("customer not found: %s", *customerId)
		}
		if err != nil {
			return nil, err
		}
	}

	docNo := payload.DocNo
	if docNo == "" {
		docNo, err = models.NextDocNo(tx, businessId, string(models.SalesDocTypeSaleReturn), "POS-SR")
		if err != nil {
			return nil, err
		}
	}

	doc := models.SalesDoc{
		ID:            uuid.NewString(),
		BusinessId:    businessId,
		BranchId:      payload.BranchId,
		DeviceId:      event.DeviceId,
		DocNo:         docNo,
		DocType:       models.SalesDocTypeSaleReturn,
		SourceEventId: &event.ID,
		OriginalDocId: payload.OriginalDocId,
		CustomerId:    customerId,
		ShiftId:       payload.ShiftId,
		DocDate:       docDate,
		ExchangeRate:  rate,
		Status:        models.DocStatusPosted,
	}

	subtotalUsd, subtotalLbp := decimal.Zero, decimal.Zero
	taxTotalUsd, taxTotalLbp := decimal.Zero, decimal.Zero
	cogsUsd, cogsLbp := decimal.Zero, decimal.Zero

	lines := make([]models.SalesDocLine, 0, len(payload.Lines))
	moves := make([]models.StockMove, 0, len(payload.Lines))

	for i, lp := range payload.Lines {
		label := fmt.Sprintf("line %d", i+1)

		item, err := models.GetItemTx(tx, businessId, lp.ItemId)
		if err == utils.ErrorRecordNotFound {
			return nil, utils.NewValidationError("%s: item not found: %s", label, lp.ItemId)
		}
		if err != nil {
			return nil, err
		}

		line, costUsd, costLbp, err := buildSaleDocLine(tx, businessId, item, label, &lp, rate)
		if err != nil {
			return nil, err
		}
		line.SalesDocId = doc.ID

		subtotalUsd = subtotalUsd.Add(line.LineTotalUsd)
		subtotalLbp = subtotalLbp.Add(line.LineTotalLbp)
		taxTotalUsd = taxTotalUsd.Add(line.TaxAmountUsd)
		taxTotalLbp = taxTotalLbp.Add(line.TaxAmountLbp)

		if !payload.SkipStockMoves {
			batchId, err := restockBatchId(tx, businessId, item, label, &lp)
			if err != nil {
				return nil, err
			}
			au, al, err := allocationUnitCost(tx, businessId, item, batchId, costUsd, costLbp)
			if err != nil {
				return nil, err
			}
			cogsUsd = cogsUsd.Add(QuantizeUsd(au.Mul(line.QtyBase)))
			cogsLbp = cogsLbp.Add(QuantizeLbp(al.Mul(line.QtyBase)))

			moves = append(moves, models.StockMove{
				ID:            uuid.NewString(),
				BusinessId:    businessId,
				ItemId:        item.ID,
				WarehouseId:   warehouse.ID,
				BatchId:       batchId,
				Qty:           line.QtyBase,
				MoveType:      models.StockMoveTypeSaleReturn,
				SourceDocType: DocRefTypeSale,
				SourceDocId:   doc.ID,
				MovedAt:       event.OccurredAt,
			})
		}
		lines = append(lines, *line)
	}

	subtotalUsd, subtotalLbp = QuantizeUsd(subtotalUsd), QuantizeLbp(subtotalLbp)
	taxTotalUsd, taxTotalLbp = normalizedTaxTotals(taxTotalUsd, taxTotalLbp, payload.TaxLines, rate)
	totalUsd := QuantizeUsd(subtotalUsd.Add(taxTotalUsd))
	totalLbp := QuantizeLbp(subtotalLbp.Add(taxTotalLbp))

	feeUsd, feeLbp := NormalizeDualAmounts(payload.RestockingFeeUsd, payload.RestockingFeeLbp, rate)
	if feeUsd.IsNegative() || feeLbp.IsNegative() {
		return nil, utils.NewValidationError("restocking fee cannot be negative")
	}
	if feeUsd.GreaterThan(totalUsd) || feeLbp.GreaterThan(totalLbp) {
		return nil, utils.NewValidationError("restocking fee exceeds return total")
	}

	doc.SubtotalUsd, doc.SubtotalLbp = subtotalUsd, subtotalLbp
	doc.TaxTotalUsd, doc.TaxTotalLbp = taxTotalUsd, taxTotalLbp
	doc.TotalUsd, doc.TotalLbp = totalUsd, totalLbp
	if !feeUsd.IsZero() || !feeLbp.IsZero() {
		doc.RestockFeeUsd, doc.RestockFeeLbp = &feeUsd, &feeLbp
	}

	payments, paymentCredits, paidUsd, paidLbp, err := buildDocPayments(tx, businessId, doc.ID, payload.Payments, rate)
	if err != nil {
		return nil, err
	}

	// Refundable = total minus the fee; payments beyond that are rejected,
	// and whatever they leave uncovered comes off the customer account.
	remainderUsd, remainderLbp, err := settlementRemainder(
		QuantizeUsd(totalUsd.Sub(feeUsd)), QuantizeLbp(totalLbp.Sub(feeLbp)), paidUsd, paidLbp)
	if err != nil {
		return nil, err
	}
	arUsd, arLbp, overUsd, overLbp := splitRemainder(remainderUsd, remainderLbp)
	if (arUsd.IsPositive() || arLbp.IsPositive()) && customer == nil {
		return nil, utils.NewValidationError("credit refund requires a customer")
	}

	taxLines := buildDocTaxLines(businessId, doc.ID, payload.TaxLines, rate)

	if err := tx.Create(&doc).Error; err != nil {
		return nil, err
	}
	if err := tx.Create(&lines).Error; err != nil {
		return nil, err
	}
	if len(payments) > 0 {
		if err := tx.Create(&payments).Error; err != nil {
			return nil, err
		}
	}
	if len(taxLines) > 0 {
		if err := tx.Create(&taxLines).Error; err != nil {
			return nil, err
		}
	}
	if len(moves) > 0 {
		if err := tx.Create(&moves).Error; err != nil {
			return nil, err
		}
	}

	glLines := []models.JournalLine{
		{AccountCode: models.AccountSalesReturns, DebitUsd: subtotalUsd, DebitLbp: subtotalLbp},
		{AccountCode: models.AccountVatPayable, DebitUsd: taxTotalUsd, DebitLbp: taxTotalLbp},
	}
	for _, c := range paymentCredits {
		glLines = append(glLines, models.JournalLine{
			AccountCode: c.account,
			CreditUsd:   c.usd,
			CreditLbp:   c.lbp,
		})
	}
	if !feeUsd.IsZero() || !feeLbp.IsZero() {
		glLines = append(glLines, models.JournalLine{
			AccountCode: models.AccountRestockingFeeIncome,
			CreditUsd:   feeUsd,
			CreditLbp:   feeLbp,
		})
	}
	if arUsd.IsPositive() || arLbp.IsPositive() {
		glLines = append(glLines, models.JournalLine{
			AccountCode: models.AccountAccountsReceivable,
			CreditUsd:   arUsd,
			CreditLbp:   arLbp,
		})
	}
	if overUsd.IsPositive() || overLbp.IsPositive() {
		glLines = append(glLines, models.JournalLine{
			AccountCode: models.AccountCashOverShort,
			DebitUsd:    overUsd,
			DebitLbp:    overLbp,
		})
	}
	if cogsUsd.IsPositive() || cogsLbp.IsPositive() {
		glLines = append(glLines,
			models.JournalLine{AccountCode: models.AccountInventory, DebitUsd: cogsUsd, DebitLbp: cogsLbp},
			models.JournalLine{AccountCode: models.AccountCogs, CreditUsd: cogsUsd, CreditLbp: cogsLbp},
		)
	}
	memo := fmt.Sprintf("POS return %s", docNo)
	if original != nil {
		memo = fmt.Sprintf("POS return %s of %s", docNo, original.DocNo)
	}
	if _, err := models.PostJournalTx(ctx, tx, businessId, DocRefTypeSale, doc.ID, docDate, memo, glLines); err != nil {
		return nil, err
	}

	if customer != nil {
		loyaltyReversal := saleLoyaltyPoints(business, payload.LoyaltyPoints, totalUsd).Neg()
		if arUsd.IsPositive() || arLbp.IsPositive() || !loyaltyReversal.IsZero() {
			if err := models.PatchCustomerBalanceTx(tx, businessId, customer.ID,
				arUsd.Neg(), arLbp.Neg(), loyaltyReversal); err != nil {
				return nil, err
			}
		}
	}

	return &DocumentRef{DocType: DocRefTypeSale, DocId: doc.ID}, nil
}

// restockBatchId picks where returned stock lands: the named lot when the
// payload gives one, otherwise the unbatched pool.
func restockBatchId(tx *gorm.DB, businessId string, item *models.Item, label string, lp *models.SaleLinePayload) (*string, error) {
	if lp.BatchNo == nil || *lp.BatchNo == "" {
		if lp.ExpiryDate != nil && *lp.ExpiryDate != "" {
			return nil, utils.NewValidationError("%s: expiry_date requires batch_no", label)
		}
		return nil, nil
	}
	batch, err := models.FindItemBatchTx(tx, businessId, item.ID, *lp.BatchNo)
	if err == utils.ErrorRecordNotFound {
		return nil, utils.NewValidationError("%s: batch not found: %s", label, *lp.BatchNo)
	}
	if err != nil {
		return nil, err
	}
	return &batch.ID, nil
}
