package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/cedarpos/pos_backend/config"
	"github.com/cedarpos/pos_backend/models"
	"github.com/cedarpos/pos_backend/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Payments may undershoot the total (remainder goes on the customer account)
// but may only overshoot within rounding tolerance.
var (
	paymentToleranceUsd = decimal.New(1, -2) // 0.01 USD
	paymentToleranceLbp = decimal.New(1, 0)  // 1 LBP
)

// processSale posts one completed sale: document with lines, payments and tax
// breakdown, FEFO-allocated outbound stock moves, a balanced GL journal, and
// the customer balance/loyalty patch.
func processSale(ctx context.Context, tx *gorm.DB, event *models.OutboxEvent) (*DocumentRef, error) {
	businessId := event.BusinessId

	existing, err := models.FindSalesDocBySourceEventTx(tx, businessId, event.ID)
	if err == nil {
		return &DocumentRef{DocType: DocRefTypeSale, DocId: existing.ID}, nil
	}
	if err != utils.ErrorRecordNotFound {
		return nil, err
	}

	payload, err := models.DecodePayload[models.SalePayload](event.Payload)
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

	var customer *models.Customer
	if payload.CustomerId != nil {
		customer, err = models.GetCustomerTx(tx, businessId, *payload.CustomerId)
		if err == utils.ErrorRecordNotFound {
			return nil, utils.NewValidationError("customer not found: %s", *payload.CustomerId)
		}
		if err != nil {
			return nil, err
		}
	}

	docNo := payload.DocNo
	if docNo == "" {
		docNo, err = models.NextDocNo(tx, businessId, string(models.SalesDocTypeSale), "POS-S")
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
		DocType:       models.SalesDocTypeSale,
		SourceEventId: &event.ID,
		CustomerId:    payload.CustomerId,
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
			allocations, err := allocateSaleLine(tx, businessId, business, item, warehouse, docDate, label, &lp, line.QtyBase)
			if err != nil {
				return nil, err
			}
			for _, alloc := range allocations {
				au, al, err := allocationUnitCost(tx, businessId, item, alloc.BatchId, costUsd, costLbp)
				if err != nil {
					return nil, err
				}
				cogsUsd = cogsUsd.Add(QuantizeUsd(au.Mul(alloc.Qty)))
				cogsLbp = cogsLbp.Add(QuantizeLbp(al.Mul(alloc.Qty)))

				moves = append(moves, models.StockMove{
					ID:            uuid.NewString(),
					BusinessId:    businessId,
					ItemId:        item.ID,
					WarehouseId:   warehouse.ID,
					BatchId:       alloc.BatchId,
					Qty:           alloc.Qty.Neg(),
					MoveType:      models.StockMoveTypeSale,
					SourceDocType: DocRefTypeSale,
					SourceDocId:   doc.ID,
					MovedAt:       event.OccurredAt,
				})
			}
		}
		lines = append(lines, *line)
	}

	subtotalUsd, subtotalLbp = QuantizeUsd(subtotalUsd), QuantizeLbp(subtotalLbp)
	taxTotalUsd, taxTotalLbp = normalizedTaxTotals(taxTotalUsd, taxTotalLbp, payload.TaxLines, rate)
	totalUsd := QuantizeUsd(subtotalUsd.Add(taxTotalUsd))
	totalLbp := QuantizeLbp(subtotalLbp.Add(taxTotalLbp))

	doc.SubtotalUsd, doc.SubtotalLbp = subtotalUsd, subtotalLbp
	doc.TaxTotalUsd, doc.TaxTotalLbp = taxTotalUsd, taxTotalLbp
	doc.TotalUsd, doc.TotalLbp = totalUsd, totalLbp

	payments, paymentDebits, paidUsd, paidLbp, err := buildDocPayments(tx, businessId, doc.ID, payload.Payments, rate)
	if err != nil {
		return nil, err
	}

	remainderUsd, remainderLbp, err := settlementRemainder(totalUsd, totalLbp, paidUsd, paidLbp)
	if err != nil {
		return nil, err
	}
	arUsd, arLbp, overUsd, overLbp := splitRemainder(remainderUsd, remainderLbp)
	if (arUsd.IsPositive() || arLbp.IsPositive()) && customer == nil {
		return nil, utils.NewValidationError("credit remainder requires a customer")
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

	glLines := make([]models.JournalLine, 0, len(paymentDebits)+4)
	for _, d := range paymentDebits {
		glLines = append(glLines, models.JournalLine{
			AccountCode: d.account,
			DebitUsd:    d.usd,
			DebitLbp:    d.lbp,
		})
	}
	if arUsd.IsPositive() || arLbp.IsPositive() {
		glLines = append(glLines, models.JournalLine{
			AccountCode: models.AccountAccountsReceivable,
			DebitUsd:    arUsd,
			DebitLbp:    arLbp,
		})
	}
	glLines = append(glLines,
		models.JournalLine{AccountCode: models.AccountSales, CreditUsd: subtotalUsd, CreditLbp: subtotalLbp},
		models.JournalLine{AccountCode: models.AccountVatPayable, CreditUsd: taxTotalUsd, CreditLbp: taxTotalLbp},
	)
	if overUsd.IsPositive() || overLbp.IsPositive() {
		glLines = append(glLines, models.JournalLine{
			AccountCode: models.AccountCashOverShort,
			CreditUsd:   overUsd,
			CreditLbp:   overLbp,
		})
	}
	if cogsUsd.IsPositive() || cogsLbp.IsPositive() {
		glLines = append(glLines,
			models.JournalLine{AccountCode: models.AccountCogs, DebitUsd: cogsUsd, DebitLbp: cogsLbp},
			models.JournalLine{AccountCode: models.AccountInventory, CreditUsd: cogsUsd, CreditLbp: cogsLbp},
		)
	}
	memo := fmt.Sprintf("POS sale %s", docNo)
	if _, err := models.PostJournalTx(ctx, tx, businessId, DocRefTypeSale, doc.ID, docDate, memo, glLines); err != nil {
		return nil, err
	}

	if customer != nil {
		loyaltyEarn := saleLoyaltyPoints(business, payload.LoyaltyPoints, totalUsd)
		if arUsd.IsPositive() || arLbp.IsPositive() || !loyaltyEarn.IsZero() {
			if err := models.PatchCustomerBalanceTx(tx, businessId, customer.ID, arUsd, arLbp, loyaltyEarn); err != nil {
				return nil, err
			}
		}
	}

	return &DocumentRef{DocType: DocRefTypeSale, DocId: doc.ID}, nil
}

// checkShiftOpenForDevice validates a payload-referenced shift: it must exist,
// belong to the submitting device, and still be open.
func checkShiftOpenForDevice(tx *gorm.DB, businessId string, deviceId string, shiftId string) error {
	shift, err := models.GetShiftTx(tx, businessId, shiftId)
	if err == utils.ErrorRecordNotFound {
		return utils.NewValidationError("shift not found: %s", shiftId)
	}
	if err != nil {
		return err
	}
	if shift.DeviceId != deviceId {
		return utils.NewForbiddenError("shift belongs to another device")
	}
	if shift.Status != models.ShiftStatusOpen {
		return utils.NewConflictError("shift %s is not open", shiftId)
	}
	return nil
}

// buildSaleDocLine resolves uom and money for one payload line. Returns the
// line (SalesDocId unset) plus the normalized unit cost legs; zero cost means
// the caller falls back to batch or item cost.
func buildSaleDocLine(tx *gorm.DB, businessId string, item *models.Item, label string, lp *models.SaleLinePayload, rate decimal.Decimal) (*models.SalesDocLine, decimal.Decimal, decimal.Decimal, error) {
	qty := QuantizeQty(lp.Qty)
	if !qty.IsPositive() {
		return nil, decimal.Zero, decimal.Zero, utils.NewValidationError("%s: qty must be positive", label)
	}

	resolved, err := resolveLineUom(tx, businessId, item, label, qty, lp.QtyEntered, lp.QtyFactor, lp.UomId)
	if err != nil {
		return nil, decimal.Zero, decimal.Zero, err
	}

	priceUsd, priceLbp := NormalizeDualAmounts(lp.UnitPriceUsd, lp.UnitPriceLbp, rate)
	discountUsd, discountLbp := NormalizeDualAmounts(lp.DiscountUsd, lp.DiscountLbp, rate)
	taxUsd, taxLbp := NormalizeDualAmounts(lp.TaxUsd, lp.TaxLbp, rate)
	costUsd, costLbp := NormalizeDualAmounts(lp.UnitCostUsd, lp.UnitCostLbp, rate)

	totalUsd, totalLbp := lp.LineTotalUsd, lp.LineTotalLbp
	if totalUsd.IsZero() && totalLbp.IsZero() {
		totalUsd = qty.Mul(priceUsd).Sub(discountUsd)
		totalLbp = qty.Mul(priceLbp).Sub(discountLbp)
	}
	totalUsd, totalLbp = NormalizeDualAmounts(totalUsd, totalLbp, rate)
	if totalUsd.IsNegative() || totalLbp.IsNegative() {
		return nil, decimal.Zero, decimal.Zero, utils.NewValidationError("%s: line total cannot be negative", label)
	}

	line := models.SalesDocLine{
		ID:           uuid.NewString(),
		BusinessId:   businessId,
		ItemId:       item.ID,
		UomId:        resolved.UomId,
		QtyEntered:   resolved.QtyEntered,
		ToBaseFactor: resolved.Factor,
		QtyBase:      qty,
		UnitPriceUsd: priceUsd,
		UnitPriceLbp: priceLbp,
		DiscountUsd:  discountUsd,
		DiscountLbp:  discountLbp,
		TaxAmountUsd: taxUsd,
		TaxAmountLbp: taxLbp,
		LineTotalUsd: totalUsd,
		LineTotalLbp: totalLbp,
	}
	return &line, costUsd, costLbp, nil
}

// allocateSaleLine picks the consumption plan for one outbound line: an
// explicit lot when the payload names one, FEFO otherwise.
func allocateSaleLine(tx *gorm.DB, businessId string, business *models.Business, item *models.Item, warehouse *models.Warehouse, docDate time.Time, label string, lp *models.SaleLinePayload, qty decimal.Decimal) ([]Allocation, error) {
	minDays := models.MinShelfLifeDaysFor(item, warehouse)
	if minDays == 0 && business != nil {
		minDays = business.DefaultMinShelfLifeDays
	}
	var minExpiry *time.Time
	if minDays > 0 {
		d := docDate.AddDate(0, 0, minDays)
		minExpiry = &d
	} else if item.TrackExpiry {
		d := docDate
		minExpiry = &d
	}

	allowNegative := models.AllowNegativeStockFor(business, item, warehouse)

	if lp.BatchNo != nil && *lp.BatchNo != "" {
		return explicitBatchAllocation(tx, businessId, item, warehouse, label, lp, qty, minExpiry, allowNegative)
	}
	if lp.ExpiryDate != nil && *lp.ExpiryDate != "" {
		return nil, utils.NewValidationError("%s: expiry_date requires batch_no", label)
	}

	allowUnbatched := !(item.TrackBatches || item.TrackExpiry || minDays > 0)
	return AllocateFefo(tx, businessId, AllocationRequest{
		ItemId:                  item.ID,
		WarehouseId:             warehouse.ID,
		Qty:                     qty,
		MinExpiry:               minExpiry,
		AllowUnbatchedRemainder: allowUnbatched,
		AllowNegativeStock:      allowNegative,
	})
}

// explicitBatchAllocation honors a device-chosen lot, still subject to the
// shelf-life gate and the on-hand check.
func explicitBatchAllocation(tx *gorm.DB, businessId string, item *models.Item, warehouse *models.Warehouse, label string, lp *models.SaleLinePayload, qty decimal.Decimal, minExpiry *time.Time, allowNegative bool) ([]Allocation, error) {
	batch, err := models.FindItemBatchTx(tx, businessId, item.ID, *lp.BatchNo)
	if err == utils.ErrorRecordNotFound {
		return nil, utils.NewValidationError("%s: batch not found: %s", label, *lp.BatchNo)
	}
	if err != nil {
		return nil, err
	}
	if batch.Status != models.BatchStatusAvailable {
		return nil, utils.NewConflictError("%s: batch %s is %s", label, batch.BatchNo, batch.Status)
	}
	if lp.ExpiryDate != nil && *lp.ExpiryDate != "" {
		want, err := models.ParseDateOnly(*lp.ExpiryDate)
		if err != nil {
			return nil, utils.NewValidationError("%s: bad expiry_date: %s", label, *lp.ExpiryDate)
		}
		if batch.ExpiryDate == nil || !batch.ExpiryDate.Equal(want) {
			return nil, utils.NewValidationError("%s: expiry_date does not match batch %s", label, batch.BatchNo)
		}
	}
	if minExpiry != nil && batch.ExpiryDate != nil && batch.ExpiryDate.Before(*minExpiry) {
		return nil, utils.NewConflictError("%s: batch %s does not meet the minimum shelf life", label, batch.BatchNo)
	}

	if !allowNegative {
		onHand, err := models.OnHandTx(tx, businessId, item.ID, warehouse.ID, &batch.ID)
		if err != nil {
			return nil, err
		}
		if onHand.LessThan(qty) {
			return nil, utils.NewConflictError("%s: insufficient stock in batch %s", label, batch.BatchNo)
		}
	}
	return []Allocation{{BatchId: &batch.ID, Qty: qty}}, nil
}

// allocationUnitCost resolves COGS for one allocation: payload cost wins, then
// the batch receipt cost, then the item's last cost. A zero final cost is
// posted as-is and logged.
func allocationUnitCost(tx *gorm.DB, businessId string, item *models.Item, batchId *string, lineCostUsd, lineCostLbp decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	if !lineCostUsd.IsZero() || !lineCostLbp.IsZero() {
		return lineCostUsd, lineCostLbp, nil
	}
	if batchId != nil {
		var batch models.ItemBatch
		err := tx.Where("business_id = ? AND id = ?", businessId, *batchId).First(&batch).Error
		if err != nil && err != gorm.ErrRecordNotFound {
			return decimal.Zero, decimal.Zero, err
		}
		if err == nil && (!batch.CostUsd.IsZero() || !batch.CostLbp.IsZero()) {
			return batch.CostUsd, batch.CostLbp, nil
		}
	}
	if !item.LastCostUsd.IsZero() || !item.LastCostLbp.IsZero() {
		return item.LastCostUsd, item.LastCostLbp, nil
	}
	config.LogInfo(config.GetLogger(), "workflow", "allocationUnitCost",
		"zero cost fallback", map[string]string{"business_id": businessId, "item_id": item.ID})
	return decimal.Zero, decimal.Zero, nil
}

type accountAmount struct {
	account string
	usd     decimal.Decimal
	lbp     decimal.Decimal
}

// buildDocPayments normalizes payment legs, groups them by GL account and
// returns the rows plus the paid totals.
func buildDocPayments(tx *gorm.DB, businessId string, docId string, payments []models.PaymentPayload, rate decimal.Decimal) ([]models.SalesDocPayment, []*accountAmount, decimal.Decimal, decimal.Decimal, error) {
	if len(payments) == 0 {
		return nil, nil, decimal.Zero, decimal.Zero, nil
	}

	methods, err := models.GetPaymentMethodsTx(tx, businessId)
	if err != nil {
		return nil, nil, decimal.Zero, decimal.Zero, err
	}

	rows := make([]models.SalesDocPayment, 0, len(payments))
	grouped := make(map[string]*accountAmount)
	order := make([]*accountAmount, 0, len(payments))
	paidUsd, paidLbp := decimal.Zero, decimal.Zero

	for i, p := range payments {
		method, ok := methods[p.PaymentMethodId]
		if !ok {
			return nil, nil, decimal.Zero, decimal.Zero,
				utils.NewValidationError("payment %d: unknown payment method: %s", i+1, p.PaymentMethodId)
		}
		if p.AmountUsd.IsNegative() || p.AmountLbp.IsNegative() {
			return nil, nil, decimal.Zero, decimal.Zero,
				utils.NewValidationError("payment %d: amounts cannot be negative", i+1)
		}
		usd, lbp := NormalizeDualAmounts(p.AmountUsd, p.AmountLbp, rate)
		if usd.IsZero() && lbp.IsZero() {
			continue
		}

		rows = append(rows, models.SalesDocPayment{
			ID:              uuid.NewString(),
			BusinessId:      businessId,
			SalesDocId:      docId,
			PaymentMethodId: method.ID,
			AmountUsd:       usd,
			AmountLbp:       lbp,
		})
		paidUsd = paidUsd.Add(usd)
		paidLbp = paidLbp.Add(lbp)

		account := method.GLAccountCode()
		entry, ok := grouped[account]
		if !ok {
			entry = &accountAmount{account: account, usd: decimal.Zero, lbp: decimal.Zero}
			grouped[account] = entry
			order = append(order, entry)
		}
		entry.usd = QuantizeUsd(entry.usd.Add(usd))
		entry.lbp = QuantizeLbp(entry.lbp.Add(lbp))
	}
	return rows, order, QuantizeUsd(paidUsd), QuantizeLbp(paidLbp), nil
}

// settlementRemainder is what the payments left uncovered, signed per
// currency. Overshoot beyond the rounding tolerance is rejected; inside it,
// the negative side posts to cash over/short so the journal stays balanced.
func settlementRemainder(totalUsd, totalLbp, paidUsd, paidLbp decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	remUsd := QuantizeUsd(totalUsd.Sub(paidUsd))
	remLbp := QuantizeLbp(totalLbp.Sub(paidLbp))
	if remUsd.LessThan(paymentToleranceUsd.Neg()) || remLbp.LessThan(paymentToleranceLbp.Neg()) {
		return decimal.Zero, decimal.Zero, utils.NewValidationError("payments exceed document total")
	}
	return remUsd, remLbp, nil
}

// splitRemainder separates the on-account part from the rounding overage.
func splitRemainder(remUsd, remLbp decimal.Decimal) (arUsd, arLbp, overUsd, overLbp decimal.Decimal) {
	arUsd, arLbp = decimal.Zero, decimal.Zero
	overUsd, overLbp = decimal.Zero, decimal.Zero
	if remUsd.IsPositive() {
		arUsd = remUsd
	} else {
		overUsd = remUsd.Neg()
	}
	if remLbp.IsPositive() {
		arLbp = remLbp
	} else {
		overLbp = remLbp.Neg()
	}
	return
}

func buildDocTaxLines(businessId string, docId string, taxLines []models.TaxLinePayload, rate decimal.Decimal) []models.SalesDocTaxLine {
	rows := make([]models.SalesDocTaxLine, 0, len(taxLines))
	for _, t := range taxLines {
		baseUsd, baseLbp := NormalizeDualAmounts(t.BaseUsd, t.BaseLbp, rate)
		amountUsd, amountLbp := NormalizeDualAmounts(t.AmountUsd, t.AmountLbp, rate)
		rows = append(rows, models.SalesDocTaxLine{
			ID:         uuid.NewString(),
			BusinessId: businessId,
			SalesDocId: docId,
			TaxCode:    t.TaxCode,
			BaseUsd:    baseUsd,
			BaseLbp:    baseLbp,
			AmountUsd:  amountUsd,
			AmountLbp:  amountLbp,
		})
	}
	return rows
}

// normalizedTaxTotals prefers the per-line tax sum; when lines carry no tax
// but a document-level breakdown exists, the breakdown is authoritative.
func normalizedTaxTotals(lineTaxUsd, lineTaxLbp decimal.Decimal, taxLines []models.TaxLinePayload, rate decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	if !lineTaxUsd.IsZero() || !lineTaxLbp.IsZero() || len(taxLines) == 0 {
		return QuantizeUsd(lineTaxUsd), QuantizeLbp(lineTaxLbp)
	}
	usd, lbp := decimal.Zero, decimal.Zero
	for _, t := range taxLines {
		au, al := NormalizeDualAmounts(t.AmountUsd, t.AmountLbp, rate)
		usd = usd.Add(au)
		lbp = lbp.Add(al)
	}
	return QuantizeUsd(usd), QuantizeLbp(lbp)
}

// saleLoyaltyPoints: explicit payload points win; otherwise earn at the
// business rate per whole USD, floored to 2dp.
func saleLoyaltyPoints(business *models.Business, override *decimal.Decimal, totalUsd decimal.Decimal) decimal.Decimal {
	if override != nil {
		return *override
	}
	if business == nil || business.LoyaltyEarnRatePer1Usd.IsZero() || !totalUsd.IsPositive() {
		return decimal.Zero
	}
	return business.LoyaltyEarnRatePer1Usd.Mul(totalUsd).RoundFloor(2)
}
