package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/cedarpos/pos_backend/models"
	"github.com/cedarpos/pos_backend/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// processGoodsReceipt posts inbound supplier stock: receipt document, batch
// rows for tracked items, positive stock moves at cost, and the
// inventory-against-GRNI journal. Receiving also refreshes item last cost.
func processGoodsReceipt(ctx context.Context, tx *gorm.DB, event *models.OutboxEvent) (*DocumentRef, error) {
	businessId := event.BusinessId

	existing, err := models.FindGoodsReceiptBySourceEventTx(tx, businessId, event.ID)
	if err == nil {
		return &DocumentRef{DocType: DocRefTypeGoodsReceipt, DocId: existing.ID}, nil
	}
	if err != utils.ErrorRecordNotFound {
		return nil, err
	}

	payload, err := models.DecodePayload[models.GoodsReceiptPayload](event.Payload)
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

	docNo := payload.DocNo
	if docNo == "" {
		docNo, err = models.NextDocNo(tx, businessId, "goods_receipt", "POS-R")
		if err != nil {
			return nil, err
		}
	}

	doc := models.GoodsReceipt{
		ID:            uuid.NewString(),
		BusinessId:    businessId,
		BranchId:      payload.BranchId,
		WarehouseId:   warehouse.ID,
		SupplierName:  payload.SupplierName,
		DocNo:         docNo,
		SourceEventId: &event.ID,
		DocDate:       docDate,
		ExchangeRate:  rate,
		Status:        models.DocStatusPosted,
	}

	totalUsd, totalLbp := decimal.Zero, decimal.Zero
	lines := make([]models.GoodsReceiptLine, 0, len(payload.Lines))
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

		qty := QuantizeQty(lp.Qty)
		if !qty.IsPositive() {
			return nil, utils.NewValidationError("%s: qty must be positive", label)
		}
		resolved, err := resolveLineUom(tx, businessId, item, label, qty, lp.QtyEntered, lp.QtyFactor, lp.UomId)
		if err != nil {
			return nil, err
		}
		costUsd, costLbp := NormalizeDualAmounts(lp.UnitCostUsd, lp.UnitCostLbp, rate)
		if costUsd.IsNegative() || costLbp.IsNegative() {
			return nil, utils.NewValidationError("%s: cost cannot be negative", label)
		}

		expiry, err := receiptExpiry(item, label, &lp)
		if err != nil {
			return nil, err
		}

		var batchId *string
		if lp.BatchNo != nil && *lp.BatchNo != "" {
			batch, err := receiptBatch(tx, businessId, item, label, *lp.BatchNo, expiry, costUsd, costLbp, event.OccurredAt)
			if err != nil {
				return nil, err
			}
			batchId = &batch.ID
		} else if item.TrackBatches {
			return nil, utils.NewValidationError("%s: batch_no required for batch-tracked item %s", label, item.Sku)
		}

		var locationId *string
		if lp.LocationCode != nil && *lp.LocationCode != "" {
			loc, err := models.GetOrCreateStockLocationTx(tx, businessId, warehouse.ID, *lp.LocationCode)
			if err != nil {
				return nil, err
			}
			locationId = &loc.ID
		}

		lines = append(lines, models.GoodsReceiptLine{
			ID:             uuid.NewString(),
			BusinessId:     businessId,
			GoodsReceiptId: doc.ID,
			ItemId:         item.ID,
			UomId:          resolved.UomId,
			QtyEntered:     resolved.QtyEntered,
			ToBaseFactor:   resolved.Factor,
			QtyBase:        qty,
			BatchNo:        lp.BatchNo,
			ExpiryDate:     expiry,
			UnitCostUsd:    costUsd,
			UnitCostLbp:    costLbp,
		})
		moves = append(moves, models.StockMove{
			ID:            uuid.NewString(),
			BusinessId:    businessId,
			ItemId:        item.ID,
			WarehouseId:   warehouse.ID,
			LocationId:    locationId,
			BatchId:       batchId,
			Qty:           qty,
			MoveType:      models.StockMoveTypeReceipt,
			SourceDocType: DocRefTypeGoodsReceipt,
			SourceDocId:   doc.ID,
			MovedAt:       event.OccurredAt,
		})

		totalUsd = totalUsd.Add(QuantizeUsd(costUsd.Mul(qty)))
		totalLbp = totalLbp.Add(QuantizeLbp(costLbp.Mul(qty)))

		if !costUsd.IsZero() || !costLbp.IsZero() {
			err = tx.Model(&models.Item{}).
				Where("business_id = ? AND id = ?", businessId, item.ID).
				Updates(map[string]interface{}{
					"last_cost_usd": costUsd,
					"last_cost_lbp": costLbp,
				}).Error
			if err != nil {
				return nil, err
			}
		}
	}

	doc.TotalCostUsd = QuantizeUsd(totalUsd)
	doc.TotalCostLbp = QuantizeLbp(totalLbp)

	if err := tx.Create(&doc).Error; err != nil {
		return nil, err
	}
	if err := tx.Create(&lines).Error; err != nil {
		return nil, err
	}
	if err := tx.Create(&moves).Error; err != nil {
		return nil, err
	}

	if doc.TotalCostUsd.IsPositive() || doc.TotalCostLbp.IsPositive() {
		glLines := []models.JournalLine{
			{AccountCode: models.AccountInventory, DebitUsd: doc.TotalCostUsd, DebitLbp: doc.TotalCostLbp},
			{AccountCode: models.AccountGrni, CreditUsd: doc.TotalCostUsd, CreditLbp: doc.TotalCostLbp},
		}
		memo := fmt.Sprintf("Goods receipt %s", docNo)
		if payload.SupplierName != "" {
			memo = fmt.Sprintf("Goods receipt %s from %s", docNo, payload.SupplierName)
		}
		if _, err := models.PostJournalTx(ctx, tx, businessId, DocRefTypeGoodsReceipt, doc.ID, docDate, memo, glLines); err != nil {
			return nil, err
		}
	}

	return &DocumentRef{DocType: DocRefTypeGoodsReceipt, DocId: doc.ID}, nil
}

// receiptExpiry parses and gates the line's expiry date. Expiry-tracked items
// must carry one on every receipt.
func receiptExpiry(item *models.Item, label string, lp *models.ReceiptLinePayload) (*time.Time, error) {
	if lp.ExpiryDate == nil || *lp.ExpiryDate == "" {
		if item.TrackExpiry {
			return nil, utils.NewValidationError("%s: expiry_date required for expiry-tracked item %s", label, item.Sku)
		}
		return nil, nil
	}
	d, err := models.ParseDateOnly(*lp.ExpiryDate)
	if err != nil {
		return nil, utils.NewValidationError("%s: bad expiry_date: %s", label, *lp.ExpiryDate)
	}
	return &d, nil
}

// receiptBatch creates or reuses the (item, batch_no) lot. A replayed or
// split receipt may name an existing batch; its expiry must agree, and a
// missing one is backfilled.
func receiptBatch(tx *gorm.DB, businessId string, item *models.Item, label string, batchNo string, expiry *time.Time, costUsd, costLbp decimal.Decimal, receivedAt time.Time) (*models.ItemBatch, error) {
	batch, err := models.GetOrCreateItemBatchTx(tx, businessId, item.ID, batchNo, expiry, costUsd, costLbp, receivedAt)
	if err != nil {
		return nil, err
	}
	if expiry == nil || (batch.ExpiryDate != nil && batch.ExpiryDate.Equal(*expiry)) {
		return batch, nil
	}
	if batch.ExpiryDate == nil {
		err = tx.Model(&models.ItemBatch{}).
			Where("business_id = ? AND id = ?", businessId, batch.ID).
			Update("expiry_date", expiry).Error
		if err != nil {
			return nil, err
		}
		batch.ExpiryDate = expiry
		return batch, nil
	}
	return nil, utils.NewValidationError("%s: expiry_date does not match batch %s", label, batchNo)
}
