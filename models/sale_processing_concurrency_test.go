package models_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/cedarpos/pos_backend/config"
	"github.com/cedarpos/pos_backend/models"
	"github.com/cedarpos/pos_backend/workflow"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// A sale processed twice concurrently must land exactly once: one document
// keyed by source_event_id, one set of stock moves, one journal, and both
// callers observing the same document id.
func TestSaleProcessedConcurrentlyPostsOnce(t *testing.T) {
	setupIntegrationStack(t)
	ctx := context.Background()
	f := seedTenant(t, "Race Co")
	db := config.GetDB()

	batched := f.seedItem(t, "BATCHED-1", true)
	early := f.seedBatch(t, batched, "LOT-EARLY", datePtr("2026-12-01"), dt("5"))
	late := f.seedBatch(t, batched, "LOT-LATE", datePtr("2027-06-01"), dt("5"))
	loose := f.seedItem(t, "LOOSE-1", false)
	f.seedReceiptMove(t, loose, nil, dt("10"))
	cash := f.seedPaymentMethod(t, "Cash", "CASH")

	payload := models.SalePayload{
		BranchId:     f.Branch.ID,
		WarehouseId:  f.Warehouse.ID,
		ExchangeRate: dt("89500"),
		Lines: []models.SaleLinePayload{
			{ItemId: batched.ID, Qty: dt("6"), UnitPriceUsd: dt("10")},
			{ItemId: loose.ID, Qty: dt("4"), UnitPriceUsd: dt("5")},
		},
		Payments: []models.PaymentPayload{
			{PaymentMethodId: cash.ID, AmountUsd: dt("80")},
		},
	}
	raw, err := json.Marshal(&payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}

	eventId := uuid.NewString()
	_, rejected := models.SubmitOutboxEvents(ctx, f.Business.ID, f.Device.ID, []*models.NewOutboxEvent{{
		ID:        eventId,
		EventType: string(models.PosEventTypeSaleCompleted),
		Payload:   raw,
	}})
	if len(rejected) != 0 {
		t.Fatalf("submit rejected: %+v", rejected)
	}

	type outcome struct {
		res *workflow.ProcessResult
		err error
	}
	outcomes := make([]outcome, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			res, err := workflow.ProcessOutboxEvent(ctx, f.Business.ID, &f.Device.ID, eventId, false)
			outcomes[slot] = outcome{res: res, err: err}
		}(i)
	}
	wg.Wait()

	docIds := make([]string, 0, 2)
	for i, o := range outcomes {
		if o.err != nil {
			t.Fatalf("caller %d: %v", i, o.err)
		}
		if o.res.ProcErr != nil {
			t.Fatalf("caller %d: processor failed: %v", i, o.res.ProcErr)
		}
		if o.res.Ref == nil || o.res.Ref.DocType != "sales_doc" {
			t.Fatalf("caller %d: unexpected ref %+v", i, o.res.Ref)
		}
		docIds = append(docIds, o.res.Ref.DocId)
	}
	if docIds[0] != docIds[1] {
		t.Fatalf("callers observed different documents: %s vs %s", docIds[0], docIds[1])
	}
	docId := docIds[0]

	var docs []models.SalesDoc
	err = db.Where("business_id = ? AND source_event_id = ?", f.Business.ID, eventId).Find(&docs).Error
	if err != nil {
		t.Fatalf("load docs: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected exactly one document for the event, got %d", len(docs))
	}
	if docs[0].ID != docId {
		t.Fatalf("document id mismatch: %s vs ref %s", docs[0].ID, docId)
	}
	if !docs[0].TotalUsd.Equal(dt("80")) {
		t.Fatalf("doc total = %s, want 80", docs[0].TotalUsd)
	}
	if !docs[0].TotalLbp.Equal(dt("7160000")) {
		t.Fatalf("doc total LBP = %s, want 7160000", docs[0].TotalLbp)
	}

	event, err := models.GetOutboxEvent(ctx, f.Business.ID, eventId)
	if err != nil {
		t.Fatalf("reload event: %v", err)
	}
	if event.Status != models.OutboxEventStatusProcessed {
		t.Fatalf("event status = %s, want processed", event.Status)
	}
	if event.DocId == nil || *event.DocId != docId {
		t.Fatalf("event doc_id not recorded")
	}

	// FEFO consumed the earlier lot first, with exactly one outbound set.
	var moves []models.StockMove
	err = db.Where("business_id = ? AND source_doc_id = ?", f.Business.ID, docId).
		Order("item_id ASC, qty ASC").Find(&moves).Error
	if err != nil {
		t.Fatalf("load moves: %v", err)
	}
	if len(moves) != 3 {
		t.Fatalf("expected 3 outbound moves, got %d", len(moves))
	}
	byBatch := map[string]decimal.Decimal{}
	looseQty := decimal.Zero
	for _, m := range moves {
		switch {
		case m.ItemId == batched.ID && m.BatchId != nil:
			byBatch[*m.BatchId] = byBatch[*m.BatchId].Add(m.Qty)
		case m.ItemId == loose.ID && m.BatchId == nil:
			looseQty = looseQty.Add(m.Qty)
		default:
			t.Fatalf("unexpected move: %+v", m)
		}
	}
	if !byBatch[early.ID].Equal(dt("-5")) || !byBatch[late.ID].Equal(dt("-1")) {
		t.Fatalf("batched consumption: early %s late %s, want -5/-1", byBatch[early.ID], byBatch[late.ID])
	}
	if !looseQty.Equal(dt("-4")) {
		t.Fatalf("loose consumption = %s, want -4", looseQty)
	}

	// One balanced journal against the document.
	var journals []models.GlJournal
	err = db.Where("business_id = ? AND source_type = ? AND source_id = ?", f.Business.ID, "sales_doc", docId).
		Find(&journals).Error
	if err != nil {
		t.Fatalf("load journals: %v", err)
	}
	if len(journals) != 1 {
		t.Fatalf("expected one journal, got %d", len(journals))
	}
	var entries []models.GlEntry
	err = db.Where("business_id = ? AND journal_id = ?", f.Business.ID, journals[0].ID).Find(&entries).Error
	if err != nil {
		t.Fatalf("load entries: %v", err)
	}
	lines := make([]models.JournalLine, 0, len(entries))
	cashDebit := decimal.Zero
	for _, e := range entries {
		lines = append(lines, models.JournalLine{
			AccountCode: e.AccountCode,
			DebitUsd:    e.DebitUsd,
			CreditUsd:   e.CreditUsd,
			DebitLbp:    e.DebitLbp,
			CreditLbp:   e.CreditLbp,
		})
		if e.AccountCode == models.AccountCashOnHand {
			cashDebit = cashDebit.Add(e.DebitUsd)
		}
	}
	if err := models.CheckJournalBalance(lines); err != nil {
		t.Fatalf("journal: %v", err)
	}
	if !cashDebit.Equal(dt("80")) {
		t.Fatalf("cash debit = %s, want 80", cashDebit)
	}
}
