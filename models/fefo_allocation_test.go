package models_test

import (
	"testing"
	"time"

	"github.com/cedarpos/pos_backend/config"
	"github.com/cedarpos/pos_backend/models"
	"github.com/cedarpos/pos_backend/utils"
	"github.com/cedarpos/pos_backend/workflow"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func allocate(t *testing.T, businessId string, req workflow.AllocationRequest) ([]workflow.Allocation, error) {
	t.Helper()
	var plan []workflow.Allocation
	err := config.GetDB().Transaction(func(tx *gorm.DB) error {
		var err error
		plan, err = workflow.AllocateFefo(tx, businessId, req)
		return err
	})
	return plan, err
}

func planTotal(plan []workflow.Allocation) decimal.Decimal {
	total := decimal.Zero
	for _, a := range plan {
		total = total.Add(a.Qty)
	}
	return total
}

func TestFefoAllocationOrderAndExactSum(t *testing.T) {
	setupIntegrationStack(t)
	f := seedTenant(t, "Fefo Co")
	item := f.seedItem(t, "MILK-1L", true)

	early := f.seedBatch(t, item, "B-EARLY", datePtr("2026-09-10"), dt("5"))
	late := f.seedBatch(t, item, "B-LATE", datePtr("2026-10-20"), dt("5"))
	never := f.seedBatch(t, item, "B-NOEXP", nil, dt("5"))

	// 8 units: drain the earliest expiry first, spill into the next.
	plan, err := allocate(t, f.Business.ID, workflow.AllocationRequest{
		ItemId:      item.ID,
		WarehouseId: f.Warehouse.ID,
		Qty:         dt("8"),
	})
	if err != nil {
		t.Fatalf("allocate 8: %v", err)
	}
	if len(plan) != 2 {
		t.Fatalf("plan length = %d: %+v", len(plan), plan)
	}
	if plan[0].BatchId == nil || *plan[0].BatchId != early.ID || !plan[0].Qty.Equal(dt("5")) {
		t.Fatalf("first entry should drain the early batch: %+v", plan[0])
	}
	if plan[1].BatchId == nil || *plan[1].BatchId != late.ID || !plan[1].Qty.Equal(dt("3")) {
		t.Fatalf("second entry should come from the late batch: %+v", plan[1])
	}
	if !planTotal(plan).Equal(dt("8")) {
		t.Fatalf("plan must sum to the requested qty, got %s", planTotal(plan))
	}

	// 12 units: both dated batches, then the no-expiry batch last.
	plan, err = allocate(t, f.Business.ID, workflow.AllocationRequest{
		ItemId:      item.ID,
		WarehouseId: f.Warehouse.ID,
		Qty:         dt("12"),
	})
	if err != nil {
		t.Fatalf("allocate 12: %v", err)
	}
	if len(plan) != 3 || plan[2].BatchId == nil || *plan[2].BatchId != never.ID || !plan[2].Qty.Equal(dt("2")) {
		t.Fatalf("null-expiry batch must be consumed last: %+v", plan)
	}
	if !planTotal(plan).Equal(dt("12")) {
		t.Fatalf("plan must sum to the requested qty, got %s", planTotal(plan))
	}
}

func TestFefoAllocationInsufficientStockFailsOutright(t *testing.T) {
	setupIntegrationStack(t)
	f := seedTenant(t, "NoStock Co")
	item := f.seedItem(t, "YOG-500", true)
	f.seedBatch(t, item, "B-ONLY", datePtr("2026-09-10"), dt("5"))

	// No override flags: under-allocation is an error, never a short plan.
	_, err := allocate(t, f.Business.ID, workflow.AllocationRequest{
		ItemId:      item.ID,
		WarehouseId: f.Warehouse.ID,
		Qty:         dt("6"),
	})
	if utils.KindOf(err) != utils.ErrorKindConflict {
		t.Fatalf("expected conflict, got %v", err)
	}

	// Negative stock permitted: the shortfall lands as an unbatched entry.
	plan, err := allocate(t, f.Business.ID, workflow.AllocationRequest{
		ItemId:             item.ID,
		WarehouseId:        f.Warehouse.ID,
		Qty:                dt("6"),
		AllowNegativeStock: true,
	})
	if err != nil {
		t.Fatalf("allocate with oversell: %v", err)
	}
	last := plan[len(plan)-1]
	if last.BatchId != nil || !last.Qty.Equal(dt("1")) {
		t.Fatalf("oversell remainder should be unbatched qty 1: %+v", plan)
	}
	if !planTotal(plan).Equal(dt("6")) {
		t.Fatalf("plan must sum to the requested qty, got %s", planTotal(plan))
	}
}

func TestFefoAllocationUnbatchedRemainderNeedsOnHand(t *testing.T) {
	setupIntegrationStack(t)
	f := seedTenant(t, "Untracked Co")
	item := f.seedItem(t, "RICE-KG", false)

	// 4 untracked units on hand.
	f.seedReceiptMove(t, item, nil, dt("4"))

	plan, err := allocate(t, f.Business.ID, workflow.AllocationRequest{
		ItemId:                  item.ID,
		WarehouseId:             f.Warehouse.ID,
		Qty:                     dt("3"),
		AllowUnbatchedRemainder: true,
	})
	if err != nil {
		t.Fatalf("allocate untracked: %v", err)
	}
	if len(plan) != 1 || plan[0].BatchId != nil || !plan[0].Qty.Equal(dt("3")) {
		t.Fatalf("untracked allocation: %+v", plan)
	}

	// The unbatched fallback still respects on-hand when oversell is off.
	_, err = allocate(t, f.Business.ID, workflow.AllocationRequest{
		ItemId:                  item.ID,
		WarehouseId:             f.Warehouse.ID,
		Qty:                     dt("5"),
		AllowUnbatchedRemainder: true,
	})
	if utils.KindOf(err) != utils.ErrorKindConflict {
		t.Fatalf("expected conflict when untracked on-hand is short, got %v", err)
	}
}

func TestFefoAllocationShelfLifeGate(t *testing.T) {
	setupIntegrationStack(t)
	f := seedTenant(t, "ShelfLife Co")
	item := f.seedItem(t, "CHEESE-200", true)

	f.seedBatch(t, item, "B-SOON", datePtr("2026-09-01"), dt("5"))
	ok := f.seedBatch(t, item, "B-FRESH", datePtr("2026-12-01"), dt("5"))
	noExpiry := f.seedBatch(t, item, "B-NOEXP", nil, dt("5"))

	// Batches expiring before the gate are not candidates; nil expiry passes.
	minExpiry := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	plan, err := allocate(t, f.Business.ID, workflow.AllocationRequest{
		ItemId:      item.ID,
		WarehouseId: f.Warehouse.ID,
		Qty:         dt("7"),
		MinExpiry:   &minExpiry,
	})
	if err != nil {
		t.Fatalf("allocate with shelf-life gate: %v", err)
	}
	if len(plan) != 2 {
		t.Fatalf("plan: %+v", plan)
	}
	if *plan[0].BatchId != ok.ID || !plan[0].Qty.Equal(dt("5")) {
		t.Fatalf("gated plan should start at the compliant dated batch: %+v", plan[0])
	}
	if *plan[1].BatchId != noExpiry.ID || !plan[1].Qty.Equal(dt("2")) {
		t.Fatalf("gated plan should fall through to the no-expiry batch: %+v", plan[1])
	}
}

func TestFefoAllocationSkipsBlockedBatches(t *testing.T) {
	setupIntegrationStack(t)
	f := seedTenant(t, "Blocked Co")
	item := f.seedItem(t, "MEAT-KG", true)

	blocked := f.seedBatch(t, item, "B-BAD", datePtr("2026-09-01"), dt("5"))
	if err := config.GetDB().Model(&models.ItemBatch{}).
		Where("business_id = ? AND id = ?", f.Business.ID, blocked.ID).
		Update("status", models.BatchStatusBlocked).Error; err != nil {
		t.Fatalf("block batch: %v", err)
	}
	good := f.seedBatch(t, item, "B-GOOD", datePtr("2026-10-01"), dt("5"))

	plan, err := allocate(t, f.Business.ID, workflow.AllocationRequest{
		ItemId:      item.ID,
		WarehouseId: f.Warehouse.ID,
		Qty:         dt("5"),
	})
	if err != nil {
		t.Fatalf("allocate around blocked batch: %v", err)
	}
	if len(plan) != 1 || *plan[0].BatchId != good.ID {
		t.Fatalf("blocked batch must not be consumed: %+v", plan)
	}
}
