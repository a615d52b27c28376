package models_test

import (
	"context"
	"testing"
	"time"

	"github.com/cedarpos/pos_backend/config"
	"github.com/cedarpos/pos_backend/models"
	"github.com/cedarpos/pos_backend/utils"
	"github.com/cedarpos/pos_backend/workflow"
	"github.com/google/uuid"
)

func seedShiftSale(t *testing.T, f *tenantFixture, shiftId string, docType models.SalesDocType, methodAmounts map[string][2]string) {
	t.Helper()
	db := config.GetDB()

	doc := models.SalesDoc{
		ID:         uuid.NewString(),
		BusinessId: f.Business.ID,
		BranchId:   f.Branch.ID,
		DeviceId:   f.Device.ID,
		DocNo:      "TEST-" + uuid.NewString()[:8],
		DocType:    docType,
		ShiftId:    &shiftId,
		DocDate:    time.Now().UTC(),
		Status:     models.DocStatusPosted,
	}
	if err := db.Create(&doc).Error; err != nil {
		t.Fatalf("seed sales doc: %v", err)
	}
	for methodId, amounts := range methodAmounts {
		payment := models.SalesDocPayment{
			ID:              uuid.NewString(),
			BusinessId:      f.Business.ID,
			SalesDocId:      doc.ID,
			PaymentMethodId: methodId,
			AmountUsd:       dt(amounts[0]),
			AmountLbp:       dt(amounts[1]),
		}
		if err := db.Create(&payment).Error; err != nil {
			t.Fatalf("seed payment: %v", err)
		}
	}
}

func TestShiftOpenCloseReconciliation(t *testing.T) {
	setupIntegrationStack(t)
	ctx := context.Background()
	f := seedTenant(t, "Drawer Co")

	cash := f.seedPaymentMethod(t, "Cash Drawer", "CASH")
	card := f.seedPaymentMethod(t, "Visa", "CARD")

	// Negative opening is rejected before anything is written.
	if _, err := models.OpenShift(ctx, f.Business.ID, f.Device.ID, models.NewShiftOpen{
		OpeningCashUsd: dt("-1"),
	}); utils.KindOf(err) != utils.ErrorKindValidation {
		t.Fatalf("negative opening: %v", err)
	}

	shift, err := models.OpenShift(ctx, f.Business.ID, f.Device.ID, models.NewShiftOpen{
		OpeningCashUsd: dt("50"),
		OpeningCashLbp: dt("1000000"),
		OpenedBy:       "amal",
	})
	if err != nil {
		t.Fatalf("OpenShift: %v", err)
	}

	// One open shift per device.
	if _, err := models.OpenShift(ctx, f.Business.ID, f.Device.ID, models.NewShiftOpen{}); utils.KindOf(err) != utils.ErrorKindConflict {
		t.Fatalf("second open should conflict, got %v", err)
	}

	// Cash sale 200 USD, card sale 80 USD (card never counts toward the
	// drawer), cash refund 20 USD.
	seedShiftSale(t, f, shift.ID, models.SalesDocTypeSale, map[string][2]string{
		cash.ID: {"200", "3500000"},
		card.ID: {"80", "0"},
	})
	seedShiftSale(t, f, shift.ID, models.SalesDocTypeSaleReturn, map[string][2]string{
		cash.ID: {"20", "150000"},
	})

	if _, err := models.RecordCashMovement(ctx, f.Business.ID, f.Device.ID, models.NewCashMovement{
		MovementType: "cash_in",
		AmountUsd:    dt("100"),
		AmountLbp:    dt("500000"),
	}); err != nil {
		t.Fatalf("cash_in: %v", err)
	}
	if _, err := models.RecordCashMovement(ctx, f.Business.ID, f.Device.ID, models.NewCashMovement{
		MovementType: "safe_drop",
		AmountUsd:    dt("30"),
	}); err != nil {
		t.Fatalf("safe_drop: %v", err)
	}

	// Movements with no amount, or a negative one, never land.
	if _, err := models.RecordCashMovement(ctx, f.Business.ID, f.Device.ID, models.NewCashMovement{
		MovementType: "cash_out",
	}); utils.KindOf(err) != utils.ErrorKindValidation {
		t.Fatalf("zero movement: %v", err)
	}
	if _, err := models.RecordCashMovement(ctx, f.Business.ID, f.Device.ID, models.NewCashMovement{
		MovementType: "cash_out",
		AmountUsd:    dt("-5"),
	}); utils.KindOf(err) != utils.ErrorKindValidation {
		t.Fatalf("negative movement: %v", err)
	}

	// expected = 50 + 200 - 20 + 100 - 30 = 300 USD
	//          = 1000000 + 3500000 - 150000 + 500000 = 4850000 LBP
	closed, err := workflow.CloseShift(ctx, f.Business.ID, f.Device.ID, models.NewShiftClose{
		ClosingCashUsd: dt("260"),
		ClosingCashLbp: dt("4850000"),
		ClosedBy:       "amal",
	})
	if err != nil {
		t.Fatalf("CloseShift: %v", err)
	}
	if !closed.ExpectedCashUsd.Equal(dt("300")) {
		t.Fatalf("expected USD = %s, want 300", closed.ExpectedCashUsd)
	}
	if !closed.ExpectedCashLbp.Equal(dt("4850000")) {
		t.Fatalf("expected LBP = %s, want 4850000", closed.ExpectedCashLbp)
	}
	if !closed.VarianceUsd.Equal(dt("-40")) {
		t.Fatalf("variance USD = %s, want -40", closed.VarianceUsd)
	}
	if !closed.VarianceLbp.IsZero() {
		t.Fatalf("variance LBP = %s, want 0", closed.VarianceLbp)
	}

	// The figures are persisted, not just computed.
	stored, err := models.GetShiftTx(config.GetDB(), f.Business.ID, shift.ID)
	if err != nil {
		t.Fatalf("GetShiftTx: %v", err)
	}
	if stored.Status != models.ShiftStatusClosed || stored.ClosedAt == nil {
		t.Fatalf("shift not closed: %+v", stored)
	}
	if !stored.VarianceUsd.Equal(dt("-40")) {
		t.Fatalf("persisted variance = %s", stored.VarianceUsd)
	}

	// Close is terminal.
	if _, err := workflow.CloseShift(ctx, f.Business.ID, f.Device.ID, models.NewShiftClose{
		ClosingCashUsd: dt("300"),
	}); utils.KindOf(err) != utils.ErrorKindConflict {
		t.Fatalf("second close should conflict, got %v", err)
	}
}

// With no CASH-classified method, sales and refunds drop out of the expected
// figure and only movements count.
func TestShiftCloseWithoutCashMethods(t *testing.T) {
	setupIntegrationStack(t)
	ctx := context.Background()
	f := seedTenant(t, "Cardonly Co")

	card := f.seedPaymentMethod(t, "Visa", "CARD")

	shift, err := models.OpenShift(ctx, f.Business.ID, f.Device.ID, models.NewShiftOpen{
		OpeningCashUsd: dt("75"),
	})
	if err != nil {
		t.Fatalf("OpenShift: %v", err)
	}

	seedShiftSale(t, f, shift.ID, models.SalesDocTypeSale, map[string][2]string{
		card.ID: {"500", "0"},
	})
	if _, err := models.RecordCashMovement(ctx, f.Business.ID, f.Device.ID, models.NewCashMovement{
		MovementType: "cash_in",
		AmountUsd:    dt("25"),
	}); err != nil {
		t.Fatalf("cash_in: %v", err)
	}

	closed, err := workflow.CloseShift(ctx, f.Business.ID, f.Device.ID, models.NewShiftClose{
		ClosingCashUsd: dt("100"),
	})
	if err != nil {
		t.Fatalf("CloseShift: %v", err)
	}
	if !closed.ExpectedCashUsd.Equal(dt("100")) {
		t.Fatalf("expected = %s, want 100 (75 opening + 25 cash_in)", closed.ExpectedCashUsd)
	}
	if !closed.VarianceUsd.IsZero() {
		t.Fatalf("variance = %s, want 0", closed.VarianceUsd)
	}
}
