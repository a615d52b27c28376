package models_test

import (
	"context"
	"testing"
	"time"

	"github.com/cedarpos/pos_backend/config"
	"github.com/cedarpos/pos_backend/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func dt(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func datePtr(s string) *time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &d
}

// tenantFixture is the minimal tenant a POS processor needs: business,
// branch, warehouse, base uom and a registered device.
type tenantFixture struct {
	Business  *models.Business
	Branch    *models.Branch
	Warehouse *models.Warehouse
	BaseUom   *models.Uom
	Device    *models.PosDevice
}

func seedTenant(t *testing.T, name string) *tenantFixture {
	t.Helper()
	ctx := context.Background()
	db := config.GetDB()

	biz := models.Business{
		ID:           uuid.NewString(),
		Name:         name,
		BaseCurrency: "USD",
	}
	if err := db.WithContext(ctx).Create(&biz).Error; err != nil {
		t.Fatalf("seed business: %v", err)
	}

	branch := models.Branch{ID: uuid.NewString(), BusinessId: biz.ID, Name: "Main Branch"}
	if err := db.WithContext(ctx).Create(&branch).Error; err != nil {
		t.Fatalf("seed branch: %v", err)
	}

	warehouse := models.Warehouse{
		ID:         uuid.NewString(),
		BusinessId: biz.ID,
		BranchId:   branch.ID,
		Name:       "Main Warehouse",
	}
	if err := db.WithContext(ctx).Create(&warehouse).Error; err != nil {
		t.Fatalf("seed warehouse: %v", err)
	}

	baseUom := models.Uom{ID: uuid.NewString(), BusinessId: biz.ID, Name: "Pc"}
	if err := db.WithContext(ctx).Create(&baseUom).Error; err != nil {
		t.Fatalf("seed uom: %v", err)
	}

	device, _, err := models.RegisterDevice(ctx, models.NewPosDevice{
		BusinessId: biz.ID,
		BranchId:   branch.ID,
		Name:       "Register 1",
	})
	if err != nil {
		t.Fatalf("seed device: %v", err)
	}

	return &tenantFixture{
		Business:  &biz,
		Branch:    &branch,
		Warehouse: &warehouse,
		BaseUom:   &baseUom,
		Device:    device,
	}
}

func (f *tenantFixture) seedItem(t *testing.T, sku string, trackBatches bool) *models.Item {
	t.Helper()
	item := models.Item{
		ID:           uuid.NewString(),
		BusinessId:   f.Business.ID,
		Sku:          sku,
		Name:         "Item " + sku,
		BaseUomId:    f.BaseUom.ID,
		TrackBatches: trackBatches,
	}
	if err := config.GetDB().Create(&item).Error; err != nil {
		t.Fatalf("seed item %s: %v", sku, err)
	}
	return &item
}

func (f *tenantFixture) seedBatch(t *testing.T, item *models.Item, batchNo string, expiry *time.Time, qty decimal.Decimal) *models.ItemBatch {
	t.Helper()
	db := config.GetDB()
	batch := models.ItemBatch{
		ID:         uuid.NewString(),
		BusinessId: f.Business.ID,
		ItemId:     item.ID,
		BatchNo:    batchNo,
		ExpiryDate: expiry,
		Status:     models.BatchStatusAvailable,
		ReceivedAt: time.Now().UTC(),
	}
	if err := db.Create(&batch).Error; err != nil {
		t.Fatalf("seed batch %s: %v", batchNo, err)
	}
	if qty.IsPositive() {
		f.seedReceiptMove(t, item, &batch.ID, qty)
	}
	return &batch
}

func (f *tenantFixture) seedReceiptMove(t *testing.T, item *models.Item, batchId *string, qty decimal.Decimal) {
	t.Helper()
	move := models.StockMove{
		ID:            uuid.NewString(),
		BusinessId:    f.Business.ID,
		ItemId:        item.ID,
		WarehouseId:   f.Warehouse.ID,
		BatchId:       batchId,
		Qty:           qty,
		MoveType:      models.StockMoveTypeReceipt,
		SourceDocType: "goods_receipt",
		SourceDocId:   uuid.NewString(),
		MovedAt:       time.Now().UTC(),
	}
	if err := config.GetDB().Create(&move).Error; err != nil {
		t.Fatalf("seed receipt move: %v", err)
	}
}

func (f *tenantFixture) seedPaymentMethod(t *testing.T, name string, role string) *models.PaymentMethod {
	t.Helper()
	method := models.PaymentMethod{
		ID:         uuid.NewString(),
		BusinessId: f.Business.ID,
		Name:       name,
		RoleCode:   role,
	}
	if err := config.GetDB().Create(&method).Error; err != nil {
		t.Fatalf("seed payment method %s: %v", name, err)
	}
	return &method
}
