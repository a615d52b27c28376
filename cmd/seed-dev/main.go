// seed-dev provisions a development tenant: a business with a branch,
// warehouse, items (one batch-tracked with staggered expiries), payment
// methods, an exchange rate, a customer, and a registered device. The device
// token is printed once at the end.
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... \
//   go run ./cmd/seed-dev
//
// The tool is idempotent: rows are found by their natural keys and reused.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cedarpos/pos_backend/config"
	"github.com/cedarpos/pos_backend/models"
	"github.com/cedarpos/pos_backend/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func main() {
	businessName := flag.String("business-name", getenv("SEED_BUSINESS_NAME", "Cedar Mart (Dev)"), "Business name to create/reuse")
	deviceName := flag.String("device-name", getenv("SEED_DEVICE_NAME", "DEV-REGISTER-1"), "Device name to register")
	rateStr := flag.String("rate", getenv("SEED_USD_TO_LBP", "89500"), "USD to LBP rate to record for today")
	flag.Parse()

	rate, err := decimal.NewFromString(strings.TrimSpace(*rateStr))
	if err != nil || rate.LessThanOrEqual(decimal.Zero) {
		fatal("--rate must be a positive decimal, got %q", *rateStr)
	}

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fatal("database not initialized (config.GetDB returned nil). Set DB_* env vars.")
	}
	models.MigrateTable()

	business := findOrCreateBusiness(ctx, db, *businessName)
	fmt.Printf("business   %s  %q\n", business.ID, business.Name)

	branch := findOrCreateBranch(ctx, db, business.ID, "Main Branch")
	fmt.Printf("branch     %s  %q\n", branch.ID, branch.Name)

	warehouse := findOrCreateWarehouse(ctx, db, business.ID, branch.ID, "Main Warehouse")
	fmt.Printf("warehouse  %s  %q\n", warehouse.ID, warehouse.Name)
	location := findOrCreateLocation(ctx, db, business.ID, warehouse.ID, "FLOOR")

	pcs := findOrCreateUom(ctx, db, business.ID, "pcs", 0)
	box := findOrCreateUom(ctx, db, business.ID, "box", 0)
	kg := findOrCreateUom(ctx, db, business.ID, "kg", 3)

	water := findOrCreateItem(ctx, db, models.Item{
		BusinessId:    business.ID,
		Sku:           "WTR-500",
		Name:          "Water 0.5L",
		BaseUomId:     pcs.ID,
		SalesPriceUsd: decimal.RequireFromString("0.50"),
		SalesPriceLbp: decimal.RequireFromString("45000"),
		LastCostUsd:   decimal.RequireFromString("0.20"),
		TaxCode:       "VAT11",
	})
	findOrCreateConversion(ctx, db, business.ID, water.ID, box.ID, decimal.NewFromInt(24))

	milk := findOrCreateItem(ctx, db, models.Item{
		BusinessId:              business.ID,
		Sku:                     "MILK-1L",
		Name:                    "Milk 1L",
		BaseUomId:               pcs.ID,
		TrackBatches:            true,
		TrackExpiry:             true,
		MinShelfLifeDaysForSale: 3,
		SalesPriceUsd:           decimal.RequireFromString("1.80"),
		LastCostUsd:             decimal.RequireFromString("1.20"),
		TaxCode:                 "VAT11",
	})
	rice := findOrCreateItem(ctx, db, models.Item{
		BusinessId:    business.ID,
		Sku:           "RICE-KG",
		Name:          "Rice (kg)",
		BaseUomId:     kg.ID,
		SalesPriceUsd: decimal.RequireFromString("1.10"),
		LastCostUsd:   decimal.RequireFromString("0.80"),
	})

	// Two milk batches with staggered expiries so FEFO allocation is visible
	// on a dev box.
	soon := time.Now().UTC().AddDate(0, 0, 10)
	later := time.Now().UTC().AddDate(0, 0, 30)
	batchSoon := findOrCreateBatch(ctx, db, business.ID, milk.ID, "MILK-A", &soon)
	batchLater := findOrCreateBatch(ctx, db, business.ID, milk.ID, "MILK-B", &later)

	findOrCreateMethod(ctx, db, business.ID, "Cash", string(models.PaymentMethodRoleCash))
	findOrCreateMethod(ctx, db, business.ID, "Card", string(models.PaymentMethodRoleCard))
	findOrCreateMethod(ctx, db, business.ID, "On Account", string(models.PaymentMethodRoleCredit))

	upsertTodayRate(ctx, db, business.ID, rate)
	findOrCreateCustomer(ctx, db, business.ID, "Nadia Khoury", "M-0001")

	seedOpeningStock(ctx, db, business.ID, warehouse.ID, &location.ID, []openingLine{
		{itemId: water.ID, qty: decimal.NewFromInt(240)},
		{itemId: milk.ID, batchId: &batchSoon.ID, qty: decimal.NewFromInt(48)},
		{itemId: milk.ID, batchId: &batchLater.ID, qty: decimal.NewFromInt(72)},
		{itemId: rice.ID, qty: decimal.RequireFromString("100.5")},
	})

	device, token, err := findOrRegisterDevice(ctx, db, business.ID, branch.ID, *deviceName)
	if err != nil {
		fatal("failed to register device: %v", err)
	}
	fmt.Printf("device     %s  %q\n", device.ID, device.Name)
	if token != "" {
		fmt.Printf("\ndevice token (save it, shown once):\n  %s\n", token)
	} else {
		fmt.Println("\ndevice already registered; reset its token via the ops API if needed")
	}
}

func findOrCreateBusiness(ctx context.Context, db *gorm.DB, name string) *models.Business {
	var business models.Business
	err := db.WithContext(ctx).Where("name = ?", name).Take(&business).Error
	if err == nil {
		return &business
	}
	if err != gorm.ErrRecordNotFound {
		fatal("business lookup failed: %v", err)
	}
	business = models.Business{
		ID:                      uuid.NewString(),
		Name:                    name,
		BaseCurrency:            "USD",
		DefaultMinShelfLifeDays: 0,
		LoyaltyEarnRatePer1Usd:  decimal.NewFromInt(1),
		Timezone:                "Asia/Beirut",
		IsActive:                utils.NewTrue(),
	}
	if err := db.WithContext(ctx).Create(&business).Error; err != nil {
		fatal("business create failed: %v", err)
	}
	return &business
}

func findOrCreateBranch(ctx context.Context, db *gorm.DB, businessId string, name string) *models.Branch {
	var branch models.Branch
	err := db.WithContext(ctx).Where("business_id = ? AND name = ?", businessId, name).Take(&branch).Error
	if err == nil {
		return &branch
	}
	if err != gorm.ErrRecordNotFound {
		fatal("branch lookup failed: %v", err)
	}
	branch = models.Branch{ID: uuid.NewString(), BusinessId: businessId, Name: name, IsActive: utils.NewTrue()}
	if err := db.WithContext(ctx).Create(&branch).Error; err != nil {
		fatal("branch create failed: %v", err)
	}
	return &branch
}

func findOrCreateWarehouse(ctx context.Context, db *gorm.DB, businessId string, branchId string, name string) *models.Warehouse {
	var warehouse models.Warehouse
	err := db.WithContext(ctx).Where("business_id = ? AND name = ?", businessId, name).Take(&warehouse).Error
	if err == nil {
		return &warehouse
	}
	if err != gorm.ErrRecordNotFound {
		fatal("warehouse lookup failed: %v", err)
	}
	warehouse = models.Warehouse{
		ID:         uuid.NewString(),
		BusinessId: businessId,
		BranchId:   branchId,
		Name:       name,
		IsActive:   utils.NewTrue(),
	}
	if err := db.WithContext(ctx).Create(&warehouse).Error; err != nil {
		fatal("warehouse create failed: %v", err)
	}
	return &warehouse
}

func findOrCreateLocation(ctx context.Context, db *gorm.DB, businessId string, warehouseId string, code string) *models.StockLocation {
	var location models.StockLocation
	err := db.WithContext(ctx).Where("business_id = ? AND warehouse_id = ? AND code = ?", businessId, warehouseId, code).Take(&location).Error
	if err == nil {
		return &location
	}
	if err != gorm.ErrRecordNotFound {
		fatal("location lookup failed: %v", err)
	}
	location = models.StockLocation{ID: uuid.NewString(), BusinessId: businessId, WarehouseId: warehouseId, Code: code}
	if err := db.WithContext(ctx).Create(&location).Error; err != nil {
		fatal("location create failed: %v", err)
	}
	return &location
}

func findOrCreateUom(ctx context.Context, db *gorm.DB, businessId string, name string, precision int) *models.Uom {
	var uom models.Uom
	err := db.WithContext(ctx).Where("business_id = ? AND name = ?", businessId, name).Take(&uom).Error
	if err == nil {
		return &uom
	}
	if err != gorm.ErrRecordNotFound {
		fatal("uom lookup failed: %v", err)
	}
	uom = models.Uom{ID: uuid.NewString(), BusinessId: businessId, Name: name, Precision: precision}
	if err := db.WithContext(ctx).Create(&uom).Error; err != nil {
		fatal("uom create failed: %v", err)
	}
	return &uom
}

func findOrCreateItem(ctx context.Context, db *gorm.DB, template models.Item) *models.Item {
	var item models.Item
	err := db.WithContext(ctx).Where("business_id = ? AND sku = ?", template.BusinessId, template.Sku).Take(&item).Error
	if err == nil {
		return &item
	}
	if err != gorm.ErrRecordNotFound {
		fatal("item lookup failed: %v", err)
	}
	template.ID = uuid.NewString()
	template.IsActive = utils.NewTrue()
	if err := db.WithContext(ctx).Create(&template).Error; err != nil {
		fatal("item create failed: %v", err)
	}
	return &template
}

func findOrCreateConversion(ctx context.Context, db *gorm.DB, businessId string, itemId string, uomId string, factor decimal.Decimal) {
	var conv models.UomConversion
	err := db.WithContext(ctx).Where("business_id = ? AND item_id = ? AND uom_id = ?", businessId, itemId, uomId).Take(&conv).Error
	if err == nil {
		return
	}
	if err != gorm.ErrRecordNotFound {
		fatal("conversion lookup failed: %v", err)
	}
	conv = models.UomConversion{ID: uuid.NewString(), BusinessId: businessId, ItemId: itemId, UomId: uomId, ToBaseFactor: factor}
	if err := db.WithContext(ctx).Create(&conv).Error; err != nil {
		fatal("conversion create failed: %v", err)
	}
}

func findOrCreateBatch(ctx context.Context, db *gorm.DB, businessId string, itemId string, batchNo string, expiry *time.Time) *models.ItemBatch {
	var batch models.ItemBatch
	err := db.WithContext(ctx).Where("business_id = ? AND item_id = ? AND batch_no = ?", businessId, itemId, batchNo).Take(&batch).Error
	if err == nil {
		return &batch
	}
	if err != gorm.ErrRecordNotFound {
		fatal("batch lookup failed: %v", err)
	}
	batch = models.ItemBatch{
		ID:         uuid.NewString(),
		BusinessId: businessId,
		ItemId:     itemId,
		BatchNo:    batchNo,
		ExpiryDate: expiry,
		Status:     models.BatchStatusAvailable,
		CostUsd:    decimal.RequireFromString("1.20"),
		ReceivedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(&batch).Error; err != nil {
		fatal("batch create failed: %v", err)
	}
	return &batch
}

func findOrCreateMethod(ctx context.Context, db *gorm.DB, businessId string, name string, role string) {
	var method models.PaymentMethod
	err := db.WithContext(ctx).Where("business_id = ? AND name = ?", businessId, name).Take(&method).Error
	if err == nil {
		return
	}
	if err != gorm.ErrRecordNotFound {
		fatal("payment method lookup failed: %v", err)
	}
	method = models.PaymentMethod{
		ID:         uuid.NewString(),
		BusinessId: businessId,
		Name:       name,
		RoleCode:   role,
		IsActive:   utils.NewTrue(),
	}
	if err := db.WithContext(ctx).Create(&method).Error; err != nil {
		fatal("payment method create failed: %v", err)
	}
}

func upsertTodayRate(ctx context.Context, db *gorm.DB, businessId string, rate decimal.Decimal) {
	today := time.Now().UTC().Truncate(24 * time.Hour)
	var existing models.ExchangeRate
	err := db.WithContext(ctx).Where("business_id = ? AND rate_date = ?", businessId, today).Take(&existing).Error
	if err == nil {
		if err := db.WithContext(ctx).Model(&existing).Update("usd_to_lbp", rate).Error; err != nil {
			fatal("rate update failed: %v", err)
		}
		return
	}
	if err != gorm.ErrRecordNotFound {
		fatal("rate lookup failed: %v", err)
	}
	row := models.ExchangeRate{ID: uuid.NewString(), BusinessId: businessId, RateDate: today, UsdToLbp: rate}
	if err := db.WithContext(ctx).Create(&row).Error; err != nil {
		fatal("rate create failed: %v", err)
	}
}

func findOrCreateCustomer(ctx context.Context, db *gorm.DB, businessId string, name string, membershipNo string) {
	var customer models.Customer
	err := db.WithContext(ctx).Where("business_id = ? AND membership_no = ?", businessId, membershipNo).Take(&customer).Error
	if err == nil {
		return
	}
	if err != gorm.ErrRecordNotFound {
		fatal("customer lookup failed: %v", err)
	}
	customer = models.Customer{
		ID:           uuid.NewString(),
		BusinessId:   businessId,
		Name:         name,
		MembershipNo: &membershipNo,
		IsActive:     utils.NewTrue(),
	}
	if err := db.WithContext(ctx).Create(&customer).Error; err != nil {
		fatal("customer create failed: %v", err)
	}
}

type openingLine struct {
	itemId  string
	batchId *string
	qty     decimal.Decimal
}

// seedOpeningStock writes receipt moves once per item+batch; reruns skip lines
// that already have an opening move.
func seedOpeningStock(ctx context.Context, db *gorm.DB, businessId string, warehouseId string, locationId *string, lines []openingLine) {
	for _, line := range lines {
		q := db.WithContext(ctx).Model(&models.StockMove{}).
			Where("business_id = ? AND item_id = ? AND warehouse_id = ? AND source_doc_type = ?",
				businessId, line.itemId, warehouseId, "seed_opening")
		if line.batchId != nil {
			q = q.Where("batch_id = ?", *line.batchId)
		}
		var count int64
		if err := q.Count(&count).Error; err != nil {
			fatal("opening stock lookup failed: %v", err)
		}
		if count > 0 {
			continue
		}
		move := models.StockMove{
			ID:            uuid.NewString(),
			BusinessId:    businessId,
			ItemId:        line.itemId,
			WarehouseId:   warehouseId,
			LocationId:    locationId,
			BatchId:       line.batchId,
			Qty:           line.qty,
			MoveType:      models.StockMoveTypeReceipt,
			SourceDocType: "seed_opening",
			SourceDocId:   businessId,
			MovedAt:       time.Now().UTC(),
		}
		if err := db.WithContext(ctx).Create(&move).Error; err != nil {
			fatal("opening stock create failed: %v", err)
		}
	}
}

func findOrRegisterDevice(ctx context.Context, db *gorm.DB, businessId string, branchId string, name string) (*models.PosDevice, string, error) {
	var device models.PosDevice
	err := db.WithContext(ctx).Where("business_id = ? AND name = ?", businessId, name).Take(&device).Error
	if err == nil {
		return &device, "", nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, "", err
	}
	return registerDevice(ctx, businessId, branchId, name)
}

func registerDevice(ctx context.Context, businessId string, branchId string, name string) (*models.PosDevice, string, error) {
	device, token, err := models.RegisterDevice(ctx, models.NewPosDevice{
		BusinessId: businessId,
		BranchId:   branchId,
		Name:       name,
	})
	if err != nil {
		return nil, "", err
	}
	return device, token, nil
}
