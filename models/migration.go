package models

import (
	"log"

	"github.com/cedarpos/pos_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Business{}, &Branch{},
		&PosDevice{}, &OutboxEvent{}, &InboxEvent{},
		&PosShift{}, &CashMovement{},
		&Item{}, &Uom{}, &UomConversion{}, &Warehouse{}, &StockLocation{}, &ItemBatch{}, &StockMove{},
		&Customer{}, &PaymentMethod{}, &ExchangeRate{},
		&SalesDoc{}, &SalesDocLine{}, &SalesDocPayment{}, &SalesDocTaxLine{},
		&GoodsReceipt{}, &GoodsReceiptLine{}, &PurchaseInvoice{}, &PurchaseInvoiceLine{},
		&GlJournal{}, &GlEntry{},
		&DocCounter{},
		&EdgeNode{}, &EdgeSyncCursor{},
		&OpsUser{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
