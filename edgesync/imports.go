package edgesync

import (
	"context"

	"github.com/cedarpos/pos_backend/config"
	"github.com/cedarpos/pos_backend/models"
	"github.com/cedarpos/pos_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ImportSalesBundle lands one edge-posted document with all of its rows.
// Every insert ignores duplicate primary keys, so a bundle that died halfway
// can be resent and only the missing rows land. Existing rows are never
// updated: the edge already posted the document and the cloud copy must not
// drift from it.
func ImportSalesBundle(ctx context.Context, businessId string, bundle *SalesBundle) (*ImportReceipt, error) {
	if bundle == nil || bundle.Doc.ID == "" {
		return nil, utils.NewValidationError("bundle document id is required")
	}
	if bundle.Doc.BusinessId != "" && bundle.Doc.BusinessId != businessId {
		return nil, utils.NewValidationError("bundle document belongs to another business")
	}

	receipt := &ImportReceipt{DocId: bundle.Doc.ID}
	err := config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		doc := bundle.Doc
		doc.BusinessId = businessId
		// Children arrive as their own bundle sections; never let gorm
		// cascade them off the doc row.
		doc.Lines = nil
		doc.Payments = nil
		doc.TaxLines = nil
		doc.SyncedAt = nil
		if err := insertIgnore(tx, &doc, receipt); err != nil {
			return err
		}

		for i := range bundle.Lines {
			row := bundle.Lines[i]
			row.BusinessId = businessId
			row.SalesDocId = doc.ID
			if err := insertIgnore(tx, &row, receipt); err != nil {
				return err
			}
		}
		for i := range bundle.Payments {
			row := bundle.Payments[i]
			row.BusinessId = businessId
			row.SalesDocId = doc.ID
			if err := insertIgnore(tx, &row, receipt); err != nil {
				return err
			}
		}
		for i := range bundle.TaxLines {
			row := bundle.TaxLines[i]
			row.BusinessId = businessId
			row.SalesDocId = doc.ID
			if err := insertIgnore(tx, &row, receipt); err != nil {
				return err
			}
		}
		for i := range bundle.Journals {
			row := bundle.Journals[i]
			row.BusinessId = businessId
			row.Entries = nil
			if err := insertIgnore(tx, &row, receipt); err != nil {
				return err
			}
		}
		for i := range bundle.Entries {
			row := bundle.Entries[i]
			row.BusinessId = businessId
			if err := insertIgnore(tx, &row, receipt); err != nil {
				return err
			}
		}
		// Stock moves land last: a bundle that dies mid-import must never
		// leave inventory moved ahead of its document.
		for i := range bundle.StockMoves {
			row := bundle.StockMoves[i]
			row.BusinessId = businessId
			if err := insertIgnore(tx, &row, receipt); err != nil {
				return err
			}
		}

		if bundle.CustomerUpdate != nil {
			return applyCustomerSnapshot(tx, businessId, bundle.CustomerUpdate)
		}
		return nil
	})
	if err != nil {
		config.LogError(config.GetLogger(), "edgesync", "ImportSalesBundle", bundle.Doc.ID, businessId, err)
		return nil, err
	}

	return receipt, nil
}

func insertIgnore(tx *gorm.DB, row interface{}, receipt *ImportReceipt) error {
	result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(row)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		receipt.InsertedRows += result.RowsAffected
	} else {
		receipt.SkippedRows++
	}
	return nil
}

// applyCustomerSnapshot overwrites a known customer's balances with the
// edge-computed values. Membership number outranks the submitted id; an
// unknown customer is skipped, its balances ride in on the next customer
// push.
func applyCustomerSnapshot(tx *gorm.DB, businessId string, snap *CustomerBalanceSnapshot) error {
	var target *models.Customer
	if snap.MembershipNo != "" {
		found, err := models.FindCustomerByMembershipTx(tx, businessId, snap.MembershipNo)
		if err != nil && err != utils.ErrorRecordNotFound {
			return err
		}
		target = found
	}
	if target == nil && snap.Id != "" {
		found, err := models.GetCustomerTx(tx, businessId, snap.Id)
		if err != nil && err != utils.ErrorRecordNotFound {
			return err
		}
		target = found
	}
	if target == nil {
		return nil
	}

	return tx.Model(&models.Customer{}).
		Where("business_id = ? AND id = ?", businessId, target.ID).
		Updates(map[string]interface{}{
			"credit_balance_usd": snap.CreditBalanceUsd,
			"credit_balance_lbp": snap.CreditBalanceLbp,
			"loyalty_points":     snap.LoyaltyPoints,
		}).Error
}

// ImportCustomer lands one customer pushed from an edge node.
func ImportCustomer(ctx context.Context, businessId string, incoming *models.Customer) (*models.Customer, error) {
	if incoming == nil {
		return nil, utils.NewValidationError("customer payload is required")
	}
	hasMembership := incoming.MembershipNo != nil && *incoming.MembershipNo != ""
	if incoming.ID == "" && !hasMembership {
		return nil, utils.NewValidationError("customer id or membership number is required")
	}

	var saved *models.Customer
	err := config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		out, err := models.UpsertCustomerFromEdge(tx, businessId, incoming)
		if err != nil {
			return err
		}
		saved = out
		return nil
	})
	if err != nil {
		config.LogError(config.GetLogger(), "edgesync", "ImportCustomer", incoming.ID, businessId, err)
		return nil, err
	}
	return saved, nil
}
