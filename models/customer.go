package models

import (
	"time"

	"github.com/cedarpos/pos_backend/config"
	"github.com/cedarpos/pos_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Customer struct {
	ID         string `gorm:"primary_key;size:36" json:"id"`
	BusinessId string `gorm:"size:64;index;not null;uniqueIndex:uniq_customer_member,priority:1" json:"business_id"`
	Name       string `gorm:"size:255;not null" json:"name" binding:"required"`
	// E.164, normalized on import.
	Phone            string          `gorm:"size:20;index" json:"phone"`
	MembershipNo     *string         `gorm:"size:64;uniqueIndex:uniq_customer_member,priority:2" json:"membership_no"`
	CreditBalanceUsd decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"credit_balance_usd"`
	CreditBalanceLbp decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"credit_balance_lbp"`
	LoyaltyPoints    decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"loyalty_points"`
	IsActive         *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime;index" json:"updated_at"`
}

func GetCustomerTx(tx *gorm.DB, businessId string, id string) (*Customer, error) {
	var customer Customer
	err := tx.Where("business_id = ? AND id = ?", businessId, id).First(&customer).Error
	if err == gorm.ErrRecordNotFound {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

// FindCustomerByMembershipTx resolves a customer by membership number. The
// membership number outranks any submitted id on edge imports.
func FindCustomerByMembershipTx(tx *gorm.DB, businessId string, membershipNo string) (*Customer, error) {
	var customer Customer
	err := tx.Where("business_id = ? AND membership_no = ?", businessId, membershipNo).
		First(&customer).Error
	if err == gorm.ErrRecordNotFound {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

// PatchCustomerBalanceTx applies credit/loyalty deltas inside the caller's
// transaction. Deltas may be negative (returns, refunds).
func PatchCustomerBalanceTx(tx *gorm.DB, businessId string, customerId string, creditUsdDelta, creditLbpDelta, loyaltyDelta decimal.Decimal) error {
	result := tx.Model(&Customer{}).
		Where("business_id = ? AND id = ?", businessId, customerId).
		Updates(map[string]interface{}{
			"credit_balance_usd": gorm.Expr("credit_balance_usd + ?", creditUsdDelta),
			"credit_balance_lbp": gorm.Expr("credit_balance_lbp + ?", creditLbpDelta),
			"loyalty_points":     gorm.Expr("loyalty_points + ?", loyaltyDelta),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return utils.ErrorRecordNotFound
	}
	return nil
}

// UpsertCustomerFromEdge applies an edge-submitted customer snapshot.
// Matching order: membership number first, then id. Balances are overwritten
// as submitted: the edge is authoritative for its own documents' effects.
func UpsertCustomerFromEdge(tx *gorm.DB, businessId string, incoming *Customer) (*Customer, error) {
	logger := config.GetLogger()

	if incoming.Phone != "" {
		normalized, err := utils.NormalizePhoneE164(incoming.Phone)
		if err != nil {
			config.LogError(logger, "models", "UpsertCustomerFromEdge", "unparseable phone kept raw", incoming.Phone, err)
		} else {
			incoming.Phone = normalized
		}
	}

	var existing *Customer
	if incoming.MembershipNo != nil && *incoming.MembershipNo != "" {
		found, err := FindCustomerByMembershipTx(tx, businessId, *incoming.MembershipNo)
		if err != nil && err != utils.ErrorRecordNotFound {
			return nil, err
		}
		existing = found
	}
	if existing == nil && incoming.ID != "" {
		found, err := GetCustomerTx(tx, businessId, incoming.ID)
		if err != nil && err != utils.ErrorRecordNotFound {
			return nil, err
		}
		existing = found
	}

	if existing == nil {
		incoming.BusinessId = businessId
		if err := tx.Create(incoming).Error; err != nil {
			return nil, err
		}
		return incoming, nil
	}

	updates := map[string]interface{}{
		"name":               incoming.Name,
		"phone":              incoming.Phone,
		"credit_balance_usd": incoming.CreditBalanceUsd,
		"credit_balance_lbp": incoming.CreditBalanceLbp,
		"loyalty_points":     incoming.LoyaltyPoints,
	}
	if incoming.MembershipNo != nil && *incoming.MembershipNo != "" {
		updates["membership_no"] = *incoming.MembershipNo
	}
	if err := tx.Model(&Customer{}).
		Where("business_id = ? AND id = ?", businessId, existing.ID).
		Updates(updates).Error; err != nil {
		return nil, err
	}
	return GetCustomerTx(tx, businessId, existing.ID)
}
