package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

type PaymentMethod struct {
	ID         string `gorm:"primary_key;size:36" json:"id"`
	BusinessId string `gorm:"size:64;index;not null" json:"business_id"`
	Name       string `gorm:"size:100;not null" json:"name" binding:"required"`
	// RoleCode decides GL account selection and whether the method counts
	// toward the cash drawer: CASH, CARD, CREDIT, OTHER.
	RoleCode    string    `gorm:"size:20;not null;default:'OTHER'" json:"role_code"`
	AccountCode string    `gorm:"size:40" json:"account_code"`
	IsActive    *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime;index" json:"updated_at"`
}

func (m *PaymentMethod) IsCashRole() bool {
	return strings.ToUpper(strings.TrimSpace(m.RoleCode)) == string(PaymentMethodRoleCash)
}

// GLAccountCode falls back to the role's default account when no explicit
// account code is configured.
func (m *PaymentMethod) GLAccountCode() string {
	if m.AccountCode != "" {
		return m.AccountCode
	}
	switch PaymentMethodRole(strings.ToUpper(strings.TrimSpace(m.RoleCode))) {
	case PaymentMethodRoleCash:
		return AccountCashOnHand
	case PaymentMethodRoleCard:
		return AccountCardClearing
	case PaymentMethodRoleCredit:
		return AccountAccountsReceivable
	default:
		return AccountCashOnHand
	}
}

// CashMethodIds returns the deduplicated set of payment method ids whose role
// is CASH. An empty result is honored as-is: no method counts toward the drawer.
func CashMethodIds(tx *gorm.DB, businessId string) (map[string]bool, error) {
	var methods []PaymentMethod
	if err := tx.Where("business_id = ?", businessId).Find(&methods).Error; err != nil {
		return nil, err
	}
	ids := make(map[string]bool)
	for _, m := range methods {
		if m.IsCashRole() {
			ids[m.ID] = true
		}
	}
	return ids, nil
}

func GetPaymentMethodsTx(tx *gorm.DB, businessId string) (map[string]*PaymentMethod, error) {
	var methods []*PaymentMethod
	if err := tx.Where("business_id = ?", businessId).Find(&methods).Error; err != nil {
		return nil, err
	}
	byId := make(map[string]*PaymentMethod, len(methods))
	for _, m := range methods {
		byId[m.ID] = m
	}
	return byId, nil
}
