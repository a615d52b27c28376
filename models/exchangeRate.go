package models

import (
	"time"

	"github.com/cedarpos/pos_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ExchangeRate struct {
	ID         string          `gorm:"primary_key;size:36" json:"id"`
	BusinessId string          `gorm:"size:64;index;not null;index:idx_rate_biz_date,priority:1" json:"business_id"`
	RateDate   time.Time       `gorm:"type:date;not null;index:idx_rate_biz_date,priority:2" json:"rate_date"`
	UsdToLbp   decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"usd_to_lbp"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime;index" json:"updated_at"`
}

// LatestRateTx returns the most recent rate on or before the given date.
func LatestRateTx(tx *gorm.DB, businessId string, onOrBefore time.Time) (decimal.Decimal, error) {
	var rate ExchangeRate
	err := tx.Where("business_id = ? AND rate_date <= ?", businessId, onOrBefore).
		Order("rate_date DESC").
		First(&rate).Error
	if err == gorm.ErrRecordNotFound {
		return decimal.Zero, utils.ErrorRecordNotFound
	}
	if err != nil {
		return decimal.Zero, err
	}
	return rate.UsdToLbp, nil
}
