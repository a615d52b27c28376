package models

import (
	"context"
	"time"

	"github.com/cedarpos/pos_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Business struct {
	ID           string `gorm:"primary_key;size:36" json:"id"`
	Name         string `gorm:"index;size:100;not null" json:"name" binding:"required"`
	BaseCurrency string `gorm:"size:3;not null;default:'USD'" json:"base_currency"`
	// Tenant-wide posting defaults; warehouse/item settings override.
	DefaultAllowNegativeStock bool            `gorm:"not null;default:false" json:"default_allow_negative_stock"`
	DefaultMinShelfLifeDays   int             `gorm:"not null;default:0" json:"default_min_shelf_life_days"`
	LoyaltyEarnRatePer1Usd    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"loyalty_earn_rate_per_1_usd"`
	Timezone                  string          `gorm:"size:50" json:"timezone"`
	IsActive                  *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt                 time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt                 time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type Branch struct {
	ID         string    `gorm:"primary_key;size:36" json:"id"`
	BusinessId string    `gorm:"size:64;index;not null" json:"business_id"`
	Name       string    `gorm:"size:100;not null" json:"name" binding:"required"`
	IsActive   *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (business *Business) StoreRedis() error {
	return utils.StoreRedis[Business](business, business.ID)
}

// GetBusinessById reads through the redis cache.
func GetBusinessById(ctx context.Context, id string) (*Business, error) {

	cached, err := utils.RetrieveRedis[Business](id)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached, nil
	}

	result, err := utils.FetchSingleModel[Business](ctx, id)
	if err != nil {
		return nil, err
	}
	if err := result.StoreRedis(); err != nil {
		return nil, err
	}
	return result, nil
}

// GetBusinessByIdTx is the in-transaction variant used by processors.
func GetBusinessByIdTx(tx *gorm.DB, id string) (*Business, error) {

	cached, err := utils.RetrieveRedis[Business](id)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached, nil
	}

	var result Business
	if err := tx.Where("id = ?", id).First(&result).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	if err := result.StoreRedis(); err != nil {
		return nil, err
	}
	return &result, nil
}
