package models

import (
	"context"
	"time"

	"github.com/cedarpos/pos_backend/config"
	"github.com/cedarpos/pos_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PosDevice struct {
	ID         string `gorm:"primary_key;size:36" json:"id"`
	BusinessId string `gorm:"size:64;index;not null" json:"business_id"`
	BranchId   string `gorm:"size:36;index" json:"branch_id"`
	Name       string `gorm:"size:100;not null" json:"name" binding:"required"`
	// SHA-256 of the opaque bearer token. The raw token is returned exactly
	// once at registration / reset.
	TokenHash  string       `gorm:"size:64;index;not null" json:"-"`
	Status     DeviceStatus `gorm:"type:enum('active','revoked');default:'active'" json:"status"`
	LastSeenAt *time.Time   `gorm:"index" json:"last_seen_at"`
	LastStatus string       `gorm:"size:20" json:"last_status"`
	CreatedAt  time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time    `gorm:"autoUpdateTime;index" json:"updated_at"`
}

type NewPosDevice struct {
	BusinessId string `json:"business_id" binding:"required"`
	BranchId   string `json:"branch_id"`
	Name       string `json:"name" binding:"required"`
}

// RegisterDevice creates a device and returns it with the one-time plaintext token.
func RegisterDevice(ctx context.Context, input NewPosDevice) (*PosDevice, string, error) {
	logger := config.GetLogger()
	db := config.GetDB()

	token, err := utils.GenerateDeviceToken()
	if err != nil {
		config.LogError(logger, "models", "RegisterDevice", "token generation failed", input.BusinessId, err)
		return nil, "", err
	}

	device := PosDevice{
		ID:         uuid.NewString(),
		BusinessId: input.BusinessId,
		BranchId:   input.BranchId,
		Name:       input.Name,
		TokenHash:  utils.HashDeviceToken(token),
		Status:     DeviceStatusActive,
	}
	if err := db.WithContext(ctx).Create(&device).Error; err != nil {
		config.LogError(logger, "models", "RegisterDevice", "insert failed", input, err)
		return nil, "", err
	}
	return &device, token, nil
}

// ResetDeviceToken rotates the opaque token; the old one stops working immediately.
func ResetDeviceToken(ctx context.Context, businessId string, deviceId string) (*PosDevice, string, error) {
	db := config.GetDB()

	var device PosDevice
	err := db.WithContext(ctx).
		Where("business_id = ? AND id = ?", businessId, deviceId).
		First(&device).Error
	if err == gorm.ErrRecordNotFound {
		return nil, "", utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, "", err
	}

	token, err := utils.GenerateDeviceToken()
	if err != nil {
		return nil, "", err
	}
	oldHash := device.TokenHash
	hash := utils.HashDeviceToken(token)
	if err := db.WithContext(ctx).Model(&device).Updates(map[string]interface{}{
		"token_hash": hash,
		"status":     DeviceStatusActive,
	}).Error; err != nil {
		return nil, "", err
	}
	device.TokenHash = hash
	// the cache still maps the stale hash; drop it
	_ = config.RemoveRedisKey("DeviceToken:" + oldHash)
	return &device, token, nil
}

// FindDeviceByToken resolves an active device from a presented bearer token.
// Hot lookups hit redis first; misses fall through to the db.
func FindDeviceByToken(ctx context.Context, token string) (*PosDevice, error) {
	hash := utils.HashDeviceToken(token)

	var cached PosDevice
	exists, err := config.GetRedisObject("DeviceToken:"+hash, &cached)
	if err == nil && exists && cached.Status == DeviceStatusActive {
		return &cached, nil
	}

	db := config.GetDB()
	var device PosDevice
	err = db.WithContext(ctx).
		Where("token_hash = ? AND status = ?", hash, DeviceStatusActive).
		First(&device).Error
	if err == gorm.ErrRecordNotFound {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	_ = config.SetRedisObject("DeviceToken:"+hash, &device, utils.GetCacheLifespan())
	return &device, nil
}

// TouchDeviceHeartbeat records a device status ping. Observational only.
func TouchDeviceHeartbeat(ctx context.Context, businessId string, deviceId string, status string) error {
	db := config.GetDB()
	now := time.Now().UTC()
	return db.WithContext(ctx).Model(&PosDevice{}).
		Where("business_id = ? AND id = ?", businessId, deviceId).
		Updates(map[string]interface{}{
			"last_seen_at": now,
			"last_status":  status,
		}).Error
}

func ListDevices(ctx context.Context, businessId string) ([]*PosDevice, error) {
	return utils.FetchAllModels[PosDevice](ctx, businessId)
}
