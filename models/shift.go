package models

import (
	"context"
	"time"

	"github.com/cedarpos/pos_backend/config"
	"github.com/cedarpos/pos_backend/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PosShift struct {
	ID             string          `gorm:"primary_key;size:36" json:"id"`
	BusinessId     string          `gorm:"size:64;index;not null;index:idx_shift_device,priority:1" json:"business_id"`
	DeviceId       string          `gorm:"size:36;not null;index:idx_shift_device,priority:2" json:"device_id"`
	Status         ShiftStatus     `gorm:"type:enum('open','closed');default:'open';index:idx_shift_device,priority:3" json:"status"`
	OpenedAt       time.Time       `gorm:"not null" json:"opened_at"`
	ClosedAt       *time.Time      `json:"closed_at"`
	OpeningCashUsd decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"opening_cash_usd"`
	OpeningCashLbp decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"opening_cash_lbp"`
	// Set at close: what the drawer should hold, what was counted, the gap.
	ClosingCashUsd  *decimal.Decimal `gorm:"type:decimal(20,4)" json:"closing_cash_usd"`
	ClosingCashLbp  *decimal.Decimal `gorm:"type:decimal(20,2)" json:"closing_cash_lbp"`
	ExpectedCashUsd *decimal.Decimal `gorm:"type:decimal(20,4)" json:"expected_cash_usd"`
	ExpectedCashLbp *decimal.Decimal `gorm:"type:decimal(20,2)" json:"expected_cash_lbp"`
	VarianceUsd     *decimal.Decimal `gorm:"type:decimal(20,4)" json:"variance_usd"`
	VarianceLbp     *decimal.Decimal `gorm:"type:decimal(20,2)" json:"variance_lbp"`
	OpenedBy        string           `gorm:"size:100" json:"opened_by"`
	ClosedBy        string           `gorm:"size:100" json:"closed_by"`
	CreatedAt       time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time        `gorm:"autoUpdateTime;index" json:"updated_at"`
}

// CashMovement is an append-only drawer adjustment inside a shift.
type CashMovement struct {
	ID           string           `gorm:"primary_key;size:36" json:"id"`
	BusinessId   string           `gorm:"size:64;index;not null" json:"business_id"`
	ShiftId      string           `gorm:"size:36;index;not null" json:"shift_id"`
	MovementType CashMovementType `gorm:"type:enum('cash_in','cash_out','paid_out','safe_drop','other');not null" json:"movement_type"`
	AmountUsd    decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"amount_usd"`
	AmountLbp    decimal.Decimal  `gorm:"type:decimal(20,2);default:0" json:"amount_lbp"`
	Reason       string           `gorm:"size:255" json:"reason"`
	CreatedAt    time.Time        `gorm:"autoCreateTime" json:"created_at"`
}

type NewShiftOpen struct {
	OpeningCashUsd decimal.Decimal `json:"opening_cash_usd"`
	OpeningCashLbp decimal.Decimal `json:"opening_cash_lbp"`
	OpenedBy       string          `json:"opened_by"`
	OpenedAt       *time.Time      `json:"opened_at"`
}

type NewCashMovement struct {
	MovementType string          `json:"movement_type" binding:"required"`
	AmountUsd    decimal.Decimal `json:"amount_usd"`
	AmountLbp    decimal.Decimal `json:"amount_lbp"`
	Reason       string          `json:"reason"`
}

type NewShiftClose struct {
	ShiftId        *string         `json:"shift_id"`
	ClosingCashUsd decimal.Decimal `json:"closing_cash_usd"`
	ClosingCashLbp decimal.Decimal `json:"closing_cash_lbp"`
	ClosedBy       string          `json:"closed_by"`
}

// GetShiftTx fetches one shift by id, any status.
func GetShiftTx(tx *gorm.DB, businessId string, shiftId string) (*PosShift, error) {
	var shift PosShift
	err := tx.Where("business_id = ? AND id = ?", businessId, shiftId).First(&shift).Error
	if err == gorm.ErrRecordNotFound {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &shift, nil
}

// GetOpenShiftTx returns the device's single open shift, or RecordNotFound.
func GetOpenShiftTx(tx *gorm.DB, businessId string, deviceId string) (*PosShift, error) {
	var shift PosShift
	err := tx.Where("business_id = ? AND device_id = ? AND status = ?",
		businessId, deviceId, ShiftStatusOpen).
		First(&shift).Error
	if err == gorm.ErrRecordNotFound {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &shift, nil
}

// OpenShift opens a drawer shift. At most one open shift per device: the check
// and insert run under a per-device redis lock plus a re-check inside the tx.
func OpenShift(ctx context.Context, businessId string, deviceId string, input NewShiftOpen) (*PosShift, error) {
	logger := config.GetLogger()
	db := config.GetDB()

	if input.OpeningCashUsd.IsNegative() || input.OpeningCashLbp.IsNegative() {
		return nil, utils.NewValidationError("opening cash cannot be negative")
	}

	lock, err := utils.DeviceLock(ctx, deviceId, "models", "OpenShift")
	if err != nil {
		return nil, utils.NewConflictError("device busy, retry shift open")
	}
	defer func() { _ = lock.Release(ctx) }()

	openedAt := time.Now().UTC()
	if input.OpenedAt != nil {
		openedAt = input.OpenedAt.UTC()
	}

	shift := PosShift{
		ID:             uuid.NewString(),
		BusinessId:     businessId,
		DeviceId:       deviceId,
		Status:         ShiftStatusOpen,
		OpenedAt:       openedAt,
		OpeningCashUsd: input.OpeningCashUsd,
		OpeningCashLbp: input.OpeningCashLbp,
		OpenedBy:       input.OpenedBy,
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := GetOpenShiftTx(tx, businessId, deviceId); err == nil {
			return utils.NewConflictError("device already has an open shift")
		} else if err != utils.ErrorRecordNotFound {
			return err
		}
		return tx.Create(&shift).Error
	})
	if err != nil {
		if utils.KindOf(err) != utils.ErrorKindConflict {
			config.LogError(logger, "models", "OpenShift", "open failed", deviceId, err)
		}
		return nil, err
	}
	return &shift, nil
}

// RecordCashMovementTx validates and appends a movement to an open shift.
func RecordCashMovementTx(tx *gorm.DB, businessId string, deviceId string, input NewCashMovement) (*CashMovement, error) {
	movementType, err := ParseCashMovementType(input.MovementType)
	if err != nil {
		return nil, utils.NewValidationError("%s", err.Error())
	}
	if input.AmountUsd.IsNegative() || input.AmountLbp.IsNegative() {
		return nil, utils.NewValidationError("movement amounts cannot be negative")
	}
	if input.AmountUsd.IsZero() && input.AmountLbp.IsZero() {
		return nil, utils.NewValidationError("movement requires a nonzero amount")
	}

	shift, err := GetOpenShiftTx(tx, businessId, deviceId)
	if err == utils.ErrorRecordNotFound {
		return nil, utils.NewConflictError("no open shift for device")
	}
	if err != nil {
		return nil, err
	}

	movement := CashMovement{
		ID:           uuid.NewString(),
		BusinessId:   businessId,
		ShiftId:      shift.ID,
		MovementType: movementType,
		AmountUsd:    input.AmountUsd,
		AmountLbp:    input.AmountLbp,
		Reason:       input.Reason,
	}
	if err := tx.Create(&movement).Error; err != nil {
		return nil, err
	}
	return &movement, nil
}

func RecordCashMovement(ctx context.Context, businessId string, deviceId string, input NewCashMovement) (*CashMovement, error) {
	db := config.GetDB()
	var movement *CashMovement
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		movement, err = RecordCashMovementTx(tx, businessId, deviceId, input)
		return err
	})
	return movement, err
}

// ShiftMovementsTx loads all movements of a shift, oldest first.
func ShiftMovementsTx(tx *gorm.DB, businessId string, shiftId string) ([]*CashMovement, error) {
	var movements []*CashMovement
	err := tx.Where("business_id = ? AND shift_id = ?", businessId, shiftId).
		Order("created_at ASC").
		Find(&movements).Error
	return movements, err
}
