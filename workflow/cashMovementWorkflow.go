package workflow

import (
	"context"

	"github.com/cedarpos/pos_backend/models"
	"github.com/cedarpos/pos_backend/utils"
	"gorm.io/gorm"
)

// processCashMovement appends a drawer movement to a shift. No document
// number and no GL; the movement only shifts the expected-cash figure at
// close time. The event id doubles as the movement id, which is what makes
// the replay lookup work.
func processCashMovement(ctx context.Context, tx *gorm.DB, event *models.OutboxEvent) (*DocumentRef, error) {
	businessId := event.BusinessId

	var existing models.CashMovement
	err := tx.Where("business_id = ? AND id = ?", businessId, event.ID).First(&existing).Error
	if err == nil {
		return &DocumentRef{DocType: DocRefTypeCashMovement, DocId: existing.ID}, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	payload, err := models.DecodePayload[models.CashMovementPayload](event.Payload)
	if err != nil {
		return nil, err
	}

	movementType, err := models.ParseCashMovementType(payload.MovementType)
	if err != nil {
		return nil, utils.NewValidationError("%s", err.Error())
	}
	if payload.AmountUsd.IsNegative() || payload.AmountLbp.IsNegative() {
		return nil, utils.NewValidationError("movement amounts cannot be negative")
	}
	if payload.AmountUsd.IsZero() && payload.AmountLbp.IsZero() {
		return nil, utils.NewValidationError("movement requires a nonzero amount")
	}

	var shiftId string
	if payload.ShiftId != nil {
		if err := checkShiftOpenForDevice(tx, businessId, event.DeviceId, *payload.ShiftId); err != nil {
			return nil, err
		}
		shiftId = *payload.ShiftId
	} else {
		shift, err := models.GetOpenShiftTx(tx, businessId, event.DeviceId)
		if err == utils.ErrorRecordNotFound {
			return nil, utils.NewConflictError("no open shift for device")
		}
		if err != nil {
			return nil, err
		}
		shiftId = shift.ID
	}

	movement := models.CashMovement{
		ID:           event.ID,
		BusinessId:   businessId,
		ShiftId:      shiftId,
		MovementType: movementType,
		AmountUsd:    QuantizeUsd(payload.AmountUsd),
		AmountLbp:    QuantizeLbp(payload.AmountLbp),
		Reason:       payload.Reason,
	}
	if err := tx.Create(&movement).Error; err != nil {
		return nil, err
	}

	return &DocumentRef{DocType: DocRefTypeCashMovement, DocId: movement.ID}, nil
}
