package workflow

import (
	"context"
	"time"

	"github.com/cedarpos/pos_backend/config"
	"github.com/cedarpos/pos_backend/models"
	"github.com/cedarpos/pos_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CashTotals carries one dual-currency figure.
type CashTotals struct {
	Usd decimal.Decimal `json:"usd"`
	Lbp decimal.Decimal `json:"lbp"`
}

// ExpectedCash computes what the drawer should hold at close:
// opening + cash sales - cash refunds + cash_in - every outbound movement
// kind. Pure; both currencies move together.
func ExpectedCash(opening CashTotals, sales CashTotals, refunds CashTotals, movements []*models.CashMovement) CashTotals {
	expectedUsd := opening.Usd.Add(sales.Usd).Sub(refunds.Usd)
	expectedLbp := opening.Lbp.Add(sales.Lbp).Sub(refunds.Lbp)
	for _, m := range movements {
		if m.MovementType == models.CashMovementTypeCashIn {
			expectedUsd = expectedUsd.Add(m.AmountUsd)
			expectedLbp = expectedLbp.Add(m.AmountLbp)
		} else {
			expectedUsd = expectedUsd.Sub(m.AmountUsd)
			expectedLbp = expectedLbp.Sub(m.AmountLbp)
		}
	}
	return CashTotals{Usd: QuantizeUsd(expectedUsd), Lbp: QuantizeLbp(expectedLbp)}
}

// CloseShift reconciles and closes a drawer shift. Expected cash comes from
// the shift's cash-method sales and refunds plus its movements; variance is
// counted minus expected. Closing is terminal.
func CloseShift(ctx context.Context, businessId string, deviceId string, input models.NewShiftClose) (*models.PosShift, error) {
	logger := config.GetLogger()
	db := config.GetDB()

	if input.ClosingCashUsd.IsNegative() || input.ClosingCashLbp.IsNegative() {
		return nil, utils.NewValidationError("closing cash cannot be negative")
	}

	var closed *models.PosShift
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var shift *models.PosShift
		var err error
		if input.ShiftId != nil && *input.ShiftId != "" {
			shift, err = models.GetShiftTx(tx, businessId, *input.ShiftId)
			if err == utils.ErrorRecordNotFound {
				return utils.NewNotFoundError("shift not found")
			}
			if err != nil {
				return err
			}
			if shift.DeviceId != deviceId {
				return utils.NewForbiddenError("shift belongs to another device")
			}
		} else {
			shift, err = models.GetOpenShiftTx(tx, businessId, deviceId)
			if err == utils.ErrorRecordNotFound {
				return utils.NewConflictError("no open shift for device")
			}
			if err != nil {
				return err
			}
		}
		if shift.Status != models.ShiftStatusOpen {
			return utils.NewConflictError("shift is already closed")
		}

		cashMethods, err := models.CashMethodIds(tx, businessId)
		if err != nil {
			return err
		}
		salesUsd, salesLbp, refundsUsd, refundsLbp, err := models.CashSalesTotalsTx(tx, businessId, shift.ID, cashMethods)
		if err != nil {
			return err
		}
		movements, err := models.ShiftMovementsTx(tx, businessId, shift.ID)
		if err != nil {
			return err
		}

		expected := ExpectedCash(
			CashTotals{Usd: shift.OpeningCashUsd, Lbp: shift.OpeningCashLbp},
			CashTotals{Usd: salesUsd, Lbp: salesLbp},
			CashTotals{Usd: refundsUsd, Lbp: refundsLbp},
			movements,
		)
		countedUsd := QuantizeUsd(input.ClosingCashUsd)
		countedLbp := QuantizeLbp(input.ClosingCashLbp)
		varianceUsd := countedUsd.Sub(expected.Usd)
		varianceLbp := countedLbp.Sub(expected.Lbp)
		now := time.Now().UTC()

		// Close is terminal; a concurrent second close loses on the status
		// guard and conflicts.
		res := tx.Model(&models.PosShift{}).
			Where("business_id = ? AND id = ? AND status = ?", businessId, shift.ID, models.ShiftStatusOpen).
			Updates(map[string]interface{}{
				"status":            models.ShiftStatusClosed,
				"closed_at":         &now,
				"closing_cash_usd":  countedUsd,
				"closing_cash_lbp":  countedLbp,
				"expected_cash_usd": expected.Usd,
				"expected_cash_lbp": expected.Lbp,
				"variance_usd":      varianceUsd,
				"variance_lbp":      varianceLbp,
				"closed_by":         input.ClosedBy,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return utils.NewConflictError("shift is already closed")
		}

		shift.Status = models.ShiftStatusClosed
		shift.ClosedAt = &now
		shift.ClosingCashUsd = &countedUsd
		shift.ClosingCashLbp = &countedLbp
		shift.ExpectedCashUsd = &expected.Usd
		shift.ExpectedCashLbp = &expected.Lbp
		shift.VarianceUsd = &varianceUsd
		shift.VarianceLbp = &varianceLbp
		shift.ClosedBy = input.ClosedBy
		closed = shift
		return nil
	})
	if err != nil {
		if utils.KindOf(err) == utils.ErrorKindTransient {
			config.LogError(logger, "workflow", "CloseShift", "close failed", deviceId, err)
		}
		return nil, err
	}
	return closed, nil
}
