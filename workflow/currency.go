package workflow

import (
	"time"

	"github.com/cedarpos/pos_backend/models"
	"github.com/cedarpos/pos_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Ledger precision: USD 4dp, LBP 2dp, quantities 6dp.
var (
	usdExp int32 = 4
	lbpExp int32 = 2
	qtyExp int32 = 6
)

func QuantizeUsd(v decimal.Decimal) decimal.Decimal {
	return v.Round(usdExp)
}

func QuantizeLbp(v decimal.Decimal) decimal.Decimal {
	return v.Round(lbpExp)
}

func QuantizeQty(v decimal.Decimal) decimal.Decimal {
	return v.Round(qtyExp)
}

// NormalizeDualAmounts fills in the missing side of a dual-currency amount
// when the other side and a rate are present. Registers that price in a
// single currency still post balanced dual-ledger figures.
func NormalizeDualAmounts(usd decimal.Decimal, lbp decimal.Decimal, rate decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	if rate.IsPositive() {
		if usd.IsZero() && !lbp.IsZero() {
			usd = lbp.Div(rate)
		} else if lbp.IsZero() && !usd.IsZero() {
			lbp = usd.Mul(rate)
		}
	}
	return QuantizeUsd(usd), QuantizeLbp(lbp)
}

// ResolveExchangeRate takes the payload rate when positive, otherwise the
// latest stored rate on or before the document date. Zero when neither
// exists; normalization then leaves single-sided amounts alone.
func ResolveExchangeRate(tx *gorm.DB, businessId string, payloadRate decimal.Decimal, docDate time.Time) (decimal.Decimal, error) {
	if payloadRate.IsPositive() {
		return payloadRate, nil
	}
	rate, err := models.LatestRateTx(tx, businessId, docDate)
	if err == utils.ErrorRecordNotFound {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return rate, nil
}
