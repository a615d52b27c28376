package workflow

import (
	"github.com/cedarpos/pos_backend/models"
	"github.com/cedarpos/pos_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// uomEpsilon is the base-quantity consistency tolerance.
var uomEpsilon = decimal.New(1, -6)

type resolvedUom struct {
	UomId      string
	Factor     decimal.Decimal
	QtyEntered decimal.Decimal
}

// resolveLineUom validates a line's unit of measure against the item's
// conversion table and reconciles entered vs base quantities. The canonical
// factor from the table is what gets stored; a client factor may differ only
// within legacy 4dp rounding.
func resolveLineUom(tx *gorm.DB, businessId string, item *models.Item, lineLabel string, qtyBase decimal.Decimal, qtyEntered *decimal.Decimal, qtyFactor *decimal.Decimal, uomId *string) (*resolvedUom, error) {
	if !qtyBase.IsPositive() {
		return nil, utils.NewValidationError("%s: qty must be > 0", lineLabel)
	}

	resolvedId := item.BaseUomId
	if uomId != nil && *uomId != "" {
		resolvedId = *uomId
	}

	factor := decimal.NewFromInt(1)
	if resolvedId != item.BaseUomId {
		conv, err := models.GetUomConversionTx(tx, businessId, item.ID, resolvedId)
		if err == utils.ErrorRecordNotFound {
			return nil, utils.NewValidationError("%s: missing uom conversion for item %s uom %s", lineLabel, item.ID, resolvedId)
		}
		if err != nil {
			return nil, err
		}
		if !conv.ToBaseFactor.IsPositive() {
			return nil, utils.NewValidationError("%s: uom conversion factor must be > 0", lineLabel)
		}
		factor = QuantizeQty(conv.ToBaseFactor)
	}

	// Client factor is checked, not trusted. 4dp agreement passes for legacy
	// barcode precision.
	checkFactor := factor
	if qtyFactor != nil {
		in := QuantizeQty(*qtyFactor)
		if !in.IsPositive() {
			return nil, utils.NewValidationError("%s: qty_factor must be > 0", lineLabel)
		}
		if !in.Equal(factor) && !in.Round(4).Equal(factor.Round(4)) {
			return nil, utils.NewValidationError("%s: qty_factor mismatch for uom %s (expected %s, got %s)", lineLabel, resolvedId, factor, in)
		}
		checkFactor = in
	}

	var entered decimal.Decimal
	if qtyEntered != nil {
		entered = QuantizeQty(*qtyEntered)
		if !entered.IsPositive() {
			return nil, utils.NewValidationError("%s: qty_entered must be > 0", lineLabel)
		}
		expectBase := QuantizeQty(entered.Mul(checkFactor))
		if qtyBase.Sub(expectBase).Abs().GreaterThan(uomEpsilon) {
			return nil, utils.NewValidationError("%s: qty and qty_entered mismatch (qty=%s, qty_entered=%s, factor=%s)", lineLabel, qtyBase, entered, checkFactor)
		}
	} else {
		entered = QuantizeQty(qtyBase.Div(checkFactor))
	}

	return &resolvedUom{UomId: resolvedId, Factor: factor, QtyEntered: entered}, nil
}
