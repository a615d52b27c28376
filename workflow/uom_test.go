package workflow

import (
	"strings"
	"testing"

	"github.com/cedarpos/pos_backend/models"
	"github.com/cedarpos/pos_backend/utils"
	"github.com/shopspring/decimal"
)

// Base-uom lines never touch the conversion table, so these run without a DB.

func baseUomItem() *models.Item {
	return &models.Item{ID: "itm-1", BaseUomId: "uom-pc"}
}

func TestResolveLineUomBaseUnitDefaults(t *testing.T) {
	resolved, err := resolveLineUom(nil, "biz-1", baseUomItem(), "line 1", d("3"), nil, nil, nil)
	if err != nil {
		t.Fatalf("resolveLineUom: %v", err)
	}
	if resolved.UomId != "uom-pc" {
		t.Fatalf("uom id = %s, want base uom", resolved.UomId)
	}
	if !resolved.Factor.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("base uom factor = %s, want 1", resolved.Factor)
	}
	if !resolved.QtyEntered.Equal(d("3")) {
		t.Fatalf("entered qty derived = %s, want 3", resolved.QtyEntered)
	}
}

func TestResolveLineUomAcceptsConsistentEnteredQty(t *testing.T) {
	entered := d("3")
	factor := d("1")
	resolved, err := resolveLineUom(nil, "biz-1", baseUomItem(), "line 1", d("3"), &entered, &factor, nil)
	if err != nil {
		t.Fatalf("resolveLineUom: %v", err)
	}
	if !resolved.QtyEntered.Equal(entered) {
		t.Fatalf("entered qty = %s, want %s", resolved.QtyEntered, entered)
	}
}

func TestResolveLineUomRejectsInconsistentEnteredQty(t *testing.T) {
	entered := d("2")
	_, err := resolveLineUom(nil, "biz-1", baseUomItem(), "line 1", d("3"), &entered, nil, nil)
	if err == nil {
		t.Fatal("expected qty/qty_entered mismatch error")
	}
	if utils.KindOf(err) != utils.ErrorKindValidation {
		t.Fatalf("error kind = %s, want VALIDATION", utils.KindOf(err))
	}
	if !strings.Contains(err.Error(), "mismatch") {
		t.Fatalf("error text: %v", err)
	}
}

func TestResolveLineUomRejectsForeignFactorOnBaseUnit(t *testing.T) {
	factor := d("12")
	_, err := resolveLineUom(nil, "biz-1", baseUomItem(), "line 1", d("3"), nil, &factor, nil)
	if err == nil {
		t.Fatal("expected qty_factor mismatch error for base uom")
	}
	if utils.KindOf(err) != utils.ErrorKindValidation {
		t.Fatalf("error kind = %s, want VALIDATION", utils.KindOf(err))
	}
}

func TestResolveLineUomRejectsNonPositiveQty(t *testing.T) {
	for _, qty := range []string{"0", "-1"} {
		if _, err := resolveLineUom(nil, "biz-1", baseUomItem(), "line 1", d(qty), nil, nil, nil); err == nil {
			t.Fatalf("qty %s: expected validation error", qty)
		}
	}
}

func TestResolveLineUomToleratesSubEpsilonDrift(t *testing.T) {
	// 3.0000005 entered against base 3 at factor 1 rounds inside the 1e-6
	// tolerance after 6dp quantization.
	entered := d("3.0000005")
	if _, err := resolveLineUom(nil, "biz-1", baseUomItem(), "line 1", d("3"), &entered, nil, nil); err != nil {
		t.Fatalf("sub-epsilon drift should pass: %v", err)
	}
}
