package workflow

import (
	"testing"

	"github.com/cedarpos/pos_backend/models"
	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func movement(kind models.CashMovementType, usd, lbp string) *models.CashMovement {
	return &models.CashMovement{
		MovementType: kind,
		AmountUsd:    d(usd),
		AmountLbp:    d(lbp),
	}
}

func TestExpectedCashFormula(t *testing.T) {
	// expected = opening + sales - refunds + cash_in - (cash_out|paid_out|safe_drop|other)
	got := ExpectedCash(
		CashTotals{Usd: d("50"), Lbp: d("1000000")},
		CashTotals{Usd: d("200.50"), Lbp: d("3500000")},
		CashTotals{Usd: d("20"), Lbp: d("150000")},
		[]*models.CashMovement{
			movement(models.CashMovementTypeCashIn, "100", "500000"),
			movement(models.CashMovementTypeSafeDrop, "30", "0"),
			movement(models.CashMovementTypeCashOut, "15.25", "250000"),
			movement(models.CashMovementTypePaidOut, "4.75", "0"),
			movement(models.CashMovementTypeOther, "0", "100000"),
		},
	)

	wantUsd := d("280.5")   // 50 + 200.50 - 20 + 100 - 30 - 15.25 - 4.75
	wantLbp := d("3500000") // 1000000 + 3500000 - 150000 + 500000 - 250000 - 100000
	if !got.Usd.Equal(wantUsd) {
		t.Fatalf("expected USD %s, got %s", wantUsd, got.Usd)
	}
	if !got.Lbp.Equal(wantLbp) {
		t.Fatalf("expected LBP %s, got %s", wantLbp, got.Lbp)
	}
}

// With no cash-classified payment method, sales and refunds contribute zero
// and only movements shift the expected figure.
func TestExpectedCashMovementsOnly(t *testing.T) {
	got := ExpectedCash(
		CashTotals{Usd: d("75"), Lbp: d("0")},
		CashTotals{},
		CashTotals{},
		[]*models.CashMovement{
			movement(models.CashMovementTypeCashIn, "25", "0"),
			movement(models.CashMovementTypeCashOut, "10", "0"),
		},
	)
	if !got.Usd.Equal(d("90")) {
		t.Fatalf("expected 90, got %s", got.Usd)
	}
}

func TestExpectedCashNoMovements(t *testing.T) {
	got := ExpectedCash(
		CashTotals{Usd: d("100"), Lbp: d("2000000")},
		CashTotals{Usd: d("40"), Lbp: d("600000")},
		CashTotals{Usd: d("40"), Lbp: d("600000")},
		nil,
	)
	if !got.Usd.Equal(d("100")) || !got.Lbp.Equal(d("2000000")) {
		t.Fatalf("sales fully offset by refunds should leave opening, got %s / %s", got.Usd, got.Lbp)
	}
}

// Arbitrary interleavings must reduce to the same closed formula; the
// function folds movements one way only, so run a batch of generated
// sequences against an independent accumulation.
func TestExpectedCashMatchesIndependentAccumulation(t *testing.T) {
	kinds := []models.CashMovementType{
		models.CashMovementTypeCashIn,
		models.CashMovementTypeCashOut,
		models.CashMovementTypePaidOut,
		models.CashMovementTypeSafeDrop,
		models.CashMovementTypeOther,
	}

	for n := 0; n < 25; n++ {
		movements := make([]*models.CashMovement, 0, n)
		net := decimal.Zero
		for i := 0; i < n; i++ {
			kind := kinds[(i*7+n)%len(kinds)]
			amount := decimal.NewFromInt(int64((i*13+n*3)%50 + 1))
			movements = append(movements, &models.CashMovement{
				MovementType: kind,
				AmountUsd:    amount,
			})
			if kind == models.CashMovementTypeCashIn {
				net = net.Add(amount)
			} else {
				net = net.Sub(amount)
			}
		}

		opening, sales, refunds := d("500"), d("120"), d("35")
		got := ExpectedCash(CashTotals{Usd: opening}, CashTotals{Usd: sales}, CashTotals{Usd: refunds}, movements)
		want := opening.Add(sales).Sub(refunds).Add(net)
		if !got.Usd.Equal(want) {
			t.Fatalf("n=%d: expected %s, got %s", n, want, got.Usd)
		}
	}
}

func TestExpectedCashQuantizesPerCurrency(t *testing.T) {
	got := ExpectedCash(
		CashTotals{Usd: d("10.123456"), Lbp: d("100.456")},
		CashTotals{}, CashTotals{}, nil,
	)
	if got.Usd.Exponent() < -4 {
		t.Fatalf("USD should be quantized to 4dp, got %s", got.Usd)
	}
	if !got.Usd.Equal(d("10.1235")) {
		t.Fatalf("USD rounding: got %s", got.Usd)
	}
	if !got.Lbp.Equal(d("100.46")) {
		t.Fatalf("LBP rounding: got %s", got.Lbp)
	}
}
