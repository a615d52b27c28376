package workflow

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestNormalizeDualAmountsDerivesMissingSide(t *testing.T) {
	rate := d("89500")

	// USD present, LBP missing: multiply by rate.
	usd, lbp := NormalizeDualAmounts(d("10"), decimal.Zero, rate)
	if !usd.Equal(d("10")) || !lbp.Equal(d("895000")) {
		t.Fatalf("usd->lbp: got %s / %s", usd, lbp)
	}

	// LBP present, USD missing: divide by rate.
	usd, lbp = NormalizeDualAmounts(decimal.Zero, d("895000"), rate)
	if !usd.Equal(d("10")) || !lbp.Equal(d("895000")) {
		t.Fatalf("lbp->usd: got %s / %s", usd, lbp)
	}
}

func TestNormalizeDualAmountsLeavesBothSidesAlone(t *testing.T) {
	// Both present: the payload's own figures win even if they disagree with
	// the rate.
	usd, lbp := NormalizeDualAmounts(d("10"), d("900000"), d("89500"))
	if !usd.Equal(d("10")) || !lbp.Equal(d("900000")) {
		t.Fatalf("both-present: got %s / %s", usd, lbp)
	}
}

func TestNormalizeDualAmountsWithoutRate(t *testing.T) {
	// No rate: single-sided amounts stay single-sided.
	usd, lbp := NormalizeDualAmounts(d("10"), decimal.Zero, decimal.Zero)
	if !usd.Equal(d("10")) || !lbp.IsZero() {
		t.Fatalf("no-rate: got %s / %s", usd, lbp)
	}

	usd, lbp = NormalizeDualAmounts(decimal.Zero, decimal.Zero, d("89500"))
	if !usd.IsZero() || !lbp.IsZero() {
		t.Fatalf("zero-zero: got %s / %s", usd, lbp)
	}
}

func TestNormalizeDualAmountsQuantizes(t *testing.T) {
	// 1 LBP at 89500 is 0.0000111... USD; output is clamped to ledger precision.
	usd, lbp := NormalizeDualAmounts(decimal.Zero, d("1"), d("89500"))
	if !usd.Equal(d("0")) {
		t.Fatalf("sub-cent USD should quantize to 0, got %s", usd)
	}
	if !lbp.Equal(d("1")) {
		t.Fatalf("lbp: got %s", lbp)
	}

	usd, lbp = NormalizeDualAmounts(d("0.123456"), decimal.Zero, d("3")) // derived LBP 0.370368
	if !usd.Equal(d("0.1235")) || !lbp.Equal(d("0.37")) {
		t.Fatalf("quantize: got %s / %s", usd, lbp)
	}
}

func TestQuantizeHelpers(t *testing.T) {
	if got := QuantizeUsd(d("1.99995")); !got.Equal(d("2")) {
		t.Fatalf("QuantizeUsd: got %s", got)
	}
	if got := QuantizeLbp(d("1000.005")); !got.Equal(d("1000.01")) {
		t.Fatalf("QuantizeLbp: got %s", got)
	}
	if got := QuantizeQty(d("0.1234565")); !got.Equal(d("0.123457")) {
		t.Fatalf("QuantizeQty: got %s", got)
	}
}
