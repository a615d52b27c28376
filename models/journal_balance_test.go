package models

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestCheckJournalBalanceAccepts(t *testing.T) {
	lines := []JournalLine{
		{AccountCode: AccountCashOnHand, DebitUsd: dec("80"), DebitLbp: dec("7160000")},
		{AccountCode: AccountAccountsReceivable, DebitUsd: dec("20"), DebitLbp: dec("1790000")},
		{AccountCode: AccountSales, CreditUsd: dec("90"), CreditLbp: dec("8055000")},
		{AccountCode: AccountVatPayable, CreditUsd: dec("10"), CreditLbp: dec("895000")},
	}
	if err := CheckJournalBalance(lines); err != nil {
		t.Fatalf("balanced journal rejected: %v", err)
	}
}

func TestCheckJournalBalanceRejectsUsdDrift(t *testing.T) {
	lines := []JournalLine{
		{AccountCode: AccountCashOnHand, DebitUsd: dec("100"), DebitLbp: dec("100")},
		{AccountCode: AccountSales, CreditUsd: dec("99.99"), CreditLbp: dec("100")},
	}
	err := CheckJournalBalance(lines)
	if err == nil {
		t.Fatal("USD-unbalanced journal accepted")
	}
	if !strings.Contains(err.Error(), "USD") {
		t.Fatalf("error should name the drifting currency: %v", err)
	}
}

func TestCheckJournalBalanceRejectsLbpDrift(t *testing.T) {
	// Balanced in USD, off by one piastre in LBP. Both currencies must
	// balance independently.
	lines := []JournalLine{
		{AccountCode: AccountCashOnHand, DebitUsd: dec("100"), DebitLbp: dec("8950000")},
		{AccountCode: AccountSales, CreditUsd: dec("100"), CreditLbp: dec("8949999.99")},
	}
	err := CheckJournalBalance(lines)
	if err == nil {
		t.Fatal("LBP-unbalanced journal accepted")
	}
	if !strings.Contains(err.Error(), "LBP") {
		t.Fatalf("error should name the drifting currency: %v", err)
	}
}

func TestCheckJournalBalanceQuantizesBeforeComparing(t *testing.T) {
	// 0.00004 USD is below ledger precision; the compare happens at 4dp/2dp.
	lines := []JournalLine{
		{AccountCode: AccountCashOnHand, DebitUsd: dec("10.00004")},
		{AccountCode: AccountSales, CreditUsd: dec("10")},
	}
	if err := CheckJournalBalance(lines); err != nil {
		t.Fatalf("sub-precision drift should round away: %v", err)
	}
}
