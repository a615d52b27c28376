package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cedarpos/pos_backend/utils"
	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

// GlJournal heads a balanced double-entry posting. One journal per
// (source_type, source_id); re-posting the same document is a no-op
// caught by the unique index.
type GlJournal struct {
	ID          string    `gorm:"primary_key;size:36" json:"id"`
	BusinessId  string    `gorm:"size:64;index;not null;uniqueIndex:uniq_journal_source,priority:1" json:"business_id"`
	JournalNo   string    `gorm:"size:64;index" json:"journal_no"`
	SequenceNo  int64     `gorm:"not null;default:0" json:"sequence_no"`
	SourceType  string    `gorm:"size:40;not null;uniqueIndex:uniq_journal_source,priority:2" json:"source_type"`
	SourceId    string    `gorm:"size:36;not null;uniqueIndex:uniq_journal_source,priority:3" json:"source_id"`
	PostingDate time.Time `gorm:"index;not null" json:"posting_date"`
	Memo        string    `gorm:"size:255" json:"memo"`
	Entries     []GlEntry `gorm:"foreignKey:JournalId" json:"entries"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime;index" json:"updated_at"`
}

type GlEntry struct {
	ID          string          `gorm:"primary_key;size:36" json:"id"`
	BusinessId  string          `gorm:"size:64;index;not null" json:"business_id"`
	JournalId   string          `gorm:"size:36;index;not null" json:"journal_id"`
	Seq         int             `gorm:"not null;default:0" json:"seq"`
	AccountCode string          `gorm:"size:40;index;not null" json:"account_code"`
	DebitUsd    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"debit_usd"`
	CreditUsd   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"credit_usd"`
	DebitLbp    decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"debit_lbp"`
	CreditLbp   decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"credit_lbp"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// Posted journals are immutable; corrections post a new journal.
func (e *GlEntry) BeforeUpdate(tx *gorm.DB) error {
	return errors.New("immutable ledger: gl_entries cannot be updated")
}

func (e *GlEntry) BeforeDelete(tx *gorm.DB) error {
	return errors.New("immutable ledger: gl_entries cannot be deleted")
}

func (j *GlJournal) BeforeDelete(tx *gorm.DB) error {
	return errors.New("immutable ledger: gl_journals cannot be deleted")
}

// JournalLine is the builder input for one entry.
type JournalLine struct {
	AccountCode string
	DebitUsd    decimal.Decimal
	CreditUsd   decimal.Decimal
	DebitLbp    decimal.Decimal
	CreditLbp   decimal.Decimal
}

// CheckJournalBalance verifies debits equal credits in both currencies.
// Amounts are quantized before the compare (USD 4dp, LBP 2dp).
func CheckJournalBalance(lines []JournalLine) error {
	debitUsd, creditUsd := decimal.Zero, decimal.Zero
	debitLbp, creditLbp := decimal.Zero, decimal.Zero
	for _, l := range lines {
		debitUsd = debitUsd.Add(l.DebitUsd.Round(4))
		creditUsd = creditUsd.Add(l.CreditUsd.Round(4))
		debitLbp = debitLbp.Add(l.DebitLbp.Round(2))
		creditLbp = creditLbp.Add(l.CreditLbp.Round(2))
	}
	if !debitUsd.Equal(creditUsd) {
		return fmt.Errorf("journal out of balance (USD): debit %s credit %s", debitUsd, creditUsd)
	}
	if !debitLbp.Equal(creditLbp) {
		return fmt.Errorf("journal out of balance (LBP): debit %s credit %s", debitLbp, creditLbp)
	}
	return nil
}

// PostJournalTx writes a balanced journal against a source document inside the
// caller's transaction. Zero-amount lines are dropped.
func PostJournalTx(ctx context.Context, tx *gorm.DB, businessId string, sourceType string, sourceId string, postingDate time.Time, memo string, lines []JournalLine) (*GlJournal, error) {

	kept := make([]JournalLine, 0, len(lines))
	for _, l := range lines {
		if l.DebitUsd.IsZero() && l.CreditUsd.IsZero() && l.DebitLbp.IsZero() && l.CreditLbp.IsZero() {
			continue
		}
		kept = append(kept, l)
	}
	if len(kept) == 0 {
		return nil, errors.New("journal requires at least one entry")
	}
	if err := CheckJournalBalance(kept); err != nil {
		return nil, err
	}

	seqNo, err := utils.GetSequence[GlJournal](ctx, businessId)
	if err != nil {
		return nil, err
	}

	journal := GlJournal{
		ID:          uuid.NewString(),
		BusinessId:  businessId,
		JournalNo:   fmt.Sprintf("JRN-%06d", seqNo),
		SequenceNo:  seqNo,
		SourceType:  sourceType,
		SourceId:    sourceId,
		PostingDate: postingDate,
		Memo:        memo,
	}
	if err := tx.Create(&journal).Error; err != nil {
		if isDuplicateKeyErr(err) {
			// uniq_journal_source swallowed a concurrent re-post of the same
			// document; hand back the winner's journal.
			return FindJournalBySourceTx(tx, businessId, sourceType, sourceId)
		}
		return nil, err
	}

	entries := make([]GlEntry, 0, len(kept))
	for i, l := range kept {
		entries = append(entries, GlEntry{
			ID:          uuid.NewString(),
			BusinessId:  businessId,
			JournalId:   journal.ID,
			Seq:         i + 1,
			AccountCode: l.AccountCode,
			DebitUsd:    l.DebitUsd.Round(4),
			CreditUsd:   l.CreditUsd.Round(4),
			DebitLbp:    l.DebitLbp.Round(2),
			CreditLbp:   l.CreditLbp.Round(2),
		})
	}
	if err := tx.Create(&entries).Error; err != nil {
		return nil, err
	}
	journal.Entries = entries
	return &journal, nil
}

func FindJournalBySourceTx(tx *gorm.DB, businessId string, sourceType string, sourceId string) (*GlJournal, error) {
	var journal GlJournal
	err := tx.Preload("Entries").
		Where("business_id = ? AND source_type = ? AND source_id = ?", businessId, sourceType, sourceId).
		First(&journal).Error
	if err == gorm.ErrRecordNotFound {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &journal, nil
}
