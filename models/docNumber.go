package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DocCounter hands out per-tenant, per-doc-type numbers. Rows are bumped
// under a row lock so concurrent processors never share a number.
type DocCounter struct {
	ID         int       `gorm:"primary_key" json:"id"`
	BusinessId string    `gorm:"size:64;not null;uniqueIndex:uniq_counter,priority:1" json:"business_id"`
	DocType    string    `gorm:"size:40;not null;uniqueIndex:uniq_counter,priority:2" json:"doc_type"`
	Prefix     string    `gorm:"size:20;not null" json:"prefix"`
	NextNo     int64     `gorm:"not null;default:1" json:"next_no"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// NextDocNo returns the next formatted document number, e.g. "POS-S-000042".
// Must run inside a transaction; the counter row stays locked until commit.
func NextDocNo(tx *gorm.DB, businessId string, docType string, defaultPrefix string) (string, error) {
	var counter DocCounter
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("business_id = ? AND doc_type = ?", businessId, docType).
		First(&counter).Error
	if err == gorm.ErrRecordNotFound {
		counter = DocCounter{
			BusinessId: businessId,
			DocType:    docType,
			Prefix:     defaultPrefix,
			NextNo:     1,
		}
		if err := tx.Create(&counter).Error; err != nil {
			return "", err
		}
	} else if err != nil {
		return "", err
	}

	no := counter.NextNo
	if err := tx.Model(&DocCounter{}).
		Where("id = ?", counter.ID).
		Update("next_no", gorm.Expr("next_no + 1")).Error; err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%06d", counter.Prefix, no), nil
}
