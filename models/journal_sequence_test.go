package models_test

import (
	"context"
	"testing"
	"time"

	"github.com/cedarpos/pos_backend/config"
	"github.com/cedarpos/pos_backend/models"
	"github.com/cedarpos/pos_backend/utils"
	"github.com/google/uuid"
)

// Journal numbering hands out per-business sequence numbers: monotonically
// increasing within a tenant and independent across tenants.
func TestJournalSequencePerBusiness(t *testing.T) {
	setupIntegrationStack(t)
	ctx := context.Background()
	a := seedTenant(t, "Seq A Co")
	b := seedTenant(t, "Seq B Co")

	first, err := utils.GetSequence[models.GlJournal](ctx, a.Business.ID)
	if err != nil {
		t.Fatalf("first sequence: %v", err)
	}
	if first != 1 {
		t.Fatalf("first sequence = %d, want 1", first)
	}
	second, err := utils.GetSequence[models.GlJournal](ctx, a.Business.ID)
	if err != nil {
		t.Fatalf("second sequence: %v", err)
	}
	if second != 2 {
		t.Fatalf("second sequence = %d, want 2", second)
	}

	other, err := utils.GetSequence[models.GlJournal](ctx, b.Business.ID)
	if err != nil {
		t.Fatalf("other tenant sequence: %v", err)
	}
	if other != 1 {
		t.Fatalf("other tenant sequence = %d, want 1", other)
	}
}

func TestValidateUniqueDetectsTakenSequence(t *testing.T) {
	setupIntegrationStack(t)
	ctx := context.Background()
	f := seedTenant(t, "Unique Co")
	db := config.GetDB()

	journal := models.GlJournal{
		ID:          uuid.NewString(),
		BusinessId:  f.Business.ID,
		JournalNo:   "JRN-000007",
		SequenceNo:  7,
		SourceType:  "sales_doc",
		SourceId:    uuid.NewString(),
		PostingDate: time.Now().UTC(),
	}
	if err := db.Create(&journal).Error; err != nil {
		t.Fatalf("seed journal: %v", err)
	}

	err := utils.ValidateUnique[models.GlJournal](ctx, f.Business.ID, "sequence_no", int64(7), 0)
	if err == nil {
		t.Fatal("taken sequence number should fail the uniqueness check")
	}
	if err := utils.ValidateUnique[models.GlJournal](ctx, f.Business.ID, "sequence_no", int64(8), 0); err != nil {
		t.Fatalf("free sequence number: %v", err)
	}
}
