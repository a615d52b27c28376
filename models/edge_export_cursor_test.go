package models_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/cedarpos/pos_backend/config"
	"github.com/cedarpos/pos_backend/edgesync"
	"github.com/cedarpos/pos_backend/models"
	"github.com/cedarpos/pos_backend/utils"
)

// Five items sharing one updated_at, paged two at a time: the keyset cursor
// must break the timestamp tie on id, never repeat a row, and finish on an
// empty page that repeats its input cursor.
func TestMasterdataExportKeysetPaging(t *testing.T) {
	setupIntegrationStack(t)
	ctx := context.Background()
	f := seedTenant(t, "Export Co")

	db := config.GetDB()
	ids := make([]string, 0, 5)
	for i := 1; i <= 5; i++ {
		id := fmt.Sprintf("00000000-0000-0000-0000-00000000000%d", i)
		ids = append(ids, id)
		item := models.Item{
			ID:         id,
			BusinessId: f.Business.ID,
			Sku:        fmt.Sprintf("SKU-%d", i),
			Name:       fmt.Sprintf("Item %d", i),
			BaseUomId:  f.BaseUom.ID,
		}
		if err := db.Create(&item).Error; err != nil {
			t.Fatalf("seed item %d: %v", i, err)
		}
	}
	// Collapse all rows onto one change instant to force the id tie-break.
	sharedTs := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	if err := db.Exec("UPDATE items SET updated_at = ? WHERE business_id = ?", sharedTs, f.Business.ID).Error; err != nil {
		t.Fatalf("pin updated_at: %v", err)
	}

	type itemRow struct {
		Id string `json:"id"`
	}
	seen := map[string]bool{}
	var sinceTs *time.Time
	sinceId := ""
	var pages [][]string

	for page := 0; page < 10; page++ {
		res, err := edgesync.ExportMasterdata(ctx, f.Business.ID, "items", sinceTs, sinceId, 2)
		if err != nil {
			t.Fatalf("page %d: %v", page, err)
		}
		if len(res.Rows) == 0 {
			// Empty page: cursor echoes the input so the caller can resume.
			if !res.NextTs.Equal(res.SinceTs) || res.NextId != res.SinceId {
				t.Fatalf("empty page must repeat its input cursor: %+v", res)
			}
			break
		}

		rowIds := make([]string, 0, len(res.Rows))
		for _, raw := range res.Rows {
			var row itemRow
			if err := json.Unmarshal(raw, &row); err != nil {
				t.Fatalf("page %d: bad row: %v", page, err)
			}
			if seen[row.Id] {
				t.Fatalf("row %s exported twice", row.Id)
			}
			seen[row.Id] = true
			rowIds = append(rowIds, row.Id)
		}
		pages = append(pages, rowIds)

		if res.NextId != rowIds[len(rowIds)-1] {
			t.Fatalf("page %d: next_id = %s, want last row id %s", page, res.NextId, rowIds[len(rowIds)-1])
		}
		ts := res.NextTs
		sinceTs, sinceId = &ts, res.NextId
	}

	if len(pages) != 3 {
		t.Fatalf("expected pages of 2/2/1, got %v", pages)
	}
	if len(pages[0]) != 2 || len(pages[1]) != 2 || len(pages[2]) != 1 {
		t.Fatalf("page sizes: %v", pages)
	}
	// Tie on updated_at resolves in id order.
	flat := append(append(append([]string{}, pages[0]...), pages[1]...), pages[2]...)
	for i, id := range flat {
		if id != ids[i] {
			t.Fatalf("export order: got %v, want %v", flat, ids)
		}
	}
}

func TestMasterdataExportScopesTenant(t *testing.T) {
	setupIntegrationStack(t)
	ctx := context.Background()
	mine := seedTenant(t, "Mine Co")
	other := seedTenant(t, "Other Co")

	mine.seedItem(t, "MINE-1", false)
	other.seedItem(t, "OTHER-1", false)

	res, err := edgesync.ExportMasterdata(ctx, mine.Business.ID, "items", nil, "", 100)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(res.Rows) != 1 {
		t.Fatalf("expected only the tenant's row, got %d", len(res.Rows))
	}
}

func TestMasterdataExportRejectsUnknownEntity(t *testing.T) {
	setupIntegrationStack(t)
	f := seedTenant(t, "Entities Co")

	_, err := edgesync.ExportMasterdata(context.Background(), f.Business.ID, "secrets", nil, "", 10)
	if utils.KindOf(err) != utils.ErrorKindValidation {
		t.Fatalf("unknown entity should be a validation error, got %v", err)
	}
}
