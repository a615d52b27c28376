package models_test

import (
	"context"
	"testing"

	"github.com/cedarpos/pos_backend/config"
	"github.com/cedarpos/pos_backend/models"
	"github.com/cedarpos/pos_backend/utils"
)

// The business lookup is cache-aside: the first read fills redis and later
// reads are served from it, so a direct row update is invisible until the
// cached entry is dropped.
func TestGetBusinessByIdReadsThroughCache(t *testing.T) {
	setupIntegrationStack(t)
	ctx := context.Background()
	f := seedTenant(t, "Cache Co")

	first, err := models.GetBusinessById(ctx, f.Business.ID)
	if err != nil {
		t.Fatalf("first read: %v", err)
	}
	if first.Name != "Cache Co" {
		t.Fatalf("name = %q", first.Name)
	}

	err = config.GetDB().Model(&models.Business{}).
		Where("id = ?", f.Business.ID).
		Update("name", "Renamed Co").Error
	if err != nil {
		t.Fatalf("rename: %v", err)
	}

	second, err := models.GetBusinessById(ctx, f.Business.ID)
	if err != nil {
		t.Fatalf("second read: %v", err)
	}
	if second.Name != "Cache Co" {
		t.Fatalf("expected the cached name, got %q", second.Name)
	}

	if err := utils.RemoveRedisItem[models.Business](f.Business.ID); err != nil {
		t.Fatalf("drop cache: %v", err)
	}
	third, err := models.GetBusinessById(ctx, f.Business.ID)
	if err != nil {
		t.Fatalf("third read: %v", err)
	}
	if third.Name != "Renamed Co" {
		t.Fatalf("expected the fresh name after invalidation, got %q", third.Name)
	}
}

func TestGetBusinessByIdUnknown(t *testing.T) {
	setupIntegrationStack(t)

	_, err := models.GetBusinessById(context.Background(), "no-such-business")
	if err != utils.ErrorRecordNotFound {
		t.Fatalf("expected record not found, got %v", err)
	}
}
