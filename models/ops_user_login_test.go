package models_test

import (
	"context"
	"testing"

	"github.com/cedarpos/pos_backend/models"
	"github.com/cedarpos/pos_backend/utils"
)

func TestOpsLogin(t *testing.T) {
	setupIntegrationStack(t)
	ctx := context.Background()

	created, err := models.CreateOpsUser(ctx, "support", "Support Desk", "s3cret", "")
	if err != nil {
		t.Fatalf("create ops user: %v", err)
	}
	if created.Role != "ops" {
		t.Fatalf("default role = %q, want ops", created.Role)
	}

	user, err := models.VerifyOpsLogin(ctx, "support", "s3cret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.Username != "support" {
		t.Fatalf("username = %q", user.Username)
	}

	// Second login is served from the cache; same outcome.
	again, err := models.VerifyOpsLogin(ctx, "support", "s3cret")
	if err != nil {
		t.Fatalf("cached login: %v", err)
	}
	if again.ID != user.ID {
		t.Fatalf("cached login returned a different user")
	}

	_, err = models.VerifyOpsLogin(ctx, "support", "wrong")
	if utils.KindOf(err) != utils.ErrorKindUnauthorized {
		t.Fatalf("wrong password should be unauthorized, got %v", err)
	}
	_, err = models.VerifyOpsLogin(ctx, "nobody", "s3cret")
	if utils.KindOf(err) != utils.ErrorKindUnauthorized {
		t.Fatalf("unknown user should be unauthorized, got %v", err)
	}
}
