// seed-ops-admin creates or updates the back-office admin user.
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... \
//   OPS_ADMIN_PASSWORD=... go run ./cmd/seed-ops-admin
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/cedarpos/pos_backend/config"
	"github.com/cedarpos/pos_backend/models"
	"github.com/cedarpos/pos_backend/utils"
	"gorm.io/gorm"
)

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func main() {
	username := getenv("OPS_ADMIN_USERNAME", "posAdmin")
	name := getenv("OPS_ADMIN_NAME", "POS Admin")
	password := strings.TrimSpace(os.Getenv("OPS_ADMIN_PASSWORD"))
	if password == "" {
		fmt.Fprintln(os.Stderr, "missing required password: set OPS_ADMIN_PASSWORD")
		os.Exit(2)
	}

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	var existing models.OpsUser
	err := db.WithContext(ctx).Where("username = ?", username).Take(&existing).Error
	switch {
	case err == gorm.ErrRecordNotFound:
		user, err := models.CreateOpsUser(ctx, username, name, password, "admin")
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create admin user: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("created admin user %q (id=%d)\n", user.Username, user.ID)
	case err != nil:
		fmt.Fprintf(os.Stderr, "failed to lookup admin user: %v\n", err)
		os.Exit(1)
	default:
		hashed, err := utils.HashPassword(password)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
			os.Exit(1)
		}
		updates := map[string]interface{}{
			"password":  string(hashed),
			"role":      "admin",
			"is_active": true,
		}
		if err := db.WithContext(ctx).Model(&existing).Updates(updates).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to update admin user: %v\n", err)
			os.Exit(1)
		}
		// Login caches by username. Eviction is a no-op when redis is not
		// configured for this CLI run; the cache entry expires on its own.
		if err := existing.RemoveInstanceRedis(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not evict cached user: %v\n", err)
		}
		fmt.Printf("updated admin user %q (id=%d)\n", existing.Username, existing.ID)
	}
}
