package config

import (
	"os"
	"strings"
)

// PublishDocPostedEnabled gates the post-commit Pub/Sub fan-out so dev and
// test environments can run without GCP credentials.
//
// Set via env:
// - PUBLISH_DOC_POSTED=true
func PublishDocPostedEnabled() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("PUBLISH_DOC_POSTED")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// EdgeExportDisabledFor turns off individual edge export entities without a deploy.
//
// Set via env:
// - EDGE_EXPORT_DISABLED="customers,items"
//
// Entity keys are case-insensitive. Everything is enabled when unset.
func EdgeExportDisabledFor(entity string) bool {
	entity = strings.ToUpper(strings.TrimSpace(entity))
	if entity == "" {
		return false
	}
	raw := os.Getenv("EDGE_EXPORT_DISABLED")
	if strings.TrimSpace(raw) == "" {
		return false
	}
	for _, part := range strings.Split(raw, ",") {
		if strings.ToUpper(strings.TrimSpace(part)) == entity {
			return true
		}
	}
	return false
}
