package edgesync

import (
	"testing"

	"github.com/cedarpos/pos_backend/utils"
)

func expectKind(t *testing.T, err error, kind utils.ErrorKind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if utils.KindOf(err) != kind {
		t.Fatalf("error kind = %s, want %s (%v)", utils.KindOf(err), kind, err)
	}
}

func TestAuthorizeFailsClosedWhenUnconfigured(t *testing.T) {
	k := keyring{}
	expectKind(t, k.authorize("biz-1", "", "any-key"), utils.ErrorKindUnauthorized)
}

func TestAuthorizeSharedKey(t *testing.T) {
	k := keyring{sharedKey: "s3cret"}

	if err := k.authorize("biz-1", "", "s3cret"); err != nil {
		t.Fatalf("valid shared key rejected: %v", err)
	}
	expectKind(t, k.authorize("biz-1", "", "wrong"), utils.ErrorKindUnauthorized)
	expectKind(t, k.authorize("biz-1", "", ""), utils.ErrorKindUnauthorized)
	expectKind(t, k.authorize("", "", "s3cret"), utils.ErrorKindValidation)
}

func TestAuthorizeTenantScopedKeys(t *testing.T) {
	k := keyring{tenantKeys: map[string]string{
		"biz-a": "key-a",
		"biz-b": "key-b",
	}}

	if err := k.authorize("biz-a", "", "key-a"); err != nil {
		t.Fatalf("tenant key rejected: %v", err)
	}
	// A leaked single-tenant key must not open another tenant.
	expectKind(t, k.authorize("biz-b", "", "key-a"), utils.ErrorKindUnauthorized)
	// Tenants without a key get nothing when no shared fallback exists.
	expectKind(t, k.authorize("biz-c", "", "key-a"), utils.ErrorKindUnauthorized)
}

func TestAuthorizeTenantKeyOverridesSharedFallback(t *testing.T) {
	k := keyring{
		tenantKeys: map[string]string{"biz-a": "key-a"},
		sharedKey:  "fallback",
	}

	if err := k.authorize("biz-a", "", "key-a"); err != nil {
		t.Fatalf("tenant key rejected: %v", err)
	}
	// The tenant-specific key replaces the fallback for that tenant.
	expectKind(t, k.authorize("biz-a", "", "fallback"), utils.ErrorKindUnauthorized)
	// Unlisted tenants still use the fallback.
	if err := k.authorize("biz-z", "", "fallback"); err != nil {
		t.Fatalf("shared fallback rejected for unlisted tenant: %v", err)
	}
}

func TestAuthorizeNodeBindings(t *testing.T) {
	k := keyring{
		sharedKey: "s3cret",
		bindings:  map[string]string{"node-1": "biz-a"},
	}

	// Once bindings exist, the node id is mandatory on every call.
	expectKind(t, k.authorize("biz-a", "", "s3cret"), utils.ErrorKindForbidden)
	// An unbound node is refused even with a valid key.
	expectKind(t, k.authorize("biz-a", "node-9", "s3cret"), utils.ErrorKindForbidden)
	// A bound node can only speak for its own tenant.
	expectKind(t, k.authorize("biz-b", "node-1", "s3cret"), utils.ErrorKindForbidden)

	if err := k.authorize("biz-a", "node-1", "s3cret"); err != nil {
		t.Fatalf("bound node rejected: %v", err)
	}
}

func TestAuthorizeKeyCheckedBeforeBinding(t *testing.T) {
	k := keyring{
		sharedKey: "s3cret",
		bindings:  map[string]string{"node-1": "biz-a"},
	}
	// A bad key is unauthorized even when the binding would match.
	expectKind(t, k.authorize("biz-a", "node-1", "wrong"), utils.ErrorKindUnauthorized)
}

func TestParsePairs(t *testing.T) {
	got := parsePairs(" biz-a = key-a , biz-b=key-b ,, bad-pair , =x , y= ")
	if len(got) != 2 {
		t.Fatalf("expected 2 pairs, got %v", got)
	}
	if got["biz-a"] != "key-a" || got["biz-b"] != "key-b" {
		t.Fatalf("parsed pairs: %v", got)
	}
	if parsePairs("") != nil {
		t.Fatal("empty input should parse to nil")
	}
	if parsePairs("garbage") != nil {
		t.Fatal("pairless input should parse to nil")
	}
}

func TestAuthorizeFromEnv(t *testing.T) {
	t.Setenv("EDGE_SYNC_KEY", "")
	t.Setenv("EDGE_SYNC_KEYS", "biz-a=key-a")
	t.Setenv("EDGE_NODE_BINDINGS", "")

	if err := Authorize("biz-a", "", "key-a"); err != nil {
		t.Fatalf("env-configured tenant key rejected: %v", err)
	}
	expectKind(t, Authorize("biz-a", "", "nope"), utils.ErrorKindUnauthorized)
}
