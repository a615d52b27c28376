package edgesync

import (
	"os"
	"strings"

	"github.com/cedarpos/pos_backend/utils"
)

// keyring holds the edge-sync credentials parsed from the environment.
//
// EDGE_SYNC_KEYS scopes keys per tenant ("tenant-a=key1,tenant-b=key2") so a
// leaked key only exposes one tenant. EDGE_SYNC_KEY is the single-key fallback
// accepted for any tenant. EDGE_NODE_BINDINGS ("node-1=tenant-a,...") pins a
// node id to a tenant; once any binding is configured, the node id becomes
// mandatory on every call.
type keyring struct {
	tenantKeys map[string]string
	sharedKey  string
	bindings   map[string]string
}

func loadKeyring() keyring {
	return keyring{
		tenantKeys: parsePairs(os.Getenv("EDGE_SYNC_KEYS")),
		sharedKey:  strings.TrimSpace(os.Getenv("EDGE_SYNC_KEY")),
		bindings:   parsePairs(os.Getenv("EDGE_NODE_BINDINGS")),
	}
}

func parsePairs(raw string) map[string]string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	out := map[string]string{}
	for _, part := range strings.Split(raw, ",") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		k := strings.TrimSpace(kv[0])
		v := strings.TrimSpace(kv[1])
		if k == "" || v == "" {
			continue
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (k keyring) authorize(businessId string, nodeId string, presentedKey string) error {
	if businessId == "" {
		return utils.NewValidationError("business id is required")
	}
	// Fail closed: no sync unless keys are explicitly configured.
	if len(k.tenantKeys) == 0 && k.sharedKey == "" {
		return utils.NewUnauthorizedError("edge sync is not configured")
	}
	if presentedKey == "" {
		return utils.NewUnauthorizedError("missing sync key")
	}

	expected := k.sharedKey
	if key, ok := k.tenantKeys[businessId]; ok {
		expected = key
	} else if len(k.tenantKeys) > 0 && k.sharedKey == "" {
		return utils.NewUnauthorizedError("unknown tenant")
	}
	if !utils.ConstantTimeEquals(presentedKey, expected) {
		return utils.NewUnauthorizedError("bad sync key")
	}

	if len(k.bindings) > 0 {
		if nodeId == "" {
			return utils.NewForbiddenError("node id is required")
		}
		bound, ok := k.bindings[nodeId]
		if !ok {
			return utils.NewForbiddenError("node %s is not bound", nodeId)
		}
		if bound != businessId {
			return utils.NewForbiddenError("node %s is bound to another tenant", nodeId)
		}
	}
	return nil
}

// Authorize validates an edge-sync call: the presented key must match the
// tenant's key (constant-time compare), and when node bindings are configured
// the node id must be present and bound to the declared tenant.
func Authorize(businessId string, nodeId string, presentedKey string) error {
	return loadKeyring().authorize(businessId, nodeId, presentedKey)
}
