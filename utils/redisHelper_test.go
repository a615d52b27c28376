package utils

import "testing"

type cachedWidget struct {
	Name string `json:"name"`
}

func TestGetTypeName(t *testing.T) {
	if got := GetTypeName[cachedWidget](); got != "cachedWidget" {
		t.Fatalf("GetTypeName = %q", got)
	}
}

// Without a configured redis the cache helpers degrade to no-ops: stores
// succeed silently and reads report a miss, so callers fall through to the db.
func TestCacheHelpersWithoutRedis(t *testing.T) {
	if err := StoreRedis[cachedWidget](&cachedWidget{Name: "w"}, "w-1"); err != nil {
		t.Fatalf("store: %v", err)
	}
	got, err := RetrieveRedis[cachedWidget]("w-1")
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if got != nil {
		t.Fatalf("expected a miss without redis, got %+v", got)
	}
	if err := RemoveRedisItem[cachedWidget]("w-1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
}

func TestGetCacheLifespan(t *testing.T) {
	t.Setenv("CACHE_LIFESPAN", "")
	if got := GetCacheLifespan().Hours(); got != 1 {
		t.Fatalf("default lifespan = %v hours, want 1", got)
	}
	t.Setenv("CACHE_LIFESPAN", "6")
	if got := GetCacheLifespan().Hours(); got != 6 {
		t.Fatalf("lifespan = %v hours, want 6", got)
	}
}
