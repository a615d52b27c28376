package edgesync

import (
	"testing"
	"time"
)

func TestClampLimit(t *testing.T) {
	cases := []struct{ in, want int }{
		{0, 500},
		{-5, 500},
		{1, 1},
		{2000, 2000},
		{2001, 2000},
		{99999, 2000},
	}
	for _, c := range cases {
		if got := ClampLimit(c.in); got != c.want {
			t.Fatalf("ClampLimit(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestNormalizeCursorLowerBounds(t *testing.T) {
	ts, id := NormalizeCursor(nil, "")
	if !ts.Equal(time.Unix(0, 0).UTC()) {
		t.Fatalf("absent since_ts should default to epoch, got %s", ts)
	}
	if id != NilCursorId {
		t.Fatalf("absent since_id should default to nil uuid, got %s", id)
	}

	zero := time.Time{}
	ts, _ = NormalizeCursor(&zero, "x")
	if !ts.Equal(time.Unix(0, 0).UTC()) {
		t.Fatalf("zero since_ts should default to epoch, got %s", ts)
	}
}

func TestNormalizeCursorPassesThrough(t *testing.T) {
	in := time.Date(2026, 3, 1, 10, 30, 0, 0, time.FixedZone("EET", 2*3600))
	ts, id := NormalizeCursor(&in, "abc-123")
	if !ts.Equal(in) || ts.Location() != time.UTC {
		t.Fatalf("since_ts should be the input converted to UTC, got %s", ts)
	}
	if id != "abc-123" {
		t.Fatalf("since_id passthrough: got %s", id)
	}
}
