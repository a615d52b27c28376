package workflow

import (
	"fmt"
	"testing"
	"time"
)

func TestBackoffIsDeterministicPerEventAndAttempt(t *testing.T) {
	const eventId = "6b8ad6f1-9cf5-4a5e-8e5c-111111111111"

	for attempt := 1; attempt <= 6; attempt++ {
		first := backoffForAttempt(attempt, eventId)
		second := backoffForAttempt(attempt, eventId)
		if first != second {
			t.Fatalf("attempt %d: backoff not deterministic: %s vs %s", attempt, first, second)
		}
	}
}

func TestBackoffStaysWithinBaseAndJitterWindow(t *testing.T) {
	const eventId = "6b8ad6f1-9cf5-4a5e-8e5c-222222222222"

	cases := []struct {
		attempt  int
		baseSecs int
	}{
		{1, 1},
		{2, 2},
		{3, 4},
		{4, 8},
		{5, 16},
		{8, 128},
		{9, 256},
		{10, 300}, // 512 capped
		{40, 300},
	}
	for _, c := range cases {
		got := backoffForAttempt(c.attempt, eventId)
		base := time.Duration(c.baseSecs) * time.Second

		window := c.baseSecs / 5
		if window < 1 {
			window = 1
		}
		if window > 30 {
			window = 30
		}
		max := base + time.Duration(window)*time.Second
		if max > 300*time.Second {
			max = 300 * time.Second
		}
		if got < base && got != 300*time.Second {
			t.Fatalf("attempt %d: backoff %s below base %s", c.attempt, got, base)
		}
		if got > max {
			t.Fatalf("attempt %d: backoff %s above base+jitter %s", c.attempt, got, max)
		}
		if got > 300*time.Second {
			t.Fatalf("attempt %d: backoff %s exceeds 300s cap", c.attempt, got)
		}
	}
}

// Salting by event id should spread equal-attempt retries apart; with 50
// events on a 30s jitter window, all landing on the same instant would mean
// the salt is dead.
func TestBackoffSaltSpreadsEventsApart(t *testing.T) {
	seen := map[time.Duration]bool{}
	for i := 0; i < 50; i++ {
		seen[backoffForAttempt(8, fmt.Sprintf("event-%d", i))] = true
	}
	if len(seen) < 2 {
		t.Fatalf("expected jitter to spread 50 events across >1 schedule, got %d distinct", len(seen))
	}
}

func TestBackoffClampsNonPositiveAttempt(t *testing.T) {
	if got := backoffForAttempt(0, "x"); got != backoffForAttempt(1, "x") {
		t.Fatalf("attempt 0 should behave like attempt 1, got %s", got)
	}
}

func TestMaxAttemptsFromEnv(t *testing.T) {
	t.Setenv("POS_OUTBOX_MAX_ATTEMPTS", "")
	if got := MaxAttemptsFromEnv(); got != 5 {
		t.Fatalf("default max attempts = %d, want 5", got)
	}

	t.Setenv("POS_OUTBOX_MAX_ATTEMPTS", "3")
	if got := MaxAttemptsFromEnv(); got != 3 {
		t.Fatalf("max attempts = %d, want 3", got)
	}

	t.Setenv("POS_OUTBOX_MAX_ATTEMPTS", "-1")
	if got := MaxAttemptsFromEnv(); got != 5 {
		t.Fatalf("invalid override should fall back to 5, got %d", got)
	}
}
