package scheduler

import (
	"testing"
	"time"
)

func TestBackoffDoublesUpToCap(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	b := NewBackoff(30*time.Second, 5*time.Minute)
	b.clock = func() time.Time { return now }

	expected := []time.Duration{
		30 * time.Second,
		time.Minute,
		2 * time.Minute,
		4 * time.Minute,
		5 * time.Minute,
		5 * time.Minute,
	}

	var prev time.Duration
	for i, want := range expected {
		got := b.Failure("p1", "bars")
		if got != want {
			t.Fatalf("failure %d: expected delay %s, got %s", i+1, want, got)
		}
		if got < prev {
			t.Fatalf("delays must never shrink: %s after %s", got, prev)
		}
		prev = got
		now = now.Add(got)
	}
}

func TestBackoffBlocksUntilWindowExpires(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	b := NewBackoff(30*time.Second, 5*time.Minute)
	b.clock = func() time.Time { return now }

	if !b.Ready("p1", "bars") {
		t.Fatal("fresh pair should be ready")
	}
	b.Failure("p1", "bars")
	if b.Ready("p1", "bars") {
		t.Fatal("pair inside backoff window must not be ready")
	}
	if !b.Ready("p1", "travel") {
		t.Fatal("backoff is per (subject, group)")
	}
	if !b.Ready("p2", "bars") {
		t.Fatal("backoff is per subject")
	}

	now = now.Add(30*time.Second + time.Millisecond)
	if !b.Ready("p1", "bars") {
		t.Fatal("pair should be ready once the window elapses")
	}
}

func TestBackoffResetsAfterIdleGap(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	b := NewBackoff(30*time.Second, 5*time.Minute)
	b.clock = func() time.Time { return now }

	b.Failure("p1", "bars")
	now = now.Add(time.Minute)
	if got := b.Failure("p1", "bars"); got != time.Minute {
		t.Fatalf("consecutive failure should double, got %s", got)
	}

	// A quiet spell longer than the cap resets the ladder.
	now = now.Add(6 * time.Minute)
	if got := b.Failure("p1", "bars"); got != 30*time.Second {
		t.Fatalf("failure after an idle gap should restart at base, got %s", got)
	}
}

func TestBackoffSuccessClearsState(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	b := NewBackoff(30*time.Second, 5*time.Minute)
	b.clock = func() time.Time { return now }

	b.Failure("p1", "bars")
	b.Failure("p1", "bars")
	b.Success("p1", "bars")

	if !b.Ready("p1", "bars") {
		t.Fatal("success must clear the backoff window")
	}
	if got := b.Failure("p1", "bars"); got != 30*time.Second {
		t.Fatalf("first failure after success should use the base delay, got %s", got)
	}
}
