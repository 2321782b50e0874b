package scheduler

import (
	"sync"
	"time"
)

type backoffKey struct {
	subject string
	group   string
}

type backoffEntry struct {
	nextAllowedAt time.Time
	delay         time.Duration
	lastFailure   time.Time
}

// Backoff tracks exponential retry delays per (subject, data-group) pair.
// The delay doubles on consecutive failure up to max, and falls back to
// base once the gap since the previous failure exceeds max. In memory
// only; state is owned by the scheduler instance.
type Backoff struct {
	base  time.Duration
	max   time.Duration
	clock func() time.Time

	mu      sync.Mutex
	entries map[backoffKey]backoffEntry
}

// NewBackoff builds a backoff table with the given base and cap.
func NewBackoff(base, max time.Duration) *Backoff {
	if base <= 0 {
		base = 30 * time.Second
	}
	if max < base {
		max = 5 * time.Minute
	}
	return &Backoff{
		base:    base,
		max:     max,
		clock:   time.Now,
		entries: make(map[backoffKey]backoffEntry),
	}
}

// Ready reports whether the pair is outside its backoff window.
func (b *Backoff) Ready(subject, group string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.entries[backoffKey{subject, group}]
	if !ok {
		return true
	}
	return !b.clock().Before(entry.nextAllowedAt)
}

// Failure extends the pair's delay and returns the new value for logging.
func (b *Backoff) Failure(subject, group string) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock()
	key := backoffKey{subject, group}
	entry, ok := b.entries[key]

	delay := b.base
	if ok && now.Sub(entry.lastFailure) <= b.max {
		delay = entry.delay * 2
		if delay > b.max {
			delay = b.max
		}
	}

	b.entries[key] = backoffEntry{
		nextAllowedAt: now.Add(delay),
		delay:         delay,
		lastFailure:   now,
	}
	return delay
}

// Success clears the pair's backoff state.
func (b *Backoff) Success(subject, group string) {
	b.mu.Lock()
	delete(b.entries, backoffKey{subject, group})
	b.mu.Unlock()
}
