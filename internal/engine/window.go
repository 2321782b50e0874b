package engine

import (
	"sync"
	"time"
)

// Window enforces a per-subject ceiling on notifications within a rolling
// time span, independent of per-alert cooldowns and across all alert keys.
type Window struct {
	max   int
	span  time.Duration
	clock func() time.Time

	mu    sync.Mutex
	fires map[string][]time.Time
}

// NewWindow builds a limiter allowing max fires per span per subject.
func NewWindow(max int, span time.Duration) *Window {
	return &Window{
		max:   max,
		span:  span,
		clock: time.Now,
		fires: make(map[string][]time.Time),
	}
}

// Allow reports whether the subject is under the ceiling right now.
func (w *Window) Allow(subjectID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.prune(subjectID)) < w.max
}

// Record charges one unit against the subject's window.
func (w *Window) Record(subjectID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.fires[subjectID] = append(w.prune(subjectID), w.clock())
}

// caller must hold w.mu
func (w *Window) prune(subjectID string) []time.Time {
	cutoff := w.clock().Add(-w.span)
	kept := w.fires[subjectID][:0]
	for _, t := range w.fires[subjectID] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		delete(w.fires, subjectID)
		return nil
	}
	w.fires[subjectID] = kept
	return kept
}
