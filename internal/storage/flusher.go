package storage

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Flusher debounces persistence writes for an in-memory collection. Callers
// mark the collection dirty after mutation; the background loop writes at
// most once per interval. Cancellation triggers one final synchronous flush
// so shutdown never loses committed state.
type Flusher struct {
	save     func(ctx context.Context) error
	interval time.Duration
	logger   zerolog.Logger

	mu    sync.Mutex
	dirty bool
}

// NewFlusher binds a save callback to a debounce interval.
func NewFlusher(interval time.Duration, save func(ctx context.Context) error, logger zerolog.Logger) *Flusher {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Flusher{
		save:     save,
		interval: interval,
		logger:   logger.With().Str("component", "flusher").Logger(),
	}
}

// MarkDirty records that in-memory state diverged from disk.
func (f *Flusher) MarkDirty() {
	f.mu.Lock()
	f.dirty = true
	f.mu.Unlock()
}

// Run blocks until ctx is cancelled, writing dirty state at most once per
// interval. The final flush runs on a detached context so it survives the
// cancellation that requested it.
func (f *Flusher) Run(ctx context.Context) {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := f.Flush(flushCtx); err != nil {
				f.logger.Error().Err(err).Msg("final flush failed")
			}
			cancel()
			return
		case <-ticker.C:
			if err := f.Flush(ctx); err != nil {
				f.logger.Error().Err(err).Msg("debounced flush failed")
			}
		}
	}
}

// Flush writes immediately when dirty. Write failures leave the dirty bit
// set so the next cycle retries; in-memory state stays authoritative.
func (f *Flusher) Flush(ctx context.Context) error {
	f.mu.Lock()
	if !f.dirty {
		f.mu.Unlock()
		return nil
	}
	f.dirty = false
	f.mu.Unlock()

	if err := f.save(ctx); err != nil {
		f.mu.Lock()
		f.dirty = true
		f.mu.Unlock()
		return err
	}
	return nil
}
