package engine

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"torn-alert-watcher/internal/alerting"
	"torn-alert-watcher/internal/catalog"
	"torn-alert-watcher/internal/state"
)

// Engine evaluates the alert catalog against freshly fetched state, doing
// edge detection via latched flags, per-alert cooldowns, and the per-subject
// rate-limit window.
type Engine struct {
	registry *catalog.Registry
	store    *state.Store
	limiter  *Window
	notifier alerting.Notifier
	cfg      catalog.Config
	logger   zerolog.Logger
	clock    func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New constructs an engine. notifier may be nil; fires are then committed
// without delivery.
func New(registry *catalog.Registry, store *state.Store, limiter *Window, notifier alerting.Notifier, cfg catalog.Config, logger zerolog.Logger) *Engine {
	return &Engine{
		registry: registry,
		store:    store,
		limiter:  limiter,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger.With().Str("component", "engine").Logger(),
		clock:    time.Now,
		locks:    make(map[string]*sync.Mutex),
	}
}

// Evaluate runs every definition bound to the data group against the fresh
// payload, then merges the payload into the subject's observed state.
// Concurrent calls for the same subject from different cadences serialize
// on a per-subject lock.
func (e *Engine) Evaluate(ctx context.Context, subjectID string, payload catalog.Payload, group string) {
	lock := e.subjectLock(subjectID)
	lock.Lock()
	defer lock.Unlock()

	prev := e.store.Observed(subjectID)
	for _, def := range e.registry.ForGroup(group) {
		e.apply(ctx, subjectID, def, prev, payload)
	}
	e.store.MergeObserved(subjectID, payload)
}

// apply processes one definition. A panicking predicate or renderer is
// logged and skipped without blocking sibling definitions or the merge.
func (e *Engine) apply(ctx context.Context, subjectID string, def catalog.Definition, prev, curr catalog.Payload) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().
				Str("subject", subjectID).
				Str("alert", def.Key).
				Interface("panic", r).
				Msg("definition evaluation failed")
		}
	}()

	met := def.Condition(prev, curr, e.cfg)

	if e.store.Flag(subjectID, def.Key) && def.Reset(prev, curr) {
		e.store.ClearFlag(subjectID, def.Key)
	}

	// Re-read after the possible clear: a latched flag means the condition
	// already fired for this run and must not fire again.
	if !met || e.store.Flag(subjectID, def.Key) {
		return
	}

	now := e.clock()
	if last := e.store.LastFire(subjectID, def.Key); !last.IsZero() && now.Before(last.Add(def.Cooldown)) {
		e.logger.Debug().
			Str("subject", subjectID).
			Str("alert", def.Key).
			Time("last_fire", last).
			Msg("still cooling down")
		return
	}

	if !e.limiter.Allow(subjectID) {
		e.logger.Warn().
			Str("subject", subjectID).
			Str("alert", def.Key).
			Msg("rate limit reached, alert suppressed")
		return
	}

	lines := def.Message(curr, prev, e.cfg)

	// Flag and cooldown commit before the send: delivery is at most once
	// per edge, a failed send is not retried.
	e.store.CommitFire(subjectID, def.Key, now)
	e.limiter.Record(subjectID)

	e.logger.Info().
		Str("subject", subjectID).
		Str("alert", def.Key).
		Str("severity", def.Severity.String()).
		Msg("alert fired")

	if e.notifier == nil {
		return
	}
	note := alerting.Notification{
		Title:    def.Title,
		Emoji:    def.Emoji,
		Severity: def.Severity,
		Lines:    lines,
	}
	if err := e.notifier.Notify(ctx, subjectID, note); err != nil {
		e.logger.Error().Err(err).
			Str("subject", subjectID).
			Str("alert", def.Key).
			Msg("failed to dispatch alert")
	}
}

func (e *Engine) subjectLock(subjectID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	lock, ok := e.locks[subjectID]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[subjectID] = lock
	}
	return lock
}
