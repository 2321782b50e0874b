package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"torn-alert-watcher/internal/catalog"
	"torn-alert-watcher/internal/config"
	"torn-alert-watcher/internal/directory"
	"torn-alert-watcher/internal/fetcher"
)

// Evaluator receives fetched state. Implemented by the alert engine.
type Evaluator interface {
	Evaluate(ctx context.Context, subjectID string, payload catalog.Payload, group string)
}

// Scheduler drives the three fixed-cadence poll loops. Each tick fetches
// every applicable data group for every subject with a credential and
// forwards successes to the engine; failures feed the backoff table and
// never abort the cycle for other subjects or groups.
type Scheduler struct {
	cfg      config.SchedulerConfig
	registry *catalog.Registry
	dir      directory.Directory
	fetch    fetcher.Fetcher
	engine   Evaluator
	backoff  *Backoff
	logger   zerolog.Logger
}

// New constructs a scheduler. Backoff state is owned per instance.
func New(cfg config.SchedulerConfig, registry *catalog.Registry, dir directory.Directory, fetch fetcher.Fetcher, engine Evaluator, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		registry: registry,
		dir:      dir,
		fetch:    fetch,
		engine:   engine,
		backoff:  NewBackoff(cfg.BackoffBase, cfg.BackoffMax),
		logger:   logger.With().Str("component", "scheduler").Logger(),
	}
}

// Run blocks until ctx is cancelled, driving one loop per cadence. Ticks of
// the same cadence never overlap; different cadences are independent timers
// and may interleave in wall-clock time.
func (s *Scheduler) Run(ctx context.Context) error {
	cadences := []struct {
		cadence  catalog.Cadence
		interval time.Duration
		name     string
	}{
		{catalog.CadenceFast, s.cfg.FastInterval, "fast"},
		{catalog.CadenceMedium, s.cfg.MediumInterval, "medium"},
		{catalog.CadenceSlow, s.cfg.SlowInterval, "slow"},
	}

	var wg sync.WaitGroup
	for _, c := range cadences {
		wg.Add(1)
		go func(cadence catalog.Cadence, interval time.Duration, name string) {
			defer wg.Done()
			s.loop(ctx, cadence, interval, name)
		}(c.cadence, c.interval, c.name)
	}
	wg.Wait()
	return ctx.Err()
}

func (s *Scheduler) loop(ctx context.Context, cadence catalog.Cadence, interval time.Duration, name string) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger := s.logger.With().Str("cadence", name).Logger()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx, cadence, logger)
		}
	}
}

// Tick processes one cycle of the given cadence across all subjects.
func (s *Scheduler) Tick(ctx context.Context, cadence catalog.Cadence, logger zerolog.Logger) {
	subjects, err := s.dir.ListSubjects(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("list subjects failed, skipping tick")
		return
	}

	groups := s.registry.Groups(cadence)
	for id, subject := range subjects {
		if subject.Credential == "" {
			continue
		}
		for _, group := range groups {
			if ctx.Err() != nil {
				return
			}
			s.poll(ctx, id, subject.Credential, group, logger)
		}
	}
}

func (s *Scheduler) poll(ctx context.Context, subjectID, credential, group string, logger zerolog.Logger) {
	if !s.backoff.Ready(subjectID, group) {
		logger.Debug().
			Str("subject", subjectID).
			Str("group", group).
			Msg("within backoff window, skipped")
		return
	}

	payload, err := s.fetch.Fetch(ctx, credential, group)
	if err != nil {
		delay := s.backoff.Failure(subjectID, group)
		logger.Warn().Err(err).
			Str("subject", subjectID).
			Str("group", group).
			Dur("retry_in", delay).
			Msg("fetch failed")
		return
	}

	s.backoff.Success(subjectID, group)
	s.engine.Evaluate(ctx, subjectID, payload, group)
}
