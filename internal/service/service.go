package service

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"torn-alert-watcher/internal/market"
	"torn-alert-watcher/internal/scheduler"
	"torn-alert-watcher/internal/state"
)

// Service runs the poll scheduler, market monitor and state flusher as one
// unit with a shared lifetime. Cancellation stops the timers and forces a
// final flush of the debounced collections.
type Service struct {
	scheduler *scheduler.Scheduler
	monitor   *market.Monitor
	store     *state.Store
	logger    zerolog.Logger
}

// New wires the long-running components together.
func New(sched *scheduler.Scheduler, monitor *market.Monitor, store *state.Store, logger zerolog.Logger) *Service {
	return &Service{
		scheduler: sched,
		monitor:   monitor,
		store:     store,
		logger:    logger.With().Str("component", "service").Logger(),
	}
}

// Run blocks until ctx is cancelled and every component has shut down.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return errors.New("scheduler not configured")
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.store.Run(ctx)
	}()

	if s.monitor != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.monitor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error().Err(err).Msg("market monitor stopped with error")
			}
		}()
	}

	err := s.scheduler.Run(ctx)
	wg.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
