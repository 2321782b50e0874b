package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"torn-alert-watcher/internal/catalog"
	"torn-alert-watcher/internal/engine"
	"torn-alert-watcher/internal/state"
)

// Simulate runs a hand-written payload for one subject and data group
// through the live engine, state store and notifier. Useful for verifying
// channel configuration without waiting for a real transition.
func (a *App) Simulate(ctx context.Context, opts SimulateOptions) error {
	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("no notification channel configured")
	}

	var payload catalog.Payload
	if err := json.Unmarshal([]byte(opts.Payload), &payload); err != nil {
		return fmt.Errorf("parse payload: %w", err)
	}

	docs, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer docs.Close()

	store := state.NewStore(docs, a.Config.Storage.Debounce, a.Logger)
	store.Load(ctx)

	registry := catalog.Default()
	limiter := engine.NewWindow(a.Config.Alerts.MaxPerWindow, a.Config.Alerts.Window)
	eng := engine.New(registry, store, limiter, notifier, a.alertConfig(), a.Logger)

	eng.Evaluate(ctx, opts.SubjectID, payload, opts.Group)
	return store.Flush(ctx)
}
