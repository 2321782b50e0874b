package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"torn-alert-watcher/internal/catalog"
	"torn-alert-watcher/internal/config"
	"torn-alert-watcher/internal/directory"
)

type staticDirectory map[string]directory.Subject

func (d staticDirectory) ListSubjects(ctx context.Context) (map[string]directory.Subject, error) {
	return d, nil
}

type scriptedFetcher struct {
	mu    sync.Mutex
	fails map[string]error // keyed subject credential + "/" + group
	calls []string
}

func (f *scriptedFetcher) Fetch(ctx context.Context, credential, group string) (catalog.Payload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := credential + "/" + group
	f.calls = append(f.calls, key)
	if err, ok := f.fails[key]; ok {
		return nil, err
	}
	return catalog.Payload{"ok": true}, nil
}

type recordingEvaluator struct {
	mu    sync.Mutex
	seen  []string
	count int
}

func (e *recordingEvaluator) Evaluate(ctx context.Context, subjectID string, payload catalog.Payload, group string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seen = append(e.seen, subjectID+"/"+group)
	e.count++
}

func testSchedulerConfig() config.SchedulerConfig {
	return config.SchedulerConfig{
		FastInterval:   time.Minute,
		MediumInterval: 5 * time.Minute,
		SlowInterval:   10 * time.Minute,
		BackoffBase:    30 * time.Second,
		BackoffMax:     5 * time.Minute,
	}
}

func TestTickForwardsEveryFastGroup(t *testing.T) {
	dir := staticDirectory{"p1": {ID: "p1", Credential: "key1"}}
	fetch := &scriptedFetcher{}
	eval := &recordingEvaluator{}
	s := New(testSchedulerConfig(), catalog.Default(), dir, fetch, eval, zerolog.Nop())

	s.Tick(context.Background(), catalog.CadenceFast, zerolog.Nop())

	groups := catalog.Default().Groups(catalog.CadenceFast)
	if eval.count != len(groups) {
		t.Fatalf("expected %d evaluations, got %d", len(groups), eval.count)
	}
}

func TestTickFailureDoesNotAbortCycle(t *testing.T) {
	dir := staticDirectory{
		"p1": {ID: "p1", Credential: "key1"},
		"p2": {ID: "p2", Credential: "key2"},
	}
	fetch := &scriptedFetcher{fails: map[string]error{
		"key1/bars":      errors.New("boom"),
		"key1/cooldowns": errors.New("boom"),
		"key1/travel":    errors.New("boom"),
	}}
	eval := &recordingEvaluator{}
	s := New(testSchedulerConfig(), catalog.Default(), dir, fetch, eval, zerolog.Nop())

	s.Tick(context.Background(), catalog.CadenceFast, zerolog.Nop())

	groups := len(catalog.Default().Groups(catalog.CadenceFast))
	if eval.count != groups {
		t.Fatalf("healthy subject should still get %d evaluations, got %d", groups, eval.count)
	}
	for _, seen := range eval.seen {
		if seen[:2] == "p1" {
			t.Fatalf("failing subject must not reach the engine: %v", eval.seen)
		}
	}
}

func TestTickSkipsPairsInsideBackoffWindow(t *testing.T) {
	dir := staticDirectory{"p1": {ID: "p1", Credential: "key1"}}
	fetch := &scriptedFetcher{fails: map[string]error{"key1/bars": errors.New("boom")}}
	eval := &recordingEvaluator{}
	s := New(testSchedulerConfig(), catalog.Default(), dir, fetch, eval, zerolog.Nop())
	ctx := context.Background()

	s.Tick(ctx, catalog.CadenceFast, zerolog.Nop())
	callsAfterFirst := len(fetch.calls)

	// The failed pair is backed off; other groups keep polling.
	s.Tick(ctx, catalog.CadenceFast, zerolog.Nop())
	var barsCalls int
	for _, call := range fetch.calls {
		if call == "key1/bars" {
			barsCalls++
		}
	}
	if barsCalls != 1 {
		t.Fatalf("bars should be skipped while backed off, got %d calls", barsCalls)
	}
	if len(fetch.calls) == callsAfterFirst {
		t.Fatal("other groups must keep polling during the backoff")
	}
}

func TestTickSkipsSubjectsWithoutCredential(t *testing.T) {
	dir := staticDirectory{"p1": {ID: "p1"}}
	fetch := &scriptedFetcher{}
	eval := &recordingEvaluator{}
	s := New(testSchedulerConfig(), catalog.Default(), dir, fetch, eval, zerolog.Nop())

	s.Tick(context.Background(), catalog.CadenceFast, zerolog.Nop())
	if len(fetch.calls) != 0 {
		t.Fatalf("credential-less subject must not be fetched, got %v", fetch.calls)
	}
}
