package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"torn-alert-watcher/internal/catalog"
	"torn-alert-watcher/internal/storage"
)

const namespace = "alert_state"

// SubjectState is the durable per-subject alert record. Observed holds the
// last raw payload merged across data groups; Flags marks conditions that
// fired and have not reset; LastAlert records fire times as epoch millis.
type SubjectState struct {
	Observed  map[string]any   `json:"state"`
	Flags     map[string]bool  `json:"flags"`
	LastAlert map[string]int64 `json:"lastAlert"`
	UpdatedAt int64            `json:"updatedAt"`
}

func newSubjectState() *SubjectState {
	return &SubjectState{
		Observed:  make(map[string]any),
		Flags:     make(map[string]bool),
		LastAlert: make(map[string]int64),
	}
}

// Store owns every SubjectState and persists the collection as one JSON
// document with debounced writes.
type Store struct {
	docs   storage.DocumentStore
	logger zerolog.Logger
	clock  func() time.Time

	mu     sync.Mutex
	states map[string]*SubjectState

	flusher *storage.Flusher
}

// NewStore builds a store over the given persistence backend.
func NewStore(docs storage.DocumentStore, debounce time.Duration, logger zerolog.Logger) *Store {
	s := &Store{
		docs:   docs,
		logger: logger.With().Str("component", "state_store").Logger(),
		clock:  time.Now,
		states: make(map[string]*SubjectState),
	}
	s.flusher = storage.NewFlusher(debounce, s.save, logger)
	return s
}

// Load reads the persisted collection. Missing or unreadable documents fall
// back to an empty store; the error is logged, never fatal.
func (s *Store) Load(ctx context.Context) {
	doc, err := s.docs.Load(ctx, namespace)
	if errors.Is(err, storage.ErrNotFound) {
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("load alert state failed; starting empty")
		return
	}

	states := make(map[string]*SubjectState)
	if err := json.Unmarshal(doc, &states); err != nil {
		s.logger.Error().Err(err).Msg("decode alert state failed; starting empty")
		return
	}
	for _, st := range states {
		if st.Observed == nil {
			st.Observed = make(map[string]any)
		}
		if st.Flags == nil {
			st.Flags = make(map[string]bool)
		}
		if st.LastAlert == nil {
			st.LastAlert = make(map[string]int64)
		}
	}

	s.mu.Lock()
	s.states = states
	s.mu.Unlock()
}

// Run drives the debounced flusher until ctx is cancelled, then performs
// the final synchronous flush.
func (s *Store) Run(ctx context.Context) {
	s.flusher.Run(ctx)
}

// Flush forces an immediate write when dirty.
func (s *Store) Flush(ctx context.Context) error {
	return s.flusher.Flush(ctx)
}

// Observed returns a shallow copy of the subject's merged raw state.
func (s *Store) Observed(subjectID string) catalog.Payload {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.get(subjectID)
	copy := make(catalog.Payload, len(st.Observed))
	for k, v := range st.Observed {
		copy[k] = v
	}
	return copy
}

// Flag reports whether the alert key is currently latched.
func (s *Store) Flag(subjectID, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(subjectID).Flags[key]
}

// ClearFlag re-arms an alert key.
func (s *Store) ClearFlag(subjectID, key string) {
	s.mu.Lock()
	delete(s.get(subjectID).Flags, key)
	s.mu.Unlock()
	s.flusher.MarkDirty()
}

// LastFire returns the last fire time for the key, zero when never fired.
func (s *Store) LastFire(subjectID, key string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	ms, ok := s.get(subjectID).LastAlert[key]
	if !ok {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// CommitFire latches the flag and records the fire time. Committed before
// the notification send is attempted: a failed send is not retried.
func (s *Store) CommitFire(subjectID, key string, at time.Time) {
	s.mu.Lock()
	st := s.get(subjectID)
	st.Flags[key] = true
	st.LastAlert[key] = at.UnixMilli()
	st.UpdatedAt = s.clock().UnixMilli()
	s.mu.Unlock()
	s.flusher.MarkDirty()
}

// MergeObserved merges a data group's payload into the subject's observed
// state field by field. New fields overwrite; fields belonging to other
// groups are untouched, so interleaved cadences commute.
func (s *Store) MergeObserved(subjectID string, payload catalog.Payload) {
	s.mu.Lock()
	st := s.get(subjectID)
	for k, v := range payload {
		st.Observed[k] = v
	}
	st.UpdatedAt = s.clock().UnixMilli()
	s.mu.Unlock()
	s.flusher.MarkDirty()
}

// Remove drops a subject's record on deregistration.
func (s *Store) Remove(subjectID string) {
	s.mu.Lock()
	delete(s.states, subjectID)
	s.mu.Unlock()
	s.flusher.MarkDirty()
}

// States returns a copy of every subject record for inspection.
func (s *Store) States() map[string]SubjectState {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]SubjectState, len(s.states))
	for id, st := range s.states {
		out[id] = *st
	}
	return out
}

// caller must hold s.mu
func (s *Store) get(subjectID string) *SubjectState {
	st, ok := s.states[subjectID]
	if !ok {
		st = newSubjectState()
		s.states[subjectID] = st
	}
	return st
}

func (s *Store) save(ctx context.Context) error {
	s.mu.Lock()
	doc, err := json.Marshal(s.states)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("encode alert state: %w", err)
	}
	if err := s.docs.Save(ctx, namespace, doc); err != nil {
		return fmt.Errorf("save alert state: %w", err)
	}
	return nil
}
