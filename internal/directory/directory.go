package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"torn-alert-watcher/internal/storage"
)

const namespace = "subjects"

// Subject is a registered player tracked by the watcher. The credential is
// the player's API key; only the ID is referenced inside the core.
type Subject struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Credential string `json:"credential"`
}

// Directory exposes the set of subjects to poll.
type Directory interface {
	ListSubjects(ctx context.Context) (map[string]Subject, error)
}

// StoreDirectory keeps subjects in the document store, write-through on
// mutation (registration is rare, no debounce needed).
type StoreDirectory struct {
	docs   storage.DocumentStore
	logger zerolog.Logger

	mu       sync.RWMutex
	subjects map[string]Subject
}

// NewStoreDirectory builds a directory backed by the document store.
func NewStoreDirectory(docs storage.DocumentStore, logger zerolog.Logger) *StoreDirectory {
	return &StoreDirectory{
		docs:     docs,
		logger:   logger.With().Str("component", "directory").Logger(),
		subjects: make(map[string]Subject),
	}
}

// Load reads the persisted subject collection. A missing document starts
// the directory empty.
func (d *StoreDirectory) Load(ctx context.Context) error {
	doc, err := d.docs.Load(ctx, namespace)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load subjects: %w", err)
	}

	subjects := make(map[string]Subject)
	if err := json.Unmarshal(doc, &subjects); err != nil {
		return fmt.Errorf("decode subjects: %w", err)
	}

	d.mu.Lock()
	d.subjects = subjects
	d.mu.Unlock()
	return nil
}

// Seed registers subjects from configuration that are not present yet.
func (d *StoreDirectory) Seed(ctx context.Context, subjects []Subject) error {
	d.mu.Lock()
	changed := false
	for _, subject := range subjects {
		if _, exists := d.subjects[subject.ID]; exists {
			continue
		}
		d.subjects[subject.ID] = subject
		changed = true
	}
	d.mu.Unlock()

	if !changed {
		return nil
	}
	return d.persist(ctx)
}

// ListSubjects returns a copy of the current subject set.
func (d *StoreDirectory) ListSubjects(ctx context.Context) (map[string]Subject, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make(map[string]Subject, len(d.subjects))
	for id, subject := range d.subjects {
		out[id] = subject
	}
	return out, nil
}

// Register adds or replaces a subject and persists immediately.
func (d *StoreDirectory) Register(ctx context.Context, subject Subject) error {
	if subject.ID == "" || subject.Credential == "" {
		return errors.New("subject id and credential are required")
	}

	d.mu.Lock()
	d.subjects[subject.ID] = subject
	d.mu.Unlock()

	return d.persist(ctx)
}

// Deregister removes a subject and persists immediately.
func (d *StoreDirectory) Deregister(ctx context.Context, id string) error {
	d.mu.Lock()
	_, exists := d.subjects[id]
	delete(d.subjects, id)
	d.mu.Unlock()

	if !exists {
		return fmt.Errorf("subject %q not registered", id)
	}
	return d.persist(ctx)
}

func (d *StoreDirectory) persist(ctx context.Context) error {
	d.mu.RLock()
	doc, err := json.Marshal(d.subjects)
	d.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode subjects: %w", err)
	}
	if err := d.docs.Save(ctx, namespace, doc); err != nil {
		return fmt.Errorf("save subjects: %w", err)
	}
	return nil
}

var _ Directory = (*StoreDirectory)(nil)
