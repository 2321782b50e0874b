package directory

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"torn-alert-watcher/internal/storage"
)

type memDocs struct {
	mu   sync.Mutex
	docs map[string]json.RawMessage
}

func newMemDocs() *memDocs {
	return &memDocs{docs: make(map[string]json.RawMessage)}
}

func (m *memDocs) Load(ctx context.Context, ns string) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[ns]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return doc, nil
}

func (m *memDocs) Save(ctx context.Context, ns string, doc json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[ns] = append(json.RawMessage(nil), doc...)
	return nil
}

func (m *memDocs) Close() {}

func TestRegisterListDeregister(t *testing.T) {
	docs := newMemDocs()
	d := NewStoreDirectory(docs, zerolog.Nop())
	ctx := context.Background()

	if err := d.Register(ctx, Subject{ID: "duke", Name: "Duke", Credential: "key-duke"}); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if err := d.Register(ctx, Subject{ID: "ruth", Name: "Ruth", Credential: "key-ruth"}); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	subjects, err := d.ListSubjects(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(subjects) != 2 {
		t.Fatalf("expected 2 subjects, got %d", len(subjects))
	}
	if subjects["duke"].Credential != "key-duke" {
		t.Fatalf("unexpected credential %q", subjects["duke"].Credential)
	}

	if err := d.Deregister(ctx, "duke"); err != nil {
		t.Fatalf("deregister failed: %v", err)
	}
	if err := d.Deregister(ctx, "duke"); err == nil {
		t.Fatal("deregistering an unknown subject should fail")
	}

	subjects, _ = d.ListSubjects(ctx)
	if _, exists := subjects["duke"]; exists {
		t.Fatal("deregistered subject still listed")
	}
}

func TestRegisterValidatesInput(t *testing.T) {
	d := NewStoreDirectory(newMemDocs(), zerolog.Nop())
	ctx := context.Background()

	if err := d.Register(ctx, Subject{ID: "", Credential: "key"}); err == nil {
		t.Fatal("registration without id should fail")
	}
	if err := d.Register(ctx, Subject{ID: "duke", Credential: ""}); err == nil {
		t.Fatal("registration without credential should fail")
	}
}

func TestSubjectsPersistAcrossRestart(t *testing.T) {
	docs := newMemDocs()
	ctx := context.Background()

	first := NewStoreDirectory(docs, zerolog.Nop())
	if err := first.Register(ctx, Subject{ID: "duke", Name: "Duke", Credential: "key-duke"}); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	second := NewStoreDirectory(docs, zerolog.Nop())
	if err := second.Load(ctx); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	subjects, _ := second.ListSubjects(ctx)
	if subjects["duke"].Name != "Duke" {
		t.Fatalf("persisted subject lost: %+v", subjects)
	}
}

func TestSeedOnlyAddsMissing(t *testing.T) {
	docs := newMemDocs()
	d := NewStoreDirectory(docs, zerolog.Nop())
	ctx := context.Background()

	if err := d.Register(ctx, Subject{ID: "duke", Name: "Duke", Credential: "stored-key"}); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	seed := []Subject{
		{ID: "duke", Name: "Duke", Credential: "config-key"},
		{ID: "ruth", Name: "Ruth", Credential: "key-ruth"},
	}
	if err := d.Seed(ctx, seed); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	subjects, _ := d.ListSubjects(ctx)
	if subjects["duke"].Credential != "stored-key" {
		t.Fatal("seed must not overwrite a registered subject")
	}
	if subjects["ruth"].Credential != "key-ruth" {
		t.Fatal("seed must add new subjects")
	}

	// Re-seeding an unchanged set is a no-op.
	if err := d.Seed(ctx, seed); err != nil {
		t.Fatalf("idempotent seed failed: %v", err)
	}
}

func TestListReturnsACopy(t *testing.T) {
	d := NewStoreDirectory(newMemDocs(), zerolog.Nop())
	ctx := context.Background()

	if err := d.Register(ctx, Subject{ID: "duke", Credential: "key-duke"}); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	subjects, _ := d.ListSubjects(ctx)
	delete(subjects, "duke")

	again, _ := d.ListSubjects(ctx)
	if _, exists := again["duke"]; !exists {
		t.Fatal("mutating the listed map must not affect the directory")
	}
}
