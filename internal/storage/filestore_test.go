package storage

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestFileStoreRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("create file store: %v", err)
	}
	ctx := context.Background()

	if _, err := store.Load(ctx, "alert_state"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing namespace should return ErrNotFound, got %v", err)
	}

	doc := json.RawMessage(`{"p1":{"flags":{}}}`)
	if err := store.Save(ctx, "alert_state", doc); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := store.Load(ctx, "alert_state")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if string(loaded) != string(doc) {
		t.Fatalf("document mismatch: %s", loaded)
	}
}

func TestFileStoreNamespacesAreIndependent(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("create file store: %v", err)
	}
	ctx := context.Background()

	if err := store.Save(ctx, "subjects", json.RawMessage(`{"a":1}`)); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := store.Save(ctx, "watched_items", json.RawMessage(`{"b":2}`)); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	subjects, err := store.Load(ctx, "subjects")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if string(subjects) != `{"a":1}` {
		t.Fatalf("namespace bleed: %s", subjects)
	}
}

func TestFileStoreRequiresDir(t *testing.T) {
	if _, err := NewFileStore(""); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("empty dir should return ErrNotConfigured, got %v", err)
	}
}
