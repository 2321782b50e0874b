package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	ensureDocumentsSQL = `CREATE TABLE IF NOT EXISTS documents (
        namespace  TEXT PRIMARY KEY,
        doc        JSONB NOT NULL,
        updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
    );`

	loadDocumentSQL = `SELECT doc FROM documents WHERE namespace = $1;`

	saveDocumentSQL = `INSERT INTO documents (namespace, doc, updated_at)
    VALUES ($1, $2, now())
    ON CONFLICT (namespace) DO UPDATE
    SET doc = EXCLUDED.doc, updated_at = now();`
)

// PostgresStore persists collection documents in a single jsonb table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wires a pgx pool into a store and ensures the schema.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, ErrNotConfigured
	}
	if _, err := pool.Exec(ctx, ensureDocumentsSQL); err != nil {
		return nil, fmt.Errorf("ensure documents table: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Load fetches the document stored under namespace.
func (s *PostgresStore) Load(ctx context.Context, namespace string) (json.RawMessage, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	var doc []byte
	err := s.pool.QueryRow(ctx, loadDocumentSQL, namespace).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load document %q: %w", namespace, err)
	}
	return json.RawMessage(doc), nil
}

// Save upserts the document stored under namespace.
func (s *PostgresStore) Save(ctx context.Context, namespace string, doc json.RawMessage) error {
	if s == nil || s.pool == nil {
		return ErrNotConfigured
	}
	if _, err := s.pool.Exec(ctx, saveDocumentSQL, namespace, []byte(doc)); err != nil {
		return fmt.Errorf("save document %q: %w", namespace, err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *PostgresStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

var _ DocumentStore = (*PostgresStore)(nil)
