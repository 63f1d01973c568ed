package repository

import (
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	"github.com/lib/pq"
)

// MemoryEntry is one record in the append-style memory log.
type MemoryEntry struct {
	Namespace string          `json:"namespace"`
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	Tags      []string        `json:"tags,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// MemoryStore is the injected persistence collaborator: an append-style
// key/value log used for audit trails and cross-cycle learning. It is a
// durable log, not a relational store.
type MemoryStore interface {
	Store(namespace, key string, value any, tags []string) error
	RetrieveRecent(namespace string, n int) ([]MemoryEntry, error)
}

// PostgresMemoryStore keeps the log in a single memory_entries table.
//
// Expected schema:
//
//	CREATE TABLE memory_entries (
//	    id         BIGSERIAL PRIMARY KEY,
//	    namespace  TEXT NOT NULL,
//	    key        TEXT NOT NULL,
//	    value      JSONB NOT NULL,
//	    tags       TEXT[] NOT NULL DEFAULT '{}',
//	    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
//	);
type PostgresMemoryStore struct {
	DB *sql.DB
}

func (s *PostgresMemoryStore) Store(namespace, key string, value any, tags []string) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if tags == nil {
		tags = []string{}
	}
	query := `
        INSERT INTO memory_entries (namespace, key, value, tags, created_at)
        VALUES ($1, $2, $3, $4, NOW())
    `
	_, err = s.DB.Exec(query, namespace, key, raw, pq.Array(tags))
	return err
}

func (s *PostgresMemoryStore) RetrieveRecent(namespace string, n int) ([]MemoryEntry, error) {
	query := `
        SELECT namespace, key, value, tags, created_at
        FROM memory_entries
        WHERE namespace=$1
        ORDER BY id DESC
        LIMIT $2
    `
	rows, err := s.DB.Query(query, namespace, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []MemoryEntry{}
	for rows.Next() {
		var e MemoryEntry
		var raw []byte
		if err := rows.Scan(&e.Namespace, &e.Key, &raw, pq.Array(&e.Tags), &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Value = json.RawMessage(raw)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// InMemoryMemoryStore backs tests and single-process mode.
type InMemoryMemoryStore struct {
	mu      sync.Mutex
	entries map[string][]MemoryEntry
}

func NewInMemoryMemoryStore() *InMemoryMemoryStore {
	return &InMemoryMemoryStore{entries: make(map[string][]MemoryEntry)}
}

func (s *InMemoryMemoryStore) Store(namespace, key string, value any, tags []string) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[namespace] = append(s.entries[namespace], MemoryEntry{
		Namespace: namespace,
		Key:       key,
		Value:     raw,
		Tags:      append([]string(nil), tags...),
		CreatedAt: time.Now(),
	})
	return nil
}

func (s *InMemoryMemoryStore) RetrieveRecent(namespace string, n int) ([]MemoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.entries[namespace]
	if n > len(all) {
		n = len(all)
	}
	out := make([]MemoryEntry, 0, n)
	for i := len(all) - 1; i >= len(all)-n; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

var (
	_ MemoryStore = (*PostgresMemoryStore)(nil)
	_ MemoryStore = (*InMemoryMemoryStore)(nil)
)
