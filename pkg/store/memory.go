package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/taskforge/platform/pkg/apperr"
)

// Memory is an in-process Store double. It is the primary test fixture for
// every other component in this module — admission gate races, dispatcher
// flows, cleanup cascades, and orchestrator polling all exercise Memory
// rather than a live Postgres instance.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]map[string]map[string]any
	now         func() time.Time
}

// NewMemory constructs an empty in-memory Store.
func NewMemory() *Memory {
	return &Memory{
		collections: make(map[string]map[string]map[string]any),
		now:         time.Now,
	}
}

func (m *Memory) bucket(collection string) map[string]map[string]any {
	b, ok := m.collections[collection]
	if !ok {
		b = make(map[string]map[string]any)
		m.collections[collection] = b
	}
	return b
}

// toMap round-trips a Document through JSON-shaped field access so Find's
// equality filter can compare by field name without reflection on the
// concrete type. Callers pass real structs; Memory keeps its own decoded
// copy so later mutation of the caller's struct never leaks into storage.
func toMap(doc Document) map[string]any {
	return structToMap(doc)
}

func (m *Memory) Insert(ctx context.Context, collection string, doc Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if doc.GetID() == "" {
		return fmt.Errorf("store: insert into %s: %w: empty id", collection, apperr.Validation)
	}
	b := m.bucket(collection)
	if _, exists := b[doc.GetID()]; exists {
		return fmt.Errorf("store: insert into %s: %w", collection, apperr.Conflict)
	}
	now := m.now()
	if doc.GetCreatedAt().IsZero() {
		doc.SetCreatedAt(now)
	}
	doc.SetUpdatedAt(now)
	b[doc.GetID()] = toMap(doc)
	return nil
}

func (m *Memory) Get(ctx context.Context, collection, id string, out Document) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b := m.collections[collection]
	row, ok := b[id]
	if !ok {
		return fmt.Errorf("store: get %s/%s: %w", collection, id, apperr.NotFound)
	}
	return mapToStruct(row, out)
}

func matches(row map[string]any, filter Filter) bool {
	for k, v := range filter {
		if row[k] != v {
			return false
		}
	}
	return true
}

func (m *Memory) Find(ctx context.Context, collection string, filter Filter, newOut func() Document) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var results []Document
	for _, row := range m.collections[collection] {
		if !matches(row, filter) {
			continue
		}
		out := newOut()
		if err := mapToStruct(row, out); err != nil {
			return nil, err
		}
		results = append(results, out)
	}
	return results, nil
}

func (m *Memory) Update(ctx context.Context, collection, id string, patch Patch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.bucket(collection)
	row, ok := b[id]
	if !ok {
		return fmt.Errorf("store: update %s/%s: %w", collection, id, apperr.NotFound)
	}
	for k, v := range patch {
		row[k] = v
	}
	row["updated_at"] = m.now()
	b[id] = row
	return nil
}

func (m *Memory) Delete(ctx context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.bucket(collection), id)
	return nil
}

func (m *Memory) Count(ctx context.Context, collection string, filter Filter) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, row := range m.collections[collection] {
		if matches(row, filter) {
			n++
		}
	}
	return n, nil
}
