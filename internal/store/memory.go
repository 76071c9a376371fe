package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/joescharf/bugboard/internal/models"
)

// MemoryStore implements Store over an in-process collection.
// Records are copied on the way in and out so callers never share state
// with the store. Contents are lost on Close.
type MemoryStore struct {
	mu    sync.RWMutex
	order []string
	bugs  map[string]*models.Bug
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{bugs: make(map[string]*models.Bug)}
}

// Migrate is a no-op; the in-memory collection has no schema.
func (m *MemoryStore) Migrate(_ context.Context) error { return nil }

// Close discards all records.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.order = nil
	m.bugs = make(map[string]*models.Bug)
	return nil
}

func (m *MemoryStore) CreateBug(ctx context.Context, bug *models.Bug) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("create bug: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bugs[bug.ID]; ok {
		return fmt.Errorf("create bug: duplicate id %s", bug.ID)
	}
	m.bugs[bug.ID] = bug.Clone()
	m.order = append(m.order, bug.ID)
	return nil
}

func (m *MemoryStore) GetBug(ctx context.Context, id string) (*models.Bug, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("get bug: %w", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	bug, ok := m.bugs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return bug.Clone(), nil
}

func (m *MemoryStore) ListBugs(ctx context.Context) ([]*models.Bug, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("list bugs: %w", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	bugs := make([]*models.Bug, 0, len(m.order))
	for _, id := range m.order {
		bugs = append(bugs, m.bugs[id].Clone())
	}
	return bugs, nil
}

func (m *MemoryStore) UpdateBug(ctx context.Context, bug *models.Bug) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("update bug: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.bugs[bug.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, bug.ID)
	}
	updated := bug.Clone()
	updated.CreatedAt = existing.CreatedAt
	m.bugs[bug.ID] = updated
	return nil
}

func (m *MemoryStore) DeleteBug(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("delete bug: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bugs[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(m.bugs, id)
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}
