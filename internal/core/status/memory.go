package status

import (
	"context"
	"sync"
	"time"

	"github.com/roomgate/roomgate/internal/core"
)

// MemoryStore is a process-local FlagStore.
type MemoryStore struct {
	mu       sync.Mutex
	subjects map[string]map[string]*time.Time
}

// NewMemoryStore returns a store that knows the given subjects.
func NewMemoryStore(subjects ...string) *MemoryStore {
	m := &MemoryStore{subjects: make(map[string]map[string]*time.Time, len(subjects))}
	for _, id := range subjects {
		m.subjects[id] = map[string]*time.Time{}
	}
	return m
}

// Register makes a subject known to the store.
func (m *MemoryStore) Register(subjectID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subjects[subjectID]; !ok {
		m.subjects[subjectID] = map[string]*time.Time{}
	}
}

func (m *MemoryStore) LoadFlag(_ context.Context, subjectID string, kind string) (*time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	flags, ok := m.subjects[subjectID]
	if !ok {
		return nil, core.ErrNotFound
	}
	until := flags[kind]
	if until == nil {
		return nil, nil
	}
	value := *until
	return &value, nil
}

func (m *MemoryStore) SaveFlag(_ context.Context, subjectID string, kind string, activeUntil *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	flags, ok := m.subjects[subjectID]
	if !ok {
		return core.ErrNotFound
	}
	if activeUntil == nil {
		flags[kind] = nil
		return nil
	}
	value := activeUntil.UTC()
	flags[kind] = &value
	return nil
}
