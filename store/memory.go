package store

import (
	"context"
	"sync"
	"time"
)

const memoryPruneEvery = 5 * time.Minute

// Memory keeps sessions in process. Sessions do not survive restarts and
// are not shared between replicas. Expired records are swept on Set.
type Memory struct {
	mu        sync.RWMutex
	records   map[string]*Record
	lastPrune time.Time
	now       func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		records:   make(map[string]*Record),
		lastPrune: time.Now(),
		now:       time.Now,
	}
}

func (m *Memory) Get(_ context.Context, id string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return rec.clone(), nil
}

func (m *Memory) Set(_ context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if now.Sub(m.lastPrune) > memoryPruneEvery {
		for id, r := range m.records {
			if r.Expired(now) {
				delete(m.records, id)
			}
		}
		m.lastPrune = now
	}
	m.records[rec.ID] = rec.clone()
	return nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	return nil
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func (m *Memory) Close() error { return nil }
