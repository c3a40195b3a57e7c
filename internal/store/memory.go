package store

import (
	"context"
	"sort"
	"sync"

	"github.com/roach88/limitidx/internal/order"
)

// Memory is an in-process RecordStore used by tests and the scenario runner.
// Records are deep-copied on the way in and out.
type Memory struct {
	mu      sync.RWMutex
	records map[string]order.Record
}

var (
	_ RecordStore = (*Memory)(nil)
	_ Lister      = (*Memory)(nil)
)

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]order.Record)}
}

// Load returns a copy of the record stored under key.
func (m *Memory) Load(_ context.Context, key string) (order.Record, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[key]
	if !ok {
		return order.Record{}, false, nil
	}
	return rec.Clone(), true, nil
}

// Save stores a copy of rec under key.
func (m *Memory) Save(_ context.Context, key string, rec order.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev, found := m.records[key]
	if err := checkVersion(prev.UpdatesCount, found, rec.UpdatesCount); err != nil {
		return err
	}

	next := rec.Clone()
	if found {
		next = writeOnce(prev, next)
	}
	m.records[key] = next
	return nil
}

// List returns up to limit records ordered by key. limit <= 0 means no limit.
func (m *Memory) List(_ context.Context, limit int) ([]order.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.records))
	for k := range m.records {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}

	out := make([]order.Record, 0, len(keys))
	for _, k := range keys {
		out = append(out, m.records[k].Clone())
	}
	return out, nil
}

// Len returns the number of stored records.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// writeOnce keeps the identity columns of prev and the mutable columns of next.
func writeOnce(prev, next order.Record) order.Record {
	out := prev.Clone()
	out.RemainingAmount = next.RemainingAmount
	out.UpdatesCount = next.UpdatesCount
	return out
}
