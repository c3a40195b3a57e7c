package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/roach88/limitidx/internal/order"
	"github.com/roach88/limitidx/internal/store"
)

// ErrInjected is the cause carried by FailingStore errors.
var ErrInjected = errors.New("injected store failure")

// FailingStore wraps a store.Memory and fails Load or Save on demand.
// Failures are *store.UnavailableError values wrapping ErrInjected.
type FailingStore struct {
	*store.Memory

	mu        sync.Mutex
	failLoad  bool
	failSave  bool
	failAfter int // saves allowed before failSave applies; 0 = immediately
	saves     int
	loads     int
}

// NewFailingStore returns a healthy store; use FailLoad/FailSave to break it.
func NewFailingStore() *FailingStore {
	return &FailingStore{Memory: store.NewMemory()}
}

// FailLoad makes every subsequent Load fail.
func (s *FailingStore) FailLoad() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failLoad = true
}

// FailSave lets the next `after` saves succeed and fails every save after that.
func (s *FailingStore) FailSave(after int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failSave = true
	s.failAfter = s.saves + after
}

// Heal clears injected failures.
func (s *FailingStore) Heal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failLoad = false
	s.failSave = false
}

// Calls returns the number of Load and Save calls observed.
func (s *FailingStore) Calls() (loads, saves int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loads, s.saves
}

// Load implements store.RecordStore.
func (s *FailingStore) Load(ctx context.Context, key string) (order.Record, bool, error) {
	s.mu.Lock()
	s.loads++
	fail := s.failLoad
	s.mu.Unlock()

	if fail {
		return order.Record{}, false, &store.UnavailableError{Backend: "test", Op: "load", Key: key, Err: ErrInjected}
	}
	return s.Memory.Load(ctx, key)
}

// Save implements store.RecordStore.
func (s *FailingStore) Save(ctx context.Context, key string, rec order.Record) error {
	s.mu.Lock()
	s.saves++
	fail := s.failSave && s.saves > s.failAfter
	s.mu.Unlock()

	if fail {
		return &store.UnavailableError{Backend: "test", Op: "save", Key: key, Err: ErrInjected}
	}
	return s.Memory.Save(ctx, key, rec)
}
