package engine

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	km := newKeyedMutex()

	var (
		wg      sync.WaitGroup
		inside  atomic.Int32
		maxSeen atomic.Int32
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("a")
			n := inside.Add(1)
			if n > maxSeen.Load() {
				maxSeen.Store(n)
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxSeen.Load(), "at most one holder per key")
	assert.Equal(t, 0, km.Len(), "entries are removed after release")
}

func TestKeyedMutex_DistinctKeysDoNotBlock(t *testing.T) {
	km := newKeyedMutex()

	unlockA := km.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := km.Lock("b")
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on b blocked behind a")
	}
	assert.Equal(t, 1, km.Len())
}

func TestKeyedMutex_WaiterKeepsEntry(t *testing.T) {
	km := newKeyedMutex()
	unlock := km.Lock("a")

	acquired := make(chan func())
	go func() {
		acquired <- km.Lock("a")
	}()

	// Give the waiter time to register.
	assert.Eventually(t, func() bool {
		km.mu.Lock()
		defer km.mu.Unlock()
		return km.locks["a"] != nil && km.locks["a"].refs == 2
	}, time.Second, time.Millisecond)

	unlock()
	second := <-acquired
	assert.Equal(t, 1, km.Len())
	second()
	assert.Equal(t, 0, km.Len())
}
