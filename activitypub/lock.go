package activitypub

import (
	"sync"
)

// LockManager hands out mutual-exclusion locks keyed by URI. Handlers take
// the lock for the object they are about to check-then-create, so the same
// activity arriving twice concurrently cannot apply its side effect twice.
// Entries are reference counted and removed when the last holder releases.
type LockManager struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	ch   chan struct{}
	refs int
}

func NewLockManager() *LockManager {
	return &LockManager{locks: make(map[string]*lockEntry)}
}

// Acquire blocks until the lock for key is held and returns the release
// function. Releasing twice is a no-op.
func (m *LockManager) Acquire(key string) func() {
	m.mu.Lock()
	entry, ok := m.locks[key]
	if !ok {
		entry = &lockEntry{ch: make(chan struct{}, 1)}
		m.locks[key] = entry
	}
	entry.refs++
	m.mu.Unlock()

	entry.ch <- struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-entry.ch
			m.mu.Lock()
			entry.refs--
			if entry.refs == 0 {
				delete(m.locks, key)
			}
			m.mu.Unlock()
		})
	}
}

// Held returns the number of keys with outstanding holders or waiters.
func (m *LockManager) Held() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}
