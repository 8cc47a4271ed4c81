package activitypub

import (
	"sync"
	"testing"
)

func TestLockManagerMutualExclusion(t *testing.T) {
	// many concurrent check-then-create sequences on the same key must
	// observe "absent" exactly once
	locks := NewLockManager()
	created := 0
	exists := false

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := locks.Acquire("https://remote.example/notes/1")
			defer release()
			if !exists {
				exists = true
				created++
			}
		}()
	}
	wg.Wait()

	if created != 1 {
		t.Errorf("Expected exactly one creation, got %d", created)
	}
}

func TestLockManagerIndependentKeys(t *testing.T) {
	locks := NewLockManager()

	release1 := locks.Acquire("key-a")
	done := make(chan struct{})
	go func() {
		// a different key must not block
		release2 := locks.Acquire("key-b")
		release2()
		close(done)
	}()
	<-done
	release1()
}

func TestLockManagerReleaseIsIdempotent(t *testing.T) {
	locks := NewLockManager()

	release := locks.Acquire("key")
	release()
	release() // second call must be a no-op, not a panic or underflow

	// the key must be reacquirable afterwards
	release2 := locks.Acquire("key")
	release2()

	if locks.Held() != 0 {
		t.Errorf("Expected no outstanding locks, got %d", locks.Held())
	}
}

func TestLockManagerCleansUpEntries(t *testing.T) {
	locks := NewLockManager()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			release := locks.Acquire("shared")
			release()
		}(i)
	}
	wg.Wait()

	if locks.Held() != 0 {
		t.Errorf("Expected the lock table to be empty, got %d entries", locks.Held())
	}
}
