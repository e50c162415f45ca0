package locks

import (
	"sync"
	"testing"
)

func TestLockSerializesSameKey(t *testing.T) {
	k := NewKeyed()
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("order-1")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	if counter != 100 {
		t.Errorf("counter = %d, want 100", counter)
	}
}

func TestLockIndependentKeys(t *testing.T) {
	k := NewKeyed()

	unlockA := k.Lock("a")
	// Locking a different key must not block.
	unlockB := k.Lock("b")
	unlockB()
	unlockA()
}

func TestLockEntriesAreReleased(t *testing.T) {
	k := NewKeyed()

	unlock := k.Lock("a")
	unlock()

	k.mu.Lock()
	defer k.mu.Unlock()
	if len(k.locks) != 0 {
		t.Errorf("entries remaining = %d, want 0", len(k.locks))
	}
}
