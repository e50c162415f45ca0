// Package locks provides a mutex per string key. Read-modify-write sequences
// on a single order or case must be mutually exclusive, while operations on
// different ids proceed in parallel.
package locks

import "sync"

type Keyed struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

func NewKeyed() *Keyed {
	return &Keyed{locks: map[string]*entry{}}
}

// Lock acquires the mutex for key and returns its unlock function. Entries
// are dropped once no goroutine holds or waits on them.
func (k *Keyed) Lock(key string) func() {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &entry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
