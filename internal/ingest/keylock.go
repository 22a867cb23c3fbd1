package ingest

import "sync"

// keyedMutex serializes writers per entity key so two extraction sources
// touching the same entity cannot race each other's read-decide-write cycle.
// Locks are never evicted; the map is bounded by the number of distinct
// entities seen by this process.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}
