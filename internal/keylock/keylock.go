// Package keylock provides per-key mutexes so that all state transitions
// for a given order or (pool, milestone) are linearizable without one
// global lock across unrelated entities.
package keylock

import "sync"

// KeyedMutex hands out one mutex per string key. Locks are never
// reclaimed; the engine's key cardinality is bounded by live entities.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates an empty keyed mutex set.
func New() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for key, creating it on first use.
func (k *KeyedMutex) Lock(key string) {
	k.get(key).Lock()
}

// Unlock releases the mutex for key.
func (k *KeyedMutex) Unlock(key string) {
	k.get(key).Unlock()
}

func (k *KeyedMutex) get(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()

	lock, ok := k.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		k.locks[key] = lock
	}
	return lock
}
