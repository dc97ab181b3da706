// Package keylock provides per-key mutual exclusion. The position engine
// uses it to serialize appends and recalculations for the same
// (user, asset) pair: the fold is order-dependent, so two concurrent
// updates for one pair must never interleave.
package keylock

import "sync"

// KeyLock is a registry of named mutexes. Locks are created on first use
// and retained for the life of the process; the working set is bounded by
// the number of distinct (user, asset) pairs seen.
type KeyLock struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu sync.Mutex
}

// New creates an empty lock registry.
func New() *KeyLock {
	return &KeyLock{locks: make(map[string]*entry)}
}

// Lock acquires the mutex for key, blocking until it is available.
func (k *KeyLock) Lock(key string) {
	k.get(key).mu.Lock()
}

// Unlock releases the mutex for key. Must follow a Lock for the same key.
func (k *KeyLock) Unlock(key string) {
	k.get(key).mu.Unlock()
}

func (k *KeyLock) get(key string) *entry {
	k.mu.Lock()
	defer k.mu.Unlock()

	e, ok := k.locks[key]
	if !ok {
		e = &entry{}
		k.locks[key] = e
	}
	return e
}
