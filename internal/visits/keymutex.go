package visits

import "sync"

// keyedMutex provides per-key mutual exclusion. The lifecycle engine
// keys locks by patient and doctor id so that check-then-act sequences
// against the same person serialize while unrelated ones proceed.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*lockEntry)}
}

func (k *keyedMutex) lock(key string) {
	k.mu.Lock()
	entry, ok := k.locks[key]
	if !ok {
		entry = &lockEntry{}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()
}

func (k *keyedMutex) unlock(key string) {
	k.mu.Lock()
	entry := k.locks[key]
	entry.refs--
	if entry.refs == 0 {
		delete(k.locks, key)
	}
	k.mu.Unlock()

	entry.mu.Unlock()
}

// lockPair acquires both keys in deterministic order to avoid deadlock
// between callers locking the same pair in opposite roles. Returns the
// release function.
func (k *keyedMutex) lockPair(a, b string) func() {
	if a == b {
		k.lock(a)
		return func() { k.unlock(a) }
	}
	first, second := a, b
	if second < first {
		first, second = second, first
	}
	k.lock(first)
	k.lock(second)
	return func() {
		k.unlock(second)
		k.unlock(first)
	}
}
