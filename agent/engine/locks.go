package engine

import "sync"

// convLocks serializes message handling per conversation. Lock acquisition
// is FIFO per key, so near-simultaneous deliveries for one correspondent
// queue up instead of racing the state transition.
type convLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newConvLocks() *convLocks {
	return &convLocks{entries: make(map[string]*lockEntry)}
}

// Acquire blocks until the per-key lock is held and returns its release
// function.
func (l *convLocks) Acquire(key string) func() {
	l.mu.Lock()
	entry, ok := l.entries[key]
	if !ok {
		entry = &lockEntry{}
		l.entries[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.entries, key)
		}
		l.mu.Unlock()
	}
}
