package service

import "sync"

// keyedLocks serializes mutations per document id. Composite invariants
// (slot occupancy, state-vs-deleted_at) span multiple fields read then
// written, so concurrent mutators on the same document must queue.
type keyedLocks struct {
	locks sync.Map // document id -> *sync.Mutex
}

// Lock acquires the mutex for id and returns its unlock func.
func (l *keyedLocks) Lock(id string) func() {
	v, _ := l.locks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
