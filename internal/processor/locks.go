package processor

import (
	"sync"

	"github.com/dataherd/dataherd/internal/types"
)

// batchLocks hands out one mutex per batch so commits and rollbacks against
// the same batch serialize while different batches proceed in parallel.
// Locks are never removed; the map grows with the number of distinct batches
// mutated in one process lifetime.
type batchLocks struct {
	mu    sync.Mutex
	locks map[types.BatchID]*sync.Mutex
}

func newBatchLocks() *batchLocks {
	return &batchLocks{locks: make(map[types.BatchID]*sync.Mutex)}
}

func (b *batchLocks) get(id types.BatchID) *sync.Mutex {
	b.mu.Lock()
	defer b.mu.Unlock()
	l, ok := b.locks[id]
	if !ok {
		l = &sync.Mutex{}
		b.locks[id] = l
	}
	return l
}

// tryAcquire attempts the batch lock without blocking. The caller unlocks
// the returned mutex when done; ok=false means another mutation holds it.
func (b *batchLocks) tryAcquire(id types.BatchID) (*sync.Mutex, bool) {
	l := b.get(id)
	if !l.TryLock() {
		return nil, false
	}
	return l, true
}
