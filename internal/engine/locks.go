package engine

import "sync"

// issueLocks grants at most one in-flight resolution per issue id.
// Acquisition never blocks: a second caller is told no immediately, so
// conflicting requests fail fast instead of queueing behind a slow
// narrative call.
type issueLocks struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func newIssueLocks() *issueLocks {
	return &issueLocks{held: make(map[string]struct{})}
}

// tryAcquire claims the lock for id. Returns false if already held.
func (l *issueLocks) tryAcquire(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[id]; ok {
		return false
	}
	l.held[id] = struct{}{}
	return true
}

// release frees the lock for id. Releasing an unheld lock is a no-op.
func (l *issueLocks) release(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, id)
}
