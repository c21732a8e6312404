package certificates

import (
	"sync"

	"github.com/google/uuid"
)

// certLocks serializes render work per certificate within this process. The
// conditional registry updates remain the authority on who won a transition;
// the lock only keeps one process from rendering the same certificate twice
// at once.
type certLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newCertLocks() *certLocks {
	return &certLocks{locks: make(map[uuid.UUID]*lockEntry)}
}

// lock acquires the per-certificate mutex and returns its release func.
func (l *certLocks) lock(id uuid.UUID) func() {
	l.mu.Lock()
	e, ok := l.locks[id]
	if !ok {
		e = &lockEntry{}
		l.locks[id] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
