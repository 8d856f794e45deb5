// Package keylock serializes work per key (a user, a request, a student/tutor
// pair) without a global lock.
package keylock

import (
	"context"
	"sync"

	repo "github.com/baharkarakas/coinmatch/internal/repository"
)

type entry struct {
	mu   sync.Mutex
	refs int
}

// Map hands out one mutex per key. Entries are dropped once nobody waits on
// them.
type Map struct {
	mu    sync.Mutex
	locks map[string]*entry
}

func New() *Map {
	return &Map{locks: map[string]*entry{}}
}

// Lock blocks until key is free and returns its release func.
func (m *Map) Lock(key string) (unlock func()) {
	m.mu.Lock()
	e, ok := m.locks[key]
	if !ok {
		e = &entry{}
		m.locks[key] = e
	}
	e.refs++
	m.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		m.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(m.locks, key)
		}
		m.mu.Unlock()
	}
}

// LockTx takes key for the rest of the unit of work in ctx and is a no-op
// when the unit already holds it. Outside a unit the returned func releases
// the lock; inside one it does nothing and the unit releases on commit or
// rollback.
func (m *Map) LockTx(ctx context.Context, key string) (unlock func()) {
	u, ok := repo.FromContext(ctx)
	if !ok {
		return m.Lock(key)
	}
	u.Hold(key, func() func() { return m.Lock(key) })
	return func() {}
}

// Len reports how many keys are currently locked or awaited.
func (m *Map) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}
