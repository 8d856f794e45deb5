package repository

import (
	"context"
	"sync"
)

type unitKey struct{}

// Unit is the bookkeeping of one running unit of work: locks held until it
// ends, hooks that run only after commit, and the backend handle.
type Unit struct {
	mu          sync.Mutex
	held        map[string]struct{}
	afterCommit []func()
	onEnd       []func()

	Handle any
}

// Begin attaches a fresh unit to ctx.
func Begin(ctx context.Context) (context.Context, *Unit) {
	u := &Unit{held: map[string]struct{}{}}
	return context.WithValue(ctx, unitKey{}, u), u
}

func FromContext(ctx context.Context) (*Unit, bool) {
	u, ok := ctx.Value(unitKey{}).(*Unit)
	return u, ok
}

// AfterCommit defers fn until the enclosing unit commits; it is dropped on
// rollback. Outside a unit fn runs immediately.
func AfterCommit(ctx context.Context, fn func()) {
	u, ok := FromContext(ctx)
	if !ok {
		fn()
		return
	}
	u.mu.Lock()
	u.afterCommit = append(u.afterCommit, fn)
	u.mu.Unlock()
}

// Hold marks key as held by the unit and registers release to run when the
// unit ends. It reports false when the key was already held.
func (u *Unit) Hold(key string, acquire func() (release func())) bool {
	u.mu.Lock()
	if _, ok := u.held[key]; ok {
		u.mu.Unlock()
		return false
	}
	u.mu.Unlock()

	release := acquire()

	u.mu.Lock()
	u.held[key] = struct{}{}
	u.onEnd = append(u.onEnd, release)
	u.mu.Unlock()
	return true
}

// Finish runs post-commit hooks when committed, then releases everything the
// unit holds in reverse acquisition order.
func (u *Unit) Finish(committed bool) {
	u.mu.Lock()
	hooks := u.afterCommit
	ends := u.onEnd
	u.afterCommit, u.onEnd = nil, nil
	u.held = map[string]struct{}{}
	u.mu.Unlock()

	if committed {
		for _, fn := range hooks {
			fn()
		}
	}
	for i := len(ends) - 1; i >= 0; i-- {
		ends[i]()
	}
}
