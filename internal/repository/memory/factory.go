// Package memory is the in-process store. Every repository shares one
// guarded state; units of work keep an undo journal that is replayed on
// rollback. Rows written by an open unit are hidden from everyone else:
// readers outside the unit see the committed image kept in shadows until
// the unit finishes.
package memory

import (
	"context"
	"sync"

	"github.com/baharkarakas/coinmatch/internal/models"
	repo "github.com/baharkarakas/coinmatch/internal/repository"
)

type state struct {
	mu  sync.RWMutex
	seq uint64

	users         map[string]models.User
	balances      map[string]models.Balance
	txns          map[string][]seqTxn
	requests      map[string]seqRequest
	notifications map[string]seqNotification
	lessons       map[string]models.Lesson
	rooms         map[string]models.ChatRoom
	audit         []models.AuditLog

	shadows map[string]shadow
}

type journal struct {
	mu   sync.Mutex
	undo []func()
	keys []string
}

// shadow is the committed image of a row an open unit has written over.
type shadow struct {
	owner  *journal
	prior  any
	exists bool
}

func newState() *state {
	return &state{
		users:         map[string]models.User{},
		balances:      map[string]models.Balance{},
		txns:          map[string][]seqTxn{},
		requests:      map[string]seqRequest{},
		notifications: map[string]seqNotification{},
		lessons:       map[string]models.Lesson{},
		rooms:         map[string]models.ChatRoom{},
		shadows:       map[string]shadow{},
	}
}

func NewRepositories() repo.Repositories {
	s := newState()
	return repo.Repositories{
		Users:         &usersRepo{s},
		Balances:      &balancesRepo{s},
		Transactions:  &transactionsRepo{s},
		MatchRequests: &matchRequestsRepo{s},
		Notifications: &notificationsRepo{s},
		Lessons:       &lessonsRepo{s},
		ChatRooms:     &chatRoomsRepo{s},
		AuditLogs:     &auditLogsRepo{s},
		Tx:            &txRunner{s},
		Close:         func() {},
	}
}

// next must be called with mu held for writing.
func (s *state) next() uint64 {
	s.seq++
	return s.seq
}

func journalOf(ctx context.Context) *journal {
	u, ok := repo.FromContext(ctx)
	if !ok {
		return nil
	}
	j, _ := u.Handle.(*journal)
	return j
}

// record registers an undo step for the unit running in ctx. It must be
// called with mu held for writing; undo steps run under the same lock.
func (s *state) record(ctx context.Context, undo func()) {
	j := journalOf(ctx)
	if j == nil {
		return
	}
	j.mu.Lock()
	j.undo = append(j.undo, undo)
	j.mu.Unlock()
}

// touch keeps the committed image of key before the unit in ctx first
// writes it. It must be called with mu held for writing.
func (s *state) touch(ctx context.Context, key string, prior any, exists bool) {
	j := journalOf(ctx)
	if j == nil {
		return
	}
	if _, ok := s.shadows[key]; ok {
		return
	}
	s.shadows[key] = shadow{owner: j, prior: prior, exists: exists}
	j.mu.Lock()
	j.keys = append(j.keys, key)
	j.mu.Unlock()
}

// visible returns the image of key the caller in ctx may read: its own
// writes, otherwise the last committed value. It must be called with mu
// held.
func visible[V any](ctx context.Context, s *state, key string, cur V, ok bool) (V, bool) {
	sh, shadowed := s.shadows[key]
	if !shadowed || sh.owner == journalOf(ctx) {
		return cur, ok
	}
	if !sh.exists {
		var zero V
		return zero, false
	}
	return sh.prior.(V), true
}

type txRunner struct{ s *state }

func (r *txRunner) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := repo.FromContext(ctx); ok {
		return fn(ctx)
	}
	ctx, u := repo.Begin(ctx)
	j := &journal{}
	u.Handle = j

	err := fn(ctx)
	r.finish(j, err == nil)
	u.Finish(err == nil)
	return err
}

// finish publishes or undoes the unit's writes in one step, so readers
// move from the old images to the new ones atomically.
func (r *txRunner) finish(j *journal, commit bool) {
	j.mu.Lock()
	steps, keys := j.undo, j.keys
	j.undo, j.keys = nil, nil
	j.mu.Unlock()

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if !commit {
		for i := len(steps) - 1; i >= 0; i-- {
			steps[i]()
		}
	}
	for _, k := range keys {
		if sh, ok := r.s.shadows[k]; ok && sh.owner == j {
			delete(r.s.shadows, k)
		}
	}
}
