package memory

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/baharkarakas/coinmatch/internal/models"
	repo "github.com/baharkarakas/coinmatch/internal/repository"
	"github.com/google/uuid"
)

type usersRepo struct{ s *state }

func (r *usersRepo) Create(ctx context.Context, u models.User) (models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if _, ok := r.s.users[u.ID]; ok {
		return models.User{}, repo.ErrConflict
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	r.s.touch(ctx, "user:"+u.ID, nil, false)
	r.s.users[u.ID] = u
	r.s.record(ctx, func() { delete(r.s.users, u.ID) })
	return u, nil
}

func (r *usersRepo) GetByID(ctx context.Context, id string) (models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	cur, ok := r.s.users[id]
	u, ok := visible(ctx, r.s, "user:"+id, cur, ok)
	if !ok {
		return models.User{}, repo.ErrNotFound
	}
	return u, nil
}

type balancesRepo struct{ s *state }

func (r *balancesRepo) Create(ctx context.Context, userID string) (models.Balance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.balances[userID]; ok {
		return models.Balance{}, repo.ErrConflict
	}
	b := models.Balance{UserID: userID, LastUpdatedAt: time.Now().UTC()}
	r.s.touch(ctx, "balance:"+userID, nil, false)
	r.s.balances[userID] = b
	r.s.record(ctx, func() { delete(r.s.balances, userID) })
	return b, nil
}

func (r *balancesRepo) Get(ctx context.Context, userID string) (models.Balance, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	cur, ok := r.s.balances[userID]
	b, ok := visible(ctx, r.s, "balance:"+userID, cur, ok)
	if !ok {
		return models.Balance{}, repo.ErrNotFound
	}
	return b, nil
}

func (r *balancesRepo) UpdateAmount(ctx context.Context, userID string, delta int64) (models.Balance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.balances[userID]
	if !ok {
		return models.Balance{}, repo.ErrNotFound
	}
	if delta > 0 && b.Amount > math.MaxInt64-delta {
		return b, repo.ErrBalanceOverflow
	}
	if b.Amount+delta < 0 {
		return b, repo.ErrNegativeBalance
	}
	r.s.touch(ctx, "balance:"+userID, b, true)
	b.Amount += delta
	b.LastUpdatedAt = time.Now().UTC()
	r.s.balances[userID] = b
	r.s.record(ctx, func() {
		cur := r.s.balances[userID]
		cur.Amount -= delta
		r.s.balances[userID] = cur
	})
	return b, nil
}

type seqTxn struct {
	tx  models.CoinTransaction
	seq uint64
}

type transactionsRepo struct{ s *state }

func (r *transactionsRepo) Create(ctx context.Context, tx models.CoinTransaction) (models.CoinTransaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	r.s.touch(ctx, "txn:"+tx.ID, nil, false)
	r.s.txns[tx.UserID] = append(r.s.txns[tx.UserID], seqTxn{tx: tx, seq: r.s.next()})
	r.s.record(ctx, func() {
		rows := r.s.txns[tx.UserID]
		for i := range rows {
			if rows[i].tx.ID == tx.ID {
				r.s.txns[tx.UserID] = append(rows[:i:i], rows[i+1:]...)
				return
			}
		}
	})
	return tx, nil
}

func (r *transactionsRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.CoinTransaction, error) {
	if offset < 0 {
		offset = 0
	}
	r.s.mu.RLock()
	var rows []seqTxn
	for _, row := range r.s.txns[userID] {
		if _, ok := visible(ctx, r.s, "txn:"+row.tx.ID, row, true); ok {
			rows = append(rows, row)
		}
	}
	r.s.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool { return rows[i].seq > rows[j].seq })
	if offset >= len(rows) {
		return nil, nil
	}
	rows = rows[offset:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	out := make([]models.CoinTransaction, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.tx)
	}
	return out, nil
}

type auditLogsRepo struct{ s *state }

func (r *auditLogsRepo) Create(ctx context.Context, l models.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	r.s.audit = append(r.s.audit, l)
	r.s.record(ctx, func() {
		for i := range r.s.audit {
			if r.s.audit[i].ID == l.ID {
				r.s.audit = append(r.s.audit[:i:i], r.s.audit[i+1:]...)
				return
			}
		}
	})
	return nil
}
