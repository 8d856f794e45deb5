package memory

import (
	"context"
	"sort"
	"time"

	"github.com/baharkarakas/coinmatch/internal/models"
	repo "github.com/baharkarakas/coinmatch/internal/repository"
	"github.com/google/uuid"
)

type seqNotification struct {
	n   models.Notification
	seq uint64
}

type notificationsRepo struct{ s *state }

func (r *notificationsRepo) Create(ctx context.Context, n models.Notification) (models.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	r.s.touch(ctx, "notification:"+n.ID, nil, false)
	r.s.notifications[n.ID] = seqNotification{n: n, seq: r.s.next()}
	r.s.record(ctx, func() { delete(r.s.notifications, n.ID) })
	return n, nil
}

func (r *notificationsRepo) GetByID(ctx context.Context, id string) (models.Notification, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	cur, ok := r.s.notifications[id]
	e, ok := visible(ctx, r.s, "notification:"+id, cur, ok)
	if !ok {
		return models.Notification{}, repo.ErrNotFound
	}
	return e.n, nil
}

func (r *notificationsRepo) ListByUser(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	r.s.mu.RLock()
	rows := r.visibleFor(ctx, userID)
	r.s.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool { return rows[i].seq > rows[j].seq })
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	out := make([]models.Notification, 0, len(rows))
	for _, e := range rows {
		out = append(out, e.n)
	}
	return out, nil
}

func (r *notificationsRepo) MarkRead(ctx context.Context, id string) (models.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.notifications[id]
	if _, seen := visible(ctx, r.s, "notification:"+id, e, ok); !seen {
		return models.Notification{}, repo.ErrNotFound
	}
	if !e.n.Read {
		r.s.touch(ctx, "notification:"+id, e, true)
		e.n.Read = true
		r.s.notifications[id] = e
		r.s.record(ctx, func() { r.setRead(id, false) })
	}
	return e.n, nil
}

func (r *notificationsRepo) MarkAllRead(ctx context.Context, userID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var changed []string
	for id, e := range r.s.notifications {
		if _, seen := visible(ctx, r.s, "notification:"+id, e, true); !seen {
			continue
		}
		if e.n.UserID == userID && !e.n.Read {
			r.s.touch(ctx, "notification:"+id, e, true)
			e.n.Read = true
			r.s.notifications[id] = e
			changed = append(changed, id)
		}
	}
	r.s.record(ctx, func() {
		for _, id := range changed {
			r.setRead(id, false)
		}
	})
	return len(changed), nil
}

func (r *notificationsRepo) UnreadCount(ctx context.Context, userID string) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	n := 0
	for _, e := range r.visibleFor(ctx, userID) {
		if !e.n.Read {
			n++
		}
	}
	return n, nil
}

// visibleFor must be called with mu held.
func (r *notificationsRepo) visibleFor(ctx context.Context, userID string) []seqNotification {
	var rows []seqNotification
	for id, cur := range r.s.notifications {
		e, ok := visible(ctx, r.s, "notification:"+id, cur, true)
		if ok && e.n.UserID == userID {
			rows = append(rows, e)
		}
	}
	return rows
}

// setRead must be called with mu held for writing.
func (r *notificationsRepo) setRead(id string, read bool) {
	if e, ok := r.s.notifications[id]; ok {
		e.n.Read = read
		r.s.notifications[id] = e
	}
}
