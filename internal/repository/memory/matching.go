package memory

import (
	"context"
	"sort"
	"time"

	"github.com/baharkarakas/coinmatch/internal/models"
	repo "github.com/baharkarakas/coinmatch/internal/repository"
	"github.com/google/uuid"
)

type seqRequest struct {
	r   models.MatchRequest
	seq uint64
}

type matchRequestsRepo struct{ s *state }

func (m *matchRequestsRepo) Create(ctx context.Context, r models.MatchRequest) (models.MatchRequest, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == models.MatchPending {
		for _, e := range m.s.requests {
			if e.r.Status == models.MatchPending && e.r.StudentID == r.StudentID && e.r.TutorID == r.TutorID {
				return models.MatchRequest{}, repo.ErrConflict
			}
		}
	}
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = r.CreatedAt
	m.s.touch(ctx, "request:"+r.ID, nil, false)
	m.s.requests[r.ID] = seqRequest{r: r, seq: m.s.next()}
	m.s.record(ctx, func() { delete(m.s.requests, r.ID) })
	return r, nil
}

func (m *matchRequestsRepo) GetByID(ctx context.Context, id string) (models.MatchRequest, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	cur, ok := m.s.requests[id]
	e, ok := visible(ctx, m.s, "request:"+id, cur, ok)
	if !ok {
		return models.MatchRequest{}, repo.ErrNotFound
	}
	return e.r, nil
}

func (m *matchRequestsRepo) FindPending(ctx context.Context, studentID, tutorID string) (models.MatchRequest, error) {
	rows := m.list(ctx, func(r models.MatchRequest) bool {
		return r.Status == models.MatchPending && r.StudentID == studentID && r.TutorID == tutorID
	})
	if len(rows) == 0 {
		return models.MatchRequest{}, repo.ErrNotFound
	}
	return rows[0], nil
}

func (m *matchRequestsRepo) list(ctx context.Context, keep func(models.MatchRequest) bool) []models.MatchRequest {
	m.s.mu.RLock()
	rows := make([]seqRequest, 0)
	for id, cur := range m.s.requests {
		e, ok := visible(ctx, m.s, "request:"+id, cur, true)
		if ok && keep(e.r) {
			rows = append(rows, e)
		}
	}
	m.s.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool { return rows[i].seq > rows[j].seq })
	out := make([]models.MatchRequest, 0, len(rows))
	for _, e := range rows {
		out = append(out, e.r)
	}
	return out
}

func (m *matchRequestsRepo) ListByStudent(ctx context.Context, studentID string) ([]models.MatchRequest, error) {
	return m.list(ctx, func(r models.MatchRequest) bool { return r.StudentID == studentID }), nil
}

func (m *matchRequestsRepo) ListByTutor(ctx context.Context, tutorID string) ([]models.MatchRequest, error) {
	return m.list(ctx, func(r models.MatchRequest) bool { return r.TutorID == tutorID }), nil
}

func (m *matchRequestsRepo) ListOverdue(ctx context.Context, now time.Time, limit int) ([]models.MatchRequest, error) {
	rows := m.list(ctx, func(r models.MatchRequest) bool { return r.Overdue(now) })
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (m *matchRequestsRepo) UpdateStatus(ctx context.Context, id string, from, to models.MatchStatus) (models.MatchRequest, error) {
	return m.mutate(ctx, id, func(r *models.MatchRequest) error {
		if r.Status != from {
			return repo.ErrStaleStatus
		}
		r.Status = to
		return nil
	})
}

func (m *matchRequestsRepo) LinkChatRoom(ctx context.Context, id, roomID string) error {
	_, err := m.mutate(ctx, id, func(r *models.MatchRequest) error {
		r.ChatRoomID = &roomID
		return nil
	})
	return err
}

func (m *matchRequestsRepo) LinkLesson(ctx context.Context, id, lessonID string) error {
	_, err := m.mutate(ctx, id, func(r *models.MatchRequest) error {
		r.LessonID = &lessonID
		return nil
	})
	return err
}

func (m *matchRequestsRepo) mutate(ctx context.Context, id string, fn func(*models.MatchRequest) error) (models.MatchRequest, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	e, ok := m.s.requests[id]
	if !ok {
		return models.MatchRequest{}, repo.ErrNotFound
	}
	before := e.r
	prior := e
	if err := fn(&e.r); err != nil {
		return before, err
	}
	m.s.touch(ctx, "request:"+id, prior, true)
	e.r.UpdatedAt = time.Now().UTC()
	m.s.requests[id] = e
	m.s.record(ctx, func() {
		cur := m.s.requests[id]
		cur.r = before
		m.s.requests[id] = cur
	})
	return e.r, nil
}

type chatRoomsRepo struct{ s *state }

func (c *chatRoomsRepo) Create(ctx context.Context, room models.ChatRoom) (models.ChatRoom, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	if room.CreatedAt.IsZero() {
		room.CreatedAt = time.Now().UTC()
	}
	c.s.touch(ctx, "room:"+room.ID, nil, false)
	c.s.rooms[room.ID] = room
	c.s.record(ctx, func() { delete(c.s.rooms, room.ID) })
	return room, nil
}

func (c *chatRoomsRepo) ListByMatch(ctx context.Context, matchRequestID string) ([]models.ChatRoom, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	var out []models.ChatRoom
	for id, cur := range c.s.rooms {
		room, ok := visible(ctx, c.s, "room:"+id, cur, true)
		if ok && room.MatchRequestID == matchRequestID {
			out = append(out, room)
		}
	}
	return out, nil
}

type lessonsRepo struct{ s *state }

func (l *lessonsRepo) Create(ctx context.Context, lesson models.Lesson) (models.Lesson, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	if lesson.ID == "" {
		lesson.ID = uuid.NewString()
	}
	if lesson.CreatedAt.IsZero() {
		lesson.CreatedAt = time.Now().UTC()
	}
	l.s.touch(ctx, "lesson:"+lesson.ID, nil, false)
	l.s.lessons[lesson.ID] = lesson
	l.s.record(ctx, func() { delete(l.s.lessons, lesson.ID) })
	return lesson, nil
}

func (l *lessonsRepo) GetByID(ctx context.Context, id string) (models.Lesson, error) {
	l.s.mu.RLock()
	defer l.s.mu.RUnlock()
	cur, ok := l.s.lessons[id]
	lesson, ok := visible(ctx, l.s, "lesson:"+id, cur, ok)
	if !ok {
		return models.Lesson{}, repo.ErrNotFound
	}
	return lesson, nil
}

func (l *lessonsRepo) Complete(ctx context.Context, id string, at time.Time) (models.Lesson, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	lesson, ok := l.s.lessons[id]
	if !ok {
		return models.Lesson{}, repo.ErrNotFound
	}
	if !lesson.Status.Completable() {
		return lesson, repo.ErrStaleStatus
	}
	before := lesson
	l.s.touch(ctx, "lesson:"+id, before, true)
	lesson.Status = models.LessonCompleted
	lesson.CompletedAt = &at
	l.s.lessons[id] = lesson
	l.s.record(ctx, func() { l.s.lessons[id] = before })
	return lesson, nil
}
