package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/baharkarakas/coinmatch/internal/models"
	repo "github.com/baharkarakas/coinmatch/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type matchRequestsRepo struct{ pool *pgxpool.Pool }

const matchRequestCols = `id, student_id, tutor_id, message, schedule_note, coin_cost, status,
       chat_room_id, lesson_id, created_at, updated_at, expires_at`

func scanMatchRequest(row scanner) (models.MatchRequest, error) {
	var r models.MatchRequest
	err := row.Scan(&r.ID, &r.StudentID, &r.TutorID, &r.Message, &r.ScheduleNote, &r.CoinCost, &r.Status,
		&r.ChatRoomID, &r.LessonID, &r.CreatedAt, &r.UpdatedAt, &r.ExpiresAt)
	return r, mapErr(err)
}

func (m *matchRequestsRepo) Create(ctx context.Context, r models.MatchRequest) (models.MatchRequest, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	row := conn(ctx, m.pool).QueryRow(ctx,
		`INSERT INTO match_requests(id, student_id, tutor_id, message, schedule_note, coin_cost, status, expires_at)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8)
		 RETURNING `+matchRequestCols,
		r.ID, r.StudentID, r.TutorID, r.Message, r.ScheduleNote, r.CoinCost, r.Status, r.ExpiresAt,
	)
	return scanMatchRequest(row)
}

func (m *matchRequestsRepo) GetByID(ctx context.Context, id string) (models.MatchRequest, error) {
	return scanMatchRequest(conn(ctx, m.pool).QueryRow(ctx,
		`SELECT `+matchRequestCols+` FROM match_requests WHERE id=$1`, id))
}

func (m *matchRequestsRepo) FindPending(ctx context.Context, studentID, tutorID string) (models.MatchRequest, error) {
	return scanMatchRequest(conn(ctx, m.pool).QueryRow(ctx,
		`SELECT `+matchRequestCols+`
		   FROM match_requests
		  WHERE student_id=$1 AND tutor_id=$2 AND status='pending'`,
		studentID, tutorID))
}

func (m *matchRequestsRepo) ListByStudent(ctx context.Context, studentID string) ([]models.MatchRequest, error) {
	return m.list(ctx, `SELECT `+matchRequestCols+` FROM match_requests WHERE student_id=$1 ORDER BY seq DESC`, studentID)
}

func (m *matchRequestsRepo) ListByTutor(ctx context.Context, tutorID string) ([]models.MatchRequest, error) {
	return m.list(ctx, `SELECT `+matchRequestCols+` FROM match_requests WHERE tutor_id=$1 ORDER BY seq DESC`, tutorID)
}

func (m *matchRequestsRepo) ListOverdue(ctx context.Context, now time.Time, limit int) ([]models.MatchRequest, error) {
	return m.list(ctx,
		`SELECT `+matchRequestCols+`
		   FROM match_requests
		  WHERE status='pending' AND expires_at <= $1
		  ORDER BY expires_at
		  LIMIT $2`,
		now, limit)
}

func (m *matchRequestsRepo) list(ctx context.Context, q string, args ...any) ([]models.MatchRequest, error) {
	rows, err := conn(ctx, m.pool).Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.MatchRequest
	for rows.Next() {
		r, err := scanMatchRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (m *matchRequestsRepo) UpdateStatus(ctx context.Context, id string, from, to models.MatchStatus) (models.MatchRequest, error) {
	r, err := scanMatchRequest(conn(ctx, m.pool).QueryRow(ctx,
		`UPDATE match_requests
		    SET status=$3, updated_at=now()
		  WHERE id=$1 AND status=$2
		  RETURNING `+matchRequestCols,
		id, from, to))
	if errors.Is(err, repo.ErrNotFound) {
		cur, getErr := m.GetByID(ctx, id)
		if getErr != nil {
			return models.MatchRequest{}, getErr
		}
		return cur, repo.ErrStaleStatus
	}
	return r, err
}

func (m *matchRequestsRepo) LinkChatRoom(ctx context.Context, id, roomID string) error {
	return m.link(ctx, `UPDATE match_requests SET chat_room_id=$2, updated_at=now() WHERE id=$1`, id, roomID)
}

func (m *matchRequestsRepo) LinkLesson(ctx context.Context, id, lessonID string) error {
	return m.link(ctx, `UPDATE match_requests SET lesson_id=$2, updated_at=now() WHERE id=$1`, id, lessonID)
}

func (m *matchRequestsRepo) link(ctx context.Context, q, id, ref string) error {
	tag, err := conn(ctx, m.pool).Exec(ctx, q, id, ref)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

type chatRoomsRepo struct{ pool *pgxpool.Pool }

func (c *chatRoomsRepo) Create(ctx context.Context, room models.ChatRoom) (models.ChatRoom, error) {
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	err := conn(ctx, c.pool).QueryRow(ctx,
		`INSERT INTO chat_rooms(id, match_request_id, student_id, tutor_id) VALUES($1,$2,$3,$4) RETURNING created_at`,
		room.ID, room.MatchRequestID, room.StudentID, room.TutorID,
	).Scan(&room.CreatedAt)
	return room, mapErr(err)
}

func (c *chatRoomsRepo) ListByMatch(ctx context.Context, matchRequestID string) ([]models.ChatRoom, error) {
	rows, err := conn(ctx, c.pool).Query(ctx,
		`SELECT id, match_request_id, student_id, tutor_id, created_at
		   FROM chat_rooms WHERE match_request_id=$1 ORDER BY created_at`,
		matchRequestID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.ChatRoom, error) {
		var room models.ChatRoom
		err := row.Scan(&room.ID, &room.MatchRequestID, &room.StudentID, &room.TutorID, &room.CreatedAt)
		return room, err
	})
}
