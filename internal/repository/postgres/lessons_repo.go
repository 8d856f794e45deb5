package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/baharkarakas/coinmatch/internal/models"
	repo "github.com/baharkarakas/coinmatch/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type lessonsRepo struct{ pool *pgxpool.Pool }

const lessonCols = `id, match_request_id, tutor_id, student_id, status, coin_cost, scheduled_at, completed_at, created_at`

func scanLesson(row scanner) (models.Lesson, error) {
	var l models.Lesson
	err := row.Scan(&l.ID, &l.MatchRequestID, &l.TutorID, &l.StudentID, &l.Status, &l.CoinCost,
		&l.ScheduledAt, &l.CompletedAt, &l.CreatedAt)
	return l, mapErr(err)
}

func (r *lessonsRepo) Create(ctx context.Context, l models.Lesson) (models.Lesson, error) {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return scanLesson(conn(ctx, r.pool).QueryRow(ctx,
		`INSERT INTO lessons(id, match_request_id, tutor_id, student_id, status, coin_cost, scheduled_at)
		 VALUES($1,$2,$3,$4,$5,$6,$7)
		 RETURNING `+lessonCols,
		l.ID, l.MatchRequestID, l.TutorID, l.StudentID, l.Status, l.CoinCost, l.ScheduledAt))
}

func (r *lessonsRepo) GetByID(ctx context.Context, id string) (models.Lesson, error) {
	return scanLesson(conn(ctx, r.pool).QueryRow(ctx, `SELECT `+lessonCols+` FROM lessons WHERE id=$1`, id))
}

func (r *lessonsRepo) Complete(ctx context.Context, id string, at time.Time) (models.Lesson, error) {
	l, err := scanLesson(conn(ctx, r.pool).QueryRow(ctx,
		`UPDATE lessons
		    SET status='completed', completed_at=$2
		  WHERE id=$1 AND status IN ('scheduled','approved')
		  RETURNING `+lessonCols,
		id, at))
	if errors.Is(err, repo.ErrNotFound) {
		cur, getErr := r.GetByID(ctx, id)
		if getErr != nil {
			return models.Lesson{}, getErr
		}
		return cur, repo.ErrStaleStatus
	}
	return l, err
}
