package postgres

import (
	"context"

	"github.com/baharkarakas/coinmatch/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type notificationsRepo struct{ pool *pgxpool.Pool }

const notificationCols = `id, user_id, type, title, body, related_id, related_kind, read, created_at`

func scanNotification(row scanner) (models.Notification, error) {
	var n models.Notification
	err := row.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Body, &n.RelatedID, &n.RelatedKind, &n.Read, &n.CreatedAt)
	return n, mapErr(err)
}

func (r *notificationsRepo) Create(ctx context.Context, n models.Notification) (models.Notification, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return scanNotification(conn(ctx, r.pool).QueryRow(ctx,
		`INSERT INTO notifications(id, user_id, type, title, body, related_id, related_kind)
		 VALUES($1,$2,$3,$4,$5,$6,$7)
		 RETURNING `+notificationCols,
		n.ID, n.UserID, n.Type, n.Title, n.Body, n.RelatedID, n.RelatedKind))
}

func (r *notificationsRepo) GetByID(ctx context.Context, id string) (models.Notification, error) {
	return scanNotification(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+notificationCols+` FROM notifications WHERE id=$1`, id))
}

func (r *notificationsRepo) ListByUser(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+notificationCols+`
		   FROM notifications
		  WHERE user_id=$1
		  ORDER BY seq DESC
		  LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *notificationsRepo) MarkRead(ctx context.Context, id string) (models.Notification, error) {
	return scanNotification(conn(ctx, r.pool).QueryRow(ctx,
		`UPDATE notifications SET read=true WHERE id=$1 RETURNING `+notificationCols, id))
}

func (r *notificationsRepo) MarkAllRead(ctx context.Context, userID string) (int, error) {
	tag, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE notifications SET read=true WHERE user_id=$1 AND NOT read`, userID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *notificationsRepo) UnreadCount(ctx context.Context, userID string) (int, error) {
	var n int
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT count(*) FROM notifications WHERE user_id=$1 AND NOT read`, userID).Scan(&n)
	return n, err
}
