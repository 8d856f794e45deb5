package postgres

import (
	"context"

	"github.com/baharkarakas/coinmatch/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type usersRepo struct{ pool *pgxpool.Pool }

func (r *usersRepo) Create(ctx context.Context, u models.User) (models.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	err := conn(ctx, r.pool).QueryRow(ctx,
		`INSERT INTO users(id, name, role) VALUES($1,$2,$3) RETURNING created_at`,
		u.ID, u.Name, u.Role,
	).Scan(&u.CreatedAt)
	return u, mapErr(err)
}

func (r *usersRepo) GetByID(ctx context.Context, id string) (models.User, error) {
	var u models.User
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT id, name, role, created_at FROM users WHERE id=$1`, id,
	).Scan(&u.ID, &u.Name, &u.Role, &u.CreatedAt)
	return u, mapErr(err)
}
