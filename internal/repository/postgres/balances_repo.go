package postgres

import (
	"context"
	"errors"

	"github.com/baharkarakas/coinmatch/internal/models"
	repo "github.com/baharkarakas/coinmatch/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type balancesRepo struct{ pool *pgxpool.Pool }

func (r *balancesRepo) Create(ctx context.Context, userID string) (models.Balance, error) {
	var b models.Balance
	err := conn(ctx, r.pool).QueryRow(ctx,
		`INSERT INTO balances(user_id, amount, last_updated_at)
		 VALUES($1, 0, now())
		 RETURNING user_id, amount, last_updated_at`,
		userID,
	).Scan(&b.UserID, &b.Amount, &b.LastUpdatedAt)
	return b, mapErr(err)
}

func (r *balancesRepo) UpdateAmount(ctx context.Context, userID string, delta int64) (models.Balance, error) {
	var b models.Balance
	err := conn(ctx, r.pool).QueryRow(ctx,
		`UPDATE balances
		    SET amount = amount + $2,
		        last_updated_at = now()
		  WHERE user_id = $1 AND amount + $2 >= 0
		  RETURNING user_id, amount, last_updated_at`,
		userID, delta,
	).Scan(&b.UserID, &b.Amount, &b.LastUpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		cur, getErr := r.Get(ctx, userID)
		if getErr != nil {
			return models.Balance{}, getErr
		}
		return cur, repo.ErrNegativeBalance
	}
	return b, mapErr(err)
}

func (r *balancesRepo) Get(ctx context.Context, userID string) (models.Balance, error) {
	var b models.Balance
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT user_id, amount, last_updated_at
		   FROM balances
		  WHERE user_id=$1`,
		userID,
	).Scan(&b.UserID, &b.Amount, &b.LastUpdatedAt)
	return b, mapErr(err)
}
