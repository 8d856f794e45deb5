package postgres

import (
	"context"

	"github.com/baharkarakas/coinmatch/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type transactionsRepo struct{ pool *pgxpool.Pool }

func (r *transactionsRepo) Create(ctx context.Context, tx models.CoinTransaction) (models.CoinTransaction, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	const q = `
INSERT INTO coin_transactions (id, user_id, amount, category, description, reference)
VALUES ($1,$2,$3,$4,$5,$6)
RETURNING created_at;
`
	err := conn(ctx, r.pool).QueryRow(ctx, q,
		tx.ID, tx.UserID, tx.Amount, tx.Category, tx.Description, tx.Reference,
	).Scan(&tx.CreatedAt)
	return tx, mapErr(err)
}

func (r *transactionsRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.CoinTransaction, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT id, user_id, amount, category, description, reference, created_at
		   FROM coin_transactions
		  WHERE user_id=$1
		  ORDER BY seq DESC
		  LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.CoinTransaction
	for rows.Next() {
		var tx models.CoinTransaction
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.Amount, &tx.Category, &tx.Description, &tx.Reference, &tx.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}
