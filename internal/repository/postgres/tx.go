package postgres

import (
	"context"

	repo "github.com/baharkarakas/coinmatch/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type txRunner struct{ pool *pgxpool.Pool }

// WithTx runs fn inside one pgx transaction. Balance and pending-request
// invariants are enforced by constraints, so read committed is enough.
func (r *txRunner) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := repo.FromContext(ctx); ok {
		return fn(ctx)
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return err
	}
	ctx, u := repo.Begin(ctx)
	u.Handle = tx

	if err := fn(ctx); err != nil {
		_ = tx.Rollback(ctx)
		u.Finish(false)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		u.Finish(false)
		return mapErr(err)
	}
	u.Finish(true)
	return nil
}
