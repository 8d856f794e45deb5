package postgres

import (
	"context"
	"errors"

	repo "github.com/baharkarakas/coinmatch/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

func NewRepositories(pool *pgxpool.Pool) repo.Repositories {
	return repo.Repositories{
		Users:         &usersRepo{pool},
		Balances:      &balancesRepo{pool},
		Transactions:  &transactionsRepo{pool},
		MatchRequests: &matchRequestsRepo{pool},
		Notifications: &notificationsRepo{pool},
		Lessons:       &lessonsRepo{pool},
		ChatRooms:     &chatRoomsRepo{pool},
		AuditLogs:     &auditLogsRepo{pool},
		Tx:            &txRunner{pool},
		Close:         pool.Close,
	}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// conn returns the transaction of the unit running in ctx, or the pool.
func conn(ctx context.Context, pool *pgxpool.Pool) querier {
	if u, ok := repo.FromContext(ctx); ok {
		if tx, ok := u.Handle.(pgx.Tx); ok {
			return tx
		}
	}
	return pool
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return repo.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return repo.ErrConflict
		case "23514":
			return repo.ErrNegativeBalance
		case "22003":
			return repo.ErrBalanceOverflow
		}
	}
	return err
}
