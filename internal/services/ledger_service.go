package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/baharkarakas/coinmatch/internal/events"
	"github.com/baharkarakas/coinmatch/internal/keylock"
	"github.com/baharkarakas/coinmatch/internal/metrics"
	"github.com/baharkarakas/coinmatch/internal/models"
	repo "github.com/baharkarakas/coinmatch/internal/repository"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// LedgerService is the only writer of balances and coin transactions.
type LedgerService struct {
	bal      repo.Balances
	trx      repo.Transactions
	tx       repo.TxRunner
	locks    *keylock.Map
	bus      events.Sink
	payments PaymentGateway
	log      *slog.Logger
}

func NewLedgerService(r repo.Repositories, locks *keylock.Map, bus events.Sink, payments PaymentGateway, log *slog.Logger) *LedgerService {
	if payments == nil {
		payments = MockGateway{}
	}
	return &LedgerService{
		bal:      r.Balances,
		trx:      r.Transactions,
		tx:       r.Tx,
		locks:    locks,
		bus:      bus,
		payments: payments,
		log:      log,
	}
}

// DescribeDelta is the description recorded when a caller gives none.
func DescribeDelta(category models.TransactionCategory, delta int64) string {
	var label string
	switch category {
	case models.CategoryPurchase:
		label = "coin purchase"
	case models.CategoryRefund:
		label = "refund"
	default:
		label = "bonus"
		if delta < 0 {
			label = "lesson payment"
		}
	}
	return fmt.Sprintf("%+d coins: %s", delta, label)
}

// Open creates the balance record for a new user and credits initial as a
// welcome bonus when positive.
func (s *LedgerService) Open(ctx context.Context, userID string, initial int64) (models.Balance, error) {
	if initial < 0 {
		return models.Balance{}, ErrInvalidAmount
	}
	var out models.Balance
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		defer s.locks.LockTx(ctx, userKey(userID))()

		b, err := s.bal.Create(ctx, userID)
		if errors.Is(err, repo.ErrConflict) {
			return fmt.Errorf("%w: balance for %s already open", ErrInvalidInput, userID)
		}
		if err != nil {
			return err
		}
		out = b
		if initial == 0 {
			return nil
		}
		desc := fmt.Sprintf("+%d coins: welcome bonus", initial)
		out, err = s.apply(ctx, userID, initial, models.CategoryPurchase, desc, nil)
		return err
	})
	return out, err
}

func (s *LedgerService) Balance(ctx context.Context, userID string) (models.Balance, error) {
	b, err := s.bal.Get(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return models.Balance{}, ErrUserNotFound
	}
	return b, err
}

// ApplyDelta changes a balance and appends exactly one transaction, both or
// neither. Called inside another unit of work it joins that unit, and the
// user stays locked until the unit ends.
func (s *LedgerService) ApplyDelta(ctx context.Context, userID string, delta int64, category models.TransactionCategory, description string) (int64, error) {
	var out models.Balance
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		out, err = s.apply(ctx, userID, delta, category, description, nil)
		return err
	})
	if err != nil {
		return 0, err
	}
	return out.Amount, nil
}

// Purchase credits amount once the payment gateway accepts reference.
func (s *LedgerService) Purchase(ctx context.Context, userID string, amount int64, reference string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	b, err := s.Balance(ctx, userID)
	if err != nil {
		return 0, err
	}
	if b.Amount > math.MaxInt64-amount {
		metrics.LedgerRejected.WithLabelValues("overflow").Inc()
		return 0, fmt.Errorf("%w: balance %d cannot take %d more", ErrInvalidAmount, b.Amount, amount)
	}
	if err := s.payments.Charge(ctx, userID, amount, reference); err != nil {
		metrics.LedgerRejected.WithLabelValues("payment_declined").Inc()
		s.log.Info("purchase declined", "user_id", userID, "amount", amount, "err", err)
		return 0, err
	}

	var out models.Balance
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		out, err = s.apply(ctx, userID, amount, models.CategoryPurchase, "", &reference)
		return err
	})
	if err != nil {
		return 0, err
	}
	return out.Amount, nil
}

// History pages through a user's transactions, newest first. page is
// 1-based.
func (s *LedgerService) History(ctx context.Context, userID string, page, pageSize int) (models.TransactionPage, error) {
	if _, err := s.Balance(ctx, userID); err != nil {
		return models.TransactionPage{}, err
	}
	if page < 1 {
		page = 1
	}
	switch {
	case pageSize <= 0:
		pageSize = defaultPageSize
	case pageSize > maxPageSize:
		pageSize = maxPageSize
	}
	if page-1 > math.MaxInt/pageSize {
		return models.TransactionPage{Page: page, PageSize: pageSize, Items: []models.CoinTransaction{}}, nil
	}

	rows, err := s.trx.ListByUser(ctx, userID, pageSize+1, (page-1)*pageSize)
	if err != nil {
		return models.TransactionPage{}, err
	}
	out := models.TransactionPage{Page: page, PageSize: pageSize, Items: rows}
	if len(rows) > pageSize {
		out.Items = rows[:pageSize]
		out.HasMore = true
	}
	if out.Items == nil {
		out.Items = []models.CoinTransaction{}
	}
	return out, nil
}

// apply must run inside a unit of work.
func (s *LedgerService) apply(ctx context.Context, userID string, delta int64, category models.TransactionCategory, description string, reference *string) (models.Balance, error) {
	if delta == 0 {
		return models.Balance{}, ErrInvalidAmount
	}
	if !category.Valid() {
		return models.Balance{}, fmt.Errorf("%w: unknown category %q", ErrInvalidInput, category)
	}
	if description == "" {
		description = DescribeDelta(category, delta)
	}

	defer s.locks.LockTx(ctx, userKey(userID))()

	b, err := s.bal.UpdateAmount(ctx, userID, delta)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return models.Balance{}, ErrUserNotFound
	case errors.Is(err, repo.ErrNegativeBalance):
		metrics.LedgerRejected.WithLabelValues("insufficient_funds").Inc()
		return models.Balance{}, fmt.Errorf("%w: balance %d, change %d", ErrInsufficientFunds, b.Amount, delta)
	case errors.Is(err, repo.ErrBalanceOverflow):
		metrics.LedgerRejected.WithLabelValues("overflow").Inc()
		return models.Balance{}, fmt.Errorf("%w: balance cannot take %d more", ErrInvalidAmount, delta)
	case err != nil:
		return models.Balance{}, err
	}

	if _, err := s.trx.Create(ctx, models.CoinTransaction{
		UserID:      userID,
		Amount:      delta,
		Category:    category,
		Description: description,
		Reference:   reference,
	}); err != nil {
		return models.Balance{}, err
	}

	change := events.BalanceChange{
		UserID:   userID,
		Balance:  b.Amount,
		Delta:    delta,
		Category: category,
		At:       time.Now().UTC(),
	}
	repo.AfterCommit(ctx, func() {
		metrics.LedgerOpsTotal.WithLabelValues(string(category)).Inc()
		if s.bus != nil {
			s.bus.Publish(change)
		}
	})
	s.log.Debug("balance updated", "user_id", userID, "delta", delta, "balance", b.Amount, "category", category)
	return b, nil
}
