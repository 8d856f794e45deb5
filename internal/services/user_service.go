package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/baharkarakas/coinmatch/internal/models"
	repo "github.com/baharkarakas/coinmatch/internal/repository"
)

// UserService is the student/tutor directory. Registering a user also opens
// their balance.
type UserService struct {
	r           repo.Users
	tx          repo.TxRunner
	ledger      *LedgerService
	signupBonus int64
}

func NewUserService(r repo.Repositories, ledger *LedgerService, signupBonus int64) *UserService {
	return &UserService{r: r.Users, tx: r.Tx, ledger: ledger, signupBonus: signupBonus}
}

type RegisterInput struct {
	ID   string
	Name string
	Role models.Role
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (models.User, error) {
	u := models.User{ID: strings.TrimSpace(in.ID), Name: strings.TrimSpace(in.Name), Role: in.Role}
	if err := u.Validate(); err != nil {
		return models.User{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	var out models.User
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		created, err := s.r.Create(ctx, u)
		if errors.Is(err, repo.ErrConflict) {
			return fmt.Errorf("%w: user %s already exists", ErrInvalidInput, u.ID)
		}
		if err != nil {
			return err
		}
		if _, err := s.ledger.Open(ctx, created.ID, s.signupBonus); err != nil {
			return err
		}
		out = created
		return nil
	})
	return out, err
}

func (s *UserService) Get(ctx context.Context, id string) (models.User, error) {
	u, err := s.r.GetByID(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return models.User{}, ErrUserNotFound
	}
	return u, err
}
