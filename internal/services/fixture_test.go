package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/baharkarakas/coinmatch/internal/events"
	"github.com/baharkarakas/coinmatch/internal/keylock"
	"github.com/baharkarakas/coinmatch/internal/models"
	repo "github.com/baharkarakas/coinmatch/internal/repository"
	"github.com/baharkarakas/coinmatch/internal/repository/memory"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	repos      repo.Repositories
	hub        *events.Hub
	ledger     *LedgerService
	notify     *NotificationService
	matches    *MatchService
	settlement *SettlementService
	users      *UserService
	clock      *clock
}

const validMessage = "Hi, I need help with calculus before my exam."

func newFixture(t *testing.T, cfg MatchConfig, wrap ...func(*repo.Repositories)) *fixture {
	t.Helper()
	repos := memory.NewRepositories()
	for _, w := range wrap {
		w(&repos)
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	locks := keylock.New()
	hub := events.NewHub()

	ledger := NewLedgerService(repos, locks, hub, MockGateway{}, log)
	notify := NewNotificationService(repos.Notifications)
	matches := NewMatchService(repos, ledger, notify, locks, cfg, log)
	settlement := NewSettlementService(repos, ledger, notify, locks, log)

	c := &clock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	matches.SetClock(c.Now)
	settlement.now = c.Now

	return &fixture{
		repos:      repos,
		hub:        hub,
		ledger:     ledger,
		notify:     notify,
		matches:    matches,
		settlement: settlement,
		users:      NewUserService(repos, ledger, 0),
		clock:      c,
	}
}

func (f *fixture) user(t *testing.T, id string, role models.Role, coins int64) {
	t.Helper()
	_, err := f.users.Register(context.Background(), RegisterInput{ID: id, Name: "user " + id, Role: role})
	require.NoError(t, err)
	if coins > 0 {
		_, err = f.ledger.ApplyDelta(context.Background(), id, coins, models.CategoryPurchase, "")
		require.NoError(t, err)
	}
}

func (f *fixture) balance(t *testing.T, id string) int64 {
	t.Helper()
	b, err := f.ledger.Balance(context.Background(), id)
	require.NoError(t, err)
	return b.Amount
}

func (f *fixture) notifications(t *testing.T, userID string) []models.Notification {
	t.Helper()
	out, err := f.notify.ListForUser(context.Background(), userID, 0)
	require.NoError(t, err)
	return out
}

func (f *fixture) send(t *testing.T, student, tutor string) models.MatchRequest {
	t.Helper()
	r, err := f.matches.Send(context.Background(), SendInput{StudentID: student, TutorID: tutor, Message: validMessage})
	require.NoError(t, err)
	return r
}
