package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/baharkarakas/coinmatch/internal/models"
	repo "github.com/baharkarakas/coinmatch/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSend_ChargesFeeAndNotifiesTutor(t *testing.T) {
	f := newFixture(t, DefaultMatchConfig())
	f.user(t, "s1", models.RoleStudent, 500)
	f.user(t, "t1", models.RoleTutor, 0)

	note := "weekday evenings"
	r, err := f.matches.Send(context.Background(), SendInput{StudentID: "s1", TutorID: "t1", Message: "  " + validMessage + "  ", ScheduleNote: &note})
	require.NoError(t, err)

	assert.Equal(t, models.MatchPending, r.Status)
	assert.Equal(t, "s1", r.StudentID)
	assert.Equal(t, "t1", r.TutorID)
	assert.Equal(t, validMessage, r.Message)
	assert.Equal(t, int64(300), r.CoinCost)
	assert.Equal(t, r.CreatedAt.Add(72*time.Hour), r.ExpiresAt)
	assert.Equal(t, int64(200), f.balance(t, "s1"))

	notes := f.notifications(t, "t1")
	require.Len(t, notes, 1)
	assert.Equal(t, models.NotifyMatchReceived, notes[0].Type)
	require.NotNil(t, notes[0].RelatedID)
	assert.Equal(t, r.ID, *notes[0].RelatedID)
}

func TestSend_ValidationNeverTouchesLedger(t *testing.T) {
	f := newFixture(t, DefaultMatchConfig())
	ctx := context.Background()
	f.user(t, "s1", models.RoleStudent, 500)
	f.user(t, "t1", models.RoleTutor, 0)
	f.user(t, "s2", models.RoleStudent, 0)

	_, err := f.matches.Send(ctx, SendInput{StudentID: "s1", TutorID: "t1", Message: "too short"})
	assert.ErrorIs(t, err, ErrMessageTooShort)

	_, err = f.matches.Send(ctx, SendInput{StudentID: "s1", TutorID: "t1", Message: "   " + strings.Repeat(" ", 30) + "x"})
	assert.ErrorIs(t, err, ErrMessageTooShort)

	_, err = f.matches.Send(ctx, SendInput{StudentID: "s1", TutorID: "nobody", Message: validMessage})
	assert.ErrorIs(t, err, ErrTutorNotFound)

	_, err = f.matches.Send(ctx, SendInput{StudentID: "s1", TutorID: "s2", Message: validMessage})
	assert.ErrorIs(t, err, ErrTutorNotFound)

	_, err = f.matches.Send(ctx, SendInput{StudentID: "s1", TutorID: "s1", Message: validMessage})
	assert.ErrorIs(t, err, ErrInvalidInput)

	assert.Equal(t, int64(500), f.balance(t, "s1"))
	rows, err := f.matches.ListForStudent(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestSend_MessageLengthCountsRunes(t *testing.T) {
	f := newFixture(t, MatchConfig{Fee: 300, MinMessageLength: 5, RequestTTL: time.Hour})
	f.user(t, "s1", models.RoleStudent, 500)
	f.user(t, "t1", models.RoleTutor, 0)

	_, err := f.matches.Send(context.Background(), SendInput{StudentID: "s1", TutorID: "t1", Message: "çğüşö"})
	assert.NoError(t, err)
}

func TestSend_InsufficientFundsCreatesNothing(t *testing.T) {
	f := newFixture(t, DefaultMatchConfig())
	ctx := context.Background()
	f.user(t, "s1", models.RoleStudent, 299)
	f.user(t, "t1", models.RoleTutor, 0)

	_, err := f.matches.Send(ctx, SendInput{StudentID: "s1", TutorID: "t1", Message: validMessage})
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, int64(299), f.balance(t, "s1"))

	rows, err := f.matches.ListForTutor(ctx, "t1")
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Empty(t, f.notifications(t, "t1"))
}

func TestSend_DuplicatePendingChargedOnce(t *testing.T) {
	f := newFixture(t, DefaultMatchConfig())
	f.user(t, "s1", models.RoleStudent, 1000)
	f.user(t, "t1", models.RoleTutor, 0)

	f.send(t, "s1", "t1")
	_, err := f.matches.Send(context.Background(), SendInput{StudentID: "s1", TutorID: "t1", Message: validMessage})
	assert.ErrorIs(t, err, ErrDuplicatePendingRequest)
	assert.Equal(t, int64(700), f.balance(t, "s1"))
}

func TestSend_ConcurrentSamePairOneWins(t *testing.T) {
	f := newFixture(t, DefaultMatchConfig())
	f.user(t, "s1", models.RoleStudent, 3000)
	f.user(t, "t1", models.RoleTutor, 0)

	var (
		wg   sync.WaitGroup
		won  int32
		dups int32
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.matches.Send(context.Background(), SendInput{StudentID: "s1", TutorID: "t1", Message: validMessage})
			switch {
			case err == nil:
				atomic.AddInt32(&won, 1)
			case errors.Is(err, ErrDuplicatePendingRequest):
				atomic.AddInt32(&dups, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), won)
	assert.Equal(t, int32(7), dups)
	assert.Equal(t, int64(2700), f.balance(t, "s1"))
}

func TestApprove_CreatesChatRoomAndNotifiesStudent(t *testing.T) {
	f := newFixture(t, DefaultMatchConfig())
	ctx := context.Background()
	f.user(t, "s1", models.RoleStudent, 500)
	f.user(t, "t1", models.RoleTutor, 0)
	r := f.send(t, "s1", "t1")

	got, err := f.matches.Approve(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchApproved, got.Status)
	require.NotNil(t, got.ChatRoomID)

	rooms, err := f.repos.ChatRooms.ListByMatch(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, *got.ChatRoomID, rooms[0].ID)

	notes := f.notifications(t, "s1")
	require.Len(t, notes, 1)
	assert.Equal(t, models.NotifyMatchApproved, notes[0].Type)
	assert.Equal(t, int64(200), f.balance(t, "s1"))

	for _, op := range []func(context.Context, string) (models.MatchRequest, error){f.matches.Approve, f.matches.Reject, f.matches.Cancel} {
		_, err := op(ctx, r.ID)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	}
	rooms, err = f.repos.ChatRooms.ListByMatch(ctx, r.ID)
	require.NoError(t, err)
	assert.Len(t, rooms, 1)
	assert.Len(t, f.notifications(t, "s1"), 1)
	assert.Equal(t, int64(200), f.balance(t, "s1"))
}

func TestTransitions_UnknownRequest(t *testing.T) {
	f := newFixture(t, DefaultMatchConfig())
	_, err := f.matches.Approve(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.matches.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReject_RefundsFeeWithTwoNotifications(t *testing.T) {
	f := newFixture(t, DefaultMatchConfig())
	f.user(t, "s1", models.RoleStudent, 500)
	f.user(t, "t1", models.RoleTutor, 0)

	r := f.send(t, "s1", "t1")
	assert.Equal(t, int64(200), f.balance(t, "s1"))

	got, err := f.matches.Reject(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchRejected, got.Status)
	assert.Equal(t, int64(500), f.balance(t, "s1"))

	notes := f.notifications(t, "s1")
	require.Len(t, notes, 2)
	assert.Equal(t, models.NotifyCoinsRefunded, notes[0].Type)
	assert.Equal(t, models.NotifyMatchRejected, notes[1].Type)

	page, err := f.ledger.History(context.Background(), "s1", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, models.CategoryRefund, page.Items[0].Category)
	assert.Equal(t, int64(300), page.Items[0].Amount)
}

func TestCancel_RefundsFeeWithTwoNotifications(t *testing.T) {
	f := newFixture(t, DefaultMatchConfig())
	f.user(t, "s1", models.RoleStudent, 450)
	f.user(t, "t1", models.RoleTutor, 0)

	r := f.send(t, "s1", "t1")
	got, err := f.matches.Cancel(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchCancelled, got.Status)
	assert.Equal(t, int64(450), f.balance(t, "s1"))

	notes := f.notifications(t, "s1")
	require.Len(t, notes, 2)
	assert.Equal(t, models.NotifyMatchCancelled, notes[1].Type)

	// a new request to the same tutor is allowed once the first is closed
	f.send(t, "s1", "t1")
	assert.Equal(t, int64(150), f.balance(t, "s1"))
}

type failingCredits struct {
	repo.Balances
	fail atomic.Bool
}

func (b *failingCredits) UpdateAmount(ctx context.Context, userID string, delta int64) (models.Balance, error) {
	if delta > 0 && b.fail.Load() {
		return models.Balance{}, errors.New("ledger unavailable")
	}
	return b.Balances.UpdateAmount(ctx, userID, delta)
}

func TestReject_RefundFailureLeavesRequestPending(t *testing.T) {
	var bal *failingCredits
	f := newFixture(t, DefaultMatchConfig(), func(r *repo.Repositories) {
		bal = &failingCredits{Balances: r.Balances}
		r.Balances = bal
	})
	ctx := context.Background()
	f.user(t, "s1", models.RoleStudent, 500)
	f.user(t, "t1", models.RoleTutor, 0)
	r := f.send(t, "s1", "t1")

	bal.fail.Store(true)
	_, err := f.matches.Reject(ctx, r.ID)
	assert.ErrorIs(t, err, ErrSettlementFailed)
	_, err = f.matches.Cancel(ctx, r.ID)
	assert.ErrorIs(t, err, ErrSettlementFailed)

	got, err := f.matches.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchPending, got.Status)
	assert.Equal(t, int64(200), f.balance(t, "s1"))
	assert.Empty(t, f.notifications(t, "s1"))

	bal.fail.Store(false)
	_, err = f.matches.Reject(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(500), f.balance(t, "s1"))
}

func TestLazyExpiry_NoRefundByDefault(t *testing.T) {
	f := newFixture(t, DefaultMatchConfig())
	ctx := context.Background()
	f.user(t, "s1", models.RoleStudent, 500)
	f.user(t, "t1", models.RoleTutor, 0)
	r := f.send(t, "s1", "t1")

	f.clock.Advance(72*time.Hour - time.Second)
	rows, err := f.matches.ListForStudent(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, models.MatchPending, rows[0].Status)

	f.clock.Advance(time.Second)
	rows, err = f.matches.ListForStudent(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, r.ID, rows[0].ID)
	assert.Equal(t, models.MatchExpired, rows[0].Status)
	assert.Equal(t, int64(200), f.balance(t, "s1"))

	notes := f.notifications(t, "s1")
	require.Len(t, notes, 1)
	assert.Equal(t, models.NotifyMatchExpired, notes[0].Type)

	rows, err = f.matches.ListForTutor(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, models.MatchExpired, rows[0].Status)
	assert.Len(t, f.notifications(t, "s1"), 1)
}

func TestLazyExpiry_RefundWhenConfigured(t *testing.T) {
	cfg := DefaultMatchConfig()
	cfg.RefundOnExpiry = true
	f := newFixture(t, cfg)
	f.user(t, "s1", models.RoleStudent, 500)
	f.user(t, "t1", models.RoleTutor, 0)
	r := f.send(t, "s1", "t1")

	f.clock.Advance(73 * time.Hour)
	got, err := f.matches.Get(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchExpired, got.Status)
	assert.Equal(t, int64(500), f.balance(t, "s1"))
	assert.Len(t, f.notifications(t, "s1"), 2)
}

func TestTransitionOnOverdueRequestExpiresIt(t *testing.T) {
	f := newFixture(t, DefaultMatchConfig())
	f.user(t, "s1", models.RoleStudent, 500)
	f.user(t, "t1", models.RoleTutor, 0)
	r := f.send(t, "s1", "t1")

	f.clock.Advance(80 * time.Hour)
	_, err := f.matches.Approve(context.Background(), r.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	got, err := f.repos.MatchRequests.GetByID(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchExpired, got.Status)
	assert.Nil(t, got.ChatRoomID)
}

func TestSend_ReplacesOverduePendingRequest(t *testing.T) {
	f := newFixture(t, DefaultMatchConfig())
	f.user(t, "s1", models.RoleStudent, 600)
	f.user(t, "t1", models.RoleTutor, 0)
	first := f.send(t, "s1", "t1")

	f.clock.Advance(100 * time.Hour)
	second := f.send(t, "s1", "t1")
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, int64(0), f.balance(t, "s1"))

	got, err := f.repos.MatchRequests.GetByID(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchExpired, got.Status)
}

func TestExpireDue(t *testing.T) {
	cfg := DefaultMatchConfig()
	cfg.RefundOnExpiry = true
	f := newFixture(t, cfg)
	ctx := context.Background()
	f.user(t, "s1", models.RoleStudent, 900)
	for _, id := range []string{"t1", "t2", "t3"} {
		f.user(t, id, models.RoleTutor, 0)
	}
	f.send(t, "s1", "t1")
	f.send(t, "s1", "t2")
	f.clock.Advance(48 * time.Hour)
	fresh := f.send(t, "s1", "t3")

	n, err := f.matches.ExpireDue(ctx, f.clock.Now().Add(25*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, int64(600), f.balance(t, "s1"))

	got, err := f.repos.MatchRequests.GetByID(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchPending, got.Status)

	n, err = f.matches.ExpireDue(ctx, f.clock.Now().Add(25*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)
}

type observedNotifications struct {
	repo.Notifications
	during func()
}

func (n *observedNotifications) Create(ctx context.Context, in models.Notification) (models.Notification, error) {
	if in.Type == models.NotifyCoinsRefunded && n.during != nil {
		n.during()
		return models.Notification{}, errors.New("notification store down")
	}
	return n.Notifications.Create(ctx, in)
}

func TestReject_RolledBackRefundIsNeverVisible(t *testing.T) {
	var notes *observedNotifications
	f := newFixture(t, DefaultMatchConfig(), func(r *repo.Repositories) {
		notes = &observedNotifications{Notifications: r.Notifications}
		r.Notifications = notes
	})
	ctx := context.Background()
	f.user(t, "s1", models.RoleStudent, 500)
	f.user(t, "t1", models.RoleTutor, 0)
	r := f.send(t, "s1", "t1")

	var seenBalance int64
	var seenHistory int
	var seenStatus models.MatchStatus
	notes.during = func() {
		b, err := f.repos.Balances.Get(ctx, "s1")
		require.NoError(t, err)
		seenBalance = b.Amount
		txs, err := f.repos.Transactions.ListByUser(ctx, "s1", 10, 0)
		require.NoError(t, err)
		seenHistory = len(txs)
		got, err := f.repos.MatchRequests.GetByID(ctx, r.ID)
		require.NoError(t, err)
		seenStatus = got.Status
	}

	_, err := f.matches.Reject(ctx, r.ID)
	require.Error(t, err)

	assert.Equal(t, int64(200), seenBalance)
	assert.Equal(t, 2, seenHistory)
	assert.Equal(t, models.MatchPending, seenStatus)

	got, err := f.matches.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchPending, got.Status)
	assert.Equal(t, int64(200), f.balance(t, "s1"))
}
