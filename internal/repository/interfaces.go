package repository

import (
	"context"
	"errors"
	"time"

	"github.com/baharkarakas/coinmatch/internal/models"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrConflict        = errors.New("record already exists")
	ErrNegativeBalance = errors.New("balance would become negative")
	ErrBalanceOverflow = errors.New("balance would overflow")
	ErrStaleStatus     = errors.New("status changed concurrently")
)

type Users interface {
	Create(ctx context.Context, u models.User) (models.User, error)
	GetByID(ctx context.Context, id string) (models.User, error)
}

type Balances interface {
	Create(ctx context.Context, userID string) (models.Balance, error)
	Get(ctx context.Context, userID string) (models.Balance, error)
	// UpdateAmount applies delta and fails with ErrNegativeBalance, leaving the
	// row untouched, when the result would drop below zero, and with
	// ErrBalanceOverflow when it would not fit in an int64.
	UpdateAmount(ctx context.Context, userID string, delta int64) (models.Balance, error)
}

type Transactions interface {
	Create(ctx context.Context, tx models.CoinTransaction) (models.CoinTransaction, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.CoinTransaction, error)
}

type MatchRequests interface {
	Create(ctx context.Context, r models.MatchRequest) (models.MatchRequest, error)
	GetByID(ctx context.Context, id string) (models.MatchRequest, error)
	FindPending(ctx context.Context, studentID, tutorID string) (models.MatchRequest, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.MatchRequest, error)
	ListByTutor(ctx context.Context, tutorID string) ([]models.MatchRequest, error)
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]models.MatchRequest, error)
	// UpdateStatus moves a request from one status to another and fails with
	// ErrStaleStatus when the stored status is not from.
	UpdateStatus(ctx context.Context, id string, from, to models.MatchStatus) (models.MatchRequest, error)
	LinkChatRoom(ctx context.Context, id, roomID string) error
	LinkLesson(ctx context.Context, id, lessonID string) error
}

type Notifications interface {
	Create(ctx context.Context, n models.Notification) (models.Notification, error)
	GetByID(ctx context.Context, id string) (models.Notification, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, id string) (models.Notification, error)
	MarkAllRead(ctx context.Context, userID string) (int, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
}

type Lessons interface {
	Create(ctx context.Context, l models.Lesson) (models.Lesson, error)
	GetByID(ctx context.Context, id string) (models.Lesson, error)
	Complete(ctx context.Context, id string, at time.Time) (models.Lesson, error)
}

type ChatRooms interface {
	Create(ctx context.Context, room models.ChatRoom) (models.ChatRoom, error)
	ListByMatch(ctx context.Context, matchRequestID string) ([]models.ChatRoom, error)
}

type AuditLogs interface {
	Create(ctx context.Context, l models.AuditLog) error
}

// TxRunner runs fn as one atomic unit. A WithTx call inside another joins
// the outer unit.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Repositories struct {
	Users         Users
	Balances      Balances
	Transactions  Transactions
	MatchRequests MatchRequests
	Notifications Notifications
	Lessons       Lessons
	ChatRooms     ChatRooms
	AuditLogs     AuditLogs
	Tx            TxRunner
	Close         func()
}
