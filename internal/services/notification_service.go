package services

import (
	"context"
	"errors"

	"github.com/baharkarakas/coinmatch/internal/metrics"
	"github.com/baharkarakas/coinmatch/internal/models"
	repo "github.com/baharkarakas/coinmatch/internal/repository"
)

const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 200
)

type NotificationService struct{ r repo.Notifications }

func NewNotificationService(r repo.Notifications) *NotificationService {
	return &NotificationService{r: r}
}

type NewNotification struct {
	UserID      string
	Type        models.NotificationType
	Title       string
	Body        string
	RelatedID   string
	RelatedKind string
}

// Create records an unread notification. Inside a unit of work it is
// discarded if the unit rolls back.
func (s *NotificationService) Create(ctx context.Context, in NewNotification) (models.Notification, error) {
	n := models.Notification{
		UserID: in.UserID,
		Type:   in.Type,
		Title:  in.Title,
		Body:   in.Body,
	}
	if in.RelatedID != "" {
		n.RelatedID = &in.RelatedID
	}
	if in.RelatedKind != "" {
		n.RelatedKind = &in.RelatedKind
	}
	out, err := s.r.Create(ctx, n)
	if err != nil {
		return models.Notification{}, err
	}
	repo.AfterCommit(ctx, func() {
		metrics.NotificationsTotal.WithLabelValues(string(in.Type)).Inc()
	})
	return out, nil
}

func (s *NotificationService) Get(ctx context.Context, id string) (models.Notification, error) {
	n, err := s.r.GetByID(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return models.Notification{}, ErrNotFound
	}
	return n, err
}

// ListForUser returns the newest notifications first, at most limit of them.
func (s *NotificationService) ListForUser(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	switch {
	case limit <= 0:
		limit = defaultNotificationLimit
	case limit > maxNotificationLimit:
		limit = maxNotificationLimit
	}
	out, err := s.r.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.Notification{}
	}
	return out, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, id string) (models.Notification, error) {
	n, err := s.r.MarkRead(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return models.Notification{}, ErrNotFound
	}
	return n, err
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int, error) {
	return s.r.MarkAllRead(ctx, userID)
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	return s.r.UnreadCount(ctx, userID)
}
