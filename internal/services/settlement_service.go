package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/baharkarakas/coinmatch/internal/keylock"
	"github.com/baharkarakas/coinmatch/internal/metrics"
	"github.com/baharkarakas/coinmatch/internal/models"
	repo "github.com/baharkarakas/coinmatch/internal/repository"
)

type SettlementService struct {
	reqs    repo.MatchRequests
	lessons repo.Lessons
	logs    repo.AuditLogs
	tx      repo.TxRunner
	ledger  *LedgerService
	notify  *NotificationService
	locks   *keylock.Map
	now     func() time.Time
	log     *slog.Logger
}

func NewSettlementService(r repo.Repositories, ledger *LedgerService, notify *NotificationService, locks *keylock.Map, log *slog.Logger) *SettlementService {
	return &SettlementService{
		reqs:    r.MatchRequests,
		lessons: r.Lessons,
		logs:    r.AuditLogs,
		tx:      r.Tx,
		ledger:  ledger,
		notify:  notify,
		locks:   locks,
		now:     func() time.Time { return time.Now().UTC() },
		log:     log,
	}
}

type BookInput struct {
	MatchRequestID string
	CoinCost       int64
	ScheduledAt    time.Time
}

// BookLesson charges the student for a lesson on an approved match and
// schedules it. A match books at most one lesson.
func (s *SettlementService) BookLesson(ctx context.Context, in BookInput) (models.Lesson, error) {
	if in.CoinCost < 0 {
		return models.Lesson{}, ErrInvalidAmount
	}
	if in.ScheduledAt.IsZero() {
		return models.Lesson{}, fmt.Errorf("%w: scheduled_at required", ErrInvalidInput)
	}

	var out models.Lesson
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		defer s.locks.LockTx(ctx, requestKey(in.MatchRequestID))()

		r, err := s.reqs.GetByID(ctx, in.MatchRequestID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if r.Status != models.MatchApproved {
			return fmt.Errorf("%w: match request is %s", ErrInvalidState, r.Status)
		}
		if r.LessonID != nil {
			return fmt.Errorf("%w: lesson %s already booked", ErrInvalidState, *r.LessonID)
		}

		if in.CoinCost > 0 {
			if _, err := s.ledger.ApplyDelta(ctx, r.StudentID, -in.CoinCost, models.CategorySpend, ""); err != nil {
				return err
			}
		}
		l, err := s.lessons.Create(ctx, models.Lesson{
			MatchRequestID: r.ID,
			TutorID:        r.TutorID,
			StudentID:      r.StudentID,
			Status:         models.LessonScheduled,
			CoinCost:       in.CoinCost,
			ScheduledAt:    in.ScheduledAt.UTC(),
		})
		if err != nil {
			return err
		}
		if err := s.reqs.LinkLesson(ctx, r.ID, l.ID); err != nil {
			return err
		}
		if _, err := s.notify.Create(ctx, NewNotification{
			UserID:      l.TutorID,
			Type:        models.NotifyLessonBooked,
			Title:       "Lesson booked",
			Body:        fmt.Sprintf("A lesson was booked for %s.", l.ScheduledAt.Format(time.RFC1123)),
			RelatedID:   l.ID,
			RelatedKind: "lesson",
		}); err != nil {
			return err
		}
		if err := audit(ctx, s.logs, "lesson", l.ID, "booked", map[string]any{
			"match_request_id": r.ID,
			"coin_cost":        l.CoinCost,
		}); err != nil {
			return err
		}
		out = l
		return nil
	})
	if err != nil {
		return models.Lesson{}, err
	}
	s.log.Info("lesson booked", "lesson_id", out.ID, "match_request_id", out.MatchRequestID)
	return out, nil
}

func (s *SettlementService) GetLesson(ctx context.Context, id string) (models.Lesson, error) {
	l, err := s.lessons.GetByID(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return models.Lesson{}, ErrNotFound
	}
	return l, err
}

// CompleteLesson finalizes a scheduled or approved lesson. The cost was
// charged at booking, so settlement writes the audit record and notifies
// both parties. Completing twice fails with ErrInvalidState and emits
// nothing.
func (s *SettlementService) CompleteLesson(ctx context.Context, lessonID string) (models.Lesson, error) {
	var out models.Lesson
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		defer s.locks.LockTx(ctx, lessonKey(lessonID))()

		l, err := s.lessons.GetByID(ctx, lessonID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if !l.Status.Completable() {
			return fmt.Errorf("%w: lesson is %s", ErrInvalidState, l.Status)
		}
		l, err = s.lessons.Complete(ctx, lessonID, s.now())
		if errors.Is(err, repo.ErrStaleStatus) {
			return fmt.Errorf("%w: lesson is %s", ErrInvalidState, l.Status)
		}
		if err != nil {
			return err
		}

		if err := audit(ctx, s.logs, "lesson", l.ID, "settled", map[string]any{
			"coin_cost":  l.CoinCost,
			"tutor_id":   l.TutorID,
			"student_id": l.StudentID,
		}); err != nil {
			return err
		}
		for _, userID := range []string{l.StudentID, l.TutorID} {
			if _, err := s.notify.Create(ctx, NewNotification{
				UserID:      userID,
				Type:        models.NotifyLessonDone,
				Title:       "Lesson completed",
				Body:        "The lesson was marked as completed.",
				RelatedID:   l.ID,
				RelatedKind: "lesson",
			}); err != nil {
				return err
			}
		}
		out = l
		return nil
	})
	if err != nil {
		return models.Lesson{}, err
	}
	metrics.LessonsCompleted.Inc()
	s.log.Info("lesson completed", "lesson_id", out.ID)
	return out, nil
}
