package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/baharkarakas/coinmatch/internal/keylock"
	"github.com/baharkarakas/coinmatch/internal/metrics"
	"github.com/baharkarakas/coinmatch/internal/models"
	repo "github.com/baharkarakas/coinmatch/internal/repository"
)

const expireBatch = 100

type MatchConfig struct {
	Fee              int64
	MinMessageLength int
	RequestTTL       time.Duration
	// RefundOnExpiry returns the fee when a pending request expires.
	RefundOnExpiry bool
}

func DefaultMatchConfig() MatchConfig {
	return MatchConfig{Fee: 300, MinMessageLength: 20, RequestTTL: 72 * time.Hour}
}

// MatchService owns match request status. Every transition runs as one unit
// of work together with its ledger effect and notifications.
type MatchService struct {
	users  repo.Users
	reqs   repo.MatchRequests
	rooms  repo.ChatRooms
	logs   repo.AuditLogs
	tx     repo.TxRunner
	ledger *LedgerService
	notify *NotificationService
	locks  *keylock.Map
	cfg    MatchConfig
	now    func() time.Time
	log    *slog.Logger
}

func NewMatchService(r repo.Repositories, ledger *LedgerService, notify *NotificationService, locks *keylock.Map, cfg MatchConfig, log *slog.Logger) *MatchService {
	return &MatchService{
		users:  r.Users,
		reqs:   r.MatchRequests,
		rooms:  r.ChatRooms,
		logs:   r.AuditLogs,
		tx:     r.Tx,
		ledger: ledger,
		notify: notify,
		locks:  locks,
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
		log:    log,
	}
}

// SetClock replaces the wall clock used for creation and expiry.
func (s *MatchService) SetClock(now func() time.Time) { s.now = now }

// ----------------- SEND -----------------

type SendInput struct {
	StudentID    string
	TutorID      string
	Message      string
	ScheduleNote *string
}

// Send charges the matching fee and opens a pending request. Validation and
// the duplicate check happen before the debit, and the request is only
// created once the debit succeeded.
func (s *MatchService) Send(ctx context.Context, in SendInput) (models.MatchRequest, error) {
	msg := strings.TrimSpace(in.Message)
	if n := utf8.RuneCountInString(msg); n < s.cfg.MinMessageLength {
		return models.MatchRequest{}, fmt.Errorf("%w: %d of %d characters", ErrMessageTooShort, n, s.cfg.MinMessageLength)
	}
	if in.StudentID == "" || in.StudentID == in.TutorID {
		return models.MatchRequest{}, fmt.Errorf("%w: student and tutor must differ", ErrInvalidInput)
	}
	tutor, err := s.users.GetByID(ctx, in.TutorID)
	if errors.Is(err, repo.ErrNotFound) || (err == nil && tutor.Role != models.RoleTutor) {
		return models.MatchRequest{}, ErrTutorNotFound
	}
	if err != nil {
		return models.MatchRequest{}, err
	}
	student, err := s.users.GetByID(ctx, in.StudentID)
	if errors.Is(err, repo.ErrNotFound) {
		return models.MatchRequest{}, ErrUserNotFound
	}
	if err != nil {
		return models.MatchRequest{}, err
	}

	var out models.MatchRequest
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		defer s.locks.LockTx(ctx, pairKey(in.StudentID, in.TutorID))()
		now := s.now()

		existing, err := s.reqs.FindPending(ctx, in.StudentID, in.TutorID)
		switch {
		case err == nil && existing.Overdue(now):
			if _, err := s.expire(ctx, existing.ID, now); err != nil {
				return err
			}
		case err == nil:
			return ErrDuplicatePendingRequest
		case !errors.Is(err, repo.ErrNotFound):
			return err
		}

		if s.cfg.Fee > 0 {
			desc := fmt.Sprintf("-%d coins: match request to %s", s.cfg.Fee, tutor.Name)
			if _, err := s.ledger.ApplyDelta(ctx, in.StudentID, -s.cfg.Fee, models.CategorySpend, desc); err != nil {
				return err
			}
		}

		r, err := s.reqs.Create(ctx, models.MatchRequest{
			StudentID:    in.StudentID,
			TutorID:      in.TutorID,
			Message:      msg,
			ScheduleNote: in.ScheduleNote,
			CoinCost:     s.cfg.Fee,
			Status:       models.MatchPending,
			CreatedAt:    now,
			ExpiresAt:    now.Add(s.cfg.RequestTTL),
		})
		if errors.Is(err, repo.ErrConflict) {
			return ErrDuplicatePendingRequest
		}
		if err != nil {
			return err
		}

		if _, err := s.notify.Create(ctx, NewNotification{
			UserID:      r.TutorID,
			Type:        models.NotifyMatchReceived,
			Title:       "New match request",
			Body:        fmt.Sprintf("%s would like to book lessons with you.", student.Name),
			RelatedID:   r.ID,
			RelatedKind: "match_request",
		}); err != nil {
			return err
		}
		if err := audit(ctx, s.logs, "match_request", r.ID, "created", map[string]any{
			"student_id": r.StudentID,
			"tutor_id":   r.TutorID,
			"coin_cost":  r.CoinCost,
		}); err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return models.MatchRequest{}, err
	}
	metrics.MatchTransitions.WithLabelValues(string(models.MatchPending)).Inc()
	s.log.Info("match request sent", "request_id", out.ID, "student_id", out.StudentID, "tutor_id", out.TutorID)
	return out, nil
}

// ----------------- READS -----------------

// ListForStudent returns the student's requests newest first, expiring
// overdue pending ones before they are returned.
func (s *MatchService) ListForStudent(ctx context.Context, studentID string) ([]models.MatchRequest, error) {
	rows, err := s.reqs.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return s.expireOverdue(ctx, rows)
}

func (s *MatchService) ListForTutor(ctx context.Context, tutorID string) ([]models.MatchRequest, error) {
	rows, err := s.reqs.ListByTutor(ctx, tutorID)
	if err != nil {
		return nil, err
	}
	return s.expireOverdue(ctx, rows)
}

func (s *MatchService) Get(ctx context.Context, id string) (models.MatchRequest, error) {
	r, err := s.reqs.GetByID(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return models.MatchRequest{}, ErrNotFound
	}
	if err != nil {
		return models.MatchRequest{}, err
	}
	rows, err := s.expireOverdue(ctx, []models.MatchRequest{r})
	if err != nil {
		return models.MatchRequest{}, err
	}
	return rows[0], nil
}

func (s *MatchService) expireOverdue(ctx context.Context, rows []models.MatchRequest) ([]models.MatchRequest, error) {
	now := s.now()
	for i, r := range rows {
		if !r.Overdue(now) {
			continue
		}
		updated, err := s.expireByID(ctx, r.ID, now)
		if err != nil {
			return nil, err
		}
		rows[i] = updated
	}
	if rows == nil {
		rows = []models.MatchRequest{}
	}
	return rows, nil
}

// ----------------- TRANSITIONS -----------------

// Approve accepts a pending request and opens the pair's chat room. The fee
// stays with the platform.
func (s *MatchService) Approve(ctx context.Context, id string) (models.MatchRequest, error) {
	return s.transition(ctx, id, models.MatchApproved, func(ctx context.Context, r models.MatchRequest) (models.MatchRequest, error) {
		room, err := s.rooms.Create(ctx, models.ChatRoom{
			MatchRequestID: r.ID,
			StudentID:      r.StudentID,
			TutorID:        r.TutorID,
		})
		if err != nil {
			return r, err
		}
		if err := s.reqs.LinkChatRoom(ctx, r.ID, room.ID); err != nil {
			return r, err
		}
		r.ChatRoomID = &room.ID

		_, err = s.notify.Create(ctx, NewNotification{
			UserID:      r.StudentID,
			Type:        models.NotifyMatchApproved,
			Title:       "Match approved",
			Body:        "Your tutor accepted the request. A chat room is ready.",
			RelatedID:   r.ID,
			RelatedKind: "match_request",
		})
		return r, err
	})
}

// Reject declines a pending request and refunds the fee.
func (s *MatchService) Reject(ctx context.Context, id string) (models.MatchRequest, error) {
	return s.transition(ctx, id, models.MatchRejected, func(ctx context.Context, r models.MatchRequest) (models.MatchRequest, error) {
		return r, s.refund(ctx, r, "rejected", NewNotification{
			UserID:      r.StudentID,
			Type:        models.NotifyMatchRejected,
			Title:       "Match request declined",
			Body:        "The tutor declined your request.",
			RelatedID:   r.ID,
			RelatedKind: "match_request",
		})
	})
}

// Cancel withdraws a pending request on the student's behalf and refunds
// the fee.
func (s *MatchService) Cancel(ctx context.Context, id string) (models.MatchRequest, error) {
	return s.transition(ctx, id, models.MatchCancelled, func(ctx context.Context, r models.MatchRequest) (models.MatchRequest, error) {
		return r, s.refund(ctx, r, "cancelled", NewNotification{
			UserID:      r.StudentID,
			Type:        models.NotifyMatchCancelled,
			Title:       "Match request cancelled",
			Body:        "You cancelled your request.",
			RelatedID:   r.ID,
			RelatedKind: "match_request",
		})
	})
}

// ExpireDue expires every pending request overdue at now and reports how
// many it moved.
func (s *MatchService) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	var (
		count int
		errs  []error
	)
	for {
		rows, err := s.reqs.ListOverdue(ctx, now, expireBatch)
		if err != nil {
			return count, err
		}
		moved := 0
		for _, r := range rows {
			updated, err := s.expireByID(ctx, r.ID, now)
			if err != nil {
				errs = append(errs, fmt.Errorf("expire %s: %w", r.ID, err))
				continue
			}
			if updated.Status == models.MatchExpired {
				moved++
			}
		}
		count += moved
		if len(rows) < expireBatch || moved == 0 {
			break
		}
	}
	return count, errors.Join(errs...)
}

// transition runs apply inside one unit of work after moving the request
// from pending to the target status. A request found overdue is expired
// first and the transition fails.
func (s *MatchService) transition(ctx context.Context, id string, to models.MatchStatus, apply func(ctx context.Context, r models.MatchRequest) (models.MatchRequest, error)) (models.MatchRequest, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return models.MatchRequest{}, err
	}
	if current.Status.Terminal() {
		return models.MatchRequest{}, fmt.Errorf("%w: request is %s", ErrInvalidTransition, current.Status)
	}

	var out models.MatchRequest
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		defer s.locks.LockTx(ctx, requestKey(id))()

		r, err := s.reqs.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if r.Status.Terminal() || r.Overdue(s.now()) {
			return fmt.Errorf("%w: request is %s", ErrInvalidTransition, r.Status)
		}
		r, err = s.reqs.UpdateStatus(ctx, id, models.MatchPending, to)
		if errors.Is(err, repo.ErrStaleStatus) {
			return fmt.Errorf("%w: request is %s", ErrInvalidTransition, r.Status)
		}
		if err != nil {
			return err
		}
		r, err = apply(ctx, r)
		if err != nil {
			return err
		}
		if err := audit(ctx, s.logs, "match_request", id, "status_change", map[string]any{
			"from": models.MatchPending,
			"to":   to,
		}); err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return models.MatchRequest{}, err
	}
	metrics.MatchTransitions.WithLabelValues(string(to)).Inc()
	s.log.Info("match request transitioned", "request_id", id, "to", to)
	return out, nil
}

// expireByID expires one request in its own unit of work if it is still
// overdue, returning the stored request either way.
func (s *MatchService) expireByID(ctx context.Context, id string, now time.Time) (models.MatchRequest, error) {
	var out models.MatchRequest
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		out, err = s.expire(ctx, id, now)
		return err
	})
	if err != nil {
		return models.MatchRequest{}, err
	}
	return out, nil
}

// expire must run inside a unit of work.
func (s *MatchService) expire(ctx context.Context, id string, now time.Time) (models.MatchRequest, error) {
	defer s.locks.LockTx(ctx, requestKey(id))()

	r, err := s.reqs.GetByID(ctx, id)
	if err != nil {
		return r, err
	}
	if !r.Overdue(now) {
		return r, nil
	}
	r, err = s.reqs.UpdateStatus(ctx, id, models.MatchPending, models.MatchExpired)
	if errors.Is(err, repo.ErrStaleStatus) {
		return r, nil
	}
	if err != nil {
		return r, err
	}

	expired := NewNotification{
		UserID:      r.StudentID,
		Type:        models.NotifyMatchExpired,
		Title:       "Match request expired",
		Body:        "The tutor did not answer in time.",
		RelatedID:   r.ID,
		RelatedKind: "match_request",
	}
	if s.cfg.RefundOnExpiry {
		err = s.refund(ctx, r, "expired", expired)
	} else {
		_, err = s.notify.Create(ctx, expired)
	}
	if err != nil {
		return r, err
	}
	if err := audit(ctx, s.logs, "match_request", id, "status_change", map[string]any{
		"from":     models.MatchPending,
		"to":       models.MatchExpired,
		"refunded": s.cfg.RefundOnExpiry,
	}); err != nil {
		return r, err
	}
	repo.AfterCommit(ctx, func() {
		metrics.MatchTransitions.WithLabelValues(string(models.MatchExpired)).Inc()
	})
	return r, nil
}

// refund returns the request's fee to the student and records the
// transition notice followed by the refund notice. A ledger failure is
// reported as ErrSettlementFailed so the caller's unit rolls back.
func (s *MatchService) refund(ctx context.Context, r models.MatchRequest, verb string, notice NewNotification) error {
	if r.CoinCost > 0 {
		desc := fmt.Sprintf("+%d coins: refund for %s match request", r.CoinCost, verb)
		if _, err := s.ledger.ApplyDelta(ctx, r.StudentID, r.CoinCost, models.CategoryRefund, desc); err != nil {
			metrics.SettlementFailures.Inc()
			s.log.Error("match refund failed", "request_id", r.ID, "student_id", r.StudentID, "amount", r.CoinCost, "err", err)
			return fmt.Errorf("%w: refund for request %s: %v", ErrSettlementFailed, r.ID, err)
		}
	}
	if _, err := s.notify.Create(ctx, notice); err != nil {
		return err
	}
	_, err := s.notify.Create(ctx, NewNotification{
		UserID:      r.StudentID,
		Type:        models.NotifyCoinsRefunded,
		Title:       "Coins refunded",
		Body:        fmt.Sprintf("%d coins were returned to your balance.", r.CoinCost),
		RelatedID:   r.ID,
		RelatedKind: "match_request",
	})
	return err
}
