package models

import "time"

type MatchStatus string

const (
	MatchPending   MatchStatus = "pending"
	MatchApproved  MatchStatus = "approved"
	MatchRejected  MatchStatus = "rejected"
	MatchCancelled MatchStatus = "cancelled"
	MatchExpired   MatchStatus = "expired"
)

// Terminal reports whether no further transition may leave the status.
func (s MatchStatus) Terminal() bool { return s != MatchPending }

type MatchRequest struct {
	ID           string      `json:"id"`
	StudentID    string      `json:"student_id"`
	TutorID      string      `json:"tutor_id"`
	Message      string      `json:"message"`
	ScheduleNote *string     `json:"schedule_note,omitempty"`
	CoinCost     int64       `json:"coin_cost"`
	Status       MatchStatus `json:"status"`
	ChatRoomID   *string     `json:"chat_room_id,omitempty"`
	LessonID     *string     `json:"lesson_id,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
	ExpiresAt    time.Time   `json:"expires_at"`
}

// Overdue is true for a pending request whose expiry has passed at now.
func (r MatchRequest) Overdue(now time.Time) bool {
	return r.Status == MatchPending && !now.Before(r.ExpiresAt)
}

type ChatRoom struct {
	ID             string    `json:"id"`
	MatchRequestID string    `json:"match_request_id"`
	StudentID      string    `json:"student_id"`
	TutorID        string    `json:"tutor_id"`
	CreatedAt      time.Time `json:"created_at"`
}
