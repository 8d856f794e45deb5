package models

import "time"

type NotificationType string

const (
	NotifyMatchReceived  NotificationType = "match_request_received"
	NotifyMatchApproved  NotificationType = "match_approved"
	NotifyMatchRejected  NotificationType = "match_rejected"
	NotifyMatchCancelled NotificationType = "match_cancelled"
	NotifyMatchExpired   NotificationType = "match_expired"
	NotifyCoinsRefunded  NotificationType = "coins_refunded"
	NotifyLessonBooked   NotificationType = "lesson_booked"
	NotifyLessonDone     NotificationType = "lesson_completed"
)

type Notification struct {
	ID          string           `json:"id"`
	UserID      string           `json:"user_id"`
	Type        NotificationType `json:"type"`
	Title       string           `json:"title"`
	Body        string           `json:"body"`
	RelatedID   *string          `json:"related_id,omitempty"`
	RelatedKind *string          `json:"related_kind,omitempty"`
	Read        bool             `json:"read"`
	CreatedAt   time.Time        `json:"created_at"`
}
