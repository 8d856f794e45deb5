package models

import "time"

type LessonStatus string

const (
	LessonScheduled LessonStatus = "scheduled"
	LessonApproved  LessonStatus = "approved"
	LessonCompleted LessonStatus = "completed"
	LessonCancelled LessonStatus = "cancelled"
)

// Completable reports whether settlement may finalize a lesson in this status.
func (s LessonStatus) Completable() bool {
	return s == LessonScheduled || s == LessonApproved
}

type Lesson struct {
	ID             string       `json:"id"`
	MatchRequestID string       `json:"match_request_id"`
	TutorID        string       `json:"tutor_id"`
	StudentID      string       `json:"student_id"`
	Status         LessonStatus `json:"status"`
	CoinCost       int64        `json:"coin_cost"`
	ScheduledAt    time.Time    `json:"scheduled_at"`
	CompletedAt    *time.Time   `json:"completed_at,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
}
