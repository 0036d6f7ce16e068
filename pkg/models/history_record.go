package models

import "time"

// HistoryRecord is one entry of a learner's learning history.
// Empty ModuleID, TopicID and ContentType mean the value is absent.
type HistoryRecord struct {
	ID              int64     `json:"id,omitempty" db:"id"`
	UserID          string    `json:"user_id" db:"user_id"`
	ModuleID        string    `json:"module_id,omitempty" db:"module_id"`
	TopicID         string    `json:"topic_id,omitempty" db:"topic_id"`
	ContentType     string    `json:"content_type,omitempty" db:"content_type"`
	ProgressPercent float64   `json:"progress_percent" db:"progress_percent"`
	Completed       bool      `json:"completed" db:"completed"`
	OccurredAt      time.Time `json:"occurred_at" db:"occurred_at"`
}
