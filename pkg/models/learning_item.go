package models

import (
	"time"

	"github.com/google/uuid"
)

// DefaultEasinessFactor is the easiness factor assigned to a freshly created item.
const DefaultEasinessFactor = 2.5

// LearningItem tracks a learner's scheduling state for one flashcard or equivalent unit
type LearningItem struct {
	ID              string     `json:"id" db:"id"`
	UserID          string     `json:"user_id" db:"user_id"`
	ModuleID        string     `json:"module_id" db:"module_id"`
	TopicID         string     `json:"topic_id" db:"topic_id"`
	ContentType     string     `json:"content_type" db:"content_type"`
	EasinessFactor  *float64   `json:"easiness_factor" db:"easiness_factor"` // nil when the store never recorded one
	IntervalDays    int        `json:"interval_days" db:"interval_days"`
	RepetitionCount int        `json:"repetition_count" db:"repetition_count"`
	LastReviewedAt  *time.Time `json:"last_reviewed_at" db:"last_reviewed_at"` // nil = never reviewed
	NextReviewAt    time.Time  `json:"next_review_at" db:"next_review_at"`
	MasteryLevel    float64    `json:"mastery_level" db:"mastery_level"` // derived, 0-1
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// NewLearningItem creates an item with the defaults used on first save.
func NewLearningItem(userID string, now time.Time) LearningItem {
	ef := DefaultEasinessFactor
	return LearningItem{
		ID:             uuid.NewString(),
		UserID:         userID,
		EasinessFactor: &ef,
		NextReviewAt:   now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// EasinessOrDefault returns the item's easiness factor, or the default when absent.
func (i LearningItem) EasinessOrDefault() float64 {
	if i.EasinessFactor == nil {
		return DefaultEasinessFactor
	}
	return *i.EasinessFactor
}

// Clone returns a deep copy of the item. Pointer fields are copied by value.
func (i LearningItem) Clone() LearningItem {
	out := i
	if i.EasinessFactor != nil {
		v := *i.EasinessFactor
		out.EasinessFactor = &v
	}
	if i.LastReviewedAt != nil {
		v := *i.LastReviewedAt
		out.LastReviewedAt = &v
	}
	return out
}
