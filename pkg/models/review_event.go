package models

import "time"

// ReviewEvent records the outcome of one review attempt. Events are append-only.
type ReviewEvent struct {
	ID         string    `json:"id" db:"id"`
	ItemID     string    `json:"item_id" db:"item_id"`
	UserID     string    `json:"user_id" db:"user_id"`
	Grade      int       `json:"grade" db:"grade"`           // 0-5
	Retention  float64   `json:"retention" db:"retention"`   // estimate before the grade was applied
	ReviewedAt time.Time `json:"reviewed_at" db:"reviewed_at"`
}
