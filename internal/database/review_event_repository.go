package database

import (
	"context"
	"fmt"

	"github.com/example/learnengine/pkg/models"
	"github.com/jmoiron/sqlx"
)

const insertReviewEventQuery = `
	INSERT INTO review_events (id, item_id, user_id, grade, retention, reviewed_at)
	VALUES (:id, :item_id, :user_id, :grade, :retention, :reviewed_at)
`

// ReviewEventRepository stores the append-only review log
type ReviewEventRepository struct {
	db *sqlx.DB
}

// NewReviewEventRepository creates a new repository instance
func NewReviewEventRepository(db *sqlx.DB) *ReviewEventRepository {
	return &ReviewEventRepository{db: db}
}

// AppendReviewEvent records a review outcome.
func (r *ReviewEventRepository) AppendReviewEvent(ctx context.Context, event models.ReviewEvent) error {
	event.ReviewedAt = event.ReviewedAt.UTC()
	if _, err := r.db.NamedExecContext(ctx, insertReviewEventQuery, event); err != nil {
		return fmt.Errorf("failed to append review event: %w", err)
	}
	return nil
}

// ListReviewEvents returns the events of one item in review order.
func (r *ReviewEventRepository) ListReviewEvents(ctx context.Context, itemID string) ([]models.ReviewEvent, error) {
	query := r.db.Rebind(`
		SELECT id, item_id, user_id, grade, retention, reviewed_at
		FROM review_events
		WHERE item_id = ?
		ORDER BY reviewed_at, id
	`)
	var events []models.ReviewEvent
	if err := r.db.SelectContext(ctx, &events, query, itemID); err != nil {
		return nil, fmt.Errorf("failed to list review events: %w", err)
	}
	for i := range events {
		events[i].ReviewedAt = events[i].ReviewedAt.UTC()
	}
	return events, nil
}
