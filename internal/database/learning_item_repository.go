package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/learnengine/internal/errkind"
	"github.com/example/learnengine/pkg/models"
	"github.com/jmoiron/sqlx"
)

const learningItemColumns = `
	id, user_id, module_id, topic_id, content_type, easiness_factor,
	interval_days, repetition_count, last_reviewed_at, next_review_at,
	mastery_level, created_at, updated_at`

// LearningItemRepository handles database operations for learning items
type LearningItemRepository struct {
	db *sqlx.DB
}

// NewLearningItemRepository creates a new repository instance
func NewLearningItemRepository(db *sqlx.DB) *LearningItemRepository {
	return &LearningItemRepository{db: db}
}

// FetchLearningItem returns the item with the given ID.
func (r *LearningItemRepository) FetchLearningItem(ctx context.Context, itemID string) (models.LearningItem, error) {
	query := r.db.Rebind(`SELECT ` + learningItemColumns + ` FROM learning_items WHERE id = ?`)

	var item models.LearningItem
	err := r.db.GetContext(ctx, &item, query, itemID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.LearningItem{}, errkind.New(errkind.NotFound, "learning item %q", itemID)
	}
	if err != nil {
		return models.LearningItem{}, fmt.Errorf("failed to get learning item: %w", err)
	}
	return toUTC(item), nil
}

const upsertLearningItemQuery = `
	INSERT INTO learning_items (` + learningItemColumns + `
	) VALUES (
		:id, :user_id, :module_id, :topic_id, :content_type, :easiness_factor,
		:interval_days, :repetition_count, :last_reviewed_at, :next_review_at,
		:mastery_level, :created_at, :updated_at
	)
	ON CONFLICT (id) DO UPDATE SET
		easiness_factor = excluded.easiness_factor,
		interval_days = excluded.interval_days,
		repetition_count = excluded.repetition_count,
		last_reviewed_at = excluded.last_reviewed_at,
		next_review_at = excluded.next_review_at,
		mastery_level = excluded.mastery_level,
		updated_at = excluded.updated_at
`

// PersistLearningItem inserts the item or overwrites its scheduling state.
func (r *LearningItemRepository) PersistLearningItem(ctx context.Context, item models.LearningItem) error {
	if _, err := sqlx.NamedExecContext(ctx, r.db, upsertLearningItemQuery, toUTC(item)); err != nil {
		return fmt.Errorf("failed to persist learning item: %w", err)
	}
	return nil
}

// PersistReview saves the rescheduled item and its review event in a single transaction.
func (r *LearningItemRepository) PersistReview(ctx context.Context, item models.LearningItem, event models.ReviewEvent) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := sqlx.NamedExecContext(ctx, tx, upsertLearningItemQuery, toUTC(item)); err != nil {
		return fmt.Errorf("failed to persist learning item: %w", err)
	}
	event.ReviewedAt = event.ReviewedAt.UTC()
	if _, err := sqlx.NamedExecContext(ctx, tx, insertReviewEventQuery, event); err != nil {
		return fmt.Errorf("failed to append review event: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit review: %w", err)
	}
	return nil
}

// ListItemsByUser returns every item of userID, earliest next review first.
func (r *LearningItemRepository) ListItemsByUser(ctx context.Context, userID string) ([]models.LearningItem, error) {
	query := r.db.Rebind(`
		SELECT ` + learningItemColumns + `
		FROM learning_items
		WHERE user_id = ?
		ORDER BY next_review_at, id
	`)

	var items []models.LearningItem
	if err := r.db.SelectContext(ctx, &items, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list learning items: %w", err)
	}
	for i := range items {
		items[i] = toUTC(items[i])
	}
	return items, nil
}

// ListUsers returns the IDs of all users owning at least one item.
func (r *LearningItemRepository) ListUsers(ctx context.Context) ([]string, error) {
	var users []string
	if err := r.db.SelectContext(ctx, &users, `SELECT DISTINCT user_id FROM learning_items ORDER BY user_id`); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func toUTC(item models.LearningItem) models.LearningItem {
	item = item.Clone()
	item.NextReviewAt = item.NextReviewAt.UTC()
	item.CreatedAt = item.CreatedAt.UTC()
	item.UpdatedAt = item.UpdatedAt.UTC()
	if item.LastReviewedAt != nil {
		t := item.LastReviewedAt.UTC()
		item.LastReviewedAt = &t
	}
	return item
}
