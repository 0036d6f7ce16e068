package database

import (
	"context"
	"fmt"

	"github.com/example/learnengine/pkg/models"
	"github.com/jmoiron/sqlx"
)

// HistoryRepository handles the learning history table
type HistoryRepository struct {
	db *sqlx.DB
}

// NewHistoryRepository creates a new repository instance
func NewHistoryRepository(db *sqlx.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// FetchLearningHistory returns the history of userID in chronological order.
// A user without history gets an empty slice.
func (r *HistoryRepository) FetchLearningHistory(ctx context.Context, userID string) ([]models.HistoryRecord, error) {
	query := r.db.Rebind(`
		SELECT id, user_id, module_id, topic_id, content_type, progress_percent, completed, occurred_at
		FROM learning_history
		WHERE user_id = ?
		ORDER BY occurred_at, id
	`)
	records := []models.HistoryRecord{}
	if err := r.db.SelectContext(ctx, &records, query, userID); err != nil {
		return nil, fmt.Errorf("failed to get learning history: %w", err)
	}
	for i := range records {
		records[i].OccurredAt = records[i].OccurredAt.UTC()
	}
	return records, nil
}

// AppendHistory inserts the records in a single transaction.
func (r *HistoryRepository) AppendHistory(ctx context.Context, records []models.HistoryRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO learning_history (
			user_id, module_id, topic_id, content_type, progress_percent, completed, occurred_at
		) VALUES (
			:user_id, :module_id, :topic_id, :content_type, :progress_percent, :completed, :occurred_at
		)
	`
	for _, rec := range records {
		rec.OccurredAt = rec.OccurredAt.UTC()
		if _, err := tx.NamedExecContext(ctx, query, rec); err != nil {
			return fmt.Errorf("failed to append history for %s: %w", rec.UserID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit history: %w", err)
	}
	return nil
}
