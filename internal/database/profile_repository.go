package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/learnengine/internal/errkind"
	"github.com/example/learnengine/pkg/models"
	"github.com/jmoiron/sqlx"
)

// ProfileRepository handles database operations for cognitive profiles.
// Map and list fields are stored as JSON text.
type ProfileRepository struct {
	db *sqlx.DB
}

// NewProfileRepository creates a new repository instance
func NewProfileRepository(db *sqlx.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

type profileRow struct {
	UserID                  string    `db:"user_id"`
	LearningSpeed           string    `db:"learning_speed"`
	PreferredContentFormats string    `db:"preferred_content_formats"`
	KnowledgeGraph          string    `db:"knowledge_graph"`
	AttentionSpan           float64   `db:"attention_span"`
	RetentionRates          string    `db:"retention_rates"`
	LastUpdated             time.Time `db:"last_updated"`
}

// FetchProfile returns the stored profile of userID.
func (r *ProfileRepository) FetchProfile(ctx context.Context, userID string) (*models.CognitiveProfile, error) {
	query := r.db.Rebind(`
		SELECT user_id, learning_speed, preferred_content_formats, knowledge_graph,
		       attention_span, retention_rates, last_updated
		FROM cognitive_profiles
		WHERE user_id = ?
	`)
	var row profileRow
	err := r.db.GetContext(ctx, &row, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errkind.New(errkind.NotFound, "profile %q", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return row.toModel()
}

// PersistProfile inserts or replaces the profile.
func (r *ProfileRepository) PersistProfile(ctx context.Context, p *models.CognitiveProfile) error {
	row, err := newProfileRow(p)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO cognitive_profiles (
			user_id, learning_speed, preferred_content_formats, knowledge_graph,
			attention_span, retention_rates, last_updated
		) VALUES (
			:user_id, :learning_speed, :preferred_content_formats, :knowledge_graph,
			:attention_span, :retention_rates, :last_updated
		)
		ON CONFLICT (user_id) DO UPDATE SET
			learning_speed = excluded.learning_speed,
			preferred_content_formats = excluded.preferred_content_formats,
			knowledge_graph = excluded.knowledge_graph,
			attention_span = excluded.attention_span,
			retention_rates = excluded.retention_rates,
			last_updated = excluded.last_updated
	`
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("failed to persist profile: %w", err)
	}
	return nil
}

func newProfileRow(p *models.CognitiveProfile) (profileRow, error) {
	row := profileRow{
		UserID:        p.UserID,
		AttentionSpan: p.AttentionSpan,
		LastUpdated:   p.LastUpdated.UTC(),
	}
	fields := []struct {
		dst *string
		src any
	}{
		{&row.LearningSpeed, nonNilFloats(p.LearningSpeed)},
		{&row.PreferredContentFormats, nonNilStrings(p.PreferredContentFormats)},
		{&row.KnowledgeGraph, nonNilGraph(p.KnowledgeGraph)},
		{&row.RetentionRates, nonNilFloats(p.RetentionRates)},
	}
	for _, f := range fields {
		data, err := json.Marshal(f.src)
		if err != nil {
			return row, fmt.Errorf("failed to marshal profile: %w", err)
		}
		*f.dst = string(data)
	}
	return row, nil
}

func (row profileRow) toModel() (*models.CognitiveProfile, error) {
	p := &models.CognitiveProfile{
		UserID:        row.UserID,
		AttentionSpan: row.AttentionSpan,
		LastUpdated:   row.LastUpdated.UTC(),
	}
	fields := []struct {
		src string
		dst any
	}{
		{row.LearningSpeed, &p.LearningSpeed},
		{row.PreferredContentFormats, &p.PreferredContentFormats},
		{row.KnowledgeGraph, &p.KnowledgeGraph},
		{row.RetentionRates, &p.RetentionRates},
	}
	for _, f := range fields {
		if f.src == "" {
			continue
		}
		if err := json.Unmarshal([]byte(f.src), f.dst); err != nil {
			return nil, fmt.Errorf("failed to parse profile: %w", err)
		}
	}
	p.Normalize()
	return p, nil
}

func nonNilFloats(m map[string]float64) map[string]float64 {
	if m == nil {
		return map[string]float64{}
	}
	return m
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilGraph(g map[string]models.TopicSet) map[string]models.TopicSet {
	if g == nil {
		return map[string]models.TopicSet{}
	}
	return g
}
