package database

import "github.com/jmoiron/sqlx"

// Store bundles the repositories backed by one database handle.
type Store struct {
	*ProfileRepository
	*LearningItemRepository
	*ReviewEventRepository
	*HistoryRepository

	db *sqlx.DB
}

// NewStore creates repositories sharing db.
func NewStore(db *sqlx.DB) *Store {
	return &Store{
		ProfileRepository:      NewProfileRepository(db),
		LearningItemRepository: NewLearningItemRepository(db),
		ReviewEventRepository:  NewReviewEventRepository(db),
		HistoryRepository:      NewHistoryRepository(db),
		db:                     db,
	}
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
