package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/example/learnengine/internal/errkind"
	"github.com/example/learnengine/pkg/models"
)

func profileKey(userID string) string { return "profile/" + userID }

func itemKey(itemID string) string { return "item/" + itemID }

func userItemPrefix(userID string) string { return "useritem/" + userID + "/" }

func userKey(userID string) string { return "user/" + userID }

func reviewPrefix(itemID string) string { return "review/" + itemID + "/" }

func historyPrefix(userID string) string { return "history/" + userID + "/" }

func sortableInt(n int64) string { return fmt.Sprintf("%020d", n) }

// FetchProfile returns the stored profile of userID.
func (s *Store) FetchProfile(ctx context.Context, userID string) (*models.CognitiveProfile, error) {
	var p models.CognitiveProfile
	err := s.view(ctx, func(txn *badger.Txn) error {
		return getJSON(txn, profileKey(userID), &p)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, errkind.New(errkind.NotFound, "profile %q", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	p.Normalize()
	return &p, nil
}

// PersistProfile stores p, replacing any previous profile of the same user.
func (s *Store) PersistProfile(ctx context.Context, p *models.CognitiveProfile) error {
	err := s.update(ctx, func(txn *badger.Txn) error {
		return setJSON(txn, profileKey(p.UserID), p)
	})
	if err != nil {
		return fmt.Errorf("persist profile: %w", err)
	}
	return nil
}

// FetchLearningItem returns the item with the given ID.
func (s *Store) FetchLearningItem(ctx context.Context, itemID string) (models.LearningItem, error) {
	var item models.LearningItem
	err := s.view(ctx, func(txn *badger.Txn) error {
		return getJSON(txn, itemKey(itemID), &item)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return models.LearningItem{}, errkind.New(errkind.NotFound, "learning item %q", itemID)
	}
	if err != nil {
		return models.LearningItem{}, fmt.Errorf("get learning item: %w", err)
	}
	return item, nil
}

// PersistLearningItem stores item and indexes it under its user.
func (s *Store) PersistLearningItem(ctx context.Context, item models.LearningItem) error {
	err := s.update(ctx, func(txn *badger.Txn) error {
		return setItem(txn, item)
	})
	if err != nil {
		return fmt.Errorf("persist learning item: %w", err)
	}
	return nil
}

// PersistReview stores the rescheduled item and its review event in one transaction.
// Neither is written when the item does not exist.
func (s *Store) PersistReview(ctx context.Context, item models.LearningItem, event models.ReviewEvent) error {
	err := s.update(ctx, func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(itemKey(item.ID))); err != nil {
			return err
		}
		if err := setItem(txn, item); err != nil {
			return err
		}
		return setReviewEvent(txn, event)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return errkind.New(errkind.NotFound, "learning item %q", item.ID)
	}
	if err != nil {
		return fmt.Errorf("persist review: %w", err)
	}
	return nil
}

func setItem(txn *badger.Txn, item models.LearningItem) error {
	if err := setJSON(txn, itemKey(item.ID), item); err != nil {
		return err
	}
	if err := txn.Set([]byte(userItemPrefix(item.UserID)+item.ID), nil); err != nil {
		return err
	}
	return txn.Set([]byte(userKey(item.UserID)), nil)
}

func setReviewEvent(txn *badger.Txn, event models.ReviewEvent) error {
	key := reviewPrefix(event.ItemID) + sortableInt(event.ReviewedAt.UnixNano()) + "/" + event.ID
	return setJSON(txn, key, event)
}

// ListItemsByUser returns every item of userID, earliest next review first.
func (s *Store) ListItemsByUser(ctx context.Context, userID string) ([]models.LearningItem, error) {
	var items []models.LearningItem
	err := s.view(ctx, func(txn *badger.Txn) error {
		prefix := userItemPrefix(userID)
		return scanPrefix(txn, prefix, func(key, _ []byte) error {
			var item models.LearningItem
			if err := getJSON(txn, itemKey(strings.TrimPrefix(string(key), prefix)), &item); err != nil {
				return err
			}
			// a user ID containing '/' shares its prefix with longer IDs
			if item.UserID == userID {
				items = append(items, item)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list learning items: %w", err)
	}
	slices.SortStableFunc(items, func(a, b models.LearningItem) int {
		if c := a.NextReviewAt.Compare(b.NextReviewAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return items, nil
}

// ListUsers returns the IDs of all users owning at least one item.
func (s *Store) ListUsers(ctx context.Context) ([]string, error) {
	var users []string
	err := s.view(ctx, func(txn *badger.Txn) error {
		return scanPrefix(txn, "user/", func(key, _ []byte) error {
			users = append(users, strings.TrimPrefix(string(key), "user/"))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// AppendReviewEvent records a review outcome for an existing item.
func (s *Store) AppendReviewEvent(ctx context.Context, event models.ReviewEvent) error {
	err := s.update(ctx, func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(itemKey(event.ItemID))); err != nil {
			return err
		}
		return setReviewEvent(txn, event)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return errkind.New(errkind.NotFound, "learning item %q", event.ItemID)
	}
	if err != nil {
		return fmt.Errorf("append review event: %w", err)
	}
	return nil
}

// ListReviewEvents returns the events of one item in review order.
func (s *Store) ListReviewEvents(ctx context.Context, itemID string) ([]models.ReviewEvent, error) {
	var events []models.ReviewEvent
	err := s.view(ctx, func(txn *badger.Txn) error {
		return scanPrefix(txn, reviewPrefix(itemID), func(_, val []byte) error {
			var ev models.ReviewEvent
			if err := json.Unmarshal(val, &ev); err != nil {
				return err
			}
			if ev.ItemID == itemID {
				events = append(events, ev)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list review events: %w", err)
	}
	return events, nil
}

// FetchLearningHistory returns the history of userID ordered by time, then insertion.
func (s *Store) FetchLearningHistory(ctx context.Context, userID string) ([]models.HistoryRecord, error) {
	records := []models.HistoryRecord{}
	err := s.view(ctx, func(txn *badger.Txn) error {
		return scanPrefix(txn, historyPrefix(userID), func(_, val []byte) error {
			var rec models.HistoryRecord
			if err := json.Unmarshal(val, &rec); err != nil {
				return err
			}
			if rec.UserID == userID {
				records = append(records, rec)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("get learning history: %w", err)
	}
	slices.SortStableFunc(records, func(a, b models.HistoryRecord) int {
		return a.OccurredAt.Compare(b.OccurredAt)
	})
	return records, nil
}

// AppendHistory stores the records in one transaction, assigning sequential IDs.
func (s *Store) AppendHistory(ctx context.Context, records []models.HistoryRecord) error {
	if len(records) == 0 {
		return nil
	}
	err := s.update(ctx, func(txn *badger.Txn) error {
		for _, rec := range records {
			n, err := s.seq.Next()
			if err != nil {
				return err
			}
			rec.ID = int64(n) + 1
			if err := setJSON(txn, historyPrefix(rec.UserID)+sortableInt(rec.ID), rec); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}
