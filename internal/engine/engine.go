// Package engine composes the adaptive learning components behind one API
// for the HTTP surface, the CLI and the reminder scheduler.
package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/example/learnengine/internal/errkind"
	"github.com/example/learnengine/internal/keylock"
	"github.com/example/learnengine/internal/knowledge"
	"github.com/example/learnengine/internal/profile"
	"github.com/example/learnengine/internal/ranking"
	sr "github.com/example/learnengine/internal/spaced_repetition"
	"github.com/example/learnengine/pkg/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ItemStore persists learning items and their review log.
// PersistReview writes the rescheduled item and its event atomically: either both or neither.
type ItemStore interface {
	FetchLearningItem(ctx context.Context, itemID string) (models.LearningItem, error)
	PersistLearningItem(ctx context.Context, item models.LearningItem) error
	PersistReview(ctx context.Context, item models.LearningItem, event models.ReviewEvent) error
	ListItemsByUser(ctx context.Context, userID string) ([]models.LearningItem, error)
	ListUsers(ctx context.Context) ([]string, error)
}

// HistoryStore reads and appends learning history.
type HistoryStore interface {
	FetchLearningHistory(ctx context.Context, userID string) ([]models.HistoryRecord, error)
	AppendHistory(ctx context.Context, records []models.HistoryRecord) error
}

// Deps are the collaborators of an Engine. Profiles, Items and History are required.
type Deps struct {
	Profiles  *profile.Repository
	Items     ItemStore
	History   HistoryStore
	Scheduler *sr.SM2
	Deriver   *knowledge.Deriver
	Clock     func() time.Time
	Logger    *zap.Logger
	// DueThreshold is used by DueItems. Zero means sr.DefaultDueThreshold.
	DueThreshold float64
	// RebuildConcurrency bounds RebuildProfiles. Zero means 4.
	RebuildConcurrency int
}

// Engine is the presentation-layer API of the learning engine.
type Engine struct {
	profiles     *profile.Repository
	items        ItemStore
	history      HistoryStore
	scheduler    *sr.SM2
	deriver      *knowledge.Deriver
	now          func() time.Time
	logger       *zap.Logger
	dueThreshold float64
	concurrency  int
	itemLocks    *keylock.Map
}

// New validates deps and fills defaults for the optional ones.
func New(deps Deps) (*Engine, error) {
	if deps.Profiles == nil || deps.Items == nil || deps.History == nil {
		return nil, errors.New("engine: profiles, items and history are required")
	}
	e := &Engine{
		profiles:     deps.Profiles,
		items:        deps.Items,
		history:      deps.History,
		scheduler:    deps.Scheduler,
		deriver:      deps.Deriver,
		now:          deps.Clock,
		logger:       deps.Logger,
		dueThreshold: deps.DueThreshold,
		concurrency:  deps.RebuildConcurrency,
		itemLocks:    keylock.New(),
	}
	if e.scheduler == nil {
		e.scheduler = sr.NewSM2()
	}
	if e.deriver == nil {
		e.deriver = knowledge.NewDeriver()
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if e.dueThreshold <= 0 {
		e.dueThreshold = sr.DefaultDueThreshold
	}
	if e.concurrency <= 0 {
		e.concurrency = 4
	}
	return e, nil
}

// Now returns the engine clock.
func (e *Engine) Now() time.Time {
	return e.now()
}

// DueThreshold returns the retention threshold used by DueItems.
func (e *Engine) DueThreshold() float64 {
	return e.dueThreshold
}

// Retention estimates the recall probability of item at now.
func (e *Engine) Retention(item *models.LearningItem, now time.Time) float64 {
	return e.scheduler.Model.Retention(item, now)
}

// IsDue reports whether item's retention at now is below threshold.
func (e *Engine) IsDue(item *models.LearningItem, now time.Time, threshold float64) bool {
	return e.scheduler.IsDue(item, now, threshold)
}

// RecordReview grades an item and stores its new schedule together with the review event.
// Reviews of the same item are applied one at a time. On a storage failure nothing is
// written, so the review can be retried.
func (e *Engine) RecordReview(ctx context.Context, itemID string, grade int) (models.LearningItem, models.ReviewEvent, error) {
	quality := sr.QualityResponse(grade)
	if !quality.Valid() {
		return models.LearningItem{}, models.ReviewEvent{}, errkind.New(errkind.InvalidInput, "grade %d outside 0-5", grade)
	}
	if itemID == "" {
		return models.LearningItem{}, models.ReviewEvent{}, errkind.New(errkind.InvalidInput, "item id is required")
	}

	unlock := e.itemLocks.Lock(itemID)
	defer unlock()

	item, err := e.items.FetchLearningItem(ctx, itemID)
	if err != nil {
		return models.LearningItem{}, models.ReviewEvent{}, errkind.Wrap(errkind.TransientStorage, err, "fetch learning item")
	}

	next := item.Clone()
	event, err := e.scheduler.Process(&next, quality, e.now())
	if err != nil {
		return models.LearningItem{}, models.ReviewEvent{}, err
	}
	if err := e.items.PersistReview(ctx, next, event); err != nil {
		return models.LearningItem{}, models.ReviewEvent{}, errkind.Wrap(errkind.TransientStorage, err, "persist review")
	}

	e.logger.Debug("review recorded",
		zap.String("item_id", itemID),
		zap.Int("grade", grade),
		zap.Int("interval_days", next.IntervalDays),
		zap.Float64("retention", event.Retention))
	return next, event, nil
}

// GetItem returns the learning item with the given ID.
func (e *Engine) GetItem(ctx context.Context, itemID string) (models.LearningItem, error) {
	if itemID == "" {
		return models.LearningItem{}, errkind.New(errkind.InvalidInput, "item id is required")
	}
	item, err := e.items.FetchLearningItem(ctx, itemID)
	if err != nil {
		return models.LearningItem{}, errkind.Wrap(errkind.TransientStorage, err, "fetch learning item")
	}
	return item, nil
}

// CreateItem stores a new learning item for item.UserID with fresh scheduling state.
// Only the ownership and content fields of item are used.
func (e *Engine) CreateItem(ctx context.Context, item models.LearningItem) (models.LearningItem, error) {
	if item.UserID == "" {
		return models.LearningItem{}, errkind.New(errkind.InvalidInput, "user id is required")
	}
	created := models.NewLearningItem(item.UserID, e.now())
	created.ModuleID = item.ModuleID
	created.TopicID = item.TopicID
	created.ContentType = item.ContentType
	if err := e.items.PersistLearningItem(ctx, created); err != nil {
		return models.LearningItem{}, errkind.Wrap(errkind.TransientStorage, err, "persist learning item")
	}
	return created, nil
}

// DueItems returns up to limit of userID's items that are due now, least-remembered first.
func (e *Engine) DueItems(ctx context.Context, userID string, limit int) ([]models.LearningItem, error) {
	if userID == "" {
		return nil, errkind.New(errkind.InvalidInput, "user id is required")
	}
	items, err := e.items.ListItemsByUser(ctx, userID)
	if err != nil {
		return nil, errkind.Wrap(errkind.TransientStorage, err, "list learning items")
	}
	return e.scheduler.DueItems(items, e.now(), e.dueThreshold, limit), nil
}

// Statistics summarizes userID's items per module, most repeated modules first.
// Items without a module are grouped under the empty module ID.
func (e *Engine) Statistics(ctx context.Context, userID string) ([]models.ModuleStatistics, error) {
	if userID == "" {
		return nil, errkind.New(errkind.InvalidInput, "user id is required")
	}
	items, err := e.items.ListItemsByUser(ctx, userID)
	if err != nil {
		return nil, errkind.Wrap(errkind.TransientStorage, err, "list learning items")
	}

	now := e.now()
	byModule := make(map[string]*models.ModuleStatistics)
	var order []string
	for i := range items {
		it := &items[i]
		st, ok := byModule[it.ModuleID]
		if !ok {
			st = &models.ModuleStatistics{ModuleID: it.ModuleID}
			byModule[it.ModuleID] = st
			order = append(order, it.ModuleID)
		}
		r := e.scheduler.Model.Retention(it, now)
		st.Items++
		st.TotalRepetitions += it.RepetitionCount
		st.AverageRetention += r
		if it.LastReviewedAt != nil {
			st.Reviewed++
		}
		if r < e.dueThreshold {
			st.Due++
		}
		if e.scheduler.IsMastered(it) {
			st.Mastered++
		}
	}

	out := make([]models.ModuleStatistics, 0, len(order))
	for _, module := range order {
		st := byModule[module]
		st.AverageRetention /= float64(st.Items)
		out = append(out, *st)
	}
	slices.SortStableFunc(out, func(a, b models.ModuleStatistics) int {
		if a.TotalRepetitions != b.TotalRepetitions {
			return b.TotalRepetitions - a.TotalRepetitions
		}
		return strings.Compare(a.ModuleID, b.ModuleID)
	})
	return out, nil
}

// ListUsers returns every user owning learning items.
func (e *Engine) ListUsers(ctx context.Context) ([]string, error) {
	users, err := e.items.ListUsers(ctx)
	if err != nil {
		return nil, errkind.Wrap(errkind.TransientStorage, err, "list users")
	}
	return users, nil
}

// GetProfile returns the cognitive profile of userID.
func (e *Engine) GetProfile(ctx context.Context, userID string) (*models.CognitiveProfile, error) {
	return e.profiles.GetProfile(ctx, userID)
}

// SaveProfile stores profile as the full profile of userID.
func (e *Engine) SaveProfile(ctx context.Context, userID string, p *models.CognitiveProfile) (*models.CognitiveProfile, error) {
	return e.profiles.SaveProfile(ctx, userID, p)
}

// UpdateProfile applies a partial update to the profile of userID.
func (e *Engine) UpdateProfile(ctx context.Context, userID string, update models.ProfileUpdate, opts models.ProfileUpdateOptions) (*models.CognitiveProfile, error) {
	return e.profiles.UpdateProfile(ctx, userID, update, opts)
}

// ClearCache evicts userID from the profile cache, or everything when userID is empty.
func (e *Engine) ClearCache(userID string) {
	if userID == "" {
		e.profiles.ClearAll()
		return
	}
	e.profiles.ClearCache(userID)
}

// Rank orders learning path candidates by recommendation score.
func (e *Engine) Rank(candidates []models.LearningPathItem) []models.LearningPathItem {
	return ranking.Rank(candidates)
}

// TopN ranks candidates and keeps the first n.
func (e *Engine) TopN(candidates []models.LearningPathItem, n int) []models.LearningPathItem {
	return ranking.TopN(candidates, n)
}

// RecordHistory appends learning history records.
func (e *Engine) RecordHistory(ctx context.Context, records []models.HistoryRecord) error {
	for i, r := range records {
		if r.UserID == "" {
			return errkind.New(errkind.InvalidInput, "record %d: user id is required", i)
		}
	}
	if err := e.history.AppendHistory(ctx, records); err != nil {
		return errkind.Wrap(errkind.TransientStorage, err, "append history")
	}
	return nil
}

// RebuildProfile derives profile signals from userID's history and folds them into
// the stored profile: topics are merged, preferred formats only fill an empty list.
// A user without a profile gets a freshly derived one.
func (e *Engine) RebuildProfile(ctx context.Context, userID string) (*models.CognitiveProfile, error) {
	if userID == "" {
		return nil, errkind.New(errkind.InvalidInput, "user id is required")
	}
	records, err := e.history.FetchLearningHistory(ctx, userID)
	if err != nil {
		return nil, errkind.Wrap(errkind.TransientStorage, err, "fetch learning history")
	}

	opts := models.ProfileUpdateOptions{MergeKnowledgeGraph: true, UpdateTimestamp: true}
	p, err := e.profiles.UpsertProfile(ctx, userID, e.deriver.Derive(records).Update(), opts,
		func() *models.CognitiveProfile { return e.deriver.Profile(userID, records, e.now()) })
	if err != nil {
		return nil, err
	}

	e.logger.Info("profile rebuilt", zap.String("user_id", userID), zap.Int("records", len(records)))
	return p, nil
}

// RebuildProfiles rebuilds the profiles of userIDs concurrently, or of every user
// owning items when userIDs is empty. It keeps going after a failure and returns
// the number of rebuilt profiles with the joined errors.
func (e *Engine) RebuildProfiles(ctx context.Context, userIDs []string) (int, error) {
	if len(userIDs) == 0 {
		users, err := e.ListUsers(ctx)
		if err != nil {
			return 0, err
		}
		userIDs = users
	}

	var (
		mu      sync.Mutex
		errs    []error
		rebuilt int
	)
	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for _, userID := range userIDs {
		g.Go(func() error {
			_, err := e.RebuildProfile(ctx, userID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("rebuild %s: %w", userID, err))
				return nil
			}
			rebuilt++
			return nil
		})
	}
	_ = g.Wait()
	return rebuilt, errors.Join(errs...)
}
