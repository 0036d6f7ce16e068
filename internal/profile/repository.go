// Package profile is the single read/write path for cognitive profiles.
//
// Repository fronts a persistent ProfileStore with a ProfileCache keyed by user ID.
// Writes go to the store first and reach the cache only after they succeed, so a
// successful SaveProfile or UpdateProfile is visible to every later GetProfile.
// Updates to the same user are serialized; different users proceed in parallel.
package profile

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/example/learnengine/internal/errkind"
	"github.com/example/learnengine/internal/keylock"
	"github.com/example/learnengine/pkg/models"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ProfileStore is the persistent side of the repository.
// FetchProfile returns an error matching errkind.ErrNotFound when the user has no profile.
type ProfileStore interface {
	FetchProfile(ctx context.Context, userID string) (*models.CognitiveProfile, error)
	PersistProfile(ctx context.Context, profile *models.CognitiveProfile) error
}

// Repository is the cache-fronted profile facade.
type Repository struct {
	store   ProfileStore
	cache   ProfileCache
	flight  singleflight.Group
	locks   *keylock.Map
	logger  *zap.Logger
	metrics *Metrics
	now     func() time.Time

	// genMu orders cache fills from reads against writes; a fetch that started
	// before a write must not overwrite the written value.
	genMu      sync.Mutex
	generation uint64
}

// Option configures a Repository.
type Option func(*Repository)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(r *Repository) { r.logger = l }
}

// WithMetrics sets the Prometheus collectors.
func WithMetrics(m *Metrics) Option {
	return func(r *Repository) { r.metrics = m }
}

// WithClock overrides the clock used for LastUpdated.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// NewRepository creates a Repository over store. A nil cache defaults to a MapCache.
func NewRepository(store ProfileStore, cache ProfileCache, opts ...Option) *Repository {
	if cache == nil {
		cache = NewMapCache()
	}
	r := &Repository{
		store:  store,
		cache:  cache,
		locks:  keylock.New(),
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GetProfile returns the profile of userID, from the cache when possible.
// A missing profile yields errkind.ErrNotFound and is never cached; each lookup of an
// absent profile asks the store again. Concurrent misses for one user share a fetch,
// which is not cancelled when the caller that started it goes away.
func (r *Repository) GetProfile(ctx context.Context, userID string) (*models.CognitiveProfile, error) {
	if userID == "" {
		return nil, errkind.New(errkind.InvalidInput, "user id is required")
	}
	if p, ok := r.cache.Get(userID); ok {
		r.metrics.hit()
		return p.Clone(), nil
	}
	r.metrics.miss()

	gen := r.currentGeneration()
	key := userID + "@" + strconv.FormatUint(gen, 10)
	fetchCtx := context.WithoutCancel(ctx)
	ch := r.flight.DoChan(key, func() (interface{}, error) {
		p, err := r.store.FetchProfile(fetchCtx, userID)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, errkind.New(errkind.NotFound, "profile %q", userID)
		}
		p = p.Clone()
		p.UserID = userID
		p.Normalize()
		r.fillCache(userID, p, gen)
		return p, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if err := res.Err; err != nil {
		if errors.Is(err, errkind.ErrNotFound) {
			r.logger.Debug("profile not found", zap.String("user_id", userID))
			return nil, err
		}
		r.metrics.storeError("fetch")
		r.logger.Warn("fetch profile failed", zap.String("user_id", userID), zap.Error(err))
		return nil, errkind.Wrap(errkind.TransientStorage, err, "fetch profile")
	}

	r.logger.Debug("profile loaded from store", zap.String("user_id", userID))
	return res.Val.(*models.CognitiveProfile).Clone(), nil
}

// SaveProfile persists profile as the full profile of userID and then caches it.
// If the store write fails the cache is left as it was.
func (r *Repository) SaveProfile(ctx context.Context, userID string, profile *models.CognitiveProfile) (*models.CognitiveProfile, error) {
	if userID == "" {
		return nil, errkind.New(errkind.InvalidInput, "user id is required")
	}
	if profile == nil {
		return nil, errkind.New(errkind.InvalidInput, "profile is required")
	}

	unlock := r.locks.Lock(userID)
	defer unlock()
	return r.save(ctx, userID, profile)
}

func (r *Repository) save(ctx context.Context, userID string, profile *models.CognitiveProfile) (*models.CognitiveProfile, error) {
	next := profile.Clone()
	next.UserID = userID
	next.Normalize()
	if next.LastUpdated.IsZero() {
		next.LastUpdated = r.now()
	}
	if err := r.persist(ctx, next); err != nil {
		return nil, err
	}
	r.logger.Debug("profile saved", zap.String("user_id", userID))
	return next.Clone(), nil
}

// UpdateProfile applies update to the current profile of userID under opts and persists
// the result. It fails with errkind.ErrNotFound, leaving the cache untouched, when the
// user has no profile.
func (r *Repository) UpdateProfile(ctx context.Context, userID string, update models.ProfileUpdate, opts models.ProfileUpdateOptions) (*models.CognitiveProfile, error) {
	if userID == "" {
		return nil, errkind.New(errkind.InvalidInput, "user id is required")
	}

	unlock := r.locks.Lock(userID)
	defer unlock()
	return r.update(ctx, userID, update, opts)
}

// UpsertProfile applies update like UpdateProfile, or saves the profile returned by create
// when userID has none yet. Both paths run under the same per-user lock, so a concurrent
// save cannot land between the lookup and the create.
func (r *Repository) UpsertProfile(ctx context.Context, userID string, update models.ProfileUpdate, opts models.ProfileUpdateOptions, create func() *models.CognitiveProfile) (*models.CognitiveProfile, error) {
	if userID == "" {
		return nil, errkind.New(errkind.InvalidInput, "user id is required")
	}
	if create == nil {
		return nil, errkind.New(errkind.InvalidInput, "create is required")
	}

	unlock := r.locks.Lock(userID)
	defer unlock()

	p, err := r.update(ctx, userID, update, opts)
	if !errors.Is(err, errkind.ErrNotFound) {
		return p, err
	}
	initial := create()
	if initial == nil {
		return nil, errkind.New(errkind.InvalidInput, "profile is required")
	}
	return r.save(ctx, userID, initial)
}

// update must be called with the per-user lock held.
func (r *Repository) update(ctx context.Context, userID string, update models.ProfileUpdate, opts models.ProfileUpdateOptions) (*models.CognitiveProfile, error) {
	current, err := r.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	next := Apply(current, update, opts, r.now())
	next.UserID = userID
	if err := r.persist(ctx, next); err != nil {
		return nil, err
	}
	r.logger.Debug("profile updated",
		zap.String("user_id", userID),
		zap.Bool("merge_knowledge_graph", opts.MergeKnowledgeGraph),
		zap.Bool("overwrite_content_preferences", opts.OverwriteContentPreferences))
	return next.Clone(), nil
}

// ClearCache evicts userID from the cache. The store is not touched.
func (r *Repository) ClearCache(userID string) {
	r.genMu.Lock()
	r.generation++
	r.cache.Delete(userID)
	r.genMu.Unlock()
}

// ClearAll evicts every cached profile.
func (r *Repository) ClearAll() {
	r.genMu.Lock()
	r.generation++
	r.cache.Clear()
	r.genMu.Unlock()
}

// persist writes next to the store and, on success, to the cache.
// The caller holds the per-user lock.
func (r *Repository) persist(ctx context.Context, next *models.CognitiveProfile) error {
	if err := r.store.PersistProfile(ctx, next.Clone()); err != nil {
		r.metrics.storeError("persist")
		r.logger.Warn("persist profile failed", zap.String("user_id", next.UserID), zap.Error(err))
		return errkind.Wrap(errkind.TransientStorage, err, "persist profile")
	}

	r.genMu.Lock()
	r.generation++
	r.cache.Set(next.UserID, next.Clone())
	r.genMu.Unlock()
	return nil
}

func (r *Repository) currentGeneration() uint64 {
	r.genMu.Lock()
	defer r.genMu.Unlock()
	return r.generation
}

// fillCache caches a fetched profile unless a write or eviction happened since gen.
func (r *Repository) fillCache(userID string, p *models.CognitiveProfile, gen uint64) {
	r.genMu.Lock()
	defer r.genMu.Unlock()
	if r.generation == gen {
		r.cache.Set(userID, p.Clone())
	}
}
