package cli

import (
	"errors"
	"fmt"

	"github.com/example/learnengine/internal/config"
	"github.com/example/learnengine/internal/database"
	"github.com/example/learnengine/internal/engine"
	"github.com/example/learnengine/internal/kvstore"
	"github.com/example/learnengine/internal/profile"
	sr "github.com/example/learnengine/internal/spaced_repetition"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// store is what both storage backends provide.
type store interface {
	profile.ProfileStore
	engine.ItemStore
	engine.HistoryStore
	Close() error
}

// App is the wired application.
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Engine   *engine.Engine
	Registry *prometheus.Registry

	store store
}

// Build opens the configured store and composes the engine.
func Build(cfg *config.Config, logger *zap.Logger) (*App, error) {
	st, err := openStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	cache := newProfileCache(cfg.Engine)
	repo := profile.NewRepository(st, cache,
		profile.WithLogger(logger.Named("profile")),
		profile.WithMetrics(profile.NewMetrics(reg, cache)))

	scheduler := sr.NewSM2()
	scheduler.MaxInterval = cfg.Engine.MaxIntervalDays

	e, err := engine.New(engine.Deps{
		Profiles:           repo,
		Items:              st,
		History:            st,
		Scheduler:          scheduler,
		Logger:             logger.Named("engine"),
		DueThreshold:       cfg.Engine.DueThreshold,
		RebuildConcurrency: cfg.Engine.RebuildConcurrency,
	})
	if err != nil {
		return nil, errors.Join(err, st.Close())
	}

	return &App{Config: cfg, Logger: logger, Engine: e, Registry: reg, store: st}, nil
}

// Close releases the store.
func (a *App) Close() error {
	return a.store.Close()
}

// newProfileCache returns the unbounded MapCache unless a size or TTL is configured.
func newProfileCache(cfg config.EngineConfig) profile.ProfileCache {
	if cfg.ProfileCacheSize > 0 || cfg.ProfileCacheTTL > 0 {
		return profile.NewTTLCache(cfg.ProfileCacheSize, cfg.ProfileCacheTTL)
	}
	return profile.NewMapCache()
}

func openStore(cfg *config.Config, logger *zap.Logger) (store, error) {
	switch cfg.Database.Driver {
	case "badger":
		st, err := kvstore.Open(kvstore.DefaultConfig(cfg.Database.BadgerPath), logger.Named("badger"))
		if err != nil {
			return nil, err
		}
		logger.Info("using badger store", zap.String("path", cfg.Database.BadgerPath))
		return st, nil
	case database.DriverSQLite, database.DriverPostgres:
		db, err := database.Open(cfg.Database.Driver, cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
		logger.Info("using sql store", zap.String("driver", cfg.Database.Driver))
		return database.NewStore(db), nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
}
