// Package kvstore is an embedded BadgerDB implementation of the engine's storage
// interfaces, for single-node deployments that don't run a SQL database.
//
// Records are JSON values under prefixed keys:
//
//	profile/<user>                    cognitive profile
//	item/<id>                         learning item
//	useritem/<user>/<id>              index of a user's items
//	user/<user>                       users owning items
//	review/<item>/<nanos>/<id>        review event
//	history/<user>/<seq>              history record
package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

// Config holds configuration for a Store.
type Config struct {
	// Path is the data directory. Ignored when InMemory is true.
	Path string
	// InMemory keeps everything in RAM. Useful for tests.
	InMemory bool
	// SyncWrites fsyncs every commit.
	SyncWrites bool
	// GCInterval is how often value log GC runs. Zero disables it.
	GCInterval time.Duration
	// GCDiscardRatio is the garbage ratio that triggers a value log rewrite.
	GCDiscardRatio float64
}

// DefaultConfig returns production defaults for path.
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns a configuration for tests.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// Store implements the profile, item and history stores on BadgerDB.
type Store struct {
	db     *badger.DB
	seq    *badger.Sequence
	logger *zap.Logger
	stopGC chan struct{}
	gcDone chan struct{}
}

// Open opens the database described by cfg. A nil logger discards output.
func Open(cfg Config, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(&badgerLogger{l: logger.Sugar()})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	seq, err := db.GetSequence([]byte("seq/history"), 100)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open history sequence: %w", err)
	}

	s := &Store{db: db, seq: seq, logger: logger}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.stopGC = make(chan struct{})
		s.gcDone = make(chan struct{})
		go s.runGC(cfg.GCInterval, cfg.GCDiscardRatio)
	}
	return s, nil
}

// Close stops GC and closes the database.
func (s *Store) Close() error {
	if s.stopGC != nil {
		close(s.stopGC)
		<-s.gcDone
	}
	if err := s.seq.Release(); err != nil {
		s.logger.Warn("release history sequence", zap.Error(err))
	}
	return s.db.Close()
}

func (s *Store) runGC(interval time.Duration, ratio float64) {
	defer close(s.gcDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopGC:
			return
		case <-ticker.C:
			err := s.db.RunValueLogGC(ratio)
			if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				s.logger.Warn("badger value log GC failed", zap.Error(err))
			}
		}
	}
}

func (s *Store) view(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(fn)
}

func (s *Store) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(fn)
}

func getJSON(txn *badger.Txn, key string, v any) error {
	item, err := txn.Get([]byte(key))
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func setJSON(txn *badger.Txn, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set([]byte(key), data)
}

// scanPrefix calls fn with the value of every key under prefix, in key order.
func scanPrefix(txn *badger.Txn, prefix string, fn func(key, val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()
	for it.Rewind(); it.Valid(); it.Next() {
		item := it.Item()
		key := item.KeyCopy(nil)
		if err := item.Value(func(val []byte) error { return fn(key, val) }); err != nil {
			return err
		}
	}
	return nil
}

type badgerLogger struct {
	l *zap.SugaredLogger
}

func (b *badgerLogger) Errorf(format string, args ...interface{})   { b.l.Errorf(format, args...) }
func (b *badgerLogger) Warningf(format string, args ...interface{}) { b.l.Warnf(format, args...) }
func (b *badgerLogger) Infof(format string, args ...interface{})    { b.l.Debugf(format, args...) }
func (b *badgerLogger) Debugf(format string, args ...interface{})   { b.l.Debugf(format, args...) }
