// Package scheduler periodically reminds learners of due reviews.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/example/learnengine/pkg/models"
	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// Default notification window, inclusive, in the scheduler's location.
const (
	DefaultNotificationStartHour = 9
	DefaultNotificationEndHour   = 21
)

// Notifier delivers reminders.
type Notifier interface {
	SendReminders(ctx context.Context, userID string, count int) error
}

// DueSource reports users and their due items. *engine.Engine implements it.
type DueSource interface {
	ListUsers(ctx context.Context) ([]string, error)
	DueItems(ctx context.Context, userID string, limit int) ([]models.LearningItem, error)
	Now() time.Time
}

// Config controls the reminder sweep.
type Config struct {
	Interval  time.Duration
	StartHour int
	EndHour   int
	// DueLimit caps the count announced to one user.
	DueLimit int
	Location *time.Location
}

// DefaultConfig returns an hourly sweep between 9:00 and 21:59 UTC.
func DefaultConfig() Config {
	return Config{
		Interval:  time.Hour,
		StartHour: DefaultNotificationStartHour,
		EndHour:   DefaultNotificationEndHour,
		DueLimit:  20,
		Location:  time.UTC,
	}
}

// Scheduler manages scheduled tasks for the application
type Scheduler struct {
	scheduler *gocron.Scheduler
	source    DueSource
	notifier  Notifier
	cfg       Config
	logger    *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new scheduler instance
func New(source DueSource, notifier Notifier, cfg Config, logger *zap.Logger) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		scheduler: gocron.NewScheduler(cfg.Location),
		source:    source,
		notifier:  notifier,
		cfg:       cfg,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start schedules the sweep and runs it in the background, first run immediately.
func (s *Scheduler) Start() error {
	_, err := s.scheduler.Every(s.cfg.Interval).SingletonMode().Do(func() {
		if _, err := s.CheckAndSendReminders(s.ctx); err != nil {
			s.logger.Warn("reminder sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule reminder sweep: %w", err)
	}
	s.scheduler.StartAsync()
	s.logger.Info("reminder scheduler started",
		zap.Duration("interval", s.cfg.Interval),
		zap.Int("start_hour", s.cfg.StartHour),
		zap.Int("end_hour", s.cfg.EndHour))
	return nil
}

// Stop terminates all scheduled tasks
func (s *Scheduler) Stop() {
	s.cancel()
	s.scheduler.Stop()
}

// InWindow reports whether reminders may be sent at t.
func (s *Scheduler) InWindow(t time.Time) bool {
	hour := t.In(s.cfg.Location).Hour()
	return hour >= s.cfg.StartHour && hour <= s.cfg.EndHour
}

// CheckAndSendReminders notifies every user with due items and returns how many
// reminders were sent. Outside the notification window it does nothing.
// A failure for one user is logged and does not stop the sweep.
func (s *Scheduler) CheckAndSendReminders(ctx context.Context) (int, error) {
	now := s.source.Now()
	if !s.InWindow(now) {
		s.logger.Debug("outside notification hours, skipping reminders",
			zap.Int("hour", now.In(s.cfg.Location).Hour()))
		return 0, nil
	}

	users, err := s.source.ListUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("list users: %w", err)
	}

	sent := 0
	for _, userID := range users {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}
		ok, err := s.remind(ctx, userID)
		if err != nil {
			s.logger.Warn("reminder failed", zap.String("user_id", userID), zap.Error(err))
			continue
		}
		if ok {
			sent++
		}
	}
	s.logger.Info("reminder sweep finished", zap.Int("users", len(users)), zap.Int("sent", sent))
	return sent, nil
}

// RunManualCheck forces a check for a specific user, ignoring the notification window.
func (s *Scheduler) RunManualCheck(ctx context.Context, userID string) error {
	_, err := s.remind(ctx, userID)
	return err
}

func (s *Scheduler) remind(ctx context.Context, userID string) (bool, error) {
	due, err := s.source.DueItems(ctx, userID, s.cfg.DueLimit)
	if err != nil {
		return false, err
	}
	if len(due) == 0 {
		return false, nil
	}
	if err := s.notifier.SendReminders(ctx, userID, len(due)); err != nil {
		return false, err
	}
	return true, nil
}
