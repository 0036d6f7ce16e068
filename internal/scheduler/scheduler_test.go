package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/learnengine/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakeSource struct {
	now     time.Time
	due     map[string]int
	listErr error
	dueErr  map[string]error
}

func (f *fakeSource) Now() time.Time { return f.now }

func (f *fakeSource) ListUsers(ctx context.Context) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return []string{"alice", "bob", "carol"}, nil
}

func (f *fakeSource) DueItems(ctx context.Context, userID string, limit int) ([]models.LearningItem, error) {
	if err := f.dueErr[userID]; err != nil {
		return nil, err
	}
	n := f.due[userID]
	if limit > 0 && n > limit {
		n = limit
	}
	return make([]models.LearningItem, n), nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent map[string]int
	err  error
	hit  chan struct{}
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{sent: make(map[string]int), hit: make(chan struct{}, 16)}
}

func (n *recordingNotifier) SendReminders(ctx context.Context, userID string, count int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent[userID] = count
	select {
	case n.hit <- struct{}{}:
	default:
	}
	return nil
}

func at(hour int) time.Time {
	return time.Date(2025, 6, 15, hour, 30, 0, 0, time.UTC)
}

func TestCheckAndSendReminders(t *testing.T) {
	defer goleak.VerifyNone(t)

	src := &fakeSource{now: at(10), due: map[string]int{"alice": 3, "carol": 50}}
	n := newRecordingNotifier()
	s := New(src, n, DefaultConfig(), nil)

	sent, err := s.CheckAndSendReminders(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Equal(t, map[string]int{"alice": 3, "carol": 20}, n.sent)
}

func TestCheckAndSendRemindersOutsideWindow(t *testing.T) {
	defer goleak.VerifyNone(t)

	for _, hour := range []int{3, 22} {
		src := &fakeSource{now: at(hour), due: map[string]int{"alice": 3}}
		n := newRecordingNotifier()
		s := New(src, n, DefaultConfig(), nil)

		sent, err := s.CheckAndSendReminders(t.Context())
		require.NoError(t, err)
		assert.Zero(t, sent)
		assert.Empty(t, n.sent)
	}
}

func TestCheckAndSendRemindersWindowUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	cfg := DefaultConfig()
	cfg.Location = loc
	s := New(&fakeSource{}, newRecordingNotifier(), cfg, nil)

	assert.False(t, s.InWindow(at(2)))
	assert.True(t, s.InWindow(at(5)), "05:30 UTC is 10:30 in UTC+5")
}

func TestCheckAndSendRemindersContinuesAfterFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	src := &fakeSource{
		now:    at(12),
		due:    map[string]int{"alice": 1, "bob": 2, "carol": 3},
		dueErr: map[string]error{"bob": errors.New("db down")},
	}
	n := newRecordingNotifier()
	s := New(src, n, DefaultConfig(), nil)

	sent, err := s.CheckAndSendReminders(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.NotContains(t, n.sent, "bob")
}

func TestCheckAndSendRemindersListError(t *testing.T) {
	src := &fakeSource{now: at(12), listErr: errors.New("db down")}
	s := New(src, newRecordingNotifier(), DefaultConfig(), nil)

	_, err := s.CheckAndSendReminders(t.Context())
	assert.ErrorContains(t, err, "db down")
}

func TestRunManualCheckIgnoresWindow(t *testing.T) {
	src := &fakeSource{now: at(2), due: map[string]int{"alice": 4}}
	n := newRecordingNotifier()
	s := New(src, n, DefaultConfig(), nil)

	require.NoError(t, s.RunManualCheck(t.Context(), "alice"))
	assert.Equal(t, 4, n.sent["alice"])

	n.err = errors.New("blocked")
	assert.Error(t, s.RunManualCheck(t.Context(), "alice"))
}

func TestStartRunsImmediately(t *testing.T) {
	src := &fakeSource{now: at(10), due: map[string]int{"alice": 1}}
	n := newRecordingNotifier()
	s := New(src, n, DefaultConfig(), nil)

	require.NoError(t, s.Start())
	defer s.Stop()

	select {
	case <-n.hit:
	case <-time.After(5 * time.Second):
		t.Fatal("sweep did not run")
	}
}
