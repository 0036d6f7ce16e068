package spaced_repetition

import (
	"testing"
	"time"

	"github.com/example/learnengine/internal/errkind"
	"github.com/example/learnengine/pkg/models"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextEasinessFactor(t *testing.T) {
	tests := []struct {
		quality QualityResponse
		want    float64
	}{
		{QualityBlackout, 1.7},
		{QualityIncorrect, 1.96},
		{QualityIncorrectFamiliar, 2.18},
		{QualityCorrectDifficult, 2.36},
		{QualityCorrectHesitation, 2.5},
		{QualityPerfect, 2.6},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, NextEasinessFactor(2.5, tt.quality), 1e-9, "quality %d", tt.quality)
	}
	assert.Equal(t, MinEasinessFactor, NextEasinessFactor(1.3, QualityBlackout))
}

func TestProcessFirstReviews(t *testing.T) {
	sm := NewSM2()
	item := models.NewLearningItem("u1", t0)

	ev, err := sm.Process(&item, QualityPerfect, t0)
	require.NoError(t, err)
	assert.Equal(t, 0.3, ev.Retention)
	assert.Equal(t, 5, ev.Grade)
	assert.Equal(t, item.ID, ev.ItemID)
	assert.Equal(t, 1, item.RepetitionCount)
	assert.Equal(t, 1, item.IntervalDays)
	assert.InDelta(t, 2.6, *item.EasinessFactor, 1e-9)
	require.NotNil(t, item.LastReviewedAt)
	assert.Equal(t, t0, *item.LastReviewedAt)
	assert.Equal(t, t0.AddDate(0, 0, 1), item.NextReviewAt)

	second := t0.AddDate(0, 0, 1)
	_, err = sm.Process(&item, QualityPerfect, second)
	require.NoError(t, err)
	assert.Equal(t, 2, item.RepetitionCount)
	assert.Equal(t, 6, item.IntervalDays)
	assert.Equal(t, second.AddDate(0, 0, 6), item.NextReviewAt)

	third := second.AddDate(0, 0, 6)
	_, err = sm.Process(&item, QualityCorrectHesitation, third)
	require.NoError(t, err)
	assert.Equal(t, 3, item.RepetitionCount)
	// EF stays 2.7 after a 4; 6 * 2.7 = 16.2 rounds to 16.
	assert.InDelta(t, 2.7, *item.EasinessFactor, 1e-9)
	assert.Equal(t, 16, item.IntervalDays)
}

func TestProcessAbsentEasinessStartsFromDefault(t *testing.T) {
	sm := NewSM2()
	item := models.LearningItem{ID: "x", UserID: "u1"}
	_, err := sm.Process(&item, QualityCorrectDifficult, t0)
	require.NoError(t, err)
	require.NotNil(t, item.EasinessFactor)
	assert.InDelta(t, 2.36, *item.EasinessFactor, 1e-9)
}

func TestProcessRejectsInvalidGradeWithoutMutation(t *testing.T) {
	sm := NewSM2()
	item := models.NewLearningItem("u1", t0)
	before := item.Clone()

	for _, grade := range []QualityResponse{-1, 6, 42} {
		_, err := sm.Process(&item, grade, t0)
		require.Error(t, err)
		assert.ErrorIs(t, err, errkind.ErrInvalidInput)
		if diff := cmp.Diff(before, item); diff != "" {
			t.Fatalf("item mutated (-want +got):\n%s", diff)
		}
	}
}

func TestComputeNextIntervalCap(t *testing.T) {
	sm := NewSM2()
	assert.Equal(t, 365, sm.ComputeNextInterval(10, 2.5, 300))

	sm.MaxInterval = 0
	assert.Equal(t, 750, sm.ComputeNextInterval(10, 2.5, 300))
}

func TestDueItemsOrdersByRetention(t *testing.T) {
	sm := NewSM2()
	recent := t0.Add(-time.Hour)
	old := t0.AddDate(0, 0, -10)
	older := t0.AddDate(0, 0, -20)
	items := []models.LearningItem{
		{ID: "fresh", EasinessFactor: floatPtr(2.5), LastReviewedAt: &recent},
		{ID: "new-a"},
		{ID: "old", EasinessFactor: floatPtr(2.5), LastReviewedAt: &old},
		{ID: "new-b"},
		{ID: "older", EasinessFactor: floatPtr(2.5), LastReviewedAt: &older},
	}

	due := sm.DueItems(items, t0, DefaultDueThreshold, 0)
	var ids []string
	for _, it := range due {
		ids = append(ids, it.ID)
	}
	assert.Equal(t, []string{"older", "old", "new-a", "new-b"}, ids)

	assert.Len(t, sm.DueItems(items, t0, DefaultDueThreshold, 2), 2)
}

func TestIsMastered(t *testing.T) {
	sm := NewSM2()
	assert.True(t, sm.IsMastered(&models.LearningItem{RepetitionCount: 5, IntervalDays: 30}))
	assert.False(t, sm.IsMastered(&models.LearningItem{RepetitionCount: 5, IntervalDays: 29}))
	assert.False(t, sm.IsMastered(&models.LearningItem{RepetitionCount: 4, IntervalDays: 90}))
}

func TestMasteryLevel(t *testing.T) {
	sm := NewSM2()
	item := models.NewLearningItem("u1", t0)
	now := t0
	for i := 0; i < 5; i++ {
		_, err := sm.Process(&item, QualityPerfect, now)
		require.NoError(t, err)
		now = item.NextReviewAt
	}
	assert.InDelta(t, 1.0, item.MasteryLevel, 1e-9)
}
