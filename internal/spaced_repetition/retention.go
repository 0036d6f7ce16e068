package spaced_repetition

import (
	"math"
	"time"

	"github.com/example/learnengine/pkg/models"
)

const (
	// BaselineRetention is reported for items that were never reviewed, so new
	// items still rank as due instead of starving the review queue.
	BaselineRetention = 0.3
	// StabilityMultiplier scales the easiness factor into the decay denominator.
	StabilityMultiplier = 1.5
	// FallbackStability is used when an item has no easiness factor.
	// It is intentionally not multiplied by StabilityMultiplier.
	FallbackStability = 2.5
)

// RetentionModel estimates how well a learner currently remembers an item
// using exponential decay: R = e^(-t/S).
type RetentionModel struct {
	Baseline            float64
	StabilityMultiplier float64
	FallbackStability   float64
}

// DefaultRetentionModel returns the model with the package constants.
func DefaultRetentionModel() RetentionModel {
	return RetentionModel{
		Baseline:            BaselineRetention,
		StabilityMultiplier: StabilityMultiplier,
		FallbackStability:   FallbackStability,
	}
}

// Stability returns S for the item.
func (m RetentionModel) Stability(item *models.LearningItem) float64 {
	if item.EasinessFactor == nil {
		return m.FallbackStability
	}
	return *item.EasinessFactor * m.StabilityMultiplier
}

// Retention returns the modeled recall probability of item at now, in [0, 1].
// Negative elapsed time (clock skew) is clamped to 1 rather than rejected.
func (m RetentionModel) Retention(item *models.LearningItem, now time.Time) float64 {
	if item.LastReviewedAt == nil {
		return m.Baseline
	}
	elapsedDays := now.Sub(*item.LastReviewedAt).Hours() / 24
	return clamp01(math.Exp(-elapsedDays / m.Stability(item)))
}

// Retention evaluates the default model.
func Retention(item *models.LearningItem, now time.Time) float64 {
	return DefaultRetentionModel().Retention(item, now)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
