package spaced_repetition

import (
	"math"
	"sort"
	"time"

	"github.com/example/learnengine/internal/errkind"
	"github.com/example/learnengine/pkg/models"
	"github.com/google/uuid"
)

const (
	// DefaultDueThreshold is the retention below which an item is due.
	DefaultDueThreshold = 0.7
	// MinEasinessFactor is the SM-2 floor for the easiness factor.
	MinEasinessFactor = 1.3
)

// SM2 schedules reviews using the SuperMemo-2 easiness update and the
// retention model for due-ness.
type SM2 struct {
	Model RetentionModel
	// Maximum interval in days. Zero disables the cap.
	MaxInterval int
	// Fixed intervals for the first repetitions; later ones multiply the previous interval by EF.
	InitialIntervals []int
	// Repetitions required before an item may count as mastered.
	MasteryRepetitions int
	// Interval in days required before an item may count as mastered.
	MasteryInterval int
}

// NewSM2 creates an SM2 with default settings.
func NewSM2() *SM2 {
	return &SM2{
		Model:              DefaultRetentionModel(),
		MaxInterval:        365,
		InitialIntervals:   []int{1, 6},
		MasteryRepetitions: 5,
		MasteryInterval:    30,
	}
}

// QualityResponse is the 0-5 grade of a review.
type QualityResponse int

const (
	// Complete blackout, unable to recall
	QualityBlackout QualityResponse = 0
	// Incorrect response but remembered upon seeing the correct answer
	QualityIncorrect QualityResponse = 1
	// Incorrect response but the correct answer felt familiar
	QualityIncorrectFamiliar QualityResponse = 2
	// Correct response but required significant effort
	QualityCorrectDifficult QualityResponse = 3
	// Correct response after some hesitation
	QualityCorrectHesitation QualityResponse = 4
	// Perfect response with no hesitation
	QualityPerfect QualityResponse = 5
)

// Valid reports whether q is within the 0-5 scale.
func (q QualityResponse) Valid() bool {
	return q >= QualityBlackout && q <= QualityPerfect
}

// IsDue reports whether the item's retention at now has fallen below threshold.
func (sm *SM2) IsDue(item *models.LearningItem, now time.Time, threshold float64) bool {
	return sm.Model.Retention(item, now) < threshold
}

// IsDue evaluates due-ness with the default model.
func IsDue(item *models.LearningItem, now time.Time, threshold float64) bool {
	return Retention(item, now) < threshold
}

// NextEasinessFactor applies the SM-2 easiness update, floored at MinEasinessFactor.
func NextEasinessFactor(ef float64, quality QualityResponse) float64 {
	q := 5.0 - float64(quality)
	next := ef + (0.1 - q*(0.08+q*0.02))
	if next < MinEasinessFactor {
		return MinEasinessFactor
	}
	return next
}

// ComputeNextInterval returns the interval in days for the given repetition number
// (already incremented), the updated EF and the previous interval.
func (sm *SM2) ComputeNextInterval(repetitions int, ef float64, previousInterval int) int {
	var next int
	if repetitions >= 1 && repetitions <= len(sm.InitialIntervals) {
		next = sm.InitialIntervals[repetitions-1]
	} else {
		next = int(math.Round(float64(previousInterval) * ef))
	}
	if next < 1 {
		next = 1
	}
	if sm.MaxInterval > 0 && next > sm.MaxInterval {
		next = sm.MaxInterval
	}
	return next
}

// Process applies a graded review to item at now and returns the review event.
// An out-of-range grade is rejected with errkind.ErrInvalidInput and item is left untouched.
func (sm *SM2) Process(item *models.LearningItem, quality QualityResponse, now time.Time) (models.ReviewEvent, error) {
	if !quality.Valid() {
		return models.ReviewEvent{}, errkind.New(errkind.InvalidInput, "grade %d outside 0-5", int(quality))
	}

	event := models.ReviewEvent{
		ID:         uuid.NewString(),
		ItemID:     item.ID,
		UserID:     item.UserID,
		Grade:      int(quality),
		Retention:  sm.Model.Retention(item, now),
		ReviewedAt: now,
	}

	ef := NextEasinessFactor(item.EasinessOrDefault(), quality)
	item.EasinessFactor = &ef
	item.RepetitionCount++
	item.IntervalDays = sm.ComputeNextInterval(item.RepetitionCount, ef, item.IntervalDays)

	reviewedAt := now
	item.LastReviewedAt = &reviewedAt
	item.NextReviewAt = now.AddDate(0, 0, item.IntervalDays)
	item.MasteryLevel = sm.masteryLevel(item.RepetitionCount, quality)
	item.UpdatedAt = now

	return event, nil
}

func (sm *SM2) masteryLevel(repetitions int, quality QualityResponse) float64 {
	progress := 1.0
	if sm.MasteryRepetitions > 0 {
		progress = math.Min(1, float64(repetitions)/float64(sm.MasteryRepetitions))
	}
	return progress * float64(quality) / float64(QualityPerfect)
}

// DueItems returns up to limit items whose retention at now is below threshold,
// least-remembered first. Ties keep input order. limit <= 0 means no limit.
func (sm *SM2) DueItems(items []models.LearningItem, now time.Time, threshold float64, limit int) []models.LearningItem {
	type scored struct {
		item      models.LearningItem
		retention float64
	}
	var due []scored
	for _, it := range items {
		r := sm.Model.Retention(&it, now)
		if r < threshold {
			due = append(due, scored{item: it, retention: r})
		}
	}

	sort.SliceStable(due, func(i, j int) bool {
		return due[i].retention < due[j].retention
	})

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	out := make([]models.LearningItem, len(due))
	for i, d := range due {
		out[i] = d.item
	}
	return out
}

// IsMastered reports whether an item has enough repetitions and a long enough interval.
func (sm *SM2) IsMastered(item *models.LearningItem) bool {
	return item.RepetitionCount >= sm.MasteryRepetitions &&
		item.IntervalDays >= sm.MasteryInterval
}
