// Package ranking orders learning-path candidates for a learner.
package ranking

import (
	"math"
	"sort"

	"github.com/example/learnengine/pkg/models"
)

const (
	MinScore = 0.0
	MaxScore = 100.0
	// RelatedItemWeight is the score added per related item.
	RelatedItemWeight = 5.0
)

// Score returns clamp(100 - progressPercent + 5*relatedItemCount, 0, 100).
// A NaN progress scores MinScore.
func Score(progressPercent float64, relatedItemCount int) float64 {
	s := MaxScore - progressPercent + RelatedItemWeight*float64(relatedItemCount)
	if math.IsNaN(s) || s < MinScore {
		return MinScore
	}
	if s > MaxScore {
		return MaxScore
	}
	return s
}

// Rank scores every candidate and returns them ordered by score, highest first.
// Equal scores keep their input order. candidates is not modified.
func Rank(candidates []models.LearningPathItem) []models.LearningPathItem {
	out := make([]models.LearningPathItem, len(candidates))
	for i, c := range candidates {
		c.RecommendationScore = Score(c.ProgressPercent, c.RelatedItemCount)
		out[i] = c
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RecommendationScore > out[j].RecommendationScore
	})
	return out
}

// TopN returns the n best-ranked candidates. n <= 0 returns the full ranking.
func TopN(candidates []models.LearningPathItem, n int) []models.LearningPathItem {
	ranked := Rank(candidates)
	if n > 0 && len(ranked) > n {
		return ranked[:n]
	}
	return ranked
}
