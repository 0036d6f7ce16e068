// Package knowledge derives cognitive-profile fragments from raw learning history.
package knowledge

import (
	"time"

	"github.com/example/learnengine/pkg/models"
)

// DefaultContentFormats is used when history carries no content types.
var DefaultContentFormats = []string{"video", "text"}

const (
	MinLearningSpeed = 0.1
	MaxLearningSpeed = 1.0
	// DefaultAttentionSpan in minutes, assigned to profiles built from history.
	DefaultAttentionSpan = 25.0
)

// Fragment is the part of a CognitiveProfile that can be derived from history.
type Fragment struct {
	PreferredContentFormats []string
	LearningSpeed           map[string]float64
	KnowledgeGraph          map[string]models.TopicSet
	RetentionRates          map[string]float64
}

// Deriver reduces history records into profile fragments. All methods are pure.
type Deriver struct {
	DefaultFormats []string
	MaxFormats     int
	MinSpeed       float64
	MaxSpeed       float64
	AttentionSpan  float64
}

// NewDeriver creates a Deriver with default settings.
func NewDeriver() *Deriver {
	return &Deriver{
		DefaultFormats: DefaultContentFormats,
		MaxFormats:     models.MaxPreferredContentFormats,
		MinSpeed:       MinLearningSpeed,
		MaxSpeed:       MaxLearningSpeed,
		AttentionSpan:  DefaultAttentionSpan,
	}
}

// Derive runs every reduction over records.
func (d *Deriver) Derive(records []models.HistoryRecord) Fragment {
	return Fragment{
		PreferredContentFormats: d.PreferredFormats(records),
		LearningSpeed:           d.LearningSpeed(records),
		KnowledgeGraph:          d.KnowledgeGraph(records),
		RetentionRates:          d.RetentionRates(records),
	}
}

// PreferredFormats returns the most frequent content types, ties broken by first appearance.
func (d *Deriver) PreferredFormats(records []models.HistoryRecord) []string {
	counts := make(map[string]int)
	var order []string
	for _, r := range records {
		if r.ContentType == "" {
			continue
		}
		if _, seen := counts[r.ContentType]; !seen {
			order = append(order, r.ContentType)
		}
		counts[r.ContentType]++
	}
	if len(order) == 0 {
		return append([]string(nil), d.DefaultFormats...)
	}

	// Selection by count; strict > keeps the earlier tag on ties.
	var out []string
	picked := make(map[string]bool)
	for len(out) < d.MaxFormats && len(out) < len(order) {
		best := ""
		for _, tag := range order {
			if picked[tag] {
				continue
			}
			if best == "" || counts[tag] > counts[best] {
				best = tag
			}
		}
		picked[best] = true
		out = append(out, best)
	}
	return out
}

// LearningSpeed returns, per module, the mean progress ratio clamped to [MinSpeed, MaxSpeed].
func (d *Deriver) LearningSpeed(records []models.HistoryRecord) map[string]float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, r := range records {
		if r.ModuleID == "" {
			continue
		}
		sums[r.ModuleID] += progressRatio(r.ProgressPercent)
		counts[r.ModuleID]++
	}

	out := make(map[string]float64, len(sums))
	for module, sum := range sums {
		out[module] = clamp(sum/float64(counts[module]), d.MinSpeed, d.MaxSpeed)
	}
	return out
}

// KnowledgeGraph returns, per module, the topics of completed records.
// Modules without a completed topic are omitted.
func (d *Deriver) KnowledgeGraph(records []models.HistoryRecord) map[string]models.TopicSet {
	graph := make(map[string]models.TopicSet)
	for _, r := range records {
		if !r.Completed || r.ModuleID == "" || r.TopicID == "" {
			continue
		}
		topics, ok := graph[r.ModuleID]
		if !ok {
			topics = models.TopicSet{}
			graph[r.ModuleID] = topics
		}
		topics.Add(r.TopicID)
	}
	return graph
}

// RetentionRates returns, per module, the share of records marked completed.
func (d *Deriver) RetentionRates(records []models.HistoryRecord) map[string]float64 {
	completed := make(map[string]int)
	total := make(map[string]int)
	for _, r := range records {
		if r.ModuleID == "" {
			continue
		}
		total[r.ModuleID]++
		if r.Completed {
			completed[r.ModuleID]++
		}
	}
	out := make(map[string]float64, len(total))
	for module, n := range total {
		out[module] = float64(completed[module]) / float64(n)
	}
	return out
}

// Profile builds a complete profile for userID from history.
func (d *Deriver) Profile(userID string, records []models.HistoryRecord, now time.Time) *models.CognitiveProfile {
	f := d.Derive(records)
	return &models.CognitiveProfile{
		UserID:                  userID,
		LearningSpeed:           f.LearningSpeed,
		PreferredContentFormats: f.PreferredContentFormats,
		KnowledgeGraph:          f.KnowledgeGraph,
		AttentionSpan:           d.AttentionSpan,
		RetentionRates:          f.RetentionRates,
		LastUpdated:             now,
	}
}

// Update converts a fragment into a partial profile update.
func (f Fragment) Update() models.ProfileUpdate {
	return models.ProfileUpdate{
		LearningSpeed:           f.LearningSpeed,
		PreferredContentFormats: f.PreferredContentFormats,
		KnowledgeGraph:          f.KnowledgeGraph,
		RetentionRates:          f.RetentionRates,
	}
}

func progressRatio(percent float64) float64 {
	return clamp(percent/100, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
