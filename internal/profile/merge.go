package profile

import (
	"time"

	"github.com/example/learnengine/pkg/models"
)

// Apply returns the profile that results from applying update to current under opts.
// current is not modified.
//
// Field policy:
//   - KnowledgeGraph: union per domain when opts.MergeKnowledgeGraph, otherwise replaced.
//   - PreferredContentFormats: replaced only when opts.OverwriteContentPreferences or
//     when the current profile has none.
//   - LearningSpeed, AttentionSpan, RetentionRates: replaced when provided.
//   - LastUpdated: set to now when opts.UpdateTimestamp.
func Apply(current *models.CognitiveProfile, update models.ProfileUpdate, opts models.ProfileUpdateOptions, now time.Time) *models.CognitiveProfile {
	next := current.Clone()
	next.Normalize()

	if update.KnowledgeGraph != nil {
		if opts.MergeKnowledgeGraph {
			MergeKnowledgeGraph(next.KnowledgeGraph, update.KnowledgeGraph)
		} else {
			next.KnowledgeGraph = cloneGraph(update.KnowledgeGraph)
		}
	}

	if update.PreferredContentFormats != nil {
		if opts.OverwriteContentPreferences || len(next.PreferredContentFormats) == 0 {
			next.PreferredContentFormats = models.CapFormats(update.PreferredContentFormats)
		}
	}

	if update.LearningSpeed != nil {
		next.LearningSpeed = copyFloats(update.LearningSpeed)
	}
	if update.RetentionRates != nil {
		next.RetentionRates = copyFloats(update.RetentionRates)
	}
	if update.AttentionSpan != nil {
		next.AttentionSpan = *update.AttentionSpan
	}

	if opts.UpdateTimestamp {
		next.LastUpdated = now
	}
	return next
}

// MergeKnowledgeGraph unions every domain of src into dst, creating missing domains.
// Domains only present in dst are left untouched. Merging the same src twice is idempotent.
func MergeKnowledgeGraph(dst, src map[string]models.TopicSet) {
	for domain, topics := range src {
		existing, ok := dst[domain]
		if !ok || existing == nil {
			existing = models.TopicSet{}
			dst[domain] = existing
		}
		existing.Union(topics)
	}
}

func cloneGraph(g map[string]models.TopicSet) map[string]models.TopicSet {
	out := make(map[string]models.TopicSet, len(g))
	for domain, topics := range g {
		if topics == nil {
			out[domain] = models.TopicSet{}
			continue
		}
		out[domain] = topics.Clone()
	}
	return out
}

func copyFloats(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
