package models

import "time"

// MaxPreferredContentFormats caps CognitiveProfile.PreferredContentFormats.
const MaxPreferredContentFormats = 2

// CognitiveProfile is the derived learning profile of one user
type CognitiveProfile struct {
	UserID                  string              `json:"user_id"`
	LearningSpeed           map[string]float64  `json:"learning_speed"`            // module -> [0.1, 1.0]
	PreferredContentFormats []string            `json:"preferred_content_formats"` // at most 2, most preferred first
	KnowledgeGraph          map[string]TopicSet `json:"knowledge_graph"`           // domain -> topics
	AttentionSpan           float64             `json:"attention_span"`            // minutes
	RetentionRates          map[string]float64  `json:"retention_rates"`           // domain -> observed retention
	LastUpdated             time.Time           `json:"last_updated"`
}

// Clone returns a deep copy so cached values are never shared with callers.
func (p *CognitiveProfile) Clone() *CognitiveProfile {
	if p == nil {
		return nil
	}
	out := *p
	out.LearningSpeed = cloneFloats(p.LearningSpeed)
	out.RetentionRates = cloneFloats(p.RetentionRates)
	if p.PreferredContentFormats != nil {
		out.PreferredContentFormats = append([]string(nil), p.PreferredContentFormats...)
	}
	if p.KnowledgeGraph != nil {
		out.KnowledgeGraph = make(map[string]TopicSet, len(p.KnowledgeGraph))
		for domain, topics := range p.KnowledgeGraph {
			out.KnowledgeGraph[domain] = topics.Clone()
		}
	}
	return &out
}

// Normalize fills nil maps and trims PreferredContentFormats to its cap, dropping duplicates.
func (p *CognitiveProfile) Normalize() {
	if p.LearningSpeed == nil {
		p.LearningSpeed = map[string]float64{}
	}
	if p.RetentionRates == nil {
		p.RetentionRates = map[string]float64{}
	}
	if p.KnowledgeGraph == nil {
		p.KnowledgeGraph = map[string]TopicSet{}
	}
	for domain, topics := range p.KnowledgeGraph {
		if topics == nil {
			p.KnowledgeGraph[domain] = TopicSet{}
		}
	}
	p.PreferredContentFormats = CapFormats(p.PreferredContentFormats)
}

// CapFormats drops duplicate and empty tags and keeps at most MaxPreferredContentFormats.
func CapFormats(formats []string) []string {
	out := make([]string, 0, MaxPreferredContentFormats)
	seen := make(map[string]bool, len(formats))
	for _, f := range formats {
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
		if len(out) == MaxPreferredContentFormats {
			break
		}
	}
	return out
}

func cloneFloats(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// ProfileUpdate is a partial CognitiveProfile. Nil fields are left unchanged.
type ProfileUpdate struct {
	LearningSpeed           map[string]float64  `json:"learning_speed,omitempty"`
	PreferredContentFormats []string            `json:"preferred_content_formats,omitempty"`
	KnowledgeGraph          map[string]TopicSet `json:"knowledge_graph,omitempty"`
	AttentionSpan           *float64            `json:"attention_span,omitempty"`
	RetentionRates          map[string]float64  `json:"retention_rates,omitempty"`
}

// ProfileUpdateOptions controls how a ProfileUpdate is applied. The switches are independent.
type ProfileUpdateOptions struct {
	// MergeKnowledgeGraph unions topic sets per domain instead of replacing the whole graph.
	MergeKnowledgeGraph bool `json:"merge_knowledge_graph"`
	// OverwriteContentPreferences allows replacing existing PreferredContentFormats.
	OverwriteContentPreferences bool `json:"overwrite_content_preferences"`
	// UpdateTimestamp bumps LastUpdated.
	UpdateTimestamp bool `json:"update_timestamp"`
}

// DefaultProfileUpdateOptions returns the documented defaults: replace the graph,
// never overwrite content preferences, bump the timestamp.
func DefaultProfileUpdateOptions() ProfileUpdateOptions {
	return ProfileUpdateOptions{UpdateTimestamp: true}
}
