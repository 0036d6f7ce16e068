package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopicSetDeduplicatesOnDecode(t *testing.T) {
	var s TopicSet
	require.NoError(t, json.Unmarshal([]byte(`["b","a","b","a"]`), &s))
	assert.Len(t, s, 2)

	out, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `["a","b"]`, string(out))
}

func TestProfileCloneIsDeep(t *testing.T) {
	p := &CognitiveProfile{
		UserID:                  "u1",
		LearningSpeed:           map[string]float64{"m1": 0.5},
		PreferredContentFormats: []string{"video"},
		KnowledgeGraph:          map[string]TopicSet{"m1": NewTopicSet("t1")},
	}
	c := p.Clone()
	c.LearningSpeed["m1"] = 0.9
	c.PreferredContentFormats[0] = "text"
	c.KnowledgeGraph["m1"].Add("t2")

	assert.Equal(t, 0.5, p.LearningSpeed["m1"])
	assert.Equal(t, "video", p.PreferredContentFormats[0])
	assert.False(t, p.KnowledgeGraph["m1"].Has("t2"))
}

func TestCapFormats(t *testing.T) {
	assert.Equal(t, []string{"video", "text"}, CapFormats([]string{"video", "", "video", "text", "quiz"}))
	assert.Empty(t, CapFormats(nil))
}

func TestNewLearningItemDefaults(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	item := NewLearningItem("u1", now)

	assert.NotEmpty(t, item.ID)
	require.NotNil(t, item.EasinessFactor)
	assert.Equal(t, 2.5, *item.EasinessFactor)
	assert.Zero(t, item.RepetitionCount)
	assert.Nil(t, item.LastReviewedAt)
	assert.Equal(t, now, item.NextReviewAt)
}

func TestDefaultProfileUpdateOptions(t *testing.T) {
	opts := DefaultProfileUpdateOptions()
	assert.False(t, opts.MergeKnowledgeGraph)
	assert.False(t, opts.OverwriteContentPreferences)
	assert.True(t, opts.UpdateTimestamp)
}
