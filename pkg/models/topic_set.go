package models

import (
	"encoding/json"
	"sort"
)

// TopicSet is a deduplicated set of topic identifiers.
// It encodes to JSON as a sorted array.
type TopicSet map[string]struct{}

// NewTopicSet builds a set from ids, dropping duplicates.
func NewTopicSet(ids ...string) TopicSet {
	s := make(TopicSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Add inserts id. Adding an existing id is a no-op.
func (s TopicSet) Add(id string) {
	s[id] = struct{}{}
}

// Has reports whether id is in the set.
func (s TopicSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Union adds every id of other to s.
func (s TopicSet) Union(other TopicSet) {
	for id := range other {
		s[id] = struct{}{}
	}
}

// Sorted returns the ids in lexical order.
func (s TopicSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Clone returns a copy of the set.
func (s TopicSet) Clone() TopicSet {
	out := make(TopicSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// MarshalJSON implements json.Marshaler.
func (s TopicSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON implements json.Unmarshaler. Duplicate ids collapse.
func (s *TopicSet) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = NewTopicSet(ids...)
	return nil
}
