// Package knowledge matches user questions against stored knowledge parts and composes
// the knowledge-grounded system prompt used to answer them.
package knowledge

import "sort"

// Part is one matched knowledge fragment.
type Part struct {
	ID      string  `json:"id"`
	Score   float64 `json:"score"`
	Content string  `json:"content"`
}

// ScoredPoint is a vector search result.
type ScoredPoint struct {
	ID      string
	Score   float64
	Content string
	Tags    []string
}

// TagCounts counts tag occurrences and remembers the order tags were first seen in.
type TagCounts struct {
	counts map[string]int
	order  []string
}

// NewTagCounts creates an empty counter.
func NewTagCounts() *TagCounts {
	return &TagCounts{counts: make(map[string]int)}
}

// Add bumps the counter of every given tag by one.
func (t *TagCounts) Add(tags ...string) {
	for _, tag := range tags {
		if _, seen := t.counts[tag]; !seen {
			t.order = append(t.order, tag)
		}
		t.counts[tag]++
	}
}

// Count returns how many times tag was added.
func (t *TagCounts) Count(tag string) int {
	if t == nil {
		return 0
	}
	return t.counts[tag]
}

// Len returns the number of distinct tags.
func (t *TagCounts) Len() int {
	if t == nil {
		return 0
	}
	return len(t.order)
}

// MostCommon returns the tags ordered by count, highest first. Tags with equal
// counts keep the order they were first seen in.
func (t *TagCounts) MostCommon() []string {
	if t == nil {
		return nil
	}
	tags := make([]string, len(t.order))
	copy(tags, t.order)
	sort.SliceStable(tags, func(i, j int) bool {
		return t.counts[tags[i]] > t.counts[tags[j]]
	})
	return tags
}

// Knowledge is the reduced result of a match.
type Knowledge struct {
	// MatchedParts are in the searcher's score-descending order.
	MatchedParts []Part

	// PartsTags counts every tag of every matched part.
	PartsTags *TagCounts
}

// Accepted returns the parts scoring at or above bar, preserving order.
func (k Knowledge) Accepted(bar float64) []Part {
	var parts []Part
	for _, p := range k.MatchedParts {
		if p.Score >= bar {
			parts = append(parts, p)
		}
	}
	return parts
}

func reduce(points []ScoredPoint) Knowledge {
	k := Knowledge{
		MatchedParts: make([]Part, 0, len(points)),
		PartsTags:    NewTagCounts(),
	}
	for _, p := range points {
		k.MatchedParts = append(k.MatchedParts, Part{ID: p.ID, Score: p.Score, Content: p.Content})
		k.PartsTags.Add(p.Tags...)
	}
	return k
}
