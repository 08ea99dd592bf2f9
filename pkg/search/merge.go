package search

import (
	"sort"

	"ai-accelerator-be/internal/dto"
)

// Merger combines per-query result sets into one list for answer building.
type Merger interface {
	Name() string
	Merge(results []dto.SearchResult) []dto.SearchResultItem
}

// BasicMerger round-robins across per-query results, drops duplicate ids and
// orders the merged list by score descending.
type BasicMerger struct{}

func (BasicMerger) Name() string { return "basic" }

func (BasicMerger) Merge(results []dto.SearchResult) []dto.SearchResultItem {
	seen := map[string]bool{}
	var merged []dto.SearchResultItem

	for offset := 0; ; offset++ {
		progressed := false
		for _, result := range results {
			if offset >= len(result.Results) {
				continue
			}
			progressed = true
			item := result.Results[offset]
			if seen[item.ID] {
				continue
			}
			seen[item.ID] = true
			merged = append(merged, item)
		}
		if !progressed {
			break
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].SearchScore > merged[j].SearchScore
	})
	return merged
}

// NewMerger resolves a merge strategy by name, defaulting to basic.
func NewMerger(name string) Merger {
	switch name {
	case "", "basic":
		return BasicMerger{}
	default:
		return BasicMerger{}
	}
}
