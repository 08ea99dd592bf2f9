package search

import (
	"testing"

	"ai-accelerator-be/internal/dto"

	"github.com/stretchr/testify/assert"
)

func TestBasicMergerDeduplicatesAcrossQueries(t *testing.T) {
	results := []dto.SearchResult{
		{
			SearchID: "q1",
			Results: []dto.SearchResultItem{
				{ID: "a", SearchScore: 0.9},
				{ID: "b", SearchScore: 0.5},
			},
		},
		{
			SearchID: "q2",
			Results: []dto.SearchResultItem{
				{ID: "a", SearchScore: 0.8},
				{ID: "c", SearchScore: 0.7},
			},
		},
	}

	merged := BasicMerger{}.Merge(results)

	ids := make([]string, 0, len(merged))
	for _, item := range merged {
		ids = append(ids, item.ID)
	}
	assert.ElementsMatch(t, []string{"a", "b", "c"}, ids)
	assert.Len(t, merged, 3)
}

func TestBasicMergerOrdersByScoreDescending(t *testing.T) {
	results := []dto.SearchResult{
		{Results: []dto.SearchResultItem{
			{ID: "low", SearchScore: 0.1},
			{ID: "high", SearchScore: 0.95},
			{ID: "mid", SearchScore: 0.5},
		}},
	}

	merged := BasicMerger{}.Merge(results)

	assert.Equal(t, "high", merged[0].ID)
	assert.Equal(t, "mid", merged[1].ID)
	assert.Equal(t, "low", merged[2].ID)
}

func TestBasicMergerEmptyInput(t *testing.T) {
	assert.Empty(t, BasicMerger{}.Merge(nil))
	assert.Empty(t, BasicMerger{}.Merge([]dto.SearchResult{{Results: nil}}))
}

func TestNewMergerDefaultsToBasic(t *testing.T) {
	assert.Equal(t, "basic", NewMerger("").Name())
	assert.Equal(t, "basic", NewMerger("basic").Name())
	assert.Equal(t, "basic", NewMerger("unknown-strategy").Name())
}
