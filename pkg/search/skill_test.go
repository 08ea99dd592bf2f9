package search

import (
	"testing"

	"ai-accelerator-be/internal/dto"

	"github.com/stretchr/testify/assert"
)

func boolPtr(v bool) *bool { return &v }

func TestResolveMode(t *testing.T) {
	tests := []struct {
		name      string
		base      SearchMode
		overrides *dto.SearchOverrides
		want      SearchMode
	}{
		{"no overrides keeps index mode", ModeHybridKeywords, nil, ModeHybridKeywords},
		{"empty overrides keep index mode", ModeHybridKeywords, &dto.SearchOverrides{}, ModeHybridKeywords},
		{"semantic ranker upgrades vector-backed mode", ModeHybridKeywords,
			&dto.SearchOverrides{SemanticRanker: boolPtr(true)}, ModeHybridSemantic},
		{"semantic ranker on lexical mode", ModeKeywords,
			&dto.SearchOverrides{SemanticRanker: boolPtr(true)}, ModeSemantic},
		{"semantic ranker off downgrades semantic", ModeSemantic,
			&dto.SearchOverrides{SemanticRanker: boolPtr(false)}, ModeKeywords},
		{"semantic ranker off downgrades hybrid semantic", ModeHybridSemantic,
			&dto.SearchOverrides{SemanticRanker: boolPtr(false)}, ModeHybridKeywords},
		{"vector on forces vector mode", ModeKeywords,
			&dto.SearchOverrides{VectorSearch: boolPtr(true)}, ModeVector},
		{"vector on keeps semantic ranking", ModeHybridSemantic,
			&dto.SearchOverrides{VectorSearch: boolPtr(true)}, ModeHybridSemantic},
		{"vector off falls back to keywords", ModeHybridKeywords,
			&dto.SearchOverrides{VectorSearch: boolPtr(false)}, ModeKeywords},
		{"vector off keeps semantic pass", ModeHybridSemantic,
			&dto.SearchOverrides{VectorSearch: boolPtr(false)}, ModeSemantic},
		{"both knobs combine", ModeKeywords,
			&dto.SearchOverrides{SemanticRanker: boolPtr(true), VectorSearch: boolPtr(true)}, ModeHybridSemantic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resolveMode(tt.base, tt.overrides))
		})
	}
}
