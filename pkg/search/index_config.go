package search

import (
	"ai-accelerator-be/internal/apperror"
)

// SearchMode selects the retrieval strategy per index.
type SearchMode string

const (
	ModeKeywords       SearchMode = "keywords"
	ModeSemantic       SearchMode = "semantic"
	ModeVector         SearchMode = "vector"
	ModeHybridKeywords SearchMode = "hybrid_keywords"
	ModeHybridSemantic SearchMode = "hybrid_semantic"
)

func (m SearchMode) Valid() bool {
	switch m {
	case ModeKeywords, ModeSemantic, ModeVector, ModeHybridKeywords, ModeHybridSemantic:
		return true
	}
	return false
}

// usesVectors reports whether the mode needs query embeddings.
func (m SearchMode) usesVectors() bool {
	switch m {
	case ModeVector, ModeHybridKeywords, ModeHybridSemantic:
		return true
	}
	return false
}

// usesKeywords reports whether the mode needs a lexical pass.
func (m SearchMode) usesKeywords() bool {
	switch m {
	case ModeKeywords, ModeSemantic, ModeHybridKeywords, ModeHybridSemantic:
		return true
	}
	return false
}

// FieldConfig declares one retrievable index field.
type FieldConfig struct {
	Name       string `json:"name" yaml:"name"`
	IsItemID   bool   `json:"is_item_id,omitempty" yaml:"is_item_id,omitempty"`
	Filterable bool   `json:"filterable,omitempty" yaml:"filterable,omitempty"`
}

// IndexConfig describes one search index: its fields, mode and post-filter.
type IndexConfig struct {
	Name              string        `json:"name" yaml:"name"`
	Mode              SearchMode    `json:"mode" yaml:"mode"`
	SelectFields      []FieldConfig `json:"select_fields" yaml:"select_fields"`
	UseLLMPostFilter  bool          `json:"use_llm_post_filter,omitempty" yaml:"use_llm_post_filter,omitempty"`
	SemanticRanker    bool          `json:"semantic_ranker,omitempty" yaml:"semantic_ranker,omitempty"`
	DefaultMaxResults int           `json:"default_max_results,omitempty" yaml:"default_max_results,omitempty"`
}

// Validate enforces the structural invariants: a known mode and exactly one
// field marked is_item_id.
func (c *IndexConfig) Validate() error {
	if !c.Mode.Valid() {
		return apperror.Newf(apperror.KindValidation, "index %q declares unknown search mode %q", c.Name, c.Mode)
	}
	itemIDCount := 0
	for _, field := range c.SelectFields {
		if field.IsItemID {
			itemIDCount++
		}
	}
	if itemIDCount != 1 {
		return apperror.Newf(apperror.KindValidation,
			"index %q must declare exactly one is_item_id field, found %d", c.Name, itemIDCount)
	}
	return nil
}

// ItemIDField returns the declared item id field name.
func (c *IndexConfig) ItemIDField() string {
	for _, field := range c.SelectFields {
		if field.IsItemID {
			return field.Name
		}
	}
	return ""
}
