package dto

import "github.com/google/uuid"

type FilterType string

const (
	FilterEquals          FilterType = "EQUALS"
	FilterNotEquals       FilterType = "NOT_EQUALS"
	FilterGreaterOrEquals FilterType = "GREATER_OR_EQUALS"
	FilterLesserOrEquals  FilterType = "LESSER_OR_EQUALS"
	FilterContains        FilterType = "CONTAINS"
)

type LogicalOperator string

const (
	LogicalAnd LogicalOperator = "AND"
	LogicalOr  LogicalOperator = "OR"
)

// SearchFilter applies one predicate on an index field.
type SearchFilter struct {
	FieldName  string     `json:"field_name" validate:"required"`
	FieldValue string     `json:"field_value" validate:"required"`
	FilterType FilterType `json:"filter_type" validate:"required"`
}

// Filter is a conjunction/disjunction of search filters.
type Filter struct {
	SearchFilters   []SearchFilter  `json:"search_filters"`
	LogicalOperator LogicalOperator `json:"logical_operator,omitempty"`
}

// SearchQuery is a single self-contained query against the index.
type SearchQuery struct {
	SearchQuery     string  `json:"search_query" validate:"required"`
	Filter          *Filter `json:"filter,omitempty"`
	MinResultsCount int     `json:"min_results_count"`
	MaxResultsCount int     `json:"max_results_count"`
	SearchID        string  `json:"search_id"`
}

// EnsureDefaults fills contract defaults for counts and the search id.
func (q *SearchQuery) EnsureDefaults() {
	if q.MinResultsCount <= 0 {
		q.MinResultsCount = 1
	}
	if q.MaxResultsCount <= 0 {
		q.MaxResultsCount = 3
	}
	if q.SearchID == "" {
		q.SearchID = uuid.NewString()
	}
}

// SearchRequest is a collection of search queries processed together.
type SearchRequest struct {
	SearchQueries   []SearchQuery    `json:"search_queries" validate:"required,min=1"`
	SearchOverrides *SearchOverrides `json:"search_overrides,omitempty"`
}

// SearchResultItem is one projected index hit. Every item carries the
// originating search_id and the index's declared select fields.
type SearchResultItem struct {
	ID          string                 `json:"id"`
	Content     string                 `json:"content"`
	Category    string                 `json:"category"`
	SourceFile  string                 `json:"sourceFile,omitempty"`
	SourcePage  string                 `json:"sourcePage,omitempty"`
	SearchScore float64                `json:"search_score"`
	Extra       map[string]interface{} `json:"extra,omitempty"`
}

func (r SearchResultItem) String() string {
	if r.SourcePage != "" {
		return r.SourcePage + ":" + r.Content
	}
	return r.ID + ":" + r.Content
}

// SearchResult holds one query's hits plus post-filter status.
type SearchResult struct {
	SearchID        string             `json:"search_id"`
	Results         []SearchResultItem `json:"search_results"`
	FilterSucceeded bool               `json:"filter_succeeded"`
}

// SearchResponse is the retrieval skill's reply for a SearchRequest.
type SearchResponse struct {
	Results []SearchResult `json:"results"`
}
