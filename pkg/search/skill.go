package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"ai-accelerator-be/internal/dto"
	"ai-accelerator-be/internal/model"
	"ai-accelerator-be/internal/pkg/logger"
	"ai-accelerator-be/internal/repository/contract"
	"ai-accelerator-be/pkg/embedding"
	"ai-accelerator-be/pkg/llm"

	"github.com/pgvector/pgvector-go"
	"github.com/tidwall/gjson"
)

// Skill executes retrieval requests against the document index.
type Skill struct {
	index    *IndexConfig
	repo     contract.SearchDocumentRepository
	embedder embedding.EmbeddingProvider
	provider llm.LLMProvider
	logger   logger.ILogger
}

func NewSkill(index *IndexConfig, repo contract.SearchDocumentRepository, embedder embedding.EmbeddingProvider, provider llm.LLMProvider, log logger.ILogger) (*Skill, error) {
	if err := index.Validate(); err != nil {
		return nil, err
	}
	return &Skill{
		index:    index,
		repo:     repo,
		embedder: embedder,
		provider: provider,
		logger:   log,
	}, nil
}

// Search runs every query in the request and returns per-query results.
// Overrides narrow the mode and result count without touching stored config.
func (s *Skill) Search(ctx context.Context, req *dto.SearchRequest) (*dto.SearchResponse, error) {
	mode := resolveMode(s.index.Mode, req.SearchOverrides)

	resp := &dto.SearchResponse{Results: make([]dto.SearchResult, 0, len(req.SearchQueries))}
	for i := range req.SearchQueries {
		query := &req.SearchQueries[i]
		query.EnsureDefaults()
		if req.SearchOverrides != nil && req.SearchOverrides.Top != nil && *req.SearchOverrides.Top > 0 {
			query.MaxResultsCount = *req.SearchOverrides.Top
		}

		result, err := s.searchOne(ctx, query, mode)
		if err != nil {
			return nil, err
		}
		resp.Results = append(resp.Results, *result)
	}
	return resp, nil
}

// resolveMode layers the per-request ranker and vector knobs over the
// index's configured mode. semantic_ranker toggles the semantic variants,
// vector_search toggles the embedding pass.
func resolveMode(base SearchMode, o *dto.SearchOverrides) SearchMode {
	mode := base
	if o == nil {
		return mode
	}
	if o.SemanticRanker != nil {
		if *o.SemanticRanker {
			if mode.usesVectors() {
				mode = ModeHybridSemantic
			} else {
				mode = ModeSemantic
			}
		} else {
			switch mode {
			case ModeSemantic:
				mode = ModeKeywords
			case ModeHybridSemantic:
				mode = ModeHybridKeywords
			}
		}
	}
	if o.VectorSearch != nil {
		if *o.VectorSearch {
			switch mode {
			case ModeSemantic, ModeHybridSemantic:
				mode = ModeHybridSemantic
			default:
				mode = ModeVector
			}
		} else {
			switch mode {
			case ModeSemantic, ModeHybridSemantic:
				mode = ModeSemantic
			default:
				mode = ModeKeywords
			}
		}
	}
	return mode
}

func (s *Skill) searchOne(ctx context.Context, query *dto.SearchQuery, mode SearchMode) (*dto.SearchResult, error) {
	filterSQL, filterArgs, err := TranslateFilter(query.Filter)
	if err != nil {
		return nil, err
	}

	var items []dto.SearchResultItem
	seen := map[string]bool{}

	if mode.usesVectors() {
		vec, err := s.embedder.Generate(ctx, query.SearchQuery)
		if err != nil {
			return nil, err
		}
		docs, scores, err := s.repo.VectorSearch(ctx, pgvector.NewVector(vec), filterSQL, filterArgs, query.MaxResultsCount)
		if err != nil {
			return nil, err
		}
		appendDocs(&items, seen, docs, scores)
	}

	if mode.usesKeywords() && len(items) < query.MaxResultsCount {
		docs, scores, err := s.repo.KeywordSearch(ctx, query.SearchQuery, filterSQL, filterArgs, query.MaxResultsCount)
		if err != nil {
			return nil, err
		}
		appendDocs(&items, seen, docs, scores)
	}

	if len(items) > query.MaxResultsCount {
		items = items[:query.MaxResultsCount]
	}

	result := &dto.SearchResult{
		SearchID:        query.SearchID,
		Results:         items,
		FilterSucceeded: true,
	}
	if s.index.UseLLMPostFilter && s.provider != nil && len(items) > 0 {
		s.applyPostFilter(ctx, query, result)
	}
	return result, nil
}

func appendDocs(items *[]dto.SearchResultItem, seen map[string]bool, docs []*model.SearchDocument, scores []float64) {
	for i, doc := range docs {
		if seen[doc.ItemID] {
			continue
		}
		seen[doc.ItemID] = true

		item := dto.SearchResultItem{
			ID:          doc.ItemID,
			Content:     doc.Content,
			Category:    doc.Category,
			SourceFile:  doc.SourceFile,
			SourcePage:  doc.SourcePage,
			SearchScore: scores[i],
		}
		if len(doc.Fields) > 0 {
			_ = json.Unmarshal(doc.Fields, &item.Extra)
		}
		*items = append(*items, item)
	}
}

const postFilterPrompt = `You are a relevance judge. Given a user query and a list of search results,
return a JSON object {"ids": [...]} containing only the ids of results that are
relevant to the query. Return JSON only.`

// applyPostFilter asks the model to keep only relevant hits. Any failure
// leaves the result set untouched and marks filter_succeeded false.
func (s *Skill) applyPostFilter(ctx context.Context, query *dto.SearchQuery, result *dto.SearchResult) {
	var listing strings.Builder
	for _, item := range result.Results {
		fmt.Fprintf(&listing, "id: %s | content: %s\n", item.ID, item.Content)
	}

	raw, err := s.provider.Chat(ctx, []llm.Message{
		{Role: "system", Content: postFilterPrompt},
		{Role: "user", Content: "Query: " + query.SearchQuery + "\n\nResults:\n" + listing.String()},
	}, llm.WithTemperature(0), llm.WithJSONOutput())
	if err != nil {
		s.logger.Warn("search_skill", "llm post-filter failed, keeping unfiltered results", map[string]interface{}{
			"search_id": query.SearchID,
			"error":     err.Error(),
		})
		result.FilterSucceeded = false
		return
	}

	parsed := gjson.Get(raw, "ids")
	if !parsed.IsArray() {
		s.logger.Warn("search_skill", "llm post-filter returned no id array", map[string]interface{}{
			"search_id": query.SearchID,
		})
		result.FilterSucceeded = false
		return
	}

	keep := map[string]bool{}
	for _, id := range parsed.Array() {
		keep[id.String()] = true
	}

	filtered := make([]dto.SearchResultItem, 0, len(result.Results))
	for _, item := range result.Results {
		if keep[item.ID] {
			filtered = append(filtered, item)
		}
	}
	// Never filter below the floor the caller asked for.
	if len(filtered) >= query.MinResultsCount {
		result.Results = filtered
	}
}
