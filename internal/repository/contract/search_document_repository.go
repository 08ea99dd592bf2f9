package contract

import (
	"context"

	"ai-accelerator-be/internal/model"

	"github.com/pgvector/pgvector-go"
)

// SearchDocumentRepository serves the retrieval skill's index operations.
// The filter clause is produced by the skill's filter translator and applied
// verbatim with its arguments.
type SearchDocumentRepository interface {
	CreateBulk(ctx context.Context, docs []*model.SearchDocument) error
	VectorSearch(ctx context.Context, embedding pgvector.Vector, filterSQL string, filterArgs []interface{}, limit int) ([]*model.SearchDocument, []float64, error)
	KeywordSearch(ctx context.Context, query string, filterSQL string, filterArgs []interface{}, limit int) ([]*model.SearchDocument, []float64, error)
}
