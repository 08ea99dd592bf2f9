package implementation

import (
	"context"

	"ai-accelerator-be/internal/model"
	"ai-accelerator-be/internal/repository/contract"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type SearchDocumentRepositoryImpl struct {
	db *gorm.DB
}

func NewSearchDocumentRepository(db *gorm.DB) contract.SearchDocumentRepository {
	return &SearchDocumentRepositoryImpl{db: db}
}

func (r *SearchDocumentRepositoryImpl) CreateBulk(ctx context.Context, docs []*model.SearchDocument) error {
	if len(docs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(docs, 100).Error
}

type scoredRow struct {
	model.SearchDocument
	Score float64 `gorm:"column:score"`
}

func (r *SearchDocumentRepositoryImpl) VectorSearch(ctx context.Context, embedding pgvector.Vector, filterSQL string, filterArgs []interface{}, limit int) ([]*model.SearchDocument, []float64, error) {
	query := r.db.WithContext(ctx).
		Model(&model.SearchDocument{}).
		Select("*, 1 - (embedding <=> ?) AS score", embedding)
	if filterSQL != "" {
		query = query.Where(filterSQL, filterArgs...)
	}

	var rows []scoredRow
	err := query.
		Order(gorm.Expr("embedding <=> ?", embedding)).
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, nil, err
	}
	return splitScores(rows)
}

func (r *SearchDocumentRepositoryImpl) KeywordSearch(ctx context.Context, queryText string, filterSQL string, filterArgs []interface{}, limit int) ([]*model.SearchDocument, []float64, error) {
	query := r.db.WithContext(ctx).
		Model(&model.SearchDocument{}).
		Select("*, ts_rank(to_tsvector('english', content), plainto_tsquery('english', ?)) AS score", queryText).
		Where("to_tsvector('english', content) @@ plainto_tsquery('english', ?)", queryText)
	if filterSQL != "" {
		query = query.Where(filterSQL, filterArgs...)
	}

	var rows []scoredRow
	err := query.
		Order("score DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, nil, err
	}
	return splitScores(rows)
}

func splitScores(rows []scoredRow) ([]*model.SearchDocument, []float64, error) {
	docs := make([]*model.SearchDocument, 0, len(rows))
	scores := make([]float64, 0, len(rows))
	for i := range rows {
		doc := rows[i].SearchDocument
		docs = append(docs, &doc)
		scores = append(scores, rows[i].Score)
	}
	return docs, scores, nil
}
