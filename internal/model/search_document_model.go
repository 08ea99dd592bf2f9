package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// SearchDocument is one retrievable chunk in the search corpus. Embedding
// dimension matches text-embedding-3-small.
type SearchDocument struct {
	Id         uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ItemID     string          `gorm:"type:text;not null;uniqueIndex"`
	Content    string          `gorm:"type:text;not null"`
	Category   string          `gorm:"type:text;index"`
	SourceFile string          `gorm:"type:text"`
	SourcePage string          `gorm:"type:text"`
	Fields     datatypes.JSON  `gorm:"type:jsonb"` // extra projected select fields
	Embedding  pgvector.Vector `gorm:"type:vector(1536)"`
	CreatedAt  time.Time       `gorm:"autoCreateTime"`
}

func (SearchDocument) TableName() string {
	return "search_documents"
}
