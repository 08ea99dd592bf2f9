package contract

import (
	"context"

	"ai-accelerator-be/internal/model"
)

type ConfigDocumentRepository interface {
	// Create persists a new (config_type, config_version) row. Returns
	// apperror.KindConflict when the key already exists.
	Create(ctx context.Context, doc *model.ConfigDocument) error
	FindOne(ctx context.Context, configType, configVersion string) (*model.ConfigDocument, error)
	FindAllByType(ctx context.Context, configType string) ([]*model.ConfigDocument, error)
}
