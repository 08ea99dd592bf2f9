package implementation

import (
	"context"
	"errors"
	"strings"

	"ai-accelerator-be/internal/apperror"
	"ai-accelerator-be/internal/model"
	"ai-accelerator-be/internal/repository/contract"

	"gorm.io/gorm"
)

type ConfigDocumentRepositoryImpl struct {
	db *gorm.DB
}

func NewConfigDocumentRepository(db *gorm.DB) contract.ConfigDocumentRepository {
	return &ConfigDocumentRepositoryImpl{db: db}
}

func (r *ConfigDocumentRepositoryImpl) Create(ctx context.Context, doc *model.ConfigDocument) error {
	if err := r.db.WithContext(ctx).Create(doc).Error; err != nil {
		if isDuplicateKey(err) {
			return apperror.Wrap(apperror.KindConflict, "configuration version already exists", err)
		}
		return err
	}
	return nil
}

func (r *ConfigDocumentRepositoryImpl) FindOne(ctx context.Context, configType, configVersion string) (*model.ConfigDocument, error) {
	var m model.ConfigDocument
	err := r.db.WithContext(ctx).
		Where("config_type = ? AND config_version = ?", configType, configVersion).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func (r *ConfigDocumentRepositoryImpl) FindAllByType(ctx context.Context, configType string) ([]*model.ConfigDocument, error) {
	var models []*model.ConfigDocument
	err := r.db.WithContext(ctx).
		Where("config_type = ?", configType).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return models, nil
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// Postgres unique_violation surfaces as SQLSTATE 23505 when the gorm
	// translator is not active.
	return strings.Contains(err.Error(), "23505") || strings.Contains(err.Error(), "duplicate key")
}
