package implementation

import (
	"context"
	"errors"

	"ai-accelerator-be/internal/apperror"
	"ai-accelerator-be/internal/model"
	"ai-accelerator-be/internal/repository/contract"

	"gorm.io/gorm"
)

type ConversationRepositoryImpl struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) contract.ConversationRepository {
	return &ConversationRepositoryImpl{db: db}
}

func (r *ConversationRepositoryImpl) FindOne(ctx context.Context, partitionKey string) (*model.Conversation, error) {
	var m model.Conversation
	err := r.db.WithContext(ctx).Where("partition_key = ?", partitionKey).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func (r *ConversationRepositoryImpl) Create(ctx context.Context, conversation *model.Conversation) error {
	if err := r.db.WithContext(ctx).Create(conversation).Error; err != nil {
		if isDuplicateKey(err) {
			return apperror.Wrap(apperror.KindConflict, "conversation already exists", err)
		}
		return err
	}
	return nil
}

func (r *ConversationRepositoryImpl) UpdateDialogs(ctx context.Context, conversation *model.Conversation, expectedVersion int64) error {
	result := r.db.WithContext(ctx).
		Model(&model.Conversation{}).
		Where("partition_key = ? AND version = ?", conversation.PartitionKey, expectedVersion).
		Updates(map[string]interface{}{
			"dialogs": conversation.Dialogs,
			"version": expectedVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperror.New(apperror.KindConflict, "conversation was modified concurrently")
	}
	conversation.Version = expectedVersion + 1
	return nil
}

func (r *ConversationRepositoryImpl) Delete(ctx context.Context, partitionKey string) error {
	return r.db.WithContext(ctx).
		Where("partition_key = ?", partitionKey).
		Delete(&model.Conversation{}).Error
}
