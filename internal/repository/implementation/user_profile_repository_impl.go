package implementation

import (
	"context"
	"errors"

	"ai-accelerator-be/internal/apperror"
	"ai-accelerator-be/internal/model"
	"ai-accelerator-be/internal/repository/contract"

	"gorm.io/gorm"
)

type UserProfileRepositoryImpl struct {
	db *gorm.DB
}

func NewUserProfileRepository(db *gorm.DB) contract.UserProfileRepository {
	return &UserProfileRepositoryImpl{db: db}
}

func (r *UserProfileRepositoryImpl) Create(ctx context.Context, profile *model.UserProfile) error {
	if profile.PartitionKey == "" {
		profile.PartitionKey = "user"
	}
	if err := r.db.WithContext(ctx).Create(profile).Error; err != nil {
		if isDuplicateKey(err) {
			return apperror.Wrap(apperror.KindConflict, "user profile already exists", err)
		}
		return err
	}
	return nil
}

func (r *UserProfileRepositoryImpl) FindOne(ctx context.Context, userID string) (*model.UserProfile, error) {
	var m model.UserProfile
	err := r.db.WithContext(ctx).Where("id = ?", userID).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func (r *UserProfileRepositoryImpl) FindAll(ctx context.Context) ([]*model.UserProfile, error) {
	var models []*model.UserProfile
	err := r.db.WithContext(ctx).
		Where("partition_key = ?", "user").
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return models, nil
}
