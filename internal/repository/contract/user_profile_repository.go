package contract

import (
	"context"

	"ai-accelerator-be/internal/model"
)

type UserProfileRepository interface {
	Create(ctx context.Context, profile *model.UserProfile) error
	FindOne(ctx context.Context, userID string) (*model.UserProfile, error)
	FindAll(ctx context.Context) ([]*model.UserProfile, error)
}
