package contract

import (
	"context"

	"ai-accelerator-be/internal/model"
)

type ConversationRepository interface {
	FindOne(ctx context.Context, partitionKey string) (*model.Conversation, error)
	Create(ctx context.Context, conversation *model.Conversation) error
	// UpdateDialogs performs an optimistic write: it succeeds only when the
	// stored version still equals expectedVersion.
	UpdateDialogs(ctx context.Context, conversation *model.Conversation, expectedVersion int64) error
	Delete(ctx context.Context, partitionKey string) error
}
