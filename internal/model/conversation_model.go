package model

import (
	"time"

	"gorm.io/datatypes"
)

// Conversation holds the append-only dialog log for one
// (user_id, conversation_id) pair. PartitionKey is "user_id|conversation_id"
// and serializes writers per item.
type Conversation struct {
	PartitionKey   string         `gorm:"type:text;primaryKey"`
	UserID         string         `gorm:"type:text;not null;index"`
	ConversationID string         `gorm:"type:text;not null"`
	Dialogs        datatypes.JSON `gorm:"type:jsonb;not null"`
	Version        int64          `gorm:"not null;default:0"` // optimistic concurrency token
	CreatedAt      time.Time      `gorm:"autoCreateTime"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime"`
}

func (Conversation) TableName() string {
	return "conversations"
}

func ConversationPartitionKey(userID, conversationID string) string {
	return userID + "|" + conversationID
}
