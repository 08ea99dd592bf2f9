package model

import (
	"time"

	"gorm.io/datatypes"
)

// UserProfile rows live in the "user" partition and are created once.
type UserProfile struct {
	ID            string         `gorm:"type:text;primaryKey"`
	PartitionKey  string         `gorm:"type:text;not null;default:'user'"`
	UserName      string         `gorm:"type:text;not null"`
	Description   string         `gorm:"type:text"`
	Gender        string         `gorm:"type:text"`
	Role          string         `gorm:"type:text"`
	SampleQueries datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt     time.Time      `gorm:"autoCreateTime"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime"`
}

func (UserProfile) TableName() string {
	return "user_profiles"
}
