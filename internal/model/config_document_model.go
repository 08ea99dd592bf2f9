package model

import (
	"time"

	"gorm.io/datatypes"
)

// ConfigDocument is a registry row. (config_type, config_version) is the
// natural key; rows are create-only and never mutated.
type ConfigDocument struct {
	ConfigType    string         `gorm:"type:text;primaryKey"`
	ConfigVersion string         `gorm:"type:text;primaryKey"`
	ConfigBody    datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt     time.Time      `gorm:"autoCreateTime"`
}

func (ConfigDocument) TableName() string {
	return "config_documents"
}
