package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type GenerationJob struct {
	Id            uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SourceId      uuid.UUID      `gorm:"type:uuid;not null;index"`
	ScopeId       string         `gorm:"type:varchar(255);not null;index"`
	SourceKey     string         `gorm:"type:varchar(255);not null"`
	Requirements  datatypes.JSON `gorm:"type:jsonb"`
	State         string         `gorm:"type:varchar(32);not null;index"`
	Drafts        datatypes.JSON `gorm:"type:jsonb"`
	Failures      datatypes.JSON `gorm:"type:jsonb"`
	ChunkCount    int            `gorm:"default:0"`
	FailureReason string         `gorm:"type:text"`
	ReviewedBy    string         `gorm:"type:varchar(255)"`
	ReviewNote    string         `gorm:"type:text"`
	CreatedAt     time.Time      `gorm:"autoCreateTime"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime"`
	CompletedAt   *time.Time
}

func (GenerationJob) TableName() string {
	return "generation_jobs"
}
