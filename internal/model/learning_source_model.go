package model

import (
	"time"

	"github.com/google/uuid"
)

type LearningSource struct {
	Id           uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ScopeId      string     `gorm:"type:varchar(255);not null;index:idx_source_scope_key"`
	SourceKey    string     `gorm:"type:varchar(255);not null;index:idx_source_scope_key"`
	Title        string     `gorm:"type:varchar(255)"`
	SourceType   string     `gorm:"type:varchar(32);not null"`
	Content      string     `gorm:"type:text;not null"`
	ContentHash  string     `gorm:"type:varchar(64)"`
	SupersedesId *uuid.UUID `gorm:"type:uuid"`
	CreatedAt    time.Time  `gorm:"autoCreateTime"`
}

func (LearningSource) TableName() string {
	return "learning_sources"
}
