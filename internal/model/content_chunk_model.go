package model

import (
	"time"

	"github.com/pgvector/pgvector-go"
)

// ContentChunk is one indexed window of a learning source. Id is derived
// from (collection, source key, chunk index) so re-indexing overwrites
// instead of adding.
type ContentChunk struct {
	Id             string          `gorm:"type:varchar(64);primaryKey"`
	Collection     string          `gorm:"type:varchar(255);not null;index:idx_chunk_collection_source"`
	SourceKey      string          `gorm:"type:varchar(255);not null;index:idx_chunk_collection_source"`
	ChunkIndex     int             `gorm:"default:0"`
	Document       string          `gorm:"type:text"`
	EmbeddingValue pgvector.Vector `gorm:"type:vector(768)"`
	CreatedAt      time.Time       `gorm:"autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime"`
}

func (ContentChunk) TableName() string {
	return "content_chunks"
}
