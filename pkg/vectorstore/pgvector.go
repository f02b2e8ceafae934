package vectorstore

import (
	"context"

	"ai-tutoring-be/internal/model"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PgVectorStore keeps chunks in the content_chunks table and ranks them with
// pgvector cosine distance.
type PgVectorStore struct {
	db *gorm.DB
}

func NewPgVectorStore(db *gorm.DB) *PgVectorStore {
	return &PgVectorStore{db: db}
}

func (s *PgVectorStore) Index(ctx context.Context, collection, sourceKey string, records []Record) error {
	models := make([]*model.ContentChunk, len(records))
	for i, r := range records {
		models[i] = &model.ContentChunk{
			Id:             r.ChunkID,
			Collection:     collection,
			SourceKey:      sourceKey,
			ChunkIndex:     r.Index,
			Document:       r.Text,
			EmbeddingValue: pgvector.NewVector(r.Embedding),
		}
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("collection = ? AND source_key = ?", collection, sourceKey).
			Delete(&model.ContentChunk{}).Error; err != nil {
			return err
		}
		if len(models) == 0 {
			return nil
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).CreateInBatches(models, 100).Error
	})
}

func (s *PgVectorStore) Query(ctx context.Context, collection string, embedding []float32, k int) ([]Match, error) {
	if k <= 0 {
		return nil, nil
	}

	type result struct {
		Id         string
		SourceKey  string
		ChunkIndex int
		Document   string
		Similarity float64
	}
	var results []result

	queryVector := pgvector.NewVector(embedding)

	// 1 - cosine distance = cosine similarity
	err := s.db.WithContext(ctx).
		Table("content_chunks").
		Select("id, source_key, chunk_index, document, 1 - (embedding_value <=> ?) as similarity", queryVector).
		Where("collection = ?", collection).
		Order("similarity DESC").
		Order("created_at ASC").
		Order("chunk_index ASC").
		Limit(k).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	matches := make([]Match, len(results))
	for i, r := range results {
		matches[i] = Match{
			ChunkID:   r.Id,
			SourceKey: r.SourceKey,
			Index:     r.ChunkIndex,
			Text:      r.Document,
			Score:     r.Similarity,
		}
	}
	return matches, nil
}
