package mapper

import (
	"encoding/json"
	"fmt"

	"ai-tutoring-be/internal/entity"
	"ai-tutoring-be/internal/model"

	"gorm.io/datatypes"
)

type GenerationMapper struct{}

func NewGenerationMapper() *GenerationMapper {
	return &GenerationMapper{}
}

func (m *GenerationMapper) SourceToEntity(s *model.LearningSource) *entity.LearningSource {
	if s == nil {
		return nil
	}
	return &entity.LearningSource{
		Id:           s.Id,
		ScopeId:      s.ScopeId,
		SourceKey:    s.SourceKey,
		Title:        s.Title,
		SourceType:   s.SourceType,
		Content:      s.Content,
		ContentHash:  s.ContentHash,
		SupersedesId: s.SupersedesId,
		CreatedAt:    s.CreatedAt,
	}
}

func (m *GenerationMapper) SourceToModel(s *entity.LearningSource) *model.LearningSource {
	if s == nil {
		return nil
	}
	return &model.LearningSource{
		Id:           s.Id,
		ScopeId:      s.ScopeId,
		SourceKey:    s.SourceKey,
		Title:        s.Title,
		SourceType:   s.SourceType,
		Content:      s.Content,
		ContentHash:  s.ContentHash,
		SupersedesId: s.SupersedesId,
		CreatedAt:    s.CreatedAt,
	}
}

func (m *GenerationMapper) JobToEntity(j *model.GenerationJob) (*entity.GenerationJob, error) {
	if j == nil {
		return nil, nil
	}

	state, err := entity.ParseJobState(j.State)
	if err != nil {
		return nil, err
	}

	job := &entity.GenerationJob{
		Id:            j.Id,
		SourceId:      j.SourceId,
		ScopeId:       j.ScopeId,
		SourceKey:     j.SourceKey,
		State:         state,
		ChunkCount:    j.ChunkCount,
		FailureReason: j.FailureReason,
		ReviewedBy:    j.ReviewedBy,
		ReviewNote:    j.ReviewNote,
		CreatedAt:     j.CreatedAt,
		UpdatedAt:     j.UpdatedAt,
		CompletedAt:   j.CompletedAt,
	}
	if err := decodeJSON(j.Requirements, &job.Requirements); err != nil {
		return nil, fmt.Errorf("requirements: %w", err)
	}
	if err := decodeJSON(j.Drafts, &job.Drafts); err != nil {
		return nil, fmt.Errorf("drafts: %w", err)
	}
	if err := decodeJSON(j.Failures, &job.Failures); err != nil {
		return nil, fmt.Errorf("failures: %w", err)
	}
	return job, nil
}

func (m *GenerationMapper) JobToModel(j *entity.GenerationJob) *model.GenerationJob {
	if j == nil {
		return nil
	}
	return &model.GenerationJob{
		Id:            j.Id,
		SourceId:      j.SourceId,
		ScopeId:       j.ScopeId,
		SourceKey:     j.SourceKey,
		Requirements:  encodeJSON(j.Requirements),
		State:         j.State.String(),
		Drafts:        encodeJSON(j.Drafts),
		Failures:      encodeJSON(j.Failures),
		ChunkCount:    j.ChunkCount,
		FailureReason: j.FailureReason,
		ReviewedBy:    j.ReviewedBy,
		ReviewNote:    j.ReviewNote,
		CreatedAt:     j.CreatedAt,
		UpdatedAt:     j.UpdatedAt,
		CompletedAt:   j.CompletedAt,
	}
}

// encodeJSON marshals plain data structs; those cannot fail to encode.
func encodeJSON(v interface{}) datatypes.JSON {
	b, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("null")
	}
	return datatypes.JSON(b)
}

func decodeJSON(data datatypes.JSON, v interface{}) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	return json.Unmarshal(data, v)
}
