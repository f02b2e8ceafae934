package mapper

import (
	"fmt"

	"ai-tutoring-be/internal/entity"
	"ai-tutoring-be/internal/model"
)

type TutorMapper struct{}

func NewTutorMapper() *TutorMapper {
	return &TutorMapper{}
}

func (m *TutorMapper) SessionToEntity(s *model.TutoringSession) (*entity.TutoringSession, error) {
	if s == nil {
		return nil, nil
	}

	phase, err := entity.ParseCognitivePhase(s.Phase)
	if err != nil {
		return nil, err
	}

	session := &entity.TutoringSession{
		Id:                s.Id,
		StudentId:         s.StudentId,
		ActivityId:        s.ActivityId,
		Phase:             phase,
		HintLevel:         s.HintLevel,
		Frustration:       s.Frustration,
		Understanding:     s.Understanding,
		TurnsInPhase:      s.TurnsInPhase,
		ConsecutiveErrors: s.ConsecutiveErrors,
		Ended:             s.Ended,
		EndedAt:           s.EndedAt,
		LastActivityAt:    s.LastActivityAt,
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
	}
	if err := decodeJSON(s.Exercise, &session.Exercise); err != nil {
		return nil, fmt.Errorf("exercise: %w", err)
	}
	if err := decodeJSON(s.Turns, &session.Turns); err != nil {
		return nil, fmt.Errorf("turns: %w", err)
	}
	return session, nil
}

func (m *TutorMapper) SessionToModel(s *entity.TutoringSession) *model.TutoringSession {
	if s == nil {
		return nil
	}
	return &model.TutoringSession{
		Id:                s.Id,
		StudentId:         s.StudentId,
		ActivityId:        s.ActivityId,
		Phase:             s.Phase.String(),
		HintLevel:         s.HintLevel,
		Frustration:       s.Frustration,
		Understanding:     s.Understanding,
		TurnsInPhase:      s.TurnsInPhase,
		ConsecutiveErrors: s.ConsecutiveErrors,
		Exercise:          encodeJSON(s.Exercise),
		Turns:             encodeJSON(s.Turns),
		Ended:             s.Ended,
		EndedAt:           s.EndedAt,
		LastActivityAt:    s.LastActivityAt,
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
	}
}
