package mapper

import (
	"testing"
	"time"

	"ai-tutoring-be/internal/entity"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerationMapper_JobKeepsStateAndDrafts(t *testing.T) {
	m := NewGenerationMapper()
	job := &entity.GenerationJob{
		Id:           uuid.New(),
		SourceId:     uuid.New(),
		ScopeId:      "course-1",
		SourceKey:    "intro",
		Requirements: entity.Requirements{Topic: "variables", RequestedCount: 2, Difficulty: "easy"},
		State:        entity.JobAwaitingReview,
		Drafts: []entity.ExerciseDraft{{
			Title:     "Swap two variables",
			TestCases: []entity.TestCase{{Input: "1 2", ExpectedOutput: "2 1"}},
		}},
		Failures: []entity.DraftFailure{{Index: 1, Stage: "parse", Reason: "missing title"}},
	}

	back, err := m.JobToEntity(m.JobToModel(job))
	require.NoError(t, err)
	assert.Equal(t, entity.JobAwaitingReview, back.State)
	assert.Equal(t, job.Requirements, back.Requirements)
	assert.Equal(t, job.Drafts, back.Drafts)
	assert.Equal(t, job.Failures, back.Failures)
}

func TestGenerationMapper_UnknownStateIsAnError(t *testing.T) {
	m := NewGenerationMapper()
	mod := m.JobToModel(&entity.GenerationJob{State: entity.JobGenerating})
	mod.State = "PAUSED"

	_, err := m.JobToEntity(mod)
	assert.Error(t, err)
}

func TestTutorMapper_SessionWithoutExercise(t *testing.T) {
	m := NewTutorMapper()
	now := time.Now()
	s := &entity.TutoringSession{
		Id:        uuid.New(),
		StudentId: "s1",
		Phase:     entity.PhaseApplication,
		Turns:     []entity.DialogueTurn{{Index: 0, Reply: "What do you think?", CreatedAt: now.UTC()}},
	}

	back, err := m.SessionToEntity(m.SessionToModel(s))
	require.NoError(t, err)
	assert.Nil(t, back.Exercise)
	assert.Equal(t, entity.PhaseApplication, back.Phase)
	require.Len(t, back.Turns, 1)
	assert.Equal(t, "What do you think?", back.Turns[0].Reply)
}
