package generation

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"ai-tutoring-be/internal/config"
	"ai-tutoring-be/internal/entity"
	"ai-tutoring-be/internal/pkg/logger"
	"ai-tutoring-be/internal/repository/contract"
	"ai-tutoring-be/internal/repository/memory"
	"ai-tutoring-be/pkg/ai/gateway"
	"ai-tutoring-be/pkg/embedding"
	"ai-tutoring-be/pkg/llm"
	"ai-tutoring-be/pkg/llm/mock"
	"ai-tutoring-be/pkg/vectorstore"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type repoTracker struct {
	repo contract.GenerationJobRepository
}

func (t *repoTracker) Checkpoint(ctx context.Context, job *entity.GenerationJob, expected entity.JobState) error {
	ok, err := t.repo.CompareAndSwap(ctx, job, expected)
	if err != nil {
		return err
	}
	if !ok {
		return ErrJobClosed
	}
	return nil
}

type fixture struct {
	provider *mock.Provider
	repo     contract.GenerationJobRepository
	store    *vectorstore.MemoryStore
	pipeline *Pipeline
}

func newFixture(t *testing.T, providerErr error) *fixture {
	t.Helper()
	provider := mock.NewProvider()
	repo := memory.NewGenerationJobRepository(memory.NewStore())
	store := vectorstore.NewMemoryStore()
	log := logger.NewNopLogger()

	var p llm.LLMProvider = provider
	if providerErr != nil {
		p = nil
	}
	model := gateway.NewModelGateway(p, providerErr, gateway.RetryPolicy{MaxAttempts: 1}, 0, log)
	retrieval := gateway.NewRetrievalGateway(store, embedding.NewHashingProvider(256), nil, gateway.RetrievalOptions{}, log)

	return &fixture{
		provider: provider,
		repo:     repo,
		store:    store,
		pipeline: NewPipeline(model, retrieval, &repoTracker{repo: repo}, config.DefaultTuning(), log),
	}
}

func (f *fixture) newJob(t *testing.T, req entity.Requirements) *entity.GenerationJob {
	t.Helper()
	job := &entity.GenerationJob{
		Id:           uuid.New(),
		SourceId:     uuid.New(),
		ScopeId:      "course-1",
		SourceKey:    "variables-intro",
		Requirements: req,
		State:        entity.JobIngesting,
	}
	require.NoError(t, f.repo.Create(context.Background(), job))
	return job
}

func source(content string) *entity.LearningSource {
	return &entity.LearningSource{Id: uuid.New(), ScopeId: "course-1", SourceKey: "variables-intro", SourceType: "text", Content: content}
}

func draftJSON(title string) string {
	return fmt.Sprintf(`{"title": %q, "description": "Declare a variable and print it.", "difficulty": "easy",
"concept_tags": ["variables"], "starter_code": "x = None\nprint(x)", "reference_solution": "x = 5\nprint(x)",
"test_cases": [{"input": "", "expected_output": "5"}]}`, title)
}

const material = "A variable is a name that refers to a value. Assignment binds a name with the equals sign.\n\n" +
	"Variables can be reassigned. The type follows the value, not the name."

func TestPipeline_GeneratesRequestedDrafts(t *testing.T) {
	f := newFixture(t, nil)
	var calls int32
	f.provider.Handler = func([]llm.Message) mock.Reply {
		n := atomic.AddInt32(&calls, 1)
		return mock.Reply{Content: "```json\n" + draftJSON(fmt.Sprintf("Variables practice %d", n)) + "\n```"}
	}
	job := f.newJob(t, entity.Requirements{Topic: "variables", RequestedCount: 2})

	out, err := f.pipeline.Run(context.Background(), job, source(material))
	require.NoError(t, err)

	assert.Equal(t, entity.JobAwaitingReview, out.State)
	require.Len(t, out.Drafts, 2)
	for _, d := range out.Drafts {
		assert.Equal(t, "easy", d.Difficulty)
		assert.NotEmpty(t, d.TestCases)
		assert.NotEmpty(t, d.Title)
		assert.NotEmpty(t, d.ReferenceSolution)
		assert.Equal(t, int(1), d.ParseTier)
	}
	assert.Equal(t, 2, out.GeneratedCount())
	assert.Equal(t, 2, out.RequestedCount())
	assert.NotNil(t, out.CompletedAt)

	stored, err := f.repo.FindByID(context.Background(), job.Id)
	require.NoError(t, err)
	assert.Equal(t, entity.JobAwaitingReview, stored.State)
	assert.Len(t, stored.Drafts, 2)

	// retrieved material is part of the prompt
	assert.Contains(t, f.provider.LastCall().History[1].Content, "Course material:\n[1]")
}

func TestPipeline_PartialSuccessIsCounted(t *testing.T) {
	f := newFixture(t, nil)
	f.provider.Enqueue(
		mock.Reply{Content: draftJSON("First")},
		mock.Reply{Content: "Sorry, I cannot help with that."},
		mock.Reply{Content: "Still no JSON here."},
	)
	job := f.newJob(t, entity.Requirements{Topic: "variables", RequestedCount: 2})

	out, err := f.pipeline.Run(context.Background(), job, source(material))
	require.NoError(t, err)

	assert.Equal(t, entity.JobAwaitingReview, out.State)
	assert.Len(t, out.Drafts, 1)
	require.Len(t, out.Failures, 1)
	assert.Equal(t, 1, out.Failures[0].Index)
	assert.Equal(t, "parse", out.Failures[0].Stage)
	assert.Equal(t, 3, f.provider.CallCount(), "the unparseable answer gets exactly one re-prompt")
}

func TestPipeline_RepromptRecoversIncompleteAnswer(t *testing.T) {
	f := newFixture(t, nil)
	f.provider.Enqueue(
		mock.Reply{Content: `Here you go: {"title": "Counter", "description": "Count to three."}`},
		mock.Reply{Content: draftJSON("Counter")},
	)
	job := f.newJob(t, entity.Requirements{Topic: "variables", RequestedCount: 1})

	out, err := f.pipeline.Run(context.Background(), job, source(material))
	require.NoError(t, err)

	require.Len(t, out.Drafts, 1)
	assert.True(t, out.Drafts[0].Reprompted)

	last := f.provider.LastCall()
	require.Len(t, last.History, 4)
	assert.Equal(t, llm.RoleAssistant, last.History[2].Role)
	assert.Contains(t, last.History[3].Content, "Respond with JSON only, no commentary")
	assert.Contains(t, last.History[3].Content, "reference_solution")
}

func TestPipeline_SanitizedAnswerIsAccepted(t *testing.T) {
	f := newFixture(t, nil)
	f.provider.Enqueue(mock.Reply{Content: `{"title": "Swap", "description": "Swap two
variables without a third one.", "concept_tags": ["variables",], "starter_code": "a, b = 1, 2",
"reference_solution": "a, b = b, a", "test_cases": [{"input": "1 2", "expected_output": "2 1"},],}`})
	job := f.newJob(t, entity.Requirements{Topic: "variables", RequestedCount: 1})

	out, err := f.pipeline.Run(context.Background(), job, source(material))
	require.NoError(t, err)
	require.Len(t, out.Drafts, 1)
	assert.Equal(t, int(2), out.Drafts[0].ParseTier)
	assert.Contains(t, out.Drafts[0].Description, "\n")
	assert.False(t, out.Drafts[0].Reprompted)
}

func TestPipeline_DuplicateTitleIsRejected(t *testing.T) {
	f := newFixture(t, nil)
	f.provider.Enqueue(
		mock.Reply{Content: draftJSON("Hello Variables")},
		mock.Reply{Content: draftJSON("hello   variables")},
	)
	job := f.newJob(t, entity.Requirements{Topic: "variables", RequestedCount: 2})

	out, err := f.pipeline.Run(context.Background(), job, source(material))
	require.NoError(t, err)
	assert.Len(t, out.Drafts, 1)
	require.Len(t, out.Failures, 1)
	assert.Equal(t, "validation", out.Failures[0].Stage)
	assert.Contains(t, out.Failures[0].Reason, "duplicates")
	assert.Contains(t, f.provider.LastCall().History[1].Content, "1. Hello Variables")
}

func TestPipeline_ProviderDownFailsJob(t *testing.T) {
	f := newFixture(t, nil)
	f.provider.Handler = func([]llm.Message) mock.Reply {
		return mock.Reply{Err: &llm.ErrProviderUnavailable{Provider: "mock", StatusCode: 503}}
	}
	job := f.newJob(t, entity.Requirements{Topic: "variables", RequestedCount: 3})

	out, err := f.pipeline.Run(context.Background(), job, source(material))
	require.NoError(t, err)
	assert.Equal(t, entity.JobFailed, out.State)
	assert.Len(t, out.Failures, 3)
	assert.Contains(t, out.FailureReason, "unavailable")
}

func TestPipeline_MissingCredentialsFailsJob(t *testing.T) {
	f := newFixture(t, &llm.ErrConfiguration{Provider: "openai", Missing: []string{"OPENAI_API_KEY"}})
	job := f.newJob(t, entity.Requirements{Topic: "variables", RequestedCount: 2})

	out, err := f.pipeline.Run(context.Background(), job, source(material))
	require.NoError(t, err)
	assert.Equal(t, entity.JobFailed, out.State)
	assert.Contains(t, out.FailureReason, "OPENAI_API_KEY")
	assert.Empty(t, out.Drafts)
}

func TestPipeline_RejectionDuringGenerationDiscardsResults(t *testing.T) {
	f := newFixture(t, nil)
	job := f.newJob(t, entity.Requirements{Topic: "variables", RequestedCount: 2})

	f.provider.Handler = func([]llm.Message) mock.Reply {
		// a reviewer rejects while the first model call is in flight
		stored, err := f.repo.FindByID(context.Background(), job.Id)
		if err == nil && !stored.State.IsTerminal() {
			expected := stored.State
			stored.State = entity.JobRejected
			_, _ = f.repo.CompareAndSwap(context.Background(), stored, expected)
		}
		return mock.Reply{Content: draftJSON("Too late")}
	}

	_, err := f.pipeline.Run(context.Background(), job, source(material))
	assert.ErrorIs(t, err, ErrJobClosed)

	stored, err := f.repo.FindByID(context.Background(), job.Id)
	require.NoError(t, err)
	assert.Equal(t, entity.JobRejected, stored.State)
	assert.Empty(t, stored.Drafts)
	assert.Equal(t, 1, f.provider.CallCount())
}

func TestPipeline_ChunksLongSource(t *testing.T) {
	f := newFixture(t, nil)
	f.provider.Handler = func([]llm.Message) mock.Reply { return mock.Reply{Content: draftJSON("Only")} }
	job := f.newJob(t, entity.Requirements{Topic: "variables", RequestedCount: 1})

	paragraph := strings.Repeat("word ", 99) + "end"
	paragraphs := make([]string, 38)
	for i := range paragraphs {
		paragraphs[i] = paragraph
	}
	content := strings.Join(paragraphs, "\n\n")
	require.InDelta(t, 19000, len([]rune(content)), 200)

	out, err := f.pipeline.Run(context.Background(), job, source(content))
	require.NoError(t, err)
	assert.InDelta(t, 19, out.ChunkCount, 1)
	assert.Equal(t, out.ChunkCount, f.store.Len(gateway.CollectionKey("course-1")))
}

func TestPipeline_EmptySourceFails(t *testing.T) {
	f := newFixture(t, nil)
	job := f.newJob(t, entity.Requirements{Topic: "variables", RequestedCount: 1})

	out, err := f.pipeline.Run(context.Background(), job, source("   \n\n  "))
	require.NoError(t, err)
	assert.Equal(t, entity.JobFailed, out.State)
	assert.Equal(t, 0, f.provider.CallCount())
}

func TestPlanSlots(t *testing.T) {
	slots := planSlots(entity.Requirements{Topic: "loops", Difficulty: "Mixed", Concepts: []string{"for", "while"}, RequestedCount: 4})
	require.Len(t, slots, 4)
	assert.Equal(t, []string{"easy", "medium", "hard", "easy"},
		[]string{slots[0].Difficulty, slots[1].Difficulty, slots[2].Difficulty, slots[3].Difficulty})
	assert.Equal(t, []string{"for", "while", "for", "while"},
		[]string{slots[0].Concept, slots[1].Concept, slots[2].Concept, slots[3].Concept})
	assert.Equal(t, "loops for", slots[0].query("loops"))

	defaults := planSlots(entity.Requirements{Topic: "variables", RequestedCount: 2})
	assert.Equal(t, "easy", defaults[1].Difficulty)
	assert.Equal(t, "variables", defaults[1].query("variables"))
}

func TestValidateDraft(t *testing.T) {
	good := entity.ExerciseDraft{
		Title: "t", Description: "d", Difficulty: "easy", ConceptTags: []string{"c"},
		StarterCode: "pass", ReferenceSolution: "print(1)",
		TestCases: []entity.TestCase{{Input: "", ExpectedOutput: "1"}},
	}
	assert.Nil(t, validateDraft(good, nil))

	noTests := good
	noTests.TestCases = nil
	assert.Equal(t, "test_cases", validateDraft(noTests, nil).Field)

	same := good
	same.StarterCode = same.ReferenceSolution
	assert.Equal(t, "starter_code", validateDraft(same, nil).Field)

	badTier := good
	badTier.Difficulty = "impossible"
	assert.Equal(t, "schema", validateDraft(badTier, nil).Field)
}
