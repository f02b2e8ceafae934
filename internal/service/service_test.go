package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ai-tutoring-be/internal/config"
	"ai-tutoring-be/internal/dto"
	"ai-tutoring-be/internal/pkg/logger"
	"ai-tutoring-be/internal/pkg/mailer"
	"ai-tutoring-be/internal/repository/contract"
	"ai-tutoring-be/internal/repository/memory"
	"ai-tutoring-be/internal/repository/unitofwork"
	"ai-tutoring-be/pkg/ai/diagnostic"
	"ai-tutoring-be/pkg/ai/gateway"
	"ai-tutoring-be/pkg/ai/generation"
	"ai-tutoring-be/pkg/ai/tutor"
	"ai-tutoring-be/pkg/embedding"
	"ai-tutoring-be/pkg/events"
	"ai-tutoring-be/pkg/ingest"
	"ai-tutoring-be/pkg/llm"
	"ai-tutoring-be/pkg/llm/mock"
	"ai-tutoring-be/pkg/vectorstore"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jobsTopic = "generation_jobs"

const material = "A for loop repeats a block once for every item in a sequence.\n\n" +
	"The range function produces the numbers a loop walks over. Loops can be nested."

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) ofType(eventType string) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Event
	for _, e := range p.events {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

type recordingMailer struct {
	mu   sync.Mutex
	to   []string
	sent []mailer.ReviewRequest
}

func (m *recordingMailer) SendReviewRequest(toEmail string, req mailer.ReviewRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.to = append(m.to, toEmail)
	m.sent = append(m.sent, req)
	return nil
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type fixture struct {
	ctx       context.Context
	pubSub    *gochannel.GoChannel
	provider  *mock.Provider
	uow       unitofwork.RepositoryFactory
	events    *recordingPublisher
	mail      *recordingMailer
	generator IGeneratorService
	consumer  IConsumerService
	tutor     ITutorService
	analytics IAnalyticsService
}

func newFixture(t *testing.T, providerErr error) *fixture {
	t.Helper()
	log := logger.NewNopLogger()
	tuning := config.DefaultTuning()
	factory := unitofwork.NewMemoryRepositoryFactory(memory.NewStore())

	provider := mock.NewProvider()
	var p llm.LLMProvider = provider
	if providerErr != nil {
		p = nil
	}
	model := gateway.NewModelGateway(p, providerErr, gateway.RetryPolicy{MaxAttempts: 1}, 0, log)
	retrieval := gateway.NewRetrievalGateway(vectorstore.NewMemoryStore(), embedding.NewHashingProvider(256), nil,
		gateway.RetrievalOptions{MinScore: -1}, log)

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	ctx, cancel := context.WithCancel(context.Background())

	pub := &recordingPublisher{}
	mail := &recordingMailer{}
	pipeline := generation.NewPipeline(model, retrieval, NewJobTracker(factory, nil), tuning, log)

	f := &fixture{
		ctx:       ctx,
		pubSub:    pubSub,
		provider:  provider,
		uow:       factory,
		events:    pub,
		mail:      mail,
		generator: NewGeneratorService(factory, NewPublisherService(jobsTopic, pubSub), pub, nil, model, retrieval, "reviewer@school.test", log),
		consumer:  NewConsumerService(pubSub, jobsTopic, 2, factory, pipeline, mail, pub, log),
		tutor:     NewTutorService(factory, tutor.NewEngine(model, retrieval, tuning, log), model, pub, log),
		analytics: NewAnalyticsService(factory, diagnostic.NewAnalyzer(model, tuning, log), model, pub, log),
	}
	t.Cleanup(func() {
		cancel()
		_ = pubSub.Close()
		f.consumer.Wait()
	})
	return f
}

func draftJSON(title string) string {
	return fmt.Sprintf(`{"title": %q, "description": "Print every number from 1 to 5 with a loop.", "difficulty": "easy",
"concept_tags": ["loops"], "starter_code": "for i in ___:\n    print(i)", "reference_solution": "for i in range(1, 6):\n    print(i)",
"test_cases": [{"input": "", "expected_output": "1\n2\n3\n4\n5"}]}`, title)
}

func uploadRequest() *dto.UploadSourceRequest {
	return &dto.UploadSourceRequest{
		ScopeId:    "course-1",
		SourceKey:  "loops-intro",
		Title:      "Loops",
		SourceText: material,
		Topic:      "loops",
		Concepts:   []string{"for, range"},
		Count:      2,
	}
}

func TestGenerator_UploadRunsToReviewAndApproval(t *testing.T) {
	f := newFixture(t, nil)
	var calls int32
	f.provider.Handler = func([]llm.Message) mock.Reply {
		n := atomic.AddInt32(&calls, 1)
		return mock.Reply{Content: draftJSON(fmt.Sprintf("Counting loop %d", n))}
	}
	require.NoError(t, f.consumer.Consume(f.ctx))

	res, err := f.generator.Upload(f.ctx, uploadRequest())
	require.NoError(t, err)
	assert.Equal(t, "INGESTING", res.Status)

	require.Eventually(t, func() bool {
		st, err := f.generator.Status(f.ctx, res.JobId)
		return err == nil && st.Status == "AWAITING_REVIEW"
	}, 5*time.Second, 10*time.Millisecond)

	status, err := f.generator.Status(f.ctx, res.JobId)
	require.NoError(t, err)
	assert.Equal(t, 2, status.GeneratedCount)
	assert.Equal(t, 2, status.RequestedCount)
	assert.Equal(t, "2 of 2 generated", status.Summary)

	draft, err := f.generator.Draft(f.ctx, res.JobId)
	require.NoError(t, err)
	require.Len(t, draft.Exercises, 2)
	assert.NotEmpty(t, draft.Exercises[0].ReferenceSolution)
	assert.NotEmpty(t, draft.Exercises[0].TestCases)

	require.Eventually(t, func() bool { return f.mail.count() == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, "reviewer@school.test", f.mail.to[0])
	assert.Equal(t, 2, f.mail.sent[0].Generated)
	require.Eventually(t, func() bool { return len(f.events.ofType(events.GenerationCompleted)) == 1 }, 5*time.Second, 10*time.Millisecond)

	reviewed, err := f.generator.Review(f.ctx, &dto.ReviewJobRequest{JobId: res.JobId, Decision: DecisionApprove, Reviewer: "ms-lee"})
	require.NoError(t, err)
	assert.Equal(t, "APPROVED", reviewed.Status)

	approved := f.events.ofType(events.ExercisesApproved)
	require.Len(t, approved, 1)
	exercises, ok := approved[0].Payload()["exercises"].([]dto.ExerciseDraftResponse)
	require.True(t, ok)
	assert.Len(t, exercises, 2)

	// terminal
	_, err = f.generator.Review(f.ctx, &dto.ReviewJobRequest{JobId: res.JobId, Decision: DecisionReject})
	assert.ErrorIs(t, err, generation.ErrInvalidTransition)
}

func TestGenerator_UploadWithoutProviderIsNotConfigured(t *testing.T) {
	f := newFixture(t, &llm.ErrConfiguration{Provider: "openai", Missing: []string{"OPENAI_API_KEY"}})

	res, err := f.generator.Upload(f.ctx, uploadRequest())
	assert.Nil(t, res)
	assert.True(t, llm.IsConfiguration(err))
}

func TestGenerator_UploadRejectsEmptyAndUnknownSources(t *testing.T) {
	f := newFixture(t, nil)

	req := uploadRequest()
	req.SourceText = "   \n"
	_, err := f.generator.Upload(f.ctx, req)
	assert.ErrorIs(t, err, ingest.ErrEmptySource)

	req = uploadRequest()
	req.SourceText = ""
	req.FileName = "slides.pptx"
	req.FileData = []byte{0xff, 0xfe, 0x00, 0x80}
	_, err = f.generator.Upload(f.ctx, req)
	assert.ErrorIs(t, err, ingest.ErrUnsupportedFormat)
}

func TestGenerator_ReuploadSupersedesSource(t *testing.T) {
	f := newFixture(t, nil)

	first, err := f.generator.Upload(f.ctx, uploadRequest())
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	second, err := f.generator.Upload(f.ctx, uploadRequest())
	require.NoError(t, err)

	uow := f.uow.NewUnitOfWork(f.ctx)
	firstJob, err := uow.GenerationJobRepository().FindByID(f.ctx, first.JobId)
	require.NoError(t, err)
	secondJob, err := uow.GenerationJobRepository().FindByID(f.ctx, second.JobId)
	require.NoError(t, err)

	latest, err := uow.LearningSourceRepository().FindLatestByKey(f.ctx, "course-1", "loops-intro")
	require.NoError(t, err)
	assert.Equal(t, secondJob.SourceId, latest.Id)
	require.NotNil(t, latest.SupersedesId)
	assert.Equal(t, firstJob.SourceId, *latest.SupersedesId)
	assert.Equal(t, []string{"for", "range"}, secondJob.Requirements.Concepts)
	assert.Equal(t, "easy", secondJob.Requirements.Difficulty)
}

func TestGenerator_ReviewRules(t *testing.T) {
	f := newFixture(t, nil)
	res, err := f.generator.Upload(f.ctx, uploadRequest())
	require.NoError(t, err)

	_, err = f.generator.Review(f.ctx, &dto.ReviewJobRequest{JobId: res.JobId, Decision: DecisionApprove})
	assert.ErrorIs(t, err, generation.ErrInvalidTransition)

	rejected, err := f.generator.Review(f.ctx, &dto.ReviewJobRequest{JobId: res.JobId, Decision: DecisionReject, Note: "wrong course"})
	require.NoError(t, err)
	assert.Equal(t, "REJECTED", rejected.Status)
	assert.Len(t, f.events.ofType(events.ExercisesRejected), 1)

	_, err = f.generator.Status(f.ctx, uuid.New())
	assert.ErrorIs(t, err, contract.ErrNotFound)
}

func TestGenerator_RejectedJobIsNotProcessed(t *testing.T) {
	f := newFixture(t, nil)
	res, err := f.generator.Upload(f.ctx, uploadRequest())
	require.NoError(t, err)
	_, err = f.generator.Review(f.ctx, &dto.ReviewJobRequest{JobId: res.JobId, Decision: DecisionReject})
	require.NoError(t, err)

	// no subscriber saw the first message; queue it again for the workers
	require.NoError(t, f.consumer.Consume(f.ctx))
	require.NoError(t, NewPublisherService(jobsTopic, f.pubSub).Publish(f.ctx, []byte(fmt.Sprintf(`{"job_id":%q}`, res.JobId))))

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, f.provider.CallCount())
	status, err := f.generator.Status(f.ctx, res.JobId)
	require.NoError(t, err)
	assert.Equal(t, "REJECTED", status.Status)
}

func startSession(t *testing.T, f *fixture) *dto.StartSessionResponse {
	t.Helper()
	res, err := f.tutor.Start(f.ctx, &dto.StartSessionRequest{
		StudentId:  "student-1",
		ActivityId: "act-1",
		Exercise: &dto.ExerciseContextRequest{
			Title:             "Sum a list",
			ReferenceSolution: "total = sum(numbers)",
		},
	})
	require.NoError(t, err)
	return res
}

func socraticReply() mock.Reply {
	return mock.Reply{Content: `{"reply": "What do you notice about the loop?", "understanding": 0.5, "error_detected": false}`}
}

func TestTutor_StartAndMessage(t *testing.T) {
	f := newFixture(t, nil)
	f.provider.Enqueue(socraticReply())

	started := startSession(t, f)
	assert.Equal(t, "EXPLORATION", started.CognitivePhase)

	res, err := f.tutor.Message(f.ctx, &dto.SendMessageRequest{SessionId: started.SessionId, Message: "my loop prints nothing"})
	require.NoError(t, err)
	assert.Equal(t, "What do you notice about the loop?", res.Reply)
	assert.Equal(t, 0, res.TurnIndex)
	assert.Equal(t, "EXPLORATION", res.Phase)

	session, err := f.tutor.Show(f.ctx, started.SessionId)
	require.NoError(t, err)
	require.Len(t, session.Turns, 1)
	assert.Equal(t, "my loop prints nothing", session.Turns[0].StudentMessage)
}

func TestTutor_ConcurrentMessagesAreSerialized(t *testing.T) {
	f := newFixture(t, nil)
	f.provider.Handler = func([]llm.Message) mock.Reply { return socraticReply() }
	started := startSession(t, f)

	const n = 6
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.tutor.Message(f.ctx, &dto.SendMessageRequest{
				SessionId: started.SessionId,
				Message:   fmt.Sprintf("help me with step %d", i),
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	session, err := f.tutor.Show(f.ctx, started.SessionId)
	require.NoError(t, err)
	require.Len(t, session.Turns, n)
	for i, turn := range session.Turns {
		assert.Equal(t, i, turn.Index)
	}
}

func TestTutor_ProviderFailureKeepsSession(t *testing.T) {
	f := newFixture(t, nil)
	started := startSession(t, f)

	_, err := f.tutor.Message(f.ctx, &dto.SendMessageRequest{SessionId: started.SessionId, Message: "hello"})
	var unavailable *llm.ErrProviderUnavailable
	require.True(t, errors.As(err, &unavailable))

	session, err := f.tutor.Show(f.ctx, started.SessionId)
	require.NoError(t, err)
	assert.Empty(t, session.Turns)
}

func TestTutor_EndIsIdempotentAndFinal(t *testing.T) {
	f := newFixture(t, nil)
	started := startSession(t, f)

	ended, err := f.tutor.End(f.ctx, started.SessionId)
	require.NoError(t, err)
	assert.True(t, ended.Ended)
	_, err = f.tutor.End(f.ctx, started.SessionId)
	require.NoError(t, err)
	assert.Len(t, f.events.ofType(events.SessionEnded), 1)

	_, err = f.tutor.Message(f.ctx, &dto.SendMessageRequest{SessionId: started.SessionId, Message: "hello?"})
	assert.ErrorIs(t, err, tutor.ErrSessionEnded)
	_, err = f.tutor.Reset(f.ctx, started.SessionId)
	assert.ErrorIs(t, err, tutor.ErrSessionEnded)
}

func TestTutor_ResetReturnsToExploration(t *testing.T) {
	f := newFixture(t, nil)
	f.provider.Enqueue(socraticReply())
	started := startSession(t, f)
	_, err := f.tutor.Message(f.ctx, &dto.SendMessageRequest{SessionId: started.SessionId, Message: "can you give me a hint"})
	require.NoError(t, err)

	reset, err := f.tutor.Reset(f.ctx, started.SessionId)
	require.NoError(t, err)
	assert.Equal(t, "EXPLORATION", reset.CognitivePhase)
	assert.Equal(t, 0, reset.HintLevel)
	assert.Len(t, reset.Turns, 1)
}

func TestTutor_UnknownSession(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.tutor.Message(f.ctx, &dto.SendMessageRequest{SessionId: uuid.New(), Message: "hi"})
	assert.ErrorIs(t, err, contract.ErrNotFound)
}

func TestAnalytics_AuditPersistsAndPublishes(t *testing.T) {
	f := newFixture(t, nil)
	f.provider.Enqueue(mock.Reply{Content: `{"category": "syntax",
"diagnosis": "The student keeps misindenting the loop body. The idea of the loop is right.",
"evidence": ["IndentationError: expected an indented block"],
"intervention": "Walk through how indentation groups statements.",
"confidence": 0.8}`})

	base := time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)
	logs := make([]dto.TraceEntryRequest, 4)
	for i := range logs {
		logs[i] = dto.TraceEntryRequest{
			Timestamp:  base.Add(time.Duration(i) * time.Minute),
			ActionType: "submit",
			Phase:      "APPLICATION",
			Detail:     "IndentationError: expected an indented block (line 2)",
		}
	}

	report, err := f.analytics.Audit(f.ctx, &dto.AuditRequest{
		StudentId: "student-1",
		RiskScore: 0.6,
		RiskLevel: "medium",
		TraceLogs: logs,
	})
	require.NoError(t, err)
	assert.Equal(t, "syntax", report.Category)
	assert.GreaterOrEqual(t, len(report.Evidence), 3)
	assert.Equal(t, "student-1", report.StudentId)

	ready := f.events.ofType(events.DiagnosisReady)
	require.Len(t, ready, 1)
	assert.Equal(t, report.Id.String(), ready[0].Payload()["report_id"])

	reports, err := f.analytics.Reports(f.ctx, "student-1", 0)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, report.Id, reports[0].Id)
}

func TestAnalytics_AuditWithoutProviderIsNotConfigured(t *testing.T) {
	f := newFixture(t, &llm.ErrConfiguration{Provider: "anthropic", Missing: []string{"ANTHROPIC_API_KEY"}})
	_, err := f.analytics.Audit(f.ctx, &dto.AuditRequest{StudentId: "student-1"})
	assert.True(t, llm.IsConfiguration(err))
}
