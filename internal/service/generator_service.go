// FILE: internal/service/generator_service.go
package service

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"ai-tutoring-be/internal/dto"
	"ai-tutoring-be/internal/entity"
	"ai-tutoring-be/internal/pkg/logger"
	"ai-tutoring-be/internal/repository/contract"
	"ai-tutoring-be/internal/repository/unitofwork"
	"ai-tutoring-be/pkg/ai/gateway"
	"ai-tutoring-be/pkg/ai/generation"
	"ai-tutoring-be/pkg/events"
	"ai-tutoring-be/pkg/ingest"
	"ai-tutoring-be/pkg/keylock"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

const (
	generatorModule = "GeneratorService"

	DecisionApprove = "approve"
	DecisionReject  = "reject"

	defaultLanguage   = "python"
	defaultDifficulty = "easy"
	maxReviewAttempts = 5
)

type IGeneratorService interface {
	Upload(ctx context.Context, req *dto.UploadSourceRequest) (*dto.UploadSourceResponse, error)
	Status(ctx context.Context, jobId uuid.UUID) (*dto.JobStatusResponse, error)
	Draft(ctx context.Context, jobId uuid.UUID) (*dto.JobDraftResponse, error)
	Review(ctx context.Context, req *dto.ReviewJobRequest) (*dto.ReviewJobResponse, error)
}

type generatorService struct {
	uowFactory       unitofwork.RepositoryFactory
	publisherService IPublisherService
	eventPublisher   events.Publisher
	notifier         IProgressNotifier
	model            gateway.ModelGateway
	retrieval        gateway.RetrievalGateway
	extractor        *ingest.Extractor
	locks            *keylock.KeyLock
	reviewerEmail    string
	logger           logger.ILogger
}

func NewGeneratorService(
	uowFactory unitofwork.RepositoryFactory,
	publisherService IPublisherService,
	eventPublisher events.Publisher,
	notifier IProgressNotifier,
	model gateway.ModelGateway,
	retrieval gateway.RetrievalGateway,
	reviewerEmail string,
	log logger.ILogger,
) IGeneratorService {
	if eventPublisher == nil {
		eventPublisher = events.NopPublisher{}
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &generatorService{
		uowFactory:       uowFactory,
		publisherService: publisherService,
		eventPublisher:   eventPublisher,
		notifier:         notifier,
		model:            model,
		retrieval:        retrieval,
		extractor:        ingest.NewExtractor(),
		locks:            keylock.New(),
		reviewerEmail:    reviewerEmail,
		logger:           log,
	}
}

// Upload stores the source, opens a job in INGESTING and queues it. The
// pipeline itself runs on a consumer worker.
func (s *generatorService) Upload(ctx context.Context, req *dto.UploadSourceRequest) (*dto.UploadSourceResponse, error) {
	if err := s.model.Ready(); err != nil {
		return nil, err
	}
	if err := s.retrieval.Ready(); err != nil {
		return nil, err
	}

	doc, err := s.extract(req)
	if err != nil {
		return nil, err
	}

	sourceKey := firstNonEmpty(req.SourceKey, req.Title, strings.TrimSuffix(req.FileName, filepath.Ext(req.FileName)), doc.Title)
	sum := blake2b.Sum256([]byte(doc.Text))
	source := &entity.LearningSource{
		Id:          uuid.New(),
		ScopeId:     req.ScopeId,
		SourceKey:   sourceKey,
		Title:       doc.Title,
		SourceType:  doc.SourceType,
		Content:     doc.Text,
		ContentHash: hex.EncodeToString(sum[:]),
		CreatedAt:   time.Now(),
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	previous, err := uow.LearningSourceRepository().FindLatestByKey(ctx, req.ScopeId, sourceKey)
	switch {
	case err == nil:
		source.SupersedesId = &previous.Id
	case !errors.Is(err, contract.ErrNotFound):
		return nil, err
	}
	if err := uow.LearningSourceRepository().Create(ctx, source); err != nil {
		return nil, err
	}

	job := &entity.GenerationJob{
		Id:           uuid.New(),
		SourceId:     source.Id,
		ScopeId:      req.ScopeId,
		SourceKey:    sourceKey,
		Requirements: s.requirements(req),
		State:        entity.JobIngesting,
	}
	if err := uow.GenerationJobRepository().Create(ctx, job); err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(dto.GenerationJobMessage{JobId: job.Id})
	if err != nil {
		return nil, err
	}
	if err := s.publisherService.Publish(ctx, payload); err != nil {
		return nil, fmt.Errorf("failed to queue generation job: %w", err)
	}

	s.logger.Info(generatorModule, "Generation job queued", map[string]interface{}{
		"job_id":      job.Id.String(),
		"scope_id":    job.ScopeId,
		"source_key":  sourceKey,
		"source_type": source.SourceType,
		"superseded":  source.SupersedesId != nil,
		"requested":   job.RequestedCount(),
	})

	return &dto.UploadSourceResponse{
		JobId:  job.Id,
		Status: job.State.String(),
	}, nil
}

func (s *generatorService) extract(req *dto.UploadSourceRequest) (*ingest.Document, error) {
	if len(req.FileData) > 0 {
		sourceType, err := ingest.DetectType(req.FileName, req.FileData)
		if err != nil {
			return nil, err
		}
		return s.extractor.Extract(req.Title, sourceType, req.FileData)
	}
	if strings.TrimSpace(req.SourceText) == "" {
		return nil, ingest.ErrEmptySource
	}
	return s.extractor.Extract(req.Title, ingest.SourceText, []byte(req.SourceText))
}

func (s *generatorService) requirements(req *dto.UploadSourceRequest) entity.Requirements {
	concepts := make([]string, 0, len(req.Concepts))
	for _, c := range req.Concepts {
		for _, part := range strings.Split(c, ",") {
			if part = strings.TrimSpace(part); part != "" {
				concepts = append(concepts, part)
			}
		}
	}

	return entity.Requirements{
		Topic:          strings.TrimSpace(req.Topic),
		Concepts:       concepts,
		Difficulty:     firstNonEmpty(strings.ToLower(req.Difficulty), defaultDifficulty),
		Language:       firstNonEmpty(req.Language, defaultLanguage),
		RequestedCount: req.Count,
		ReviewerEmail:  firstNonEmpty(req.ReviewerEmail, s.reviewerEmail),
	}
}

func (s *generatorService) Status(ctx context.Context, jobId uuid.UUID) (*dto.JobStatusResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	job, err := uow.GenerationJobRepository().FindByID(ctx, jobId)
	if err != nil {
		return nil, err
	}

	return &dto.JobStatusResponse{
		JobId:          job.Id,
		Status:         job.State.String(),
		GeneratedCount: job.GeneratedCount(),
		RequestedCount: job.RequestedCount(),
		FailedCount:    len(job.Failures),
		Summary:        fmt.Sprintf("%d of %d generated", job.GeneratedCount(), job.RequestedCount()),
		FailureReason:  job.FailureReason,
	}, nil
}

func (s *generatorService) Draft(ctx context.Context, jobId uuid.UUID) (*dto.JobDraftResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	job, err := uow.GenerationJobRepository().FindByID(ctx, jobId)
	if err != nil {
		return nil, err
	}

	res := &dto.JobDraftResponse{
		JobId:          job.Id,
		Status:         job.State.String(),
		GeneratedCount: job.GeneratedCount(),
		RequestedCount: job.RequestedCount(),
		Exercises:      make([]dto.ExerciseDraftResponse, 0, len(job.Drafts)),
		Failures:       make([]dto.DraftFailureResponse, 0, len(job.Failures)),
		CompletedAt:    job.CompletedAt,
	}
	for _, d := range job.Drafts {
		res.Exercises = append(res.Exercises, draftResponse(d))
	}
	for _, f := range job.Failures {
		res.Failures = append(res.Failures, dto.DraftFailureResponse{
			Index:     f.Index,
			Stage:     f.Stage,
			Reason:    f.Reason,
			Retryable: f.Retryable,
		})
	}
	return res, nil
}

// Review applies a teacher decision. Approval is only legal from
// AWAITING_REVIEW; rejection closes any non-terminal job, including one a
// worker is still generating.
func (s *generatorService) Review(ctx context.Context, req *dto.ReviewJobRequest) (*dto.ReviewJobResponse, error) {
	target := entity.JobApproved
	if req.Decision == DecisionReject {
		target = entity.JobRejected
	}

	unlock, err := s.locks.Lock(ctx, req.JobId.String())
	if err != nil {
		return nil, err
	}
	defer unlock()

	uow := s.uowFactory.NewUnitOfWork(ctx)
	repo := uow.GenerationJobRepository()

	var job *entity.GenerationJob
	for attempt := 0; ; attempt++ {
		job, err = repo.FindByID(ctx, req.JobId)
		if err != nil {
			return nil, err
		}
		expected := job.State
		if !expected.CanTransition(target) {
			return nil, fmt.Errorf("%w: %s -> %s", generation.ErrInvalidTransition, expected, target)
		}

		job.State = target
		job.ReviewedBy = req.Reviewer
		job.ReviewNote = req.Note
		now := time.Now()
		job.CompletedAt = &now

		ok, err := repo.CompareAndSwap(ctx, job, expected)
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		// a worker checkpoint moved the job; read it again
		if attempt+1 >= maxReviewAttempts {
			return nil, fmt.Errorf("%w: job %s kept changing during review", generation.ErrInvalidTransition, job.Id)
		}
	}

	s.notifier.Publish(ctx, job.Id.String(), JobProgressEventType, progressEvent(job))
	s.publishDecision(ctx, job)

	s.logger.Info(generatorModule, "Job reviewed", map[string]interface{}{
		"job_id":   job.Id.String(),
		"decision": req.Decision,
		"reviewer": req.Reviewer,
	})

	return &dto.ReviewJobResponse{
		JobId:  job.Id,
		Status: job.State.String(),
	}, nil
}

// publishDecision hands approved drafts to the course layer. Delivery
// failures are logged; the decision itself is already stored.
func (s *generatorService) publishDecision(ctx context.Context, job *entity.GenerationJob) {
	eventType := events.ExercisesRejected
	data := map[string]interface{}{
		"job_id":      job.Id.String(),
		"scope_id":    job.ScopeId,
		"source_key":  job.SourceKey,
		"reviewed_by": job.ReviewedBy,
		"note":        job.ReviewNote,
	}
	if job.State == entity.JobApproved {
		eventType = events.ExercisesApproved
		exercises := make([]dto.ExerciseDraftResponse, len(job.Drafts))
		for i, d := range job.Drafts {
			exercises[i] = draftResponse(d)
		}
		data["exercises"] = exercises
	}

	if err := s.eventPublisher.Publish(ctx, events.New(eventType, data)); err != nil {
		s.logger.Warn(generatorModule, "Failed to publish review event", map[string]interface{}{
			"job_id": job.Id.String(),
			"event":  eventType,
			"error":  err.Error(),
		})
	}
}

func draftResponse(d entity.ExerciseDraft) dto.ExerciseDraftResponse {
	tests := make([]dto.TestCaseResponse, len(d.TestCases))
	for i, tc := range d.TestCases {
		tests[i] = dto.TestCaseResponse{
			Input:          tc.Input,
			ExpectedOutput: tc.ExpectedOutput,
			Description:    tc.Description,
		}
	}
	return dto.ExerciseDraftResponse{
		Title:             d.Title,
		Description:       d.Description,
		Difficulty:        d.Difficulty,
		ConceptTags:       append([]string(nil), d.ConceptTags...),
		StarterCode:       d.StarterCode,
		ReferenceSolution: d.ReferenceSolution,
		TestCases:         tests,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
