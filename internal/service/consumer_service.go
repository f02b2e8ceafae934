// FILE: internal/service/consumer_service.go
package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"ai-tutoring-be/internal/dto"
	"ai-tutoring-be/internal/entity"
	"ai-tutoring-be/internal/pkg/logger"
	"ai-tutoring-be/internal/pkg/mailer"
	"ai-tutoring-be/internal/repository/contract"
	"ai-tutoring-be/internal/repository/unitofwork"
	"ai-tutoring-be/pkg/ai/generation"
	"ai-tutoring-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

const consumerModule = "GenerationConsumer"

type IConsumerService interface {
	// Consume starts the workers and returns; they stop when ctx is done.
	Consume(ctx context.Context) error
	// Wait blocks until every worker has returned.
	Wait()
}

type consumerService struct {
	pubSub         *gochannel.GoChannel
	topicName      string
	workers        int
	uowFactory     unitofwork.RepositoryFactory
	pipeline       *generation.Pipeline
	emailService   mailer.IEmailService
	eventPublisher events.Publisher
	logger         logger.ILogger
	wg             sync.WaitGroup
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	workers int,
	uowFactory unitofwork.RepositoryFactory,
	pipeline *generation.Pipeline,
	emailService mailer.IEmailService,
	eventPublisher events.Publisher,
	log logger.ILogger,
) IConsumerService {
	if workers < 1 {
		workers = 1
	}
	if eventPublisher == nil {
		eventPublisher = events.NopPublisher{}
	}
	return &consumerService{
		pubSub:         pubSub,
		topicName:      topicName,
		workers:        workers,
		uowFactory:     uowFactory,
		pipeline:       pipeline,
		emailService:   emailService,
		eventPublisher: eventPublisher,
		logger:         log,
	}
}

// Consume starts one reader and the worker pool. gochannel hands a
// subscriber one message at a time, so the reader acks as soon as a worker
// takes the job; from then on the stored job state is the source of truth.
func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	jobs := make(chan uuid.UUID)
	cs.wg.Add(1)
	go func() {
		defer cs.wg.Done()
		defer close(jobs)
		for msg := range messages {
			jobId, ok := cs.claim(ctx, msg)
			if !ok {
				continue
			}
			select {
			case jobs <- jobId:
				msg.Ack()
			case <-ctx.Done():
				msg.Nack()
			}
		}
	}()

	for i := 0; i < cs.workers; i++ {
		cs.wg.Add(1)
		go func() {
			defer cs.wg.Done()
			for jobId := range jobs {
				cs.process(ctx, jobId)
			}
		}()
	}

	cs.logger.Info(consumerModule, "Generation workers started", map[string]interface{}{
		"topic":   cs.topicName,
		"workers": cs.workers,
	})
	return nil
}

func (cs *consumerService) Wait() {
	cs.wg.Wait()
}

// claim decodes msg and reports whether it names a job still waiting for a
// worker. Every rejected message is acked or nacked here.
func (cs *consumerService) claim(ctx context.Context, msg *message.Message) (uuid.UUID, bool) {
	var payload dto.GenerationJobMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error(consumerModule, "Malformed job message", map[string]interface{}{"error": err.Error()})
		msg.Ack() // redelivery cannot fix it
		return uuid.Nil, false
	}

	uow := cs.uowFactory.NewUnitOfWork(ctx)
	job, err := uow.GenerationJobRepository().FindByID(ctx, payload.JobId)
	if errors.Is(err, contract.ErrNotFound) {
		cs.logger.Warn(consumerModule, "Job not found", map[string]interface{}{"job_id": payload.JobId.String()})
		msg.Ack()
		return uuid.Nil, false
	}
	if err != nil {
		cs.logger.Error(consumerModule, "Failed to load job", map[string]interface{}{"job_id": payload.JobId.String(), "error": err.Error()})
		msg.Nack()
		return uuid.Nil, false
	}
	if job.State != entity.JobIngesting {
		// duplicate delivery, or rejected before a worker picked it up
		msg.Ack()
		return uuid.Nil, false
	}
	return job.Id, true
}

func (cs *consumerService) process(ctx context.Context, jobId uuid.UUID) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)
	job, err := uow.GenerationJobRepository().FindByID(ctx, jobId)
	if err != nil {
		cs.logger.Error(consumerModule, "Failed to load job", map[string]interface{}{"job_id": jobId.String(), "error": err.Error()})
		return
	}

	source, err := uow.LearningSourceRepository().FindByID(ctx, job.SourceId)
	if err != nil {
		cs.logger.Error(consumerModule, "Failed to load learning source", map[string]interface{}{"job_id": job.Id.String(), "error": err.Error()})
		job = cs.failJob(ctx, job, "learning source unavailable: "+err.Error())
		cs.announce(ctx, job)
		return
	}

	started := time.Now()
	result, err := cs.pipeline.Run(ctx, job, source)
	switch {
	case errors.Is(err, generation.ErrJobClosed):
		return
	case ctx.Err() != nil:
		cs.logger.Warn(consumerModule, "Shutdown interrupted job", map[string]interface{}{"job_id": job.Id.String(), "state": result.State.String()})
		return
	case err != nil:
		cs.logger.Error(consumerModule, "Pipeline stopped", map[string]interface{}{"job_id": job.Id.String(), "error": err.Error()})
		if !result.State.IsTerminal() {
			result = cs.failJob(ctx, result, err.Error())
		}
	}

	cs.logger.Info(consumerModule, "Job processed", map[string]interface{}{
		"job_id":      result.Id.String(),
		"state":       result.State.String(),
		"generated":   result.GeneratedCount(),
		"requested":   result.RequestedCount(),
		"duration_ms": time.Since(started).Milliseconds(),
	})
	cs.announce(ctx, result)
}

func (cs *consumerService) failJob(ctx context.Context, job *entity.GenerationJob, reason string) *entity.GenerationJob {
	failed := job.Clone()
	expected := failed.State
	failed.State = entity.JobFailed
	failed.FailureReason = reason
	now := time.Now()
	failed.CompletedAt = &now

	uow := cs.uowFactory.NewUnitOfWork(ctx)
	ok, err := uow.GenerationJobRepository().CompareAndSwap(ctx, failed, expected)
	if err != nil {
		cs.logger.Error(consumerModule, "Failed to mark job failed", map[string]interface{}{"job_id": job.Id.String(), "error": err.Error()})
		return job
	}
	if !ok {
		return job
	}
	return failed
}

func (cs *consumerService) announce(ctx context.Context, job *entity.GenerationJob) {
	data := map[string]interface{}{
		"job_id":          job.Id.String(),
		"scope_id":        job.ScopeId,
		"status":          job.State.String(),
		"generated_count": job.GeneratedCount(),
		"requested_count": job.RequestedCount(),
	}

	eventType := events.GenerationCompleted
	if job.State == entity.JobFailed {
		eventType = events.GenerationFailed
		data["reason"] = job.FailureReason
	}
	if err := cs.eventPublisher.Publish(ctx, events.New(eventType, data)); err != nil {
		cs.logger.Warn(consumerModule, "Failed to publish job event", map[string]interface{}{"job_id": job.Id.String(), "error": err.Error()})
	}

	if job.State != entity.JobAwaitingReview || job.Requirements.ReviewerEmail == "" {
		return
	}
	err := cs.emailService.SendReviewRequest(job.Requirements.ReviewerEmail, mailer.ReviewRequest{
		JobID:     job.Id.String(),
		ScopeID:   job.ScopeId,
		Topic:     job.Requirements.Topic,
		Generated: job.GeneratedCount(),
		Requested: job.RequestedCount(),
		Failed:    len(job.Failures),
	})
	if err != nil {
		cs.logger.Warn(consumerModule, "Failed to notify reviewer", map[string]interface{}{"job_id": job.Id.String(), "error": err.Error()})
	}
}
