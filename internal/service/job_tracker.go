package service

import (
	"context"

	"ai-tutoring-be/internal/dto"
	"ai-tutoring-be/internal/entity"
	"ai-tutoring-be/internal/repository/unitofwork"
	"ai-tutoring-be/pkg/ai/generation"
)

const JobProgressEventType = "job.progress"

// IProgressNotifier pushes job progress to live subscribers (the websocket hub).
type IProgressNotifier interface {
	Publish(ctx context.Context, topic, eventType string, data interface{})
}

type nopNotifier struct{}

func (nopNotifier) Publish(context.Context, string, string, interface{}) {}

// jobTracker persists pipeline checkpoints with compare-and-swap so a
// review decision taken mid-run is never overwritten.
type jobTracker struct {
	uowFactory unitofwork.RepositoryFactory
	notifier   IProgressNotifier
}

func NewJobTracker(uowFactory unitofwork.RepositoryFactory, notifier IProgressNotifier) generation.JobTracker {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &jobTracker{uowFactory: uowFactory, notifier: notifier}
}

func (t *jobTracker) Checkpoint(ctx context.Context, job *entity.GenerationJob, expected entity.JobState) error {
	uow := t.uowFactory.NewUnitOfWork(ctx)
	ok, err := uow.GenerationJobRepository().CompareAndSwap(ctx, job, expected)
	if err != nil {
		return err
	}
	if !ok {
		return generation.ErrJobClosed
	}

	t.notifier.Publish(ctx, job.Id.String(), JobProgressEventType, progressEvent(job))
	return nil
}

func progressEvent(job *entity.GenerationJob) dto.JobProgressEvent {
	return dto.JobProgressEvent{
		JobId:          job.Id,
		Status:         job.State.String(),
		GeneratedCount: job.GeneratedCount(),
		RequestedCount: job.RequestedCount(),
	}
}
