// Package generation drafts exercises from a learning source:
// INGESTING → CHUNKING → RETRIEVING_CONTEXT → GENERATING → AWAITING_REVIEW.
package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ai-tutoring-be/internal/config"
	"ai-tutoring-be/internal/entity"
	"ai-tutoring-be/internal/pkg/logger"
	"ai-tutoring-be/pkg/ai/gateway"
	"ai-tutoring-be/pkg/ai/parser"
	"ai-tutoring-be/pkg/llm"
	"ai-tutoring-be/pkg/utils"
)

const module = "GenerationPipeline"

// JobTracker persists job progress. Checkpoint stores job only while the
// stored state still equals expected and returns ErrJobClosed otherwise.
type JobTracker interface {
	Checkpoint(ctx context.Context, job *entity.GenerationJob, expected entity.JobState) error
}

type Pipeline struct {
	model     gateway.ModelGateway
	retrieval gateway.RetrievalGateway
	tracker   JobTracker
	tuning    config.Tuning
	logger    logger.ILogger
}

func NewPipeline(model gateway.ModelGateway, retrieval gateway.RetrievalGateway, tracker JobTracker, tuning config.Tuning, log logger.ILogger) *Pipeline {
	return &Pipeline{
		model:     model,
		retrieval: retrieval,
		tracker:   tracker,
		tuning:    tuning,
		logger:    log,
	}
}

// Run drives job from INGESTING to AWAITING_REVIEW or FAILED. It returns
// ErrJobClosed when the job was rejected underneath it; nothing produced
// after that point is persisted.
func (p *Pipeline) Run(ctx context.Context, job *entity.GenerationJob, source *entity.LearningSource) (*entity.GenerationJob, error) {
	job = job.Clone()
	if job.State != entity.JobIngesting {
		return job, fmt.Errorf("%w: run from %s", ErrInvalidTransition, job.State)
	}

	// chunking
	size, overlap := p.tuning.Chunking.ChunkWindowFor(source.SourceType)
	chunks := utils.SplitText(source.Content, size, overlap)
	if len(chunks) == 0 {
		return job, p.fail(ctx, job, "learning source is empty")
	}
	if err := p.advance(ctx, job, entity.JobChunking); err != nil {
		return job, err
	}

	collection := gateway.CollectionKey(job.ScopeId)
	indexed, err := p.retrieval.Index(ctx, collection, job.SourceKey, chunks)
	switch {
	case err == nil:
		job.ChunkCount = indexed
	case llm.IsConfiguration(err):
		return job, p.fail(ctx, job, "retrieval not configured: "+err.Error())
	case ctx.Err() != nil:
		return job, ctx.Err()
	default:
		// context improves drafts but is not required
		p.logger.Warn(module, "Indexing failed, generating without context", map[string]interface{}{
			"job_id": job.Id.String(),
			"error":  err.Error(),
		})
	}

	// retrieval
	if err := p.advance(ctx, job, entity.JobRetrievingContext); err != nil {
		return job, err
	}
	slots := planSlots(job.Requirements)
	contexts := make([]gateway.RetrievalContext, len(slots))
	for i, s := range slots {
		contexts[i] = p.retrieval.Query(ctx, collection, s.query(job.Requirements.Topic), p.tuning.Retrieval.TopK)
	}

	// generation
	if err := p.advance(ctx, job, entity.JobGenerating); err != nil {
		return job, err
	}
	for i, s := range slots {
		draft, failure, err := p.generateOne(ctx, job, s, contexts[i])
		if err != nil {
			if llm.IsConfiguration(err) {
				return job, p.fail(ctx, job, "model provider not configured: "+err.Error())
			}
			return job, err
		}
		if failure != nil {
			job.Failures = append(job.Failures, *failure)
		} else {
			job.Drafts = append(job.Drafts, draft)
		}
		if err := p.checkpoint(ctx, job, entity.JobGenerating); err != nil {
			return job, err
		}
	}

	if len(job.Drafts) == 0 && len(job.Failures) > 0 && allUnavailable(job.Failures) {
		return job, p.fail(ctx, job, "model provider unavailable for every exercise")
	}

	now := time.Now()
	job.CompletedAt = &now
	if err := p.advance(ctx, job, entity.JobAwaitingReview); err != nil {
		return job, err
	}

	p.logger.Info(module, "Job awaiting review", map[string]interface{}{
		"job_id":    job.Id.String(),
		"generated": job.GeneratedCount(),
		"requested": job.RequestedCount(),
		"failures":  len(job.Failures),
	})
	return job, nil
}

// generateOne returns either a draft or the failure that excluded it. The
// error is reserved for conditions that stop the whole job.
func (p *Pipeline) generateOne(ctx context.Context, job *entity.GenerationJob, s slot, snippets gateway.RetrievalContext) (entity.ExerciseDraft, *entity.DraftFailure, error) {
	wf := p.tuning.Generation
	spec := buildPrompt(buildUserMessage(job.Requirements, s, job.RequestedCount(), snippets, acceptedTitles(job.Drafts)))

	raw, err := p.model.Complete(ctx, spec, wf.MaxTokens, wf.Temperature, wf.Timeout())
	if err != nil {
		if llm.IsConfiguration(err) || ctx.Err() != nil {
			return entity.ExerciseDraft{}, nil, err
		}
		return entity.ExerciseDraft{}, modelFailure(s.Index, err), nil
	}

	res := parser.Parse(raw, DraftShape)
	reprompted := false
	if !res.Complete() {
		p.logger.Debug(module, "Draft incomplete, re-prompting", map[string]interface{}{
			"job_id":  job.Id.String(),
			"index":   s.Index,
			"tier":    res.Tier.String(),
			"missing": res.MissingSummary(),
		})
		reprompted = true
		retryRaw, err := p.model.Complete(ctx, withReprompt(spec, raw, res.Missing), wf.MaxTokens, wf.Temperature, wf.Timeout())
		switch {
		case err == nil:
			if retry := parser.Parse(retryRaw, DraftShape); len(retry.Missing) <= len(res.Missing) {
				res = retry
			}
		case llm.IsConfiguration(err) || ctx.Err() != nil:
			return entity.ExerciseDraft{}, nil, err
		}
		// a failed re-prompt falls back to the first answer's best effort
	}

	if !res.Complete() {
		return entity.ExerciseDraft{}, &entity.DraftFailure{
			Index:     s.Index,
			Stage:     "parse",
			Reason:    "missing fields: " + res.MissingSummary(),
			Retryable: true,
		}, nil
	}

	draft := draftFromFields(res.Value, s)
	draft.ParseTier = int(res.Tier)
	draft.Reprompted = reprompted

	if verr := validateDraft(draft, job.Drafts); verr != nil {
		return entity.ExerciseDraft{}, &entity.DraftFailure{
			Index:     s.Index,
			Stage:     "validation",
			Reason:    verr.Error(),
			Retryable: verr.Retryable,
		}, nil
	}
	return draft, nil, nil
}

func (p *Pipeline) advance(ctx context.Context, job *entity.GenerationJob, to entity.JobState) error {
	from := job.State
	if !from.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	job.State = to
	if err := p.checkpoint(ctx, job, from); err != nil {
		job.State = from
		return err
	}
	return nil
}

func (p *Pipeline) checkpoint(ctx context.Context, job *entity.GenerationJob, expected entity.JobState) error {
	err := p.tracker.Checkpoint(ctx, job, expected)
	if errors.Is(err, ErrJobClosed) {
		p.logger.Info(module, "Job closed during run, discarding results", map[string]interface{}{
			"job_id": job.Id.String(),
			"state":  job.State.String(),
		})
	}
	return err
}

func (p *Pipeline) fail(ctx context.Context, job *entity.GenerationJob, reason string) error {
	p.logger.Error(module, "Job failed", map[string]interface{}{
		"job_id": job.Id.String(),
		"state":  job.State.String(),
		"reason": reason,
	})
	job.FailureReason = reason
	now := time.Now()
	job.CompletedAt = &now
	return p.advance(ctx, job, entity.JobFailed)
}

func modelFailure(index int, err error) *entity.DraftFailure {
	return &entity.DraftFailure{
		Index:     index,
		Stage:     "model",
		Reason:    err.Error(),
		Retryable: llm.IsTransient(err),
	}
}

func allUnavailable(failures []entity.DraftFailure) bool {
	for _, f := range failures {
		if f.Stage != "model" || !f.Retryable {
			return false
		}
	}
	return true
}

func acceptedTitles(drafts []entity.ExerciseDraft) []string {
	titles := make([]string, len(drafts))
	for i, d := range drafts {
		titles[i] = d.Title
	}
	return titles
}
