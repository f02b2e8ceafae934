package memory

import (
	"context"
	"time"

	"ai-tutoring-be/internal/entity"
	"ai-tutoring-be/internal/repository/contract"

	"github.com/google/uuid"
)

const jobKind = "job"

type GenerationJobRepository struct {
	store *Store
}

func NewGenerationJobRepository(store *Store) contract.GenerationJobRepository {
	return &GenerationJobRepository{store: store}
}

func (r *GenerationJobRepository) Create(ctx context.Context, job *entity.GenerationJob) error {
	if job.Id == uuid.Nil {
		job.Id = uuid.New()
	}
	now := time.Now()
	job.CreatedAt = now
	job.UpdatedAt = now
	r.store.cache.Set(key(jobKind, job.Id.String()), job.Clone(), 0)
	return nil
}

func (r *GenerationJobRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.GenerationJob, error) {
	if x, found := r.store.cache.Get(key(jobKind, id.String())); found {
		return x.(*entity.GenerationJob).Clone(), nil
	}
	return nil, contract.ErrNotFound
}

func (r *GenerationJobRepository) CompareAndSwap(ctx context.Context, job *entity.GenerationJob, expected entity.JobState) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	k := key(jobKind, job.Id.String())
	x, found := r.store.cache.Get(k)
	if !found {
		return false, contract.ErrNotFound
	}
	if x.(*entity.GenerationJob).State != expected {
		return false, nil
	}

	job.UpdatedAt = time.Now()
	r.store.cache.Set(k, job.Clone(), 0)
	return true, nil
}
