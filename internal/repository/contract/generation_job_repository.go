package contract

import (
	"context"

	"ai-tutoring-be/internal/entity"

	"github.com/google/uuid"
)

type GenerationJobRepository interface {
	Create(ctx context.Context, job *entity.GenerationJob) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.GenerationJob, error)
	// CompareAndSwap stores job only if the stored state still equals
	// expected. It reports false when another writer got there first.
	CompareAndSwap(ctx context.Context, job *entity.GenerationJob, expected entity.JobState) (bool, error)
}
