package contract

import (
	"context"

	"ai-tutoring-be/internal/entity"

	"github.com/google/uuid"
)

type LearningSourceRepository interface {
	Create(ctx context.Context, source *entity.LearningSource) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.LearningSource, error)
	// FindLatestByKey returns the newest source stored under key in scope.
	FindLatestByKey(ctx context.Context, scopeId, sourceKey string) (*entity.LearningSource, error)
}
