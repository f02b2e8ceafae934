package memory

import (
	"context"
	"strings"
	"time"

	"ai-tutoring-be/internal/entity"
	"ai-tutoring-be/internal/repository/contract"

	"github.com/google/uuid"
)

const sourceKind = "source"

type LearningSourceRepository struct {
	store *Store
}

func NewLearningSourceRepository(store *Store) contract.LearningSourceRepository {
	return &LearningSourceRepository{store: store}
}

func (r *LearningSourceRepository) Create(ctx context.Context, source *entity.LearningSource) error {
	if source.Id == uuid.Nil {
		source.Id = uuid.New()
	}
	if source.CreatedAt.IsZero() {
		source.CreatedAt = time.Now()
	}
	c := *source
	r.store.cache.Set(key(sourceKind, c.Id.String()), &c, 0)
	return nil
}

func (r *LearningSourceRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.LearningSource, error) {
	if x, found := r.store.cache.Get(key(sourceKind, id.String())); found {
		c := *x.(*entity.LearningSource)
		return &c, nil
	}
	return nil, contract.ErrNotFound
}

func (r *LearningSourceRepository) FindLatestByKey(ctx context.Context, scopeId, sourceKey string) (*entity.LearningSource, error) {
	var latest *entity.LearningSource
	prefix := sourceKind + ":"
	for k, item := range r.store.cache.Items() {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		s := item.Object.(*entity.LearningSource)
		if s.ScopeId != scopeId || s.SourceKey != sourceKey {
			continue
		}
		if latest == nil || s.CreatedAt.After(latest.CreatedAt) {
			latest = s
		}
	}
	if latest == nil {
		return nil, contract.ErrNotFound
	}
	c := *latest
	return &c, nil
}
