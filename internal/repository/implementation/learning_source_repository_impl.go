package implementation

import (
	"context"
	"errors"

	"ai-tutoring-be/internal/entity"
	"ai-tutoring-be/internal/mapper"
	"ai-tutoring-be/internal/model"
	"ai-tutoring-be/internal/repository/contract"
	"ai-tutoring-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type LearningSourceRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.GenerationMapper
}

func NewLearningSourceRepository(db *gorm.DB) contract.LearningSourceRepository {
	return &LearningSourceRepositoryImpl{
		db:     db,
		mapper: mapper.NewGenerationMapper(),
	}
}

func (r *LearningSourceRepositoryImpl) Create(ctx context.Context, source *entity.LearningSource) error {
	m := r.mapper.SourceToModel(source)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*source = *r.mapper.SourceToEntity(m)
	return nil
}

func (r *LearningSourceRepositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*entity.LearningSource, error) {
	return r.findOne(ctx, specification.ByID{ID: id})
}

func (r *LearningSourceRepositoryImpl) FindLatestByKey(ctx context.Context, scopeId, sourceKey string) (*entity.LearningSource, error) {
	return r.findOne(ctx,
		specification.ByScopeAndKey{ScopeId: scopeId, SourceKey: sourceKey},
		specification.OrderBy{Field: "created_at", Desc: true},
	)
}

func (r *LearningSourceRepositoryImpl) findOne(ctx context.Context, specs ...specification.Specification) (*entity.LearningSource, error) {
	var m model.LearningSource
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, contract.ErrNotFound
		}
		return nil, err
	}
	return r.mapper.SourceToEntity(&m), nil
}

func applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}
