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

type GenerationJobRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.GenerationMapper
}

func NewGenerationJobRepository(db *gorm.DB) contract.GenerationJobRepository {
	return &GenerationJobRepositoryImpl{
		db:     db,
		mapper: mapper.NewGenerationMapper(),
	}
}

func (r *GenerationJobRepositoryImpl) Create(ctx context.Context, job *entity.GenerationJob) error {
	m := r.mapper.JobToModel(job)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	job.Id = m.Id
	job.CreatedAt = m.CreatedAt
	job.UpdatedAt = m.UpdatedAt
	return nil
}

func (r *GenerationJobRepositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*entity.GenerationJob, error) {
	var m model.GenerationJob
	query := applySpecifications(r.db.WithContext(ctx), specification.ByID{ID: id})
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, contract.ErrNotFound
		}
		return nil, err
	}
	return r.mapper.JobToEntity(&m)
}

func (r *GenerationJobRepositoryImpl) CompareAndSwap(ctx context.Context, job *entity.GenerationJob, expected entity.JobState) (bool, error) {
	m := r.mapper.JobToModel(job)

	// Select("*") so zero values (empty failure reason, nil completion) are written too.
	result := applySpecifications(r.db.WithContext(ctx).Model(&model.GenerationJob{}),
		specification.ByID{ID: job.Id},
		specification.InState{State: expected.String()},
	).Select("*").Omit("id", "created_at").Updates(m)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, nil
	}
	job.UpdatedAt = m.UpdatedAt
	return true, nil
}
