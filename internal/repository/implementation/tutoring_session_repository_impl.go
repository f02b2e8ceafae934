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

type TutoringSessionRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.TutorMapper
}

func NewTutoringSessionRepository(db *gorm.DB) contract.TutoringSessionRepository {
	return &TutoringSessionRepositoryImpl{
		db:     db,
		mapper: mapper.NewTutorMapper(),
	}
}

func (r *TutoringSessionRepositoryImpl) Create(ctx context.Context, session *entity.TutoringSession) error {
	m := r.mapper.SessionToModel(session)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	session.Id = m.Id
	session.CreatedAt = m.CreatedAt
	session.UpdatedAt = m.UpdatedAt
	return nil
}

func (r *TutoringSessionRepositoryImpl) Update(ctx context.Context, session *entity.TutoringSession) error {
	m := r.mapper.SessionToModel(session)
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return err
	}
	session.UpdatedAt = m.UpdatedAt
	return nil
}

func (r *TutoringSessionRepositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*entity.TutoringSession, error) {
	var m model.TutoringSession
	query := applySpecifications(r.db.WithContext(ctx), specification.ByID{ID: id})
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, contract.ErrNotFound
		}
		return nil, err
	}
	return r.mapper.SessionToEntity(&m)
}
