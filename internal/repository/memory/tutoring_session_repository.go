package memory

import (
	"context"
	"time"

	"ai-tutoring-be/internal/entity"
	"ai-tutoring-be/internal/repository/contract"

	"github.com/google/uuid"
)

const sessionKind = "session"

type TutoringSessionRepository struct {
	store *Store
}

func NewTutoringSessionRepository(store *Store) contract.TutoringSessionRepository {
	return &TutoringSessionRepository{store: store}
}

func (r *TutoringSessionRepository) Create(ctx context.Context, session *entity.TutoringSession) error {
	if session.Id == uuid.Nil {
		session.Id = uuid.New()
	}
	now := time.Now()
	session.CreatedAt = now
	session.UpdatedAt = now
	r.store.cache.Set(key(sessionKind, session.Id.String()), session.Clone(), 0)
	return nil
}

func (r *TutoringSessionRepository) Update(ctx context.Context, session *entity.TutoringSession) error {
	k := key(sessionKind, session.Id.String())
	if _, found := r.store.cache.Get(k); !found {
		return contract.ErrNotFound
	}
	session.UpdatedAt = time.Now()
	r.store.cache.Set(k, session.Clone(), 0)
	return nil
}

func (r *TutoringSessionRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.TutoringSession, error) {
	if x, found := r.store.cache.Get(key(sessionKind, id.String())); found {
		return x.(*entity.TutoringSession).Clone(), nil
	}
	return nil, contract.ErrNotFound
}
