package contract

import (
	"context"

	"ai-tutoring-be/internal/entity"

	"github.com/google/uuid"
)

type TutoringSessionRepository interface {
	Create(ctx context.Context, session *entity.TutoringSession) error
	Update(ctx context.Context, session *entity.TutoringSession) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.TutoringSession, error)
}
