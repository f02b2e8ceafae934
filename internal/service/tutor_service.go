// FILE: internal/service/tutor_service.go
package service

import (
	"context"
	"time"

	"ai-tutoring-be/internal/dto"
	"ai-tutoring-be/internal/entity"
	"ai-tutoring-be/internal/pkg/logger"
	"ai-tutoring-be/internal/repository/unitofwork"
	"ai-tutoring-be/pkg/ai/gateway"
	"ai-tutoring-be/pkg/ai/tutor"
	"ai-tutoring-be/pkg/events"
	"ai-tutoring-be/pkg/keylock"

	"github.com/google/uuid"
)

const tutorModule = "TutorService"

type ITutorService interface {
	Start(ctx context.Context, req *dto.StartSessionRequest) (*dto.StartSessionResponse, error)
	Message(ctx context.Context, req *dto.SendMessageRequest) (*dto.SendMessageResponse, error)
	Reset(ctx context.Context, sessionId uuid.UUID) (*dto.SessionResponse, error)
	End(ctx context.Context, sessionId uuid.UUID) (*dto.SessionResponse, error)
	Show(ctx context.Context, sessionId uuid.UUID) (*dto.SessionResponse, error)
}

type tutorService struct {
	uowFactory     unitofwork.RepositoryFactory
	engine         *tutor.Engine
	model          gateway.ModelGateway
	eventPublisher events.Publisher
	locks          *keylock.KeyLock
	logger         logger.ILogger
}

func NewTutorService(
	uowFactory unitofwork.RepositoryFactory,
	engine *tutor.Engine,
	model gateway.ModelGateway,
	eventPublisher events.Publisher,
	log logger.ILogger,
) ITutorService {
	if eventPublisher == nil {
		eventPublisher = events.NopPublisher{}
	}
	return &tutorService{
		uowFactory:     uowFactory,
		engine:         engine,
		model:          model,
		eventPublisher: eventPublisher,
		locks:          keylock.New(),
		logger:         log,
	}
}

func (s *tutorService) Start(ctx context.Context, req *dto.StartSessionRequest) (*dto.StartSessionResponse, error) {
	var exercise *entity.ExerciseContext
	if req.Exercise != nil {
		exercise = &entity.ExerciseContext{
			Title:             req.Exercise.Title,
			Description:       req.Exercise.Description,
			StarterCode:       req.Exercise.StarterCode,
			ReferenceSolution: req.Exercise.ReferenceSolution,
		}
	}

	session := s.engine.NewSession(req.StudentId, req.ActivityId, exercise)
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.TutoringSessionRepository().Create(ctx, session); err != nil {
		return nil, err
	}

	s.logger.Info(tutorModule, "Session started", map[string]interface{}{
		"session_id":  session.Id.String(),
		"student_id":  session.StudentId,
		"activity_id": session.ActivityId,
	})

	return &dto.StartSessionResponse{
		SessionId:      session.Id,
		CognitivePhase: session.Phase.String(),
	}, nil
}

// Message runs one turn. Turns for the same session are serialized; the
// session is stored only when the turn completes.
func (s *tutorService) Message(ctx context.Context, req *dto.SendMessageRequest) (*dto.SendMessageResponse, error) {
	if err := s.model.Ready(); err != nil {
		return nil, err
	}

	var res *dto.SendMessageResponse
	err := s.locks.Do(ctx, req.SessionId.String(), func() error {
		uow := s.uowFactory.NewUnitOfWork(ctx)
		repo := uow.TutoringSessionRepository()

		session, err := repo.FindByID(ctx, req.SessionId)
		if err != nil {
			return err
		}

		updated, turn, err := s.engine.Turn(ctx, session, tutor.TurnInput{
			Message:         req.Message,
			CurrentCode:     req.CurrentCode,
			ResponseLatency: time.Duration(req.ResponseLatencyMs) * time.Millisecond,
		})
		if err != nil {
			return err
		}
		if err := repo.Update(ctx, updated); err != nil {
			return err
		}

		res = &dto.SendMessageResponse{
			Reply:            turn.Reply,
			Phase:            updated.Phase.String(),
			HintLevel:        updated.HintLevel,
			TurnIndex:        turn.Index,
			SocraticFallback: turn.SocraticFallback,
			Redacted:         turn.Redacted,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *tutorService) Reset(ctx context.Context, sessionId uuid.UUID) (*dto.SessionResponse, error) {
	return s.mutate(ctx, sessionId, func(session *entity.TutoringSession) (*entity.TutoringSession, error) {
		return s.engine.Reset(session)
	})
}

// End is idempotent; the ended event is published once.
func (s *tutorService) End(ctx context.Context, sessionId uuid.UUID) (*dto.SessionResponse, error) {
	var justEnded bool
	res, err := s.mutate(ctx, sessionId, func(session *entity.TutoringSession) (*entity.TutoringSession, error) {
		if session.Ended {
			return session, nil
		}
		justEnded = true
		return s.engine.End(session), nil
	})
	if err != nil {
		return nil, err
	}

	if justEnded {
		err := s.eventPublisher.Publish(ctx, events.New(events.SessionEnded, map[string]interface{}{
			"session_id":    res.SessionId.String(),
			"student_id":    res.StudentId,
			"activity_id":   res.ActivityId,
			"phase":         res.CognitivePhase,
			"hint_level":    res.HintLevel,
			"turns":         len(res.Turns),
			"understanding": res.Understanding,
			"frustration":   res.Frustration,
		}))
		if err != nil {
			s.logger.Warn(tutorModule, "Failed to publish session end", map[string]interface{}{
				"session_id": res.SessionId.String(),
				"error":      err.Error(),
			})
		}
	}
	return res, nil
}

func (s *tutorService) Show(ctx context.Context, sessionId uuid.UUID) (*dto.SessionResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	session, err := uow.TutoringSessionRepository().FindByID(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	return sessionResponse(session), nil
}

func (s *tutorService) mutate(ctx context.Context, sessionId uuid.UUID, fn func(*entity.TutoringSession) (*entity.TutoringSession, error)) (*dto.SessionResponse, error) {
	var res *dto.SessionResponse
	err := s.locks.Do(ctx, sessionId.String(), func() error {
		uow := s.uowFactory.NewUnitOfWork(ctx)
		repo := uow.TutoringSessionRepository()

		session, err := repo.FindByID(ctx, sessionId)
		if err != nil {
			return err
		}
		updated, err := fn(session)
		if err != nil {
			return err
		}
		if updated != session {
			if err := repo.Update(ctx, updated); err != nil {
				return err
			}
		}
		res = sessionResponse(updated)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func sessionResponse(s *entity.TutoringSession) *dto.SessionResponse {
	turns := make([]dto.DialogueTurnResponse, len(s.Turns))
	for i, t := range s.Turns {
		turns[i] = dto.DialogueTurnResponse{
			Index:          t.Index,
			StudentMessage: t.StudentMessage,
			Reply:          t.Reply,
			Phase:          t.Phase,
			HintLevel:      t.HintLevel,
			ContextCount:   len(t.Context),
			CreatedAt:      t.CreatedAt,
		}
	}
	return &dto.SessionResponse{
		SessionId:      s.Id,
		StudentId:      s.StudentId,
		ActivityId:     s.ActivityId,
		CognitivePhase: s.Phase.String(),
		HintLevel:      s.HintLevel,
		Frustration:    s.Frustration,
		Understanding:  s.Understanding,
		Ended:          s.Ended,
		EndedAt:        s.EndedAt,
		Turns:          turns,
	}
}
