// Package tutor runs Socratic tutoring turns over a per-session state machine.
package tutor

import (
	"context"
	"errors"
	"html"
	"strings"
	"time"

	"ai-tutoring-be/internal/config"
	"ai-tutoring-be/internal/entity"
	"ai-tutoring-be/internal/pkg/logger"
	"ai-tutoring-be/pkg/ai/gateway"
	"ai-tutoring-be/pkg/ai/parser"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
)

const module = "TutorEngine"

var ErrSessionEnded = errors.New("tutoring session has ended")

var ReplyShape = parser.Shape{
	Name:     "tutor_reply",
	Required: []string{"reply"},
	Optional: []string{"guiding_question", "understanding", "error_detected"},
}

type TurnInput struct {
	Message         string
	CurrentCode     string
	ResponseLatency time.Duration
}

type Engine struct {
	model     gateway.ModelGateway
	retrieval gateway.RetrievalGateway
	tuning    config.TutorTuning
	topK      int
	policy    *bluemonday.Policy
	logger    logger.ILogger
	now       func() time.Time
}

func NewEngine(model gateway.ModelGateway, retrieval gateway.RetrievalGateway, tuning config.Tuning, log logger.ILogger) *Engine {
	return &Engine{
		model:     model,
		retrieval: retrieval,
		tuning:    tuning.Tutor,
		topK:      tuning.Retrieval.TopK,
		policy:    bluemonday.StrictPolicy(),
		logger:    log,
		now:       time.Now,
	}
}

// NewSession returns a session in EXPLORATION with neutral estimates.
func (e *Engine) NewSession(studentID, activityID string, exercise *entity.ExerciseContext) *entity.TutoringSession {
	now := e.now()
	return &entity.TutoringSession{
		Id:             uuid.New(),
		StudentId:      studentID,
		ActivityId:     activityID,
		Phase:          entity.PhaseExploration,
		Exercise:       exercise,
		LastActivityAt: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Reset is the only way a phase moves backwards. History is kept.
func (e *Engine) Reset(s *entity.TutoringSession) (*entity.TutoringSession, error) {
	if s.Ended {
		return nil, ErrSessionEnded
	}
	next := s.Clone()
	next.Phase = entity.PhaseExploration
	next.HintLevel = 0
	next.Frustration = 0
	next.Understanding = 0
	next.TurnsInPhase = 0
	next.ConsecutiveErrors = 0
	next.LastActivityAt = e.now()
	return next, nil
}

func (e *Engine) End(s *entity.TutoringSession) *entity.TutoringSession {
	next := s.Clone()
	if !next.Ended {
		now := e.now()
		next.Ended = true
		next.EndedAt = &now
		next.LastActivityAt = now
	}
	return next
}

// Turn processes one student message and returns the updated copy of s with
// the new turn appended. On error s is left as it was; the caller keeps the
// previous state.
func (e *Engine) Turn(ctx context.Context, s *entity.TutoringSession, in TurnInput) (*entity.TutoringSession, *entity.DialogueTurn, error) {
	if s.Ended {
		return nil, nil, ErrSessionEnded
	}
	next := s.Clone()

	message := e.sanitize(in.Message)
	sig := observe(message, in.CurrentCode, in.ResponseLatency)

	// hint level only grows within a phase
	if sig.HelpRequest && next.HintLevel < e.tuning.MaxHintLevel {
		next.HintLevel++
	}
	if sig.ErrorSeen {
		next.ConsecutiveErrors++
	} else {
		next.ConsecutiveErrors = 0
	}
	e.updateEstimates(next, sig)

	solution := ""
	title := ""
	if next.Exercise != nil {
		solution = next.Exercise.ReferenceSolution
		title = next.Exercise.Title
	}

	query := strings.TrimSpace(message + " " + title)
	snippets := e.retrieval.Query(ctx, gateway.CollectionKey(next.ActivityId), query, e.topK)
	contextTexts := make([]string, 0, len(snippets))
	for _, sn := range snippets {
		text, ok := redactSolution(sn.Text, solution)
		if !ok {
			continue
		}
		contextTexts = append(contextTexts, text)
	}

	spec := buildPrompt(next, buildUserMessage(message, in.CurrentCode, contextTexts), e.tuning.HistoryTurns, e.tuning.MaxHintLevel)
	raw, err := e.model.Complete(ctx, spec, e.tuning.MaxTokens, e.tuning.Temperature, e.tuning.Timeout())
	if err != nil {
		e.logger.Warn(module, "Turn failed", map[string]interface{}{
			"session_id": s.Id.String(),
			"error":      err.Error(),
		})
		return nil, nil, err
	}

	reply, fields, tier := extractReply(raw)
	turn := &entity.DialogueTurn{
		Index:          len(next.Turns),
		StudentMessage: message,
		CurrentCode:    in.CurrentCode,
		Context:        contextTexts,
		Phase:          next.Phase.String(),
		HintLevel:      next.HintLevel,
		ParseTier:      int(tier),
	}

	if v := validateReply(reply, solution); !v.ok() {
		e.logger.Debug(module, "Reply rejected, re-prompting", map[string]interface{}{
			"session_id": s.Id.String(),
			"problems":   strings.Join(v.problems(), "; "),
		})
		turn.Reprompted = true
		retryRaw, err := e.model.Complete(ctx, withReprompt(spec, raw, v.problems()), e.tuning.MaxTokens, e.tuning.Temperature, e.tuning.Timeout())
		if err == nil {
			retryReply, retryFields, retryTier := extractReply(retryRaw)
			if strings.TrimSpace(retryReply) != "" {
				reply, fields, tier = retryReply, retryFields, retryTier
				turn.ParseTier = int(tier)
			}
		} else if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		reply = e.enforce(turn, reply, solution, next.Phase, sig.Spanish)
	}

	if u, ok := fields.Float("understanding"); ok {
		next.Understanding = clamp(0.7*next.Understanding+0.3*clamp(u, 0, 1), 0, 1)
	}
	if detected, ok := fields.Bool("error_detected"); ok && detected && !sig.ErrorSeen {
		next.ConsecutiveErrors++
	}

	turn.Reply = reply
	turn.CreatedAt = e.now()
	next.Turns = append(next.Turns, *turn)
	next.TurnsInPhase++
	next.LastActivityAt = turn.CreatedAt
	e.maybeAdvance(next)

	return next, turn, nil
}

// enforce is the last line after a failed re-prompt: the solution is
// redacted and a guiding question is guaranteed.
func (e *Engine) enforce(turn *entity.DialogueTurn, reply, solution string, phase entity.CognitivePhase, spanish bool) string {
	if leaksSolution(reply, solution) {
		redacted, ok := redactSolution(reply, solution)
		if !ok {
			redacted = ""
		}
		reply = redacted
		turn.Redacted = true
	}

	v := validateReply(reply, solution)
	if strings.TrimSpace(reply) == "" {
		turn.SocraticFallback = true
		return fallbackQuestion(phase, spanish)
	}
	if v.Definition {
		turn.SocraticFallback = true
		return fallbackQuestion(phase, spanish) + " " + reply
	}
	if !v.Question {
		if closed, ok := closeQuestion(reply); ok {
			return closed
		}
		turn.SocraticFallback = true
		return strings.TrimSpace(reply) + " " + fallbackQuestion(phase, spanish)
	}
	return reply
}

func (e *Engine) updateEstimates(s *entity.TutoringSession, sig signals) {
	f := s.Frustration*0.8 + sig.Distress*0.5
	if s.ConsecutiveErrors > 1 {
		f += 0.1 * float64(s.ConsecutiveErrors-1)
	}
	if sig.Latency > 3*time.Minute {
		f += 0.05
	}
	if sig.HelpRequest {
		f += 0.05
	}
	s.Frustration = clamp(f, 0, 1)

	u := s.Understanding
	switch {
	case sig.ErrorSeen:
		u -= 0.05 * float64(s.ConsecutiveErrors)
	case sig.HelpRequest:
		u -= 0.02
	default:
		u += 0.1
	}
	if sig.Latency > 0 && sig.Latency < 20*time.Second && !sig.ErrorSeen {
		u += 0.02
	}
	s.Understanding = clamp(u, 0, 1)
}

// maybeAdvance moves to the next phase once the student has spent enough
// turns in it and the understanding estimate clears the next threshold, or
// after a long error-free stay. Advancing resets the hint level.
func (e *Engine) maybeAdvance(s *entity.TutoringSession) {
	next, ok := s.Phase.Next()
	if !ok || s.ConsecutiveErrors > 0 {
		return
	}

	threshold := map[entity.CognitivePhase]float64{
		entity.PhaseComprehension: e.tuning.ComprehensionAfter,
		entity.PhaseApplication:   e.tuning.ApplicationAfter,
		entity.PhaseReflection:    e.tuning.ReflectionAfter,
	}[next]

	ready := s.TurnsInPhase >= e.tuning.MinTurnsPerPhase && s.Understanding >= threshold
	forced := e.tuning.ForcedAdvanceTurns > 0 && s.TurnsInPhase >= e.tuning.ForcedAdvanceTurns && s.Frustration < 0.7
	if !ready && !forced {
		return
	}

	e.logger.Info(module, "Phase advanced", map[string]interface{}{
		"session_id":    s.Id.String(),
		"from":          s.Phase.String(),
		"to":            next.String(),
		"understanding": s.Understanding,
		"forced":        !ready,
	})
	s.Phase = next
	s.TurnsInPhase = 0
	s.HintLevel = 0
}

// sanitize strips markup from student text; entities are decoded back so
// the model sees plain characters.
func (e *Engine) sanitize(message string) string {
	return strings.TrimSpace(html.UnescapeString(e.policy.Sanitize(message)))
}

// extractReply pulls the reply text from the model output. Plain prose with
// no recognisable structure is taken as the reply itself.
func extractReply(raw string) (string, parser.Fields, parser.Tier) {
	res := parser.Parse(raw, ReplyShape)
	fields := res.Value
	if fields == nil {
		fields = parser.Fields{}
	}

	reply := fields.String("reply")
	if reply == "" {
		reply = strings.TrimSpace(raw)
	}
	if q := fields.String("guiding_question"); q != "" && !strings.Contains(reply, q) {
		reply = strings.TrimSpace(reply) + " " + q
	}
	return reply, fields, res.Tier
}
