package dto

import (
	"time"

	"github.com/google/uuid"
)

type ExerciseContextRequest struct {
	Title             string `json:"title" validate:"max=256"`
	Description       string `json:"description"`
	StarterCode       string `json:"starter_code"`
	ReferenceSolution string `json:"reference_solution"`
}

type StartSessionRequest struct {
	StudentId  string                  `json:"student_id" validate:"required,max=128"`
	ActivityId string                  `json:"activity_id" validate:"required,max=128"`
	Exercise   *ExerciseContextRequest `json:"exercise"`
}

type StartSessionResponse struct {
	SessionId      uuid.UUID `json:"session_id"`
	CognitivePhase string    `json:"cognitive_phase"`
}

type SendMessageRequest struct {
	SessionId         uuid.UUID `json:"session_id" validate:"required"`
	Message           string    `json:"message" validate:"required,max=8000"`
	CurrentCode       string    `json:"current_code" validate:"max=20000"`
	ResponseLatencyMs int64     `json:"response_latency_ms" validate:"min=0"`
}

type SendMessageResponse struct {
	Reply            string `json:"reply"`
	Phase            string `json:"phase"`
	HintLevel        int    `json:"hint_level"`
	TurnIndex        int    `json:"turn_index"`
	SocraticFallback bool   `json:"socratic_fallback"`
	Redacted         bool   `json:"redacted"`
}

type SessionActionRequest struct {
	SessionId uuid.UUID `json:"session_id" validate:"required"`
}

type DialogueTurnResponse struct {
	Index          int       `json:"index"`
	StudentMessage string    `json:"student_message"`
	Reply          string    `json:"reply"`
	Phase          string    `json:"phase"`
	HintLevel      int       `json:"hint_level"`
	ContextCount   int       `json:"context_count"`
	CreatedAt      time.Time `json:"created_at"`
}

type SessionResponse struct {
	SessionId      uuid.UUID              `json:"session_id"`
	StudentId      string                 `json:"student_id"`
	ActivityId     string                 `json:"activity_id"`
	CognitivePhase string                 `json:"cognitive_phase"`
	HintLevel      int                    `json:"hint_level"`
	Frustration    float64                `json:"frustration"`
	Understanding  float64                `json:"understanding"`
	Ended          bool                   `json:"ended"`
	EndedAt        *time.Time             `json:"ended_at,omitempty"`
	Turns          []DialogueTurnResponse `json:"turns"`
}
