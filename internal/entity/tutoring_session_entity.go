package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type CognitivePhase uint8

const (
	PhaseExploration CognitivePhase = iota + 1
	PhaseComprehension
	PhaseApplication
	PhaseReflection
)

var phaseNames = map[CognitivePhase]string{
	PhaseExploration:   "EXPLORATION",
	PhaseComprehension: "COMPREHENSION",
	PhaseApplication:   "APPLICATION",
	PhaseReflection:    "REFLECTION",
}

func (p CognitivePhase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("CognitivePhase(%d)", p)
}

func (p CognitivePhase) MarshalText() ([]byte, error) {
	if _, ok := phaseNames[p]; !ok {
		return nil, fmt.Errorf("unknown cognitive phase %d", p)
	}
	return []byte(p.String()), nil
}

func (p *CognitivePhase) UnmarshalText(text []byte) error {
	parsed, err := ParseCognitivePhase(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

func ParseCognitivePhase(name string) (CognitivePhase, error) {
	for phase, n := range phaseNames {
		if strings.EqualFold(n, name) {
			return phase, nil
		}
	}
	return 0, fmt.Errorf("unknown cognitive phase %q", name)
}

// Next returns the following phase; REFLECTION is the last.
func (p CognitivePhase) Next() (CognitivePhase, bool) {
	if p >= PhaseReflection || p < PhaseExploration {
		return p, false
	}
	return p + 1, true
}

// ExerciseContext is the activity the student is working on.
type ExerciseContext struct {
	Title             string `json:"title"`
	Description       string `json:"description"`
	StarterCode       string `json:"starter_code"`
	ReferenceSolution string `json:"reference_solution"`
}

type DialogueTurn struct {
	Index            int       `json:"index"`
	StudentMessage   string    `json:"student_message"`
	CurrentCode      string    `json:"current_code,omitempty"`
	Context          []string  `json:"context"`
	Reply            string    `json:"reply"`
	Phase            string    `json:"phase"`
	HintLevel        int       `json:"hint_level"`
	ParseTier        int       `json:"parse_tier"`
	Reprompted       bool      `json:"reprompted"`
	SocraticFallback bool      `json:"socratic_fallback"`
	Redacted         bool      `json:"redacted"`
	CreatedAt        time.Time `json:"created_at"`
}

type TutoringSession struct {
	Id                uuid.UUID
	StudentId         string
	ActivityId        string
	Phase             CognitivePhase
	HintLevel         int
	Frustration       float64
	Understanding     float64
	TurnsInPhase      int
	ConsecutiveErrors int
	Exercise          *ExerciseContext
	Turns             []DialogueTurn
	Ended             bool
	EndedAt           *time.Time
	LastActivityAt    time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (s *TutoringSession) Clone() *TutoringSession {
	if s == nil {
		return nil
	}
	c := *s
	if s.Exercise != nil {
		ex := *s.Exercise
		c.Exercise = &ex
	}
	c.Turns = make([]DialogueTurn, len(s.Turns))
	for i, t := range s.Turns {
		t.Context = append([]string(nil), t.Context...)
		c.Turns[i] = t
	}
	if s.EndedAt != nil {
		t := *s.EndedAt
		c.EndedAt = &t
	}
	return &c
}
