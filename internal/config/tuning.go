package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Tuning holds the knobs that shape the AI workflows. Defaults live in code;
// an optional TOML file overrides any subset of them.
type Tuning struct {
	Chunking   ChunkingTuning   `toml:"chunking"`
	Retrieval  RetrievalTuning  `toml:"retrieval"`
	Model      ModelTuning      `toml:"model"`
	Generation WorkflowTuning   `toml:"generation"`
	Tutor      TutorTuning      `toml:"tutor"`
	Diagnostic DiagnosticTuning `toml:"diagnostic"`
}

type ChunkingTuning struct {
	Size    int `toml:"size"`
	Overlap int `toml:"overlap"`
	// PerSourceType overrides size/overlap for "text", "markdown", "html" or "pdf".
	PerSourceType map[string]ChunkWindow `toml:"per_source_type"`
}

type ChunkWindow struct {
	Size    int `toml:"size"`
	Overlap int `toml:"overlap"`
}

type RetrievalTuning struct {
	TopK            int     `toml:"top_k"`
	MinScore        float64 `toml:"min_score"`
	CacheTTLSeconds int     `toml:"cache_ttl_seconds"`
}

type ModelTuning struct {
	MaxAttempts       int     `toml:"max_attempts"`
	InitialWaitMillis int     `toml:"initial_wait_ms"`
	MaxWaitMillis     int     `toml:"max_wait_ms"`
	Multiplier        float64 `toml:"multiplier"`
	RequestsPerMinute int     `toml:"requests_per_minute"`
}

type WorkflowTuning struct {
	MaxTokens      int     `toml:"max_tokens"`
	Temperature    float64 `toml:"temperature"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

type TutorTuning struct {
	WorkflowTuning
	HistoryTurns       int     `toml:"history_turns"`
	MaxHintLevel       int     `toml:"max_hint_level"`
	ComprehensionAfter float64 `toml:"comprehension_after"`
	ApplicationAfter   float64 `toml:"application_after"`
	ReflectionAfter    float64 `toml:"reflection_after"`
	MinTurnsPerPhase   int     `toml:"min_turns_per_phase"`
	ForcedAdvanceTurns int     `toml:"forced_advance_turns"`
}

type DiagnosticTuning struct {
	WorkflowTuning
	MaxEntries             int     `toml:"max_entries"`
	DetailLimit            int     `toml:"detail_limit"`
	DigestLimit            int     `toml:"digest_limit"`
	LowConfidenceThreshold float64 `toml:"low_confidence_threshold"`
}

func DefaultTuning() Tuning {
	return Tuning{
		Chunking: ChunkingTuning{Size: 1000, Overlap: 200},
		Retrieval: RetrievalTuning{
			TopK:            4,
			CacheTTLSeconds: 60,
		},
		Model: ModelTuning{
			MaxAttempts:       3,
			InitialWaitMillis: 500,
			MaxWaitMillis:     8000,
			Multiplier:        2.0,
			RequestsPerMinute: 60,
		},
		Generation: WorkflowTuning{MaxTokens: 2048, Temperature: 0.7, TimeoutSeconds: 60},
		Tutor: TutorTuning{
			WorkflowTuning:     WorkflowTuning{MaxTokens: 512, Temperature: 0.5, TimeoutSeconds: 30},
			HistoryTurns:       6,
			MaxHintLevel:       3,
			ComprehensionAfter: 0.35,
			ApplicationAfter:   0.55,
			ReflectionAfter:    0.75,
			MinTurnsPerPhase:   2,
			ForcedAdvanceTurns: 5,
		},
		Diagnostic: DiagnosticTuning{
			WorkflowTuning:         WorkflowTuning{MaxTokens: 512, Temperature: 0.3, TimeoutSeconds: 30},
			MaxEntries:             10,
			DetailLimit:            200,
			DigestLimit:            2500,
			LowConfidenceThreshold: 0.5,
		},
	}
}

// LoadTuning decodes path over the defaults. An empty path returns the defaults.
func LoadTuning(path string) (Tuning, error) {
	tuning := DefaultTuning()
	if path == "" {
		return tuning, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return tuning, fmt.Errorf("failed to read tuning file: %w", err)
	}
	if err := toml.Unmarshal(data, &tuning); err != nil {
		return DefaultTuning(), fmt.Errorf("failed to parse tuning file: %w", err)
	}
	if err := tuning.Validate(); err != nil {
		return DefaultTuning(), err
	}
	return tuning, nil
}

func (t Tuning) Validate() error {
	if err := validateWindow("chunking", t.Chunking.Size, t.Chunking.Overlap); err != nil {
		return err
	}
	for sourceType, w := range t.Chunking.PerSourceType {
		if err := validateWindow("chunking."+sourceType, w.Size, w.Overlap); err != nil {
			return err
		}
	}
	if t.Model.MaxAttempts < 1 {
		return fmt.Errorf("model.max_attempts must be at least 1")
	}
	if t.Diagnostic.LowConfidenceThreshold < 0 || t.Diagnostic.LowConfidenceThreshold > 1 {
		return fmt.Errorf("diagnostic.low_confidence_threshold must be within [0,1]")
	}
	return nil
}

func validateWindow(name string, size, overlap int) error {
	if size <= 0 {
		return fmt.Errorf("%s.size must be positive", name)
	}
	if overlap < 0 || overlap >= size {
		return fmt.Errorf("%s.overlap must be in [0, size)", name)
	}
	return nil
}

// ChunkWindowFor returns the window for a source type, falling back to the global one.
func (c ChunkingTuning) ChunkWindowFor(sourceType string) (int, int) {
	if w, ok := c.PerSourceType[sourceType]; ok {
		return w.Size, w.Overlap
	}
	return c.Size, c.Overlap
}

func (m ModelTuning) InitialWait() time.Duration {
	return time.Duration(m.InitialWaitMillis) * time.Millisecond
}

func (m ModelTuning) MaxWait() time.Duration {
	return time.Duration(m.MaxWaitMillis) * time.Millisecond
}

func (w WorkflowTuning) Timeout() time.Duration {
	return time.Duration(w.TimeoutSeconds) * time.Second
}

func (r RetrievalTuning) CacheTTL() time.Duration {
	return time.Duration(r.CacheTTLSeconds) * time.Second
}
