package generation

import (
	"strings"

	"ai-tutoring-be/internal/entity"
)

const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
	DifficultyMixed  = "mixed"
)

var mixedCycle = []string{DifficultyEasy, DifficultyMedium, DifficultyHard}

// slot is the target for one requested exercise.
type slot struct {
	Index      int
	Difficulty string
	Concept    string
}

func (s slot) query(topic string) string {
	if s.Concept == "" || strings.EqualFold(s.Concept, topic) {
		return topic
	}
	return topic + " " + s.Concept
}

// NormalizeDifficulty maps free text to a tier; empty becomes easy.
func NormalizeDifficulty(d string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(d)) {
	case "", DifficultyEasy, "beginner":
		return DifficultyEasy, true
	case DifficultyMedium, "intermediate":
		return DifficultyMedium, true
	case DifficultyHard, "advanced":
		return DifficultyHard, true
	case DifficultyMixed:
		return DifficultyMixed, true
	}
	return "", false
}

// planSlots spreads difficulty and concepts over the requested count.
// mixed walks easy, medium, hard; concepts rotate.
func planSlots(req entity.Requirements) []slot {
	difficulty, ok := NormalizeDifficulty(req.Difficulty)
	if !ok {
		difficulty = DifficultyEasy
	}

	slots := make([]slot, req.RequestedCount)
	for i := range slots {
		s := slot{Index: i, Difficulty: difficulty, Concept: req.Topic}
		if difficulty == DifficultyMixed {
			s.Difficulty = mixedCycle[i%len(mixedCycle)]
		}
		if len(req.Concepts) > 0 {
			s.Concept = req.Concepts[i%len(req.Concepts)]
		}
		slots[i] = s
	}
	return slots
}

func normalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}
