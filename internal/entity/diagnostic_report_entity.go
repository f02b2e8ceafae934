package entity

import (
	"time"

	"github.com/google/uuid"
)

const (
	CategorySyntax            = "syntax"
	CategoryLogic             = "logic"
	CategoryConceptual        = "conceptual"
	CategoryCognitiveOverload = "cognitive_overload"
	CategoryBehavioral        = "behavioral"
)

var DiagnosticCategories = []string{
	CategorySyntax,
	CategoryLogic,
	CategoryConceptual,
	CategoryCognitiveOverload,
	CategoryBehavioral,
}

const (
	TagLowConfidence     = "low_confidence"
	TagUngrounded        = "ungrounded"
	TagHeuristicFallback = "heuristic_fallback"
)

type EvidenceItem struct {
	Text     string `json:"text"`
	Grounded bool   `json:"grounded"`
}

type DiagnosticReport struct {
	Id            uuid.UUID
	StudentId     string
	Category      string
	Diagnosis     string
	Evidence      []EvidenceItem
	Intervention  string
	Confidence    float64
	Tags          []string
	LowConfidence bool
	Ungrounded    bool
	RuleCategory  string
	ParseTier     int
	RiskScore     float64
	RiskLevel     string
	CreatedAt     time.Time
}

func (r *DiagnosticReport) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
