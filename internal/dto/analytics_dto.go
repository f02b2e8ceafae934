package dto

import (
	"time"

	"github.com/google/uuid"
)

type TraceEntryRequest struct {
	Timestamp  time.Time `json:"timestamp" validate:"required"`
	ActionType string    `json:"action_type" validate:"required,max=64"`
	Phase      string    `json:"phase" validate:"max=64"`
	Detail     string    `json:"detail"`
}

type AuditRequest struct {
	StudentId        string              `json:"-"`
	RiskScore        float64             `json:"risk_score" validate:"min=0,max=1"`
	RiskLevel        string              `json:"risk_level" validate:"max=32"`
	CognitiveMetrics map[string]float64  `json:"cognitive_metrics"`
	TraceLogs        []TraceEntryRequest `json:"trace_logs" validate:"dive"`
}

type EvidenceResponse struct {
	Text     string `json:"text"`
	Grounded bool   `json:"grounded"`
}

type DiagnosticReportResponse struct {
	Id            uuid.UUID          `json:"id"`
	StudentId     string             `json:"student_id"`
	Category      string             `json:"category"`
	Diagnosis     string             `json:"diagnosis"`
	Evidence      []string           `json:"evidence"`
	EvidenceCheck []EvidenceResponse `json:"evidence_check"`
	Intervention  string             `json:"intervention"`
	Confidence    float64            `json:"confidence"`
	Tags          []string           `json:"tags"`
	LowConfidence bool               `json:"low_confidence"`
	Ungrounded    bool               `json:"ungrounded"`
	RuleCategory  string             `json:"rule_category"`
	RiskScore     float64            `json:"risk_score"`
	RiskLevel     string             `json:"risk_level"`
	CreatedAt     time.Time          `json:"created_at"`
}
