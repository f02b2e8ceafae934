// Package diagnostic turns a student's recent trace into a categorical
// diagnosis with evidence quoted from the trace.
package diagnostic

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"ai-tutoring-be/internal/config"
	"ai-tutoring-be/internal/entity"
	"ai-tutoring-be/internal/pkg/logger"
	"ai-tutoring-be/pkg/ai/gateway"
	"ai-tutoring-be/pkg/ai/parser"
	"ai-tutoring-be/pkg/llm"

	"github.com/google/uuid"
)

const (
	module      = "DiagnosticAnalyzer"
	minEvidence = 3
	maxEvidence = 5

	// shorter quotes match almost any log
	minGroundedRunes = 8
)

const systemPrompt = `You are a learning analyst for a programming course. You read a student's recent activity log and diagnose what is holding them back.

Answer with JSON only:
{"category": "syntax|logic|conceptual|cognitive_overload|behavioral",
 "diagnosis": "two or three sentences",
 "evidence": ["3 to 5 short excerpts copied exactly from the log"],
 "intervention": "one concrete recommendation for the teacher",
 "confidence": 0.0-1.0}

Evidence must be copied character for character from the log. Do not paraphrase it.`

var ReportShape = parser.Shape{
	Name:     "diagnostic_report",
	Required: []string{"category", "diagnosis", "evidence", "intervention", "confidence"},
}

var categoryAliases = map[string]string{
	"syntactic":          entity.CategorySyntax,
	"syntax_error":       entity.CategorySyntax,
	"logical":            entity.CategoryLogic,
	"logic_error":        entity.CategoryLogic,
	"concept":            entity.CategoryConceptual,
	"conceptual_gap":     entity.CategoryConceptual,
	"overload":           entity.CategoryCognitiveOverload,
	"cognitive":          entity.CategoryCognitiveOverload,
	"cognitive_overload": entity.CategoryCognitiveOverload,
	"behavior":           entity.CategoryBehavioral,
	"behaviour":          entity.CategoryBehavioral,
	"behavioural":        entity.CategoryBehavioral,
}

type Analyzer struct {
	model  gateway.ModelGateway
	tuning config.DiagnosticTuning
	logger logger.ILogger
	now    func() time.Time
}

func NewAnalyzer(model gateway.ModelGateway, tuning config.Tuning, log logger.ILogger) *Analyzer {
	return &Analyzer{model: model, tuning: tuning.Diagnostic, logger: log, now: time.Now}
}

// Analyze makes exactly one model call. Unusable model output falls back to
// the rule classifier; only configuration and provider failures are errors.
func (a *Analyzer) Analyze(ctx context.Context, in Input) (*entity.DiagnosticReport, error) {
	entries := window(in.Entries, a.tuning.MaxEntries, a.tuning.DetailLimit)
	f := inspect(entries)
	ruleCategory, ruleConfidence := f.classify()
	digest := buildDigest(in, entries, f, a.tuning.DigestLimit)

	spec := gateway.PromptSpec{
		Purpose: "diagnostic",
		System:  systemPrompt,
		Messages: []llm.Message{{
			Role:    llm.RoleUser,
			Content: fmt.Sprintf("Activity log for student %s:\n\n%s", in.StudentID, digest),
		}},
	}
	raw, err := a.model.Complete(ctx, spec, a.tuning.MaxTokens, a.tuning.Temperature, a.tuning.Timeout())
	if err != nil {
		a.logger.Warn(module, "Diagnostic model call failed", map[string]interface{}{
			"student_id": in.StudentID,
			"error":      err.Error(),
		})
		return nil, err
	}

	res := parser.Parse(raw, ReportShape)
	fields := res.Value
	if fields == nil {
		fields = parser.Fields{}
	}

	report := &entity.DiagnosticReport{
		Id:           uuid.New(),
		StudentId:    in.StudentID,
		RuleCategory: ruleCategory,
		ParseTier:    int(res.Tier),
		RiskScore:    in.RiskScore,
		RiskLevel:    in.RiskLevel,
		CreatedAt:    a.now(),
	}
	fallback := false

	category, ok := normalizeCategory(fields.String("category"))
	if !ok {
		category = ruleCategory
		fallback = true
	}
	report.Category = category

	if confidence, ok := fields.Float("confidence"); ok && !fallback {
		report.Confidence = clamp01(confidence)
	} else {
		report.Confidence = ruleConfidence
		fallback = true
	}

	report.Diagnosis = strings.TrimSpace(fields.String("diagnosis"))
	if report.Diagnosis == "" {
		report.Diagnosis = f.diagnosis(category)
		fallback = true
	}
	report.Intervention = strings.TrimSpace(fields.String("intervention"))
	if report.Intervention == "" {
		report.Intervention = interventions[category]
	}

	report.Evidence = groundEvidence(fields.Strings("evidence"), in, entries, f, ruleCategory)
	for _, ev := range report.Evidence {
		if !ev.Grounded {
			report.Ungrounded = true
			break
		}
	}

	if fallback {
		report.Tags = append(report.Tags, entity.TagHeuristicFallback)
	}
	if report.Ungrounded {
		report.Tags = append(report.Tags, entity.TagUngrounded)
	}
	if report.Confidence < a.tuning.LowConfidenceThreshold {
		report.LowConfidence = true
		report.Tags = append(report.Tags, entity.TagLowConfidence)
	}

	a.logger.Info(module, "Diagnostic report built", map[string]interface{}{
		"student_id":    in.StudentID,
		"category":      report.Category,
		"rule_category": ruleCategory,
		"confidence":    report.Confidence,
		"parse_tier":    res.Tier.String(),
		"tags":          strings.Join(report.Tags, ","),
	})
	return report, nil
}

func normalizeCategory(raw string) (string, bool) {
	c := strings.ToLower(strings.TrimSpace(raw))
	c = strings.NewReplacer(" ", "_", "-", "_").Replace(c)
	for _, known := range entity.DiagnosticCategories {
		if c == known {
			return c, true
		}
	}
	if alias, ok := categoryAliases[c]; ok {
		return alias, true
	}
	return "", false
}

// groundEvidence keeps 3 to 5 distinct items. Model items are marked
// grounded only when they appear verbatim in the logged entry fields.
// Padding is taken from the log first; facts from the request (risk,
// metrics, rule result) fill any remaining slots and are never grounded.
func groundEvidence(items []string, in Input, entries []TraceEntry, f findings, ruleCategory string) []entity.EvidenceItem {
	log := logText(entries)
	out := make([]entity.EvidenceItem, 0, maxEvidence)
	seen := map[string]bool{}
	add := func(text string, grounded bool) {
		text = strings.TrimSpace(text)
		if text == "" || seen[text] || len(out) >= maxEvidence {
			return
		}
		seen[text] = true
		out = append(out, entity.EvidenceItem{Text: text, Grounded: grounded})
	}

	for _, item := range items {
		item = strings.Trim(strings.TrimSpace(item), `"'`)
		add(item, isGrounded(item, log))
	}
	if len(out) >= minEvidence {
		return out
	}

	// pad with the entries that mention the most frequent error first
	var top string
	if errs := f.sortedErrors(); len(errs) > 0 {
		top = errs[0].name
	}
	for i := len(entries) - 1; i >= 0 && len(out) < minEvidence; i-- {
		if top != "" && strings.Contains(entries[i].Detail, top) {
			add(entries[i].Detail, isGrounded(entries[i].Detail, log))
		}
	}
	for i := len(entries) - 1; i >= 0 && len(out) < minEvidence; i-- {
		add(entries[i].Detail, isGrounded(entries[i].Detail, log))
	}
	for i := len(entries) - 1; i >= 0 && len(out) < minEvidence; i-- {
		add(entryRecord(entries[i]), true)
	}

	for _, fact := range requestFacts(in, len(entries), ruleCategory) {
		if len(out) >= minEvidence {
			break
		}
		add(fact, false)
	}
	return out
}

// requestFacts describes the request itself for traces too short to quote.
func requestFacts(in Input, entryCount int, ruleCategory string) []string {
	facts := []string{fmt.Sprintf("Risk score %.2f (level %s)", in.RiskScore, orDash(in.RiskLevel))}
	keys := make([]string, 0, len(in.Metrics))
	for k := range in.Metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		facts = append(facts, fmt.Sprintf("Metric %s = %.2f", k, in.Metrics[k]))
	}
	return append(facts,
		fmt.Sprintf("Trace window holds %d entries", entryCount),
		fmt.Sprintf("Rule classifier suggests %s", ruleCategory),
	)
}

func isGrounded(item, log string) bool {
	item = strings.Join(strings.Fields(item), " ")
	if utf8.RuneCountInString(item) < minGroundedRunes {
		return false
	}
	if strings.Contains(log, item) {
		return true
	}
	return strings.Contains(strings.Join(strings.Fields(log), " "), item)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
