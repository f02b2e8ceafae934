package diagnostic

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"ai-tutoring-be/internal/entity"
)

const (
	rapidResubmit = 10 * time.Second
	idleGap       = 5 * time.Minute
)

var (
	errorNameRegex = regexp.MustCompile(`\b([A-Z][A-Za-z]*(?:Error|Exception))\b`)
	helpRegex      = regexp.MustCompile(`(?i)\b(?:hint|help|stuck|ayuda|pista)\b`)
	wrongRegex     = regexp.MustCompile(`(?i)\b(?:wrong answer|test(?:s)? failed|expected .+ got|assertion)\b`)

	syntaxErrors = map[string]bool{
		"SyntaxError":      true,
		"IndentationError": true,
		"TabError":         true,
	}
	conceptualErrors = map[string]bool{
		"NameError":           true,
		"AttributeError":      true,
		"TypeError":           true,
		"UnboundLocalError":   true,
		"ImportError":         true,
		"ModuleNotFoundError": true,
	}
)

// findings are the rule classifier's view of the trace window.
type findings struct {
	errorCounts map[string]int
	helps       int
	rapid       int
	idle        int
	wrong       int
	total       int
}

func inspect(entries []TraceEntry) findings {
	f := findings{errorCounts: map[string]int{}, total: len(entries)}
	for i, e := range entries {
		text := e.ActionType + " " + e.Detail
		seen := map[string]bool{}
		for _, m := range errorNameRegex.FindAllStringSubmatch(text, -1) {
			if !seen[m[1]] {
				f.errorCounts[m[1]]++
				seen[m[1]] = true
			}
		}
		if helpRegex.MatchString(text) {
			f.helps++
		}
		if wrongRegex.MatchString(text) {
			f.wrong++
		}
		if i == 0 || e.Timestamp.IsZero() || entries[i-1].Timestamp.IsZero() {
			continue
		}
		gap := e.Timestamp.Sub(entries[i-1].Timestamp)
		if gap >= idleGap {
			f.idle++
		}
		if gap < rapidResubmit && isSubmit(e.ActionType) && isSubmit(entries[i-1].ActionType) {
			f.rapid++
		}
	}
	return f
}

func isSubmit(action string) bool {
	a := strings.ToLower(action)
	return strings.Contains(a, "submit") || strings.Contains(a, "run") || strings.Contains(a, "execute")
}

type errorCount struct {
	name  string
	count int
}

func (f findings) sortedErrors() []errorCount {
	out := make([]errorCount, 0, len(f.errorCounts))
	for name, n := range f.errorCounts {
		out = append(out, errorCount{name, n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].name < out[j].name
	})
	return out
}

// summary is the repetition line of the digest, e.g. "IndentationError x5, help requests x2".
func (f findings) summary() string {
	var parts []string
	for _, ec := range f.sortedErrors() {
		if ec.count > 1 {
			parts = append(parts, fmt.Sprintf("%s x%d", ec.name, ec.count))
		}
	}
	if f.helps > 1 {
		parts = append(parts, fmt.Sprintf("help requests x%d", f.helps))
	}
	if f.rapid > 0 {
		parts = append(parts, fmt.Sprintf("rapid resubmissions x%d", f.rapid))
	}
	if f.idle > 0 {
		parts = append(parts, fmt.Sprintf("idle gaps x%d", f.idle))
	}
	return strings.Join(parts, ", ")
}

// classify picks the category with the most supporting entries. Confidence
// grows with the share of the window that supports it.
func (f findings) classify() (string, float64) {
	votes := map[string]int{}
	for name, n := range f.errorCounts {
		switch {
		case syntaxErrors[name]:
			votes[entity.CategorySyntax] += n
		case conceptualErrors[name]:
			votes[entity.CategoryConceptual] += n
		default:
			votes[entity.CategoryLogic] += n
		}
	}
	votes[entity.CategoryLogic] += f.wrong
	votes[entity.CategoryBehavioral] += f.rapid + f.idle
	if f.helps >= 2 {
		votes[entity.CategoryCognitiveOverload] += f.helps
	}

	best, bestVotes := entity.CategoryConceptual, 0
	for _, c := range entity.DiagnosticCategories {
		if votes[c] > bestVotes {
			best, bestVotes = c, votes[c]
		}
	}
	if bestVotes == 0 || f.total == 0 {
		return entity.CategoryConceptual, 0.3
	}

	share := float64(bestVotes) / float64(f.total)
	if share > 1 {
		share = 1
	}
	return best, 0.35 + 0.5*share
}

func (f findings) diagnosis(category string) string {
	errs := f.sortedErrors()
	switch category {
	case entity.CategorySyntax:
		if len(errs) > 0 {
			return fmt.Sprintf("The student keeps hitting %s (%d of the last %d actions). The code structure, not the idea, is blocking progress.", errs[0].name, errs[0].count, f.total)
		}
	case entity.CategoryBehavioral:
		return fmt.Sprintf("The activity pattern shows %d rapid resubmissions and %d long idle gaps. The student may be guessing or disengaging.", f.rapid, f.idle)
	case entity.CategoryCognitiveOverload:
		return fmt.Sprintf("The student asked for help %d times in the last %d actions. The task may be too large to hold at once.", f.helps, f.total)
	case entity.CategoryLogic:
		return "The code runs but produces wrong results. The student's reasoning about the algorithm needs attention."
	}
	return "The recent actions do not point at a single cause. The student may be missing part of the underlying concept."
}

var interventions = map[string]string{
	entity.CategorySyntax:            "Review the exact line the interpreter reports and practise the construct in a tiny example before returning to the exercise.",
	entity.CategoryLogic:             "Trace the code by hand on one failing input and compare each step with the expected value.",
	entity.CategoryConceptual:        "Revisit the concept with a worked example and ask the student to explain it back in their own words.",
	entity.CategoryCognitiveOverload: "Split the exercise into smaller steps and confirm each one before moving on.",
	entity.CategoryBehavioral:        "Check in with the student, slow the submit cycle down, and set a short concrete goal.",
}
