package tutor

import (
	"regexp"
	"strings"
)

const redactedMarker = "[solution hidden]"

var (
	interrogativeRegex = regexp.MustCompile(`(?i)^\s*(what|how|why|which|where|when|who|can you|could you|would you|do you|did you|is there|are there|have you|what if|qu[eé]|c[oó]mo|por qu[eé]|cu[aá]l|d[oó]nde|cu[aá]ndo|puedes|podr[ií]as|has)(?:$|[^\p{L}])`)

	// "A variable is ...", "Una variable es ...", "Loops are ..."
	definitionalRegex = regexp.MustCompile(`(?i)^\s*(?:(?:a|an|the|un|una|el|la|los|las)\s+)?[\p{L}_][\p{L}\p{N}_-]*(?:\s+[\p{L}_][\p{L}\p{N}_-]*)?\s+(?:is|are|means|refers to|es|son|significa|se refiere a)\b`)

	sentenceEndRegex = regexp.MustCompile(`[.!?\n]`)
	codeFenceRegex   = regexp.MustCompile("(?s)```.*?```")
)

// hasGuidingQuestion reports whether reply asks the student something with
// a question mark. An interrogative clause without one does not count; it
// is only closed off by closeQuestion once the re-prompt has been spent.
func hasGuidingQuestion(reply string) bool {
	return strings.Contains(reply, "?")
}

// closeQuestion terminates the last clause of reply with "?" when it opens
// with an interrogative ("How would you test it" or "¿Cómo lo probarías").
func closeQuestion(reply string) (string, bool) {
	trimmed := strings.TrimRight(strings.TrimSpace(reply), ".!…")
	if trimmed == "" {
		return reply, false
	}
	start := 0
	if locs := sentenceEndRegex.FindAllStringIndex(trimmed, -1); len(locs) > 0 {
		start = locs[len(locs)-1][1]
	}
	last := strings.TrimSpace(trimmed[start:])
	if last == "" {
		return reply, false
	}
	if !strings.HasPrefix(last, "¿") && !interrogativeRegex.MatchString(last) {
		return reply, false
	}
	return trimmed + "?", true
}

// opensWithDefinition reports whether the first sentence states a definition.
func opensWithDefinition(reply string) bool {
	trimmed := strings.TrimSpace(reply)
	if strings.HasPrefix(trimmed, "¿") {
		return false
	}
	first := trimmed
	if loc := sentenceEndRegex.FindStringIndex(trimmed); loc != nil {
		first = trimmed[:loc[0]]
	}
	if interrogativeRegex.MatchString(first) {
		return false
	}
	if words := strings.Fields(strings.ToLower(first)); len(words) > 0 && deictic[words[0]] {
		return false
	}
	return definitionalRegex.MatchString(first)
}

// deictic openers ("That is a good start") point at the student's work
// rather than define a term.
var deictic = map[string]bool{
	"this": true, "that": true, "it": true, "there": true, "here": true, "you": true,
	"esto": true, "eso": true, "esta": true, "este": true, "ese": true, "esa": true, "tu": true, "tú": true,
}

// leaksSolution is the hard check: literal containment, plus containment
// after whitespace is collapsed so reformatted code is caught too.
func leaksSolution(reply, solution string) bool {
	solution = strings.TrimSpace(solution)
	if solution == "" {
		return false
	}
	if strings.Contains(reply, solution) {
		return true
	}
	return strings.Contains(collapseSpace(reply), collapseSpace(solution))
}

// redactSolution removes the solution from text. If a reformatted copy
// survives literal replacement, code blocks are dropped; if it still
// survives, ok is false and the caller must discard the text.
func redactSolution(text, solution string) (string, bool) {
	solution = strings.TrimSpace(solution)
	if solution == "" || !leaksSolution(text, solution) {
		return text, true
	}
	out := strings.ReplaceAll(text, solution, redactedMarker)
	if !leaksSolution(out, solution) {
		return out, true
	}
	out = codeFenceRegex.ReplaceAllString(out, redactedMarker)
	if !leaksSolution(out, solution) {
		return out, true
	}
	return "", false
}

type validation struct {
	Question   bool
	Definition bool
	Leak       bool
}

func (v validation) ok() bool {
	return v.Question && !v.Definition && !v.Leak
}

func (v validation) problems() []string {
	var out []string
	if !v.Question {
		out = append(out, "it does not ask the student a guiding question")
	}
	if v.Definition {
		out = append(out, "it opens by stating a definition instead of asking")
	}
	if v.Leak {
		out = append(out, "it reveals the reference solution")
	}
	return out
}

func validateReply(reply, solution string) validation {
	return validation{
		Question:   hasGuidingQuestion(reply),
		Definition: opensWithDefinition(reply),
		Leak:       leaksSolution(reply, solution),
	}
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
