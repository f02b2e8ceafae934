package parser

import (
	"regexp"
	"strings"
)

var (
	codeFenceRegex = regexp.MustCompile("```(?:json|JSON)?\\s*([\\s\\S]*?)```")
	thinkTagRegex  = regexp.MustCompile(`(?i)<think(?:ing)?>[\s\S]*?</think(?:ing)?>`)
)

// stripWrapping removes reasoning tags and, when present, keeps only the first
// fenced block.
func stripWrapping(s string) string {
	s = thinkTagRegex.ReplaceAllString(s, "")
	if m := codeFenceRegex.FindStringSubmatch(s); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	// unterminated fence: drop the opening line
	if idx := strings.Index(s, "```"); idx != -1 {
		rest := s[idx+3:]
		if nl := strings.Index(rest, "\n"); nl != -1 {
			rest = rest[nl+1:]
		}
		return strings.TrimSpace(rest)
	}
	return strings.TrimSpace(s)
}

// jsonCandidates returns the balanced top-level {...} and [...] spans of s in
// order. When an opening bracket never balances, the tail from it is appended
// last so a repair pass can try to close it.
func jsonCandidates(s string) []string {
	var out []string
	truncated := -1
	for i := 0; i < len(s); i++ {
		if s[i] != '{' && s[i] != '[' {
			continue
		}
		closeChar := byte('}')
		if s[i] == '[' {
			closeChar = ']'
		}
		end := findMatchingBracket(s, i, s[i], closeChar)
		if end == -1 {
			// everything after an unbalanced bracket is nested inside it
			truncated = i
			break
		}
		out = append(out, s[i:end+1])
		i = end
	}
	if truncated != -1 {
		out = append(out, s[truncated:])
	}
	return out
}

// findMatchingBracket returns the index closing the bracket at startPos,
// ignoring brackets inside strings, or -1.
func findMatchingBracket(s string, startPos int, openChar, closeChar byte) int {
	count := 0
	inString := false
	escaped := false

	for i := startPos; i < len(s); i++ {
		ch := s[i]

		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' {
			escaped = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch ch {
		case openChar:
			count++
		case closeChar:
			count--
			if count == 0 {
				return i
			}
		}
	}
	return -1
}
