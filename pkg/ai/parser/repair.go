package parser

import (
	"strings"
)

var smartQuotes = strings.NewReplacer(
	"“", `"`, "”", `"`, "„", `"`, "‟", `"`, "″", `"`,
	"‘", "'", "’", "'", "‚", "'", "‛", "'",
	"\ufeff", "", "\u200b", "",
)

// repairs returns the sanitized variants of s to try, least invasive first:
// quote normalization can break strings that legitimately contain
// typographic quotes, so it only runs in the second variant.
func repairs(s string) []string {
	base := []func(string) string{
		escapeControlCharsInStrings,
		removeTrailingCommas,
		closeTruncated,
	}
	return []string{
		applyPasses(s, base...),
		applyPasses(s, append([]func(string) string{normalizeQuotes}, base...)...),
	}
}

func applyPasses(s string, passes ...func(string) string) string {
	for _, pass := range passes {
		s = pass(s)
	}
	return s
}

// normalizeQuotes turns typographic quotes into ASCII ones. Text with no
// double quotes at all but single-quoted keys is treated as single-quote JSON.
func normalizeQuotes(s string) string {
	s = smartQuotes.Replace(s)
	if !strings.Contains(s, `"`) && strings.Contains(s, "'") {
		s = strings.ReplaceAll(s, "'", `"`)
	}
	return s
}

// escapeControlCharsInStrings escapes raw newlines, carriage returns and tabs
// that appear inside string literals.
func escapeControlCharsInStrings(s string) string {
	var result strings.Builder
	result.Grow(len(s))
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		ch := s[i]

		if escaped {
			result.WriteByte(ch)
			escaped = false
			continue
		}
		if ch == '\\' {
			result.WriteByte(ch)
			escaped = true
			continue
		}
		if ch == '"' {
			result.WriteByte(ch)
			inString = !inString
			continue
		}
		if inString {
			switch ch {
			case '\n':
				result.WriteString(`\n`)
				continue
			case '\r':
				result.WriteString(`\n`)
				if i+1 < len(s) && s[i+1] == '\n' {
					i++
				}
				continue
			case '\t':
				result.WriteString(`\t`)
				continue
			}
		}
		result.WriteByte(ch)
	}
	return result.String()
}

// removeTrailingCommas drops commas that directly precede a closing bracket
// outside of strings.
func removeTrailingCommas(s string) string {
	var result strings.Builder
	result.Grow(len(s))
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		ch := s[i]

		if escaped {
			result.WriteByte(ch)
			escaped = false
			continue
		}
		if ch == '\\' && inString {
			result.WriteByte(ch)
			escaped = true
			continue
		}
		if ch == '"' {
			inString = !inString
		}
		if ch == ',' && !inString {
			j := i + 1
			for j < len(s) && (s[j] == ' ' || s[j] == '\n' || s[j] == '\r' || s[j] == '\t') {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue
			}
		}
		result.WriteByte(ch)
	}
	return result.String()
}

// closeTruncated appends whatever closing quote and brackets an output cut
// off by a token limit is missing. A dangling object key is dropped and a
// dangling colon gets a null value.
func closeTruncated(s string) string {
	var stack []byte
	inString := false
	escaped := false
	strStart, lastStrStart, lastStrEnd := -1, -1, -1

	for i := 0; i < len(s); i++ {
		ch := s[i]
		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' && inString {
			escaped = true
			continue
		}
		if ch == '"' {
			if inString {
				lastStrStart, lastStrEnd = strStart, i
			} else {
				strStart = i
			}
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch ch {
		case '{', '[':
			stack = append(stack, ch)
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
	if len(stack) == 0 && !inString {
		return s
	}

	out := s
	switch {
	case inString && isKeyPosition(s, strStart, stack):
		out = s[:strStart]
	case inString:
		out += `"`
	default:
		trimmed := strings.TrimRight(out, " \n\r\t")
		if lastStrEnd == len(trimmed)-1 && isKeyPosition(s, lastStrStart, stack) {
			out = s[:lastStrStart]
		}
	}

	out = strings.TrimRight(out, " \n\r\t")
	out = strings.TrimSuffix(out, ",")
	if strings.HasSuffix(out, ":") {
		out += " null"
	}
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			out += "}"
		} else {
			out += "]"
		}
	}
	return out
}

// isKeyPosition reports whether the string starting at pos sits where an
// object key is expected.
func isKeyPosition(s string, pos int, stack []byte) bool {
	if pos <= 0 || len(stack) == 0 || stack[len(stack)-1] != '{' {
		return false
	}
	prev := strings.TrimRight(s[:pos], " \n\r\t")
	return strings.HasSuffix(prev, "{") || strings.HasSuffix(prev, ",")
}
