package parser

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

type fieldPatterns struct {
	quoted *regexp.Regexp
	array  *regexp.Regexp
	scalar *regexp.Regexp
	loose  *regexp.Regexp
}

var (
	patternCache      sync.Map // field name -> *fieldPatterns
	quotedStringRegex = regexp.MustCompile(`"((?:[^"\\]|\\.)*)"`)
)

func patternsFor(field string) *fieldPatterns {
	if cached, ok := patternCache.Load(field); ok {
		return cached.(*fieldPatterns)
	}
	name := strings.ReplaceAll(regexp.QuoteMeta(field), "_", "[_ ]")
	p := &fieldPatterns{
		quoted: regexp.MustCompile(`(?i)"` + name + `"\s*:\s*"((?:[^"\\]|\\.)*)"`),
		array:  regexp.MustCompile(`(?i)"` + name + `"\s*:\s*(\[[\s\S]*?\])\s*(?:[,}\n]|$)`),
		scalar: regexp.MustCompile(`(?i)"` + name + `"\s*:\s*(-?\d+(?:\.\d+)?%?|true|false)`),
		loose:  regexp.MustCompile(`(?im)^[ \t>*\-]*['"*]*` + name + `['"*]*[ \t]*[:=][ \t]*(.+)$`),
	}
	patternCache.Store(field, p)
	return p
}

// extractField finds every value labelled with field, in text order of the
// first pattern family that matches anything.
func extractField(text, field string) []any {
	p := patternsFor(field)

	if m := p.quoted.FindAllStringSubmatch(text, -1); len(m) > 0 {
		out := make([]any, 0, len(m))
		for _, sub := range m {
			out = append(out, unescape(sub[1]))
		}
		return out
	}
	if m := p.array.FindAllStringSubmatch(text, -1); len(m) > 0 {
		out := make([]any, 0, len(m))
		for _, sub := range m {
			out = append(out, decodeLooseArray(sub[1]))
		}
		return out
	}
	if m := p.scalar.FindAllStringSubmatch(text, -1); len(m) > 0 {
		out := make([]any, 0, len(m))
		for _, sub := range m {
			out = append(out, typedScalar(sub[1]))
		}
		return out
	}
	if m := p.loose.FindAllStringSubmatch(text, -1); len(m) > 0 {
		out := make([]any, 0, len(m))
		for _, sub := range m {
			value := strings.TrimSpace(sub[1])
			value = strings.TrimSuffix(value, ",")
			value = strings.Trim(strings.TrimSpace(value), `"'`)
			if strings.HasPrefix(value, "[") {
				out = append(out, decodeLooseArray(value))
				continue
			}
			out = append(out, typedScalar(value))
		}
		return out
	}
	return nil
}

func unescape(s string) string {
	var out string
	if err := json.Unmarshal([]byte(`"`+s+`"`), &out); err == nil {
		return out
	}
	return strings.NewReplacer(`\n`, "\n", `\t`, "\t", `\"`, `"`, `\\`, `\`).Replace(s)
}

// decodeLooseArray decodes an array literal, repairing it if needed, and
// falls back to the quoted strings it contains.
func decodeLooseArray(s string) any {
	for _, candidate := range append([]string{s}, repairs(s)...) {
		var arr []any
		if err := json.Unmarshal([]byte(candidate), &arr); err == nil {
			return arr
		}
	}
	quoted := quotedStringRegex.FindAllStringSubmatch(s, -1)
	if len(quoted) > 0 {
		arr := make([]any, 0, len(quoted))
		for _, q := range quoted {
			arr = append(arr, unescape(q[1]))
		}
		return arr
	}
	inner := strings.Trim(strings.TrimSpace(s), "[]")
	var arr []any
	for _, part := range strings.Split(inner, ",") {
		if part = strings.Trim(strings.TrimSpace(part), `'"`); part != "" {
			arr = append(arr, part)
		}
	}
	return arr
}

func typedScalar(s string) any {
	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return n
	}
	return s
}
