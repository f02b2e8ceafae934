package parser

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var listMarkerRegex = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+`)

// Tier records which parsing strategy produced a Result.
type Tier int

const (
	TierStrict    Tier = 1
	TierSanitized Tier = 2
	TierRegex     Tier = 3
)

func (t Tier) String() string {
	switch t {
	case TierStrict:
		return "strict"
	case TierSanitized:
		return "sanitized"
	case TierRegex:
		return "regex"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// Shape describes what the caller expects the model to have produced.
type Shape struct {
	Name string
	// Required fields count towards Missing; Optional ones are extracted when present.
	Required []string
	Optional []string
	// ListKey marks a list shape: either a bare JSON array of objects or an
	// object wrapping the array under this key.
	ListKey string
}

func (s Shape) IsList() bool { return s.ListKey != "" }

func (s Shape) fields() []string {
	out := make([]string, 0, len(s.Required)+len(s.Optional))
	out = append(out, s.Required...)
	return append(out, s.Optional...)
}

// Fields is one decoded object.
type Fields map[string]any

// Result is what Parse always returns. For object shapes Value is set, for
// list shapes Items is. Missing lists required fields that are absent or
// empty; for lists an entry is "<index>.<field>", or the list key itself when
// no item was recovered.
type Result struct {
	Tier    Tier
	Value   Fields
	Items   []Fields
	Missing []string
	Raw     string
}

func (r Result) Complete() bool { return len(r.Missing) == 0 }

// Partial reports a result that needed the last tier and still lacks fields.
func (r Result) Partial() bool { return r.Tier == TierRegex && !r.Complete() }

// ItemMissing returns the missing required fields of item i.
func (r Result) ItemMissing(i int) []string {
	prefix := strconv.Itoa(i) + "."
	var out []string
	for _, m := range r.Missing {
		if strings.HasPrefix(m, prefix) {
			out = append(out, strings.TrimPrefix(m, prefix))
		}
	}
	return out
}

func (f Fields) Has(name string) bool {
	return !isEmpty(f[name])
}

// String returns the field as text; numbers and bools are formatted.
func (f Fields) String(name string) string {
	switch v := f[name].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return ""
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}

// Float accepts numbers and numeric strings ("0.8", "80%").
func (f Fields) Float(name string) (float64, bool) {
	switch v := f[name].(type) {
	case float64:
		return v, true
	case string:
		s := strings.TrimSpace(v)
		percent := strings.HasSuffix(s, "%")
		s = strings.TrimSuffix(s, "%")
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		if percent {
			n /= 100
		}
		return n, true
	}
	return 0, false
}

func (f Fields) Bool(name string) (bool, bool) {
	switch v := f[name].(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(strings.ToLower(v)))
		return b, err == nil
	}
	return false, false
}

// Strings returns an array field as strings. A plain string is split on
// newlines or semicolons so loosely formatted lists survive.
func (f Fields) Strings(name string) []string {
	var out []string
	switch v := f[name].(type) {
	case []any:
		for _, item := range v {
			s := strings.TrimSpace(Fields{"v": item}.String("v"))
			if s != "" {
				out = append(out, s)
			}
		}
	case string:
		sep := "\n"
		if !strings.Contains(v, "\n") {
			sep = ";"
		}
		for _, part := range strings.Split(v, sep) {
			part = strings.TrimSpace(listMarkerRegex.ReplaceAllString(part, ""))
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Objects returns an array-of-objects field. Items that are not objects are skipped.
func (f Fields) Objects(name string) []Fields {
	arr, ok := f[name].([]any)
	if !ok {
		return nil
	}
	var out []Fields
	for _, item := range arr {
		if m, ok := item.(map[string]any); ok {
			out = append(out, Fields(m))
		}
	}
	return out
}

// Decode round-trips the fields through JSON into a typed value.
func (f Fields) Decode(into any) error {
	b, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, into)
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}
