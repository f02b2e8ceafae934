// Package parser turns untrusted model text into structured fields. Parsing
// runs as a chain of tiers, each a pure function that either produces a
// decoded value or hands over to the next one. Parse never fails: the last
// tier always yields a Result, possibly with every field missing.
package parser

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

type tier struct {
	level  Tier
	decode func(text string, shape Shape) (any, bool)
}

var tiers = []tier{
	{level: TierStrict, decode: decodeStrict},
	{level: TierSanitized, decode: decodeSanitized},
}

// Parse extracts shape from raw. The returned Result carries the tier that
// succeeded and the required fields still missing.
func Parse(raw string, shape Shape) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = regexResult(raw, shape)
		}
	}()

	stripped := stripWrapping(raw)
	for _, t := range tiers {
		if value, ok := t.decode(stripped, shape); ok {
			res = build(value, shape)
			res.Tier = t.level
			res.Raw = raw
			return res
		}
	}
	return regexResult(raw, shape)
}

func decodeStrict(text string, shape Shape) (any, bool) {
	return bestCandidate(jsonCandidates(text), shape)
}

func decodeSanitized(text string, shape Shape) (any, bool) {
	start := strings.IndexAny(text, "{[")
	if start == -1 {
		return nil, false
	}
	regions := []string{text[start:]}
	if end := strings.LastIndexAny(text, "}]"); end > start {
		regions = append([]string{text[start : end+1]}, regions...)
	}

	var candidates []string
	for _, region := range regions {
		for _, repaired := range repairs(region) {
			candidates = append(candidates, jsonCandidates(repaired)...)
		}
	}
	return bestCandidate(candidates, shape)
}

// bestCandidate decodes every candidate and keeps the one that covers the
// most expected fields. A candidate covering none does not count as a success.
func bestCandidate(candidates []string, shape Shape) (any, bool) {
	var best any
	bestScore := 0
	for _, c := range candidates {
		var v any
		if err := json.Unmarshal([]byte(c), &v); err != nil {
			continue
		}
		if score := coverage(v, shape); score > bestScore {
			best, bestScore = v, score
		}
	}
	return best, bestScore > 0
}

func coverage(v any, shape Shape) int {
	if shape.IsList() {
		score := 0
		for _, item := range listItems(v, shape) {
			score += objectCoverage(item, shape)
		}
		return score
	}
	return objectCoverage(asObject(v), shape)
}

func objectCoverage(obj Fields, shape Shape) int {
	if obj == nil {
		return 0
	}
	fields := shape.fields()
	if len(fields) == 0 {
		return 1
	}
	n := 0
	for _, f := range fields {
		if _, ok := obj[f]; ok {
			n++
		}
	}
	return n
}

// asObject accepts an object, or a one-element array wrapping one.
func asObject(v any) Fields {
	switch t := v.(type) {
	case map[string]any:
		return Fields(t)
	case []any:
		if len(t) > 0 {
			if m, ok := t[0].(map[string]any); ok {
				return Fields(m)
			}
		}
	}
	return nil
}

func listItems(v any, shape Shape) []Fields {
	var arr []any
	switch t := v.(type) {
	case []any:
		arr = t
	case map[string]any:
		if inner, ok := t[shape.ListKey].([]any); ok {
			arr = inner
		} else {
			return []Fields{Fields(t)}
		}
	}
	out := make([]Fields, 0, len(arr))
	for _, item := range arr {
		if m, ok := item.(map[string]any); ok {
			out = append(out, Fields(m))
		}
	}
	return out
}

func build(v any, shape Shape) Result {
	if shape.IsList() {
		items := listItems(v, shape)
		return Result{Items: items, Missing: listMissing(items, shape)}
	}
	obj := asObject(v)
	if obj == nil {
		obj = Fields{}
	}
	return Result{Value: obj, Missing: objectMissing(obj, shape)}
}

func objectMissing(obj Fields, shape Shape) []string {
	var missing []string
	for _, f := range shape.Required {
		if !obj.Has(f) {
			missing = append(missing, f)
		}
	}
	return missing
}

func listMissing(items []Fields, shape Shape) []string {
	if len(items) == 0 {
		return []string{shape.ListKey}
	}
	var missing []string
	for i, item := range items {
		for _, f := range objectMissing(item, shape) {
			missing = append(missing, strconv.Itoa(i)+"."+f)
		}
	}
	return missing
}

// regexResult is the last tier: every expected field is searched for
// independently and whatever is found is assembled.
func regexResult(raw string, shape Shape) Result {
	text := thinkTagRegex.ReplaceAllString(raw, "")
	found := make(map[string][]any)
	for _, f := range shape.fields() {
		if values := extractField(text, f); len(values) > 0 {
			found[f] = values
		}
	}

	res := Result{Tier: TierRegex, Raw: raw}
	if !shape.IsList() {
		obj := Fields{}
		for f, values := range found {
			obj[f] = values[0]
		}
		res.Value = obj
		res.Missing = objectMissing(obj, shape)
		return res
	}

	count := 0
	for _, f := range shape.Required {
		if n := len(found[f]); n > count {
			count = n
		}
	}
	items := make([]Fields, count)
	for i := range items {
		items[i] = Fields{}
		for f, values := range found {
			if i < len(values) {
				items[i][f] = values[i]
			}
		}
	}
	res.Items = items
	res.Missing = listMissing(items, shape)
	return res
}

// MissingSummary renders Missing for logs.
func (r Result) MissingSummary() string {
	m := append([]string(nil), r.Missing...)
	sort.Strings(m)
	return strings.Join(m, ",")
}
