package diagnostic

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

// TraceEntry is one logged student action.
type TraceEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	ActionType string    `json:"action_type"`
	Phase      string    `json:"phase"`
	Detail     string    `json:"detail"`
}

// Input is everything the analyzer looks at for one request.
type Input struct {
	StudentID string
	RiskScore float64
	RiskLevel string
	Metrics   map[string]float64
	Entries   []TraceEntry
}

// window keeps the newest max entries in chronological order with details
// cut to limit runes.
func window(entries []TraceEntry, max, limit int) []TraceEntry {
	out := append([]TraceEntry(nil), entries...)
	// entries without a timestamp sort first and keep their relative order
	sort.SliceStable(out, func(i, j int) bool {
		zi, zj := out[i].Timestamp.IsZero(), out[j].Timestamp.IsZero()
		if zi || zj {
			return zi && !zj
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	if max > 0 && len(out) > max {
		out = out[len(out)-max:]
	}
	for i := range out {
		out[i].Detail = truncate(strings.TrimSpace(out[i].Detail), limit)
	}
	return out
}

func truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + "..."
}

// entryRecord renders only the logged fields of e. Evidence is grounded
// against these records, never against lines the analyzer writes itself.
func entryRecord(e TraceEntry) string {
	ts := "-"
	if !e.Timestamp.IsZero() {
		ts = e.Timestamp.UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf("%s | %s | %s | %s", ts, e.ActionType, e.Phase, e.Detail)
}

func entryLine(i int, e TraceEntry) string {
	return fmt.Sprintf("[%d] %s", i+1, entryRecord(e))
}

// logText joins the records of entries, one per line.
func logText(entries []TraceEntry) string {
	records := make([]string, len(entries))
	for i, e := range entries {
		records[i] = entryRecord(e)
	}
	return strings.Join(records, "\n")
}

// buildDigest renders the header and entry lines, dropping the oldest
// entries until the whole digest fits in limit runes.
func buildDigest(in Input, entries []TraceEntry, f findings, limit int) string {
	var head strings.Builder
	fmt.Fprintf(&head, "Risk: score %.2f, level %s\n", in.RiskScore, orDash(in.RiskLevel))
	if len(in.Metrics) > 0 {
		keys := make([]string, 0, len(in.Metrics))
		for k := range in.Metrics {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%s=%.2f", k, in.Metrics[k])
		}
		fmt.Fprintf(&head, "Metrics: %s\n", strings.Join(parts, ", "))
	}
	if summary := f.summary(); summary != "" {
		fmt.Fprintf(&head, "Repeated: %s\n", summary)
	}
	head.WriteString("Entries:\n")

	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = entryLine(i, e)
	}

	for {
		digest := head.String() + strings.Join(lines, "\n")
		if limit <= 0 || utf8.RuneCountInString(digest) <= limit || len(lines) == 0 {
			return truncate(digest, limit)
		}
		lines = lines[1:]
	}
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
