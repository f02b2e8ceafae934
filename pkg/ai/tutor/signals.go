package tutor

import (
	"regexp"
	"strings"
	"time"
)

var (
	helpRegex = regexp.MustCompile(`(?i)(?:^|[^\p{L}])(?:hint|help|stuck|give me a clue|show me|i don'?t (?:know|get it|understand)|no s[eé]|no entiendo|ayuda|pista|me rindo|estoy atascad[oa])(?:$|[^\p{L}])`)

	distressMarkers = []string{
		"frustrat", "give up", "i quit", "hate this", "this is impossible", "so confused", "ugh", "argh",
		"me rindo", "odio", "imposible", "no puedo", "estoy perdid", "frustrad",
	}

	errorRegex = regexp.MustCompile(`(?i)\b(?:\w+Error\b|Exception\b|Traceback\b|error:|failed\b|doesn'?t work|not working|no funciona|falla\b)`)

	spanishRegex = regexp.MustCompile(`(?i)[¿¡ñáéíóú]|\b(?:que|como|no entiendo|ayuda|variable es)\b`)
)

// signals are the per-turn observations the estimates are updated from.
type signals struct {
	HelpRequest bool
	Distress    float64
	ErrorSeen   bool
	Latency     time.Duration
	Spanish     bool
}

func observe(message, code string, latency time.Duration) signals {
	lower := strings.ToLower(message)

	hits := 0
	for _, m := range distressMarkers {
		if strings.Contains(lower, m) {
			hits++
		}
	}
	// repeated punctuation reads as exasperation
	if strings.Contains(message, "!!") || strings.Contains(message, "??") {
		hits++
	}

	return signals{
		HelpRequest: helpRegex.MatchString(message),
		Distress:    clamp(float64(hits)*0.5, 0, 1),
		ErrorSeen:   errorRegex.MatchString(message) || errorRegex.MatchString(code),
		Latency:     latency,
		Spanish:     spanishRegex.MatchString(message),
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
