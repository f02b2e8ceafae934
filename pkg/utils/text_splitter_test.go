package utils

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paragraph(n, size int) string {
	word := fmt.Sprintf("p%03d", n)
	var sb strings.Builder
	for sb.Len() < size {
		if sb.Len() > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(word)
	}
	return sb.String()[:size]
}

func TestSplitText_ParagraphSourceOfNineteenThousandRunes(t *testing.T) {
	paragraphs := make([]string, 38)
	for i := range paragraphs {
		paragraphs[i] = paragraph(i, 498)
	}
	text := strings.Join(paragraphs, "\n\n")
	require.InDelta(t, 19000, utf8.RuneCountInString(text), 10)

	chunks := SplitText(text, 1000, 200)

	assert.Len(t, chunks, 19)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 1000)
	}
}

func TestSplitText_WordsOverlapBetweenChunks(t *testing.T) {
	words := make([]string, 3000)
	for i := range words {
		words[i] = fmt.Sprintf("w%04d", i)
	}
	text := strings.Join(words, " ")

	chunks := SplitText(text, 1000, 200)
	require.Greater(t, len(chunks), 1)

	for i := 1; i < len(chunks); i++ {
		assert.LessOrEqual(t, utf8.RuneCountInString(chunks[i]), 1000)

		first := strings.Fields(chunks[i])[0]
		idx := strings.Index(chunks[i-1], first)
		require.GreaterOrEqual(t, idx, 0, "chunk %d should start inside the previous chunk", i)
		assert.LessOrEqual(t, utf8.RuneCountInString(chunks[i-1][idx:]), 200)
	}
	// nothing lost at the end
	assert.True(t, strings.HasSuffix(chunks[len(chunks)-1], words[len(words)-1]))
}

func TestSplitText_EdgeCases(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		size     int
		overlap  int
		expected []string
	}{
		{name: "empty", text: "   ", size: 10, overlap: 2, expected: nil},
		{name: "fits in one chunk", text: " hello world ", size: 100, overlap: 20, expected: []string{"hello world"}},
		{name: "non positive size", text: "abc", size: 0, overlap: 0, expected: nil},
		{name: "unbroken runes fall back to rune windows", text: "ñññññññññññ", size: 4, overlap: 0, expected: []string{"ññññ", "ññññ", "ñññ"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SplitText(tt.text, tt.size, tt.overlap))
		})
	}
}
