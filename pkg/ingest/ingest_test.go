package ingest

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_HTMLIsSanitizedAndConverted(t *testing.T) {
	e := NewExtractor()
	html := `<html><body><h1>Variables</h1><script>steal()</script>
<p onclick="x()">A <strong>variable</strong> names a value.</p><ul><li>int</li><li>str</li></ul></body></html>`

	doc, err := e.Extract("", SourceHTML, []byte(html))
	require.NoError(t, err)

	assert.Contains(t, doc.Text, "# Variables")
	assert.Contains(t, doc.Text, "**variable**")
	assert.Contains(t, doc.Text, "- int")
	assert.NotContains(t, doc.Text, "steal")
	assert.NotContains(t, doc.Text, "onclick")
	assert.Equal(t, "Variables", doc.Title)
}

func TestExtract_TextKeepsContent(t *testing.T) {
	doc, err := NewExtractor().Extract("Intro", SourceText, []byte("line one\r\nline two\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two", doc.Text)
	assert.Equal(t, "Intro", doc.Title)
}

func TestExtract_EmptyAndUnsupported(t *testing.T) {
	e := NewExtractor()

	_, err := e.Extract("", SourceMarkdown, []byte("   \n"))
	assert.True(t, errors.Is(err, ErrEmptySource))

	_, err = e.Extract("", "docx", []byte("x"))
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))

	_, err = e.Extract("", SourcePDF, []byte("not a pdf"))
	assert.Error(t, err)
}

func TestDetectType(t *testing.T) {
	for name, want := range map[string]string{
		"notes.md":    SourceMarkdown,
		"page.HTML":   SourceHTML,
		"slides.pdf":  SourcePDF,
		"readme.txt":  SourceText,
		"lesson.text": SourceText,
	} {
		got, err := DetectType(name, []byte("hello"))
		require.NoError(t, err)
		assert.Equal(t, want, got, name)
	}

	_, err := DetectType("image.png", []byte{0xff, 0xd8, 0xff, 0xe0})
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestPageText(t *testing.T) {
	stream := strings.Join([]string{
		"BT",
		"/F1 12 Tf",
		"72 720 Td",
		"(Loops repeat work) Tj",
		"T*",
		"[(Each pass is an ) -120 (iteration\\051)] TJ",
		"(\\101 new line) '",
		"ET",
	}, "\n")

	assert.Equal(t, "Loops repeat work\nEach pass is an iteration)\nA new line", pageText([]byte(stream)))
}
