// Package ingest turns uploaded learning material into plain text.
package ingest

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
)

const (
	SourceText     = "text"
	SourceMarkdown = "markdown"
	SourceHTML     = "html"
	SourcePDF      = "pdf"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported source format")
	ErrEmptySource       = errors.New("source has no text content")
)

// Document is extracted material ready for chunking.
type Document struct {
	Title      string
	SourceType string
	Text       string
	Pages      int
}

type Extractor struct {
	policy *bluemonday.Policy
	md     *converter.Converter
}

func NewExtractor() *Extractor {
	return &Extractor{
		policy: bluemonday.UGCPolicy(),
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

// DetectType maps a file name to a source type; unknown extensions are
// treated as plain text only when the payload is valid UTF-8.
func DetectType(filename string, data []byte) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".md", ".markdown":
		return SourceMarkdown, nil
	case ".html", ".htm":
		return SourceHTML, nil
	case ".pdf":
		return SourcePDF, nil
	case ".txt", "":
		return SourceText, nil
	}
	if utf8.Valid(data) {
		return SourceText, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(filename))
}

// Extract returns the text of data interpreted as sourceType.
func (e *Extractor) Extract(title, sourceType string, data []byte) (*Document, error) {
	doc := &Document{Title: strings.TrimSpace(title), SourceType: sourceType}

	switch sourceType {
	case SourceText, SourceMarkdown:
		if !utf8.Valid(data) {
			return nil, fmt.Errorf("%w: %s is not valid UTF-8", ErrUnsupportedFormat, sourceType)
		}
		doc.Text = normalizeNewlines(string(data))
	case SourceHTML:
		text, err := e.htmlToMarkdown(string(data))
		if err != nil {
			return nil, err
		}
		doc.Text = text
	case SourcePDF:
		pages, err := extractPDF(data)
		if err != nil {
			return nil, err
		}
		doc.Pages = len(pages)
		doc.Text = strings.Join(pages, "\n\n")
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, sourceType)
	}

	doc.Text = strings.TrimSpace(doc.Text)
	if doc.Text == "" {
		return nil, ErrEmptySource
	}
	if doc.Title == "" {
		doc.Title = firstLine(doc.Text)
	}
	return doc, nil
}

// htmlToMarkdown strips scripts, styles and handlers first, then converts
// what is left so headings and lists survive as chunk boundaries.
func (e *Extractor) htmlToMarkdown(html string) (string, error) {
	clean := e.policy.Sanitize(html)
	md, err := e.md.ConvertString(clean)
	if err != nil {
		return "", fmt.Errorf("convert html: %w", err)
	}
	return normalizeNewlines(md), nil
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "# "))
		if line == "" {
			continue
		}
		if utf8.RuneCountInString(line) > 120 {
			line = string([]rune(line)[:120])
		}
		return line
	}
	return ""
}
