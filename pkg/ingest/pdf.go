package ingest

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// literalRegex matches string operands, allowing escaped parentheses.
var literalRegex = regexp.MustCompile(`\(((?:[^()\\]|\\.)*)\)`)

// extractPDF returns the text of every page that has any. Only literal
// string operands of the text-showing operators are read; scanned pages
// come back empty.
func extractPDF(data []byte) ([]string, error) {
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), model.NewDefaultConfiguration())
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}

	var pages []string
	for nr := 1; nr <= ctx.PageCount; nr++ {
		r, err := pdfcpu.ExtractPageContent(ctx, nr)
		if err != nil || r == nil {
			continue
		}
		content, err := io.ReadAll(r)
		if err != nil {
			continue
		}
		if text := pageText(content); text != "" {
			pages = append(pages, text)
		}
	}
	if len(pages) == 0 {
		return nil, ErrEmptySource
	}
	return pages, nil
}

func pageText(content []byte) string {
	var b strings.Builder
	for _, raw := range bytes.Split(content, []byte{'\n'}) {
		line := bytes.TrimSpace(raw)
		switch {
		case bytes.HasSuffix(line, []byte("Tj")), bytes.HasSuffix(line, []byte("TJ")):
			for _, m := range literalRegex.FindAllSubmatch(line, -1) {
				b.WriteString(unescapeLiteral(m[1]))
			}
		case bytes.HasSuffix(line, []byte("'")), bytes.HasSuffix(line, []byte(`"`)):
			b.WriteByte('\n')
			for _, m := range literalRegex.FindAllSubmatch(line, -1) {
				b.WriteString(unescapeLiteral(m[1]))
			}
		case bytes.HasSuffix(line, []byte("Td")), bytes.HasSuffix(line, []byte("TD")):
			b.WriteByte(' ')
		case bytes.Equal(line, []byte("T*")), bytes.Equal(line, []byte("ET")):
			b.WriteByte('\n')
		}
	}
	return tidy(b.String())
}

func unescapeLiteral(raw []byte) string {
	var b strings.Builder
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c != '\\' || i+1 == len(raw) {
			b.WriteByte(c)
			continue
		}
		i++
		switch raw[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			// dropped
		case '0', '1', '2', '3', '4', '5', '6', '7':
			v, n := 0, 0
			for n < 3 && i < len(raw) && raw[i] >= '0' && raw[i] <= '7' {
				v = v*8 + int(raw[i]-'0')
				i++
				n++
			}
			i--
			b.WriteByte(byte(v))
		default:
			b.WriteByte(raw[i])
		}
	}
	return b.String()
}

// tidy collapses runs of spaces inside lines and drops blank lines.
func tidy(s string) string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
