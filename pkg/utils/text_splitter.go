package utils

import (
	"strings"
	"unicode/utf8"
)

// defaultSeparators are tried in order: paragraphs, lines, words, runes.
var defaultSeparators = []string{"\n\n", "\n", " ", ""}

// SplitText splits text into chunks of at most chunkSize runes. Pieces are cut
// at the coarsest separator that makes them fit, then merged greedily; each new
// chunk starts with the trailing pieces of the previous one that fit within
// overlap runes.
func SplitText(text string, chunkSize int, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" || chunkSize <= 0 {
		return nil
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}
	if runeLen(text) <= chunkSize {
		return []string{text}
	}
	return splitRecursive(text, defaultSeparators, chunkSize, overlap)
}

func splitRecursive(text string, separators []string, chunkSize, overlap int) []string {
	sep := ""
	var rest []string
	for i, s := range separators {
		if s == "" || strings.Contains(text, s) {
			sep = s
			rest = separators[i+1:]
			break
		}
	}

	var pieces []string
	if sep == "" {
		pieces = strings.Split(text, "")
	} else {
		pieces = strings.Split(text, sep)
	}

	var out, fitting []string
	for _, piece := range pieces {
		if piece == "" {
			continue
		}
		if runeLen(piece) < chunkSize {
			fitting = append(fitting, piece)
			continue
		}
		if len(fitting) > 0 {
			out = append(out, mergeSplits(fitting, sep, chunkSize, overlap)...)
			fitting = nil
		}
		if len(rest) == 0 {
			out = append(out, piece)
		} else {
			out = append(out, splitRecursive(piece, rest, chunkSize, overlap)...)
		}
	}
	if len(fitting) > 0 {
		out = append(out, mergeSplits(fitting, sep, chunkSize, overlap)...)
	}
	return out
}

func mergeSplits(splits []string, sep string, chunkSize, overlap int) []string {
	sepLen := runeLen(sep)
	var docs, current []string
	total := 0

	joinedLen := func(l int) int {
		if len(current) > 0 {
			return total + l + sepLen
		}
		return total + l
	}

	for _, piece := range splits {
		l := runeLen(piece)
		if joinedLen(l) > chunkSize && len(current) > 0 {
			if doc := strings.TrimSpace(strings.Join(current, sep)); doc != "" {
				docs = append(docs, doc)
			}
			// keep only the tail that fits in the overlap budget
			for total > overlap || (joinedLen(l) > chunkSize && total > 0) {
				drop := runeLen(current[0])
				if len(current) > 1 {
					drop += sepLen
				}
				total -= drop
				current = current[1:]
			}
		}
		current = append(current, piece)
		total += l
		if len(current) > 1 {
			total += sepLen
		}
	}

	if doc := strings.TrimSpace(strings.Join(current, sep)); doc != "" {
		docs = append(docs, doc)
	}
	return docs
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
