package tokenizer

import (
	"regexp"
	"strings"
)

// Paragraph boundary: one or more blank lines. Line endings are normalized
// before this is applied, so only \n appears in the input.
var paragraphBoundary = regexp.MustCompile(`\n[ \t]*\n[\s]*`)

// Segment splits raw text into paragraphs of words. A paragraph boundary is
// one or more blank lines; within a paragraph, words are runs of
// non-whitespace with punctuation left attached. Paragraphs that are empty
// after trimming are dropped, so the result never contains an empty inner
// slice.
func Segment(text string) [][]string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var paragraphs [][]string
	for _, block := range paragraphBoundary.Split(text, -1) {
		words := strings.Fields(block)
		if len(words) == 0 {
			continue
		}
		paragraphs = append(paragraphs, words)
	}
	return paragraphs
}
