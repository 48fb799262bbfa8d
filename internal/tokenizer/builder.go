package tokenizer

import (
	"regexp"
	"strings"
)

var (
	// Currency, percentage, and decimal numbers: digits with optional
	// comma grouping, decimal point, leading $ and trailing %.
	numericPattern = regexp.MustCompile(`^\$?\d[\d,]*(\.\d+)?%?$`)

	// Strict repeating Letter-dot abbreviations such as "U.S." or "e.g.".
	abbrevPattern = regexp.MustCompile(`^([A-Za-z]\.)+$`)
)

var (
	terminalRunes = map[rune]bool{'.': true, '!': true, '?': true, '…': true}
	majorRunes    = map[rune]bool{':': true, ';': true, '—': true, '–': true}
	minorRunes    = map[rune]bool{',': true, '(': true, ')': true, '\'': true, '"': true, '-': true}
)

// Build classifies a single word. The positional booleans are supplied by the
// caller, which knows the word's place within its paragraph.
func Build(word string, isFirstInParagraph, isLastInParagraph bool) Flags {
	clean := cleanWord(word)
	return Flags{
		ParagraphStart: isFirstInParagraph,
		ParagraphEnd:   isLastInParagraph,
		Punct:          classifyPunct(word),
		LongWord:       len(clean) > 8,
		Numeric:        numericPattern.MatchString(word),
		Abbreviation:   abbrevPattern.MatchString(word),
	}
}

// cleanWord strips every character that is not an ASCII letter or digit.
func cleanWord(word string) string {
	var b strings.Builder
	for _, r := range word {
		if isAlnum(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// classifyPunct inspects the trailing punctuation run of the original word.
// Priority: terminal > major > minor > none.
func classifyPunct(word string) PunctClass {
	runes := []rune(word)
	i := len(runes)
	for i > 0 && !isAlnum(runes[i-1]) {
		i--
	}

	class := PunctNone
	for _, r := range runes[i:] {
		switch {
		case terminalRunes[r]:
			return PunctTerminal
		case majorRunes[r]:
			class = PunctMajor
		case minorRunes[r] && class == PunctNone:
			class = PunctMinor
		}
	}
	return class
}

// fixationTarget is the optimal recognition point within the clean form,
// a monotonic step function of clean length.
func fixationTarget(cleanLen int) int {
	switch {
	case cleanLen <= 3:
		return 0
	case cleanLen <= 5:
		return 1
	case cleanLen <= 9:
		return 2
	case cleanLen <= 13:
		return 3
	default:
		return 4
	}
}

// FixationIndex computes the rune offset within the original word of the
// character the reader's eye should anchor on. The recognition point is
// computed on the clean form and then re-mapped onto the original word so
// that attached punctuation does not shift the perceptual center: a leading
// run of non-alphanumeric characters becomes the starting offset, and
// alphanumeric characters are counted from there until the clean index is
// reached.
func FixationIndex(word string) int {
	runes := []rune(word)
	if len(runes) == 0 {
		return 0
	}

	lead := 0
	for lead < len(runes) && !isAlnum(runes[lead]) {
		lead++
	}
	if lead == len(runes) {
		// No alphanumeric characters at all; fall back to the leading
		// offset, clamped into range.
		return len(runes) - 1
	}

	target := fixationTarget(len(cleanWord(word)))
	seen := 0
	for i := lead; i < len(runes); i++ {
		if !isAlnum(runes[i]) {
			continue
		}
		if seen == target {
			return i
		}
		seen++
	}
	return lead
}
