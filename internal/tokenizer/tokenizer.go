// Package tokenizer converts raw document text into the timed display tokens
// consumed by the playback scheduler. Tokenization runs in one ordered pass:
// the segmenter splits text into paragraphs of words, the token builder
// classifies each word and computes its fixation point, and the duration
// model assigns a base timing weight calibrated at the reference rate.
//
// Every function in this package is pure and total: any string input,
// including the empty string, produces a valid (possibly empty) token
// sequence and never an error.
package tokenizer

// Mode selects the timing profile applied during tokenization.
type Mode string

const (
	// ModeReading is the deliberate profile for comprehension reading.
	ModeReading Mode = "reading"
	// ModeSkim is the lighter profile for fast scanning.
	ModeSkim Mode = "skim"
)

// ParseMode maps a string onto a known mode, defaulting to ModeReading.
func ParseMode(s string) Mode {
	if Mode(s) == ModeSkim {
		return ModeSkim
	}
	return ModeReading
}

// PunctClass classifies the trailing punctuation of a word.
type PunctClass string

const (
	PunctNone     PunctClass = "none"
	PunctMinor    PunctClass = "minor"
	PunctMajor    PunctClass = "major"
	PunctTerminal PunctClass = "terminal"
)

// Flags carries the classification of a single word.
type Flags struct {
	ParagraphStart bool       `json:"paragraph_start,omitempty"`
	ParagraphEnd   bool       `json:"paragraph_end,omitempty"`
	Punct          PunctClass `json:"punct"`
	LongWord       bool       `json:"long_word,omitempty"`
	Numeric        bool       `json:"numeric,omitempty"`
	Abbreviation   bool       `json:"abbreviation,omitempty"`
}

// Token is one display unit. Tokens are immutable once produced; the playback
// scheduler borrows the sequence and never mutates it.
type Token struct {
	// Text is the word exactly as it appeared in source, punctuation retained.
	Text string `json:"text"`
	// FixationIndex is the 0-based rune offset of the character the reader's
	// eye should anchor on. For non-empty text, 0 <= FixationIndex < rune
	// length of Text.
	FixationIndex int `json:"fixation_index"`
	// BaseDurationUnits is the token's timing weight in milliseconds at the
	// reference rate of 200 units/minute. Always >= 1.
	BaseDurationUnits int `json:"base_duration_units"`

	Flags Flags `json:"flags"`
}

// Tokenize converts text into an ordered token sequence using the given mode.
// Paragraph order and in-paragraph word order are preserved.
func Tokenize(text string, mode Mode) []Token {
	var tokens []Token
	for _, words := range Segment(text) {
		for i, word := range words {
			flags := Build(word, i == 0, i == len(words)-1)
			tokens = append(tokens, Token{
				Text:              word,
				FixationIndex:     FixationIndex(word),
				BaseDurationUnits: BaseDuration(flags, mode),
				Flags:             flags,
			})
		}
	}
	return tokens
}
