package tokenizer

import "math"

const (
	// ReferenceRate is the rate, in units/minute, that base durations are
	// calibrated at.
	ReferenceRate = 200

	// ReferenceDuration is the unmodified per-token duration at the
	// reference rate, in milliseconds.
	ReferenceDuration = 300
)

// Multipliers is one mode's table of timing multipliers. All applicable
// multipliers compose multiplicatively; punctuation applies exactly one of
// minor/major/terminal.
type Multipliers struct {
	LongWord       float64
	Abbreviation   float64
	Numeric        float64
	MinorPunct     float64
	MajorPunct     float64
	TerminalPunct  float64
	ParagraphEnd   float64
	ParagraphStart float64
}

// The reading table is uniformly slower than skim: comprehension reading
// lingers on punctuation and structure, skimming mostly glides past it.
var modeTables = map[Mode]Multipliers{
	ModeReading: {
		LongWord:       1.3,
		Abbreviation:   1.5,
		Numeric:        1.8,
		MinorPunct:     1.4,
		MajorPunct:     1.7,
		TerminalPunct:  2.2,
		ParagraphEnd:   2.0,
		ParagraphStart: 1.1,
	},
	ModeSkim: {
		LongWord:       1.1,
		Abbreviation:   1.2,
		Numeric:        1.4,
		MinorPunct:     1.1,
		MajorPunct:     1.3,
		TerminalPunct:  1.6,
		ParagraphEnd:   1.5,
		ParagraphStart: 1.0,
	},
}

// BaseDuration maps a word's flags and the reading mode to the token's base
// duration at the reference rate. Multipliers apply in a fixed order:
// long-word, abbreviation, numeric, punctuation class, paragraph-end,
// paragraph-start. The result is rounded to the nearest integer and is
// always at least 1.
func BaseDuration(flags Flags, mode Mode) int {
	m, ok := modeTables[mode]
	if !ok {
		m = modeTables[ModeReading]
	}

	d := float64(ReferenceDuration)
	if flags.LongWord {
		d *= m.LongWord
	}
	if flags.Abbreviation {
		d *= m.Abbreviation
	}
	if flags.Numeric {
		d *= m.Numeric
	}
	switch flags.Punct {
	case PunctMinor:
		d *= m.MinorPunct
	case PunctMajor:
		d *= m.MajorPunct
	case PunctTerminal:
		d *= m.TerminalPunct
	}
	if flags.ParagraphEnd {
		d *= m.ParagraphEnd
	}
	if flags.ParagraphStart {
		d *= m.ParagraphStart
	}

	units := int(math.Round(d))
	if units < 1 {
		units = 1
	}
	return units
}

// Scale converts a base duration into actual on-screen milliseconds at the
// given rate. Lower rates yield longer durations. The caller guarantees
// rate > 0; the scheduler clamps rates before calling.
func Scale(base, rate int) int {
	return int(math.Round(float64(base) * ReferenceRate / float64(rate)))
}
