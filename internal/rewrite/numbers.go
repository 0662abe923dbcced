package rewrite

import (
	"regexp"
	"strings"

	"github.com/nadzzz/polyvoice/internal/speech"
)

// NumberMode selects how coerced numbers are rendered.
type NumberMode string

const (
	// ModeValue reads numbers as values ("12.5" is twelve point five).
	ModeValue NumberMode = "value"
	// ModeNumber reads numbers digit by digit ("1 2 . 5").
	ModeNumber NumberMode = "number"
)

// Valid reports whether m is a known mode.
func (m NumberMode) Valid() bool {
	return m == ModeValue || m == ModeNumber
}

// numberPattern matches a single digit, or a run of digits that may contain
// '.' or ':' separators and starts and ends with a digit.
var numberPattern = regexp.MustCompile(`[0-9]+[0-9.:]*[0-9]+|[0-9]`)

// CoerceNumbers moves every number in the sequence into numberLang.
//
// Each number is wrapped in a StartNumber/EndNumber pair, which a second
// walk resolves: StartNumber becomes numberLang and EndNumber becomes the
// language that was active just before the number. The walk starts from
// current(), called once when the pass runs, and follows every real
// language change it meets, a reset included.
func CoerceNumbers(numberLang string, mode NumberMode, current func() string) Pass {
	return func(seq speech.Sequence) speech.Sequence {
		out := mapText(seq, func(s string) []speech.Command {
			return splitNumbers(s, mode)
		})

		lang := current()
		for i, c := range out {
			lc, ok := c.(speech.LangChange)
			if !ok {
				continue
			}
			switch lc.Lang {
			case speech.StartNumber:
				out[i] = speech.LangChange{Lang: numberLang}
			case speech.EndNumber:
				out[i] = speech.LangChange{Lang: lang}
			default:
				lang = lc.Lang
			}
		}
		return out
	}
}

func splitNumbers(s string, mode NumberMode) []speech.Command {
	matches := numberPattern.FindAllStringIndex(s, -1)
	if matches == nil {
		return []speech.Command{speech.Text(s)}
	}

	out := make([]speech.Command, 0, len(matches)*4+1)
	prev := 0
	for _, m := range matches {
		out = appendText(out, s[prev:m[0]])
		out = append(out,
			speech.LangChange{Lang: speech.StartNumber},
			speech.Text(renderNumber(s[m[0]:m[1]], mode)),
			speech.LangChange{Lang: speech.EndNumber},
		)
		prev = m[1]
	}
	return appendText(out, s[prev:])
}

func renderNumber(number string, mode NumberMode) string {
	if mode != ModeNumber {
		return number
	}
	return strings.Join(strings.Split(number, ""), " ")
}
