// Package rewrite implements the language-aware text passes applied to a
// speech sequence before dispatch.
//
// Every pass is a pure function from sequence to sequence. Passes only
// insert, remove or split commands; the relative order of any two non-text
// commands is always preserved.
package rewrite

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/nadzzz/polyvoice/internal/speech"
)

// Pass transforms a speech sequence into a new one.
type Pass func(speech.Sequence) speech.Sequence

// Chain composes passes left to right. Nil passes are skipped.
func Chain(passes ...Pass) Pass {
	return func(seq speech.Sequence) speech.Sequence {
		for _, p := range passes {
			if p != nil {
				seq = p(seq)
			}
		}
		return seq
	}
}

// mapText applies fn to every Text command, keeping everything else.
func mapText(seq speech.Sequence, fn func(string) []speech.Command) speech.Sequence {
	out := make(speech.Sequence, 0, len(seq))
	for _, c := range seq {
		if t, ok := c.(speech.Text); ok {
			out = append(out, fn(string(t))...)
			continue
		}
		out = append(out, c)
	}
	return out
}

// appendText appends s as a Text command unless it is empty.
func appendText(out []speech.Command, s string) []speech.Command {
	if s == "" {
		return out
	}
	return append(out, speech.Text(s))
}

// StripNumberCommas removes every comma that sits directly between two
// decimal digits, so "1,234" is read as a single number.
func StripNumberCommas(seq speech.Sequence) speech.Sequence {
	return mapText(seq, func(s string) []speech.Command {
		return []speech.Command{speech.Text(stripDigitCommas(s))}
	})
}

func stripDigitCommas(s string) string {
	if !strings.Contains(s, ",") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == ',' && i > 0 && i+1 < len(s) && isDigit(s[i-1]) && isDigit(s[i+1]) {
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// StripLangChanges drops every language change, so document language hints
// are ignored and the default voice is kept.
func StripLangChanges(seq speech.Sequence) speech.Sequence {
	out := make(speech.Sequence, 0, len(seq))
	for _, c := range seq {
		if _, ok := c.(speech.LangChange); ok {
			continue
		}
		out = append(out, c)
	}
	return out
}

// space is any Unicode whitespace, including the ideographic space U+3000
// and no-break spaces. RE2's \s is ASCII only.
const space = `[\s\p{Z}\x{85}\v]`

// chineseSpace matches whitespace between two CJK unified ideographs. The
// ideographs themselves are captured so they can be kept.
var chineseSpace = regexp.MustCompile(`([\x{4e00}-\x{9fa5}])` + space + `+([\x{4e00}-\x{9fa5}])`)

// SplitChineseSpaces turns whitespace between two Chinese ideographs into a
// pause of pause*5 milliseconds. A zero pause disables the pass.
//
// Adjacent text commands are coalesced first so a space split across two
// text commands is still seen; non-text commands are hard boundaries.
func SplitChineseSpaces(pause int) Pass {
	return func(seq speech.Sequence) speech.Sequence {
		if pause == 0 {
			return seq
		}

		out := make(speech.Sequence, 0, len(seq))
		var run strings.Builder
		flush := func() {
			out = append(out, splitChineseRun(run.String(), speech.Break(pause*5))...)
			run.Reset()
		}
		for _, c := range seq {
			if t, ok := c.(speech.Text); ok {
				run.WriteString(string(t))
				continue
			}
			flush()
			out = append(out, c)
		}
		flush()
		return out
	}
}

func splitChineseRun(s string, pause speech.Break) []speech.Command {
	var out []speech.Command
	// FindAllStringSubmatchIndex does not return overlapping matches, so a
	// single ideograph between two spaces ("中 文 字") needs a rescan from
	// the second captured ideograph.
	start, pos := 0, 0
	for pos < len(s) {
		loc := chineseSpace.FindStringSubmatchIndex(s[pos:])
		if loc == nil {
			break
		}
		spaceStart := pos + loc[3] // end of the first ideograph
		spaceEnd := pos + loc[4]   // start of the second ideograph
		out = appendText(out, s[start:spaceStart])
		out = append(out, pause)
		start = spaceEnd
		pos = spaceEnd
	}
	return appendText(out, s[start:])
}

// SplitLength breaks text into fragments of at most limit runes (not counting
// the whitespace at the cut), cutting only at whitespace and marking every
// cut with a Split command. A single word longer than the limit is emitted
// whole. Whitespace stays attached to the fragment it follows, so the text
// content is unchanged.
func SplitLength(limit int) Pass {
	return func(seq speech.Sequence) speech.Sequence {
		if limit <= 0 {
			return seq
		}
		return mapText(seq, func(s string) []speech.Command {
			return splitByLength(s, limit)
		})
	}
}

var wordWithSpace = regexp.MustCompile(`[^\s\p{Z}\x{85}\v]*` + space + `*`)

func splitByLength(s string, limit int) []speech.Command {
	var (
		out      []speech.Command
		fragment strings.Builder
		size     int
	)
	for _, token := range wordWithSpace.FindAllString(s, -1) {
		if token == "" {
			continue
		}
		n := len([]rune(strings.TrimRightFunc(token, unicode.IsSpace)))
		if size > 0 && size+n > limit {
			out = appendText(out, fragment.String())
			out = append(out, speech.Split{})
			fragment.Reset()
			size = 0
		}
		fragment.WriteString(token)
		size += len([]rune(token))
	}
	return appendText(out, fragment.String())
}
