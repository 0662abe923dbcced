package engine

import (
	"fmt"
	"strconv"
	"strings"
)

// Escape prefixes every in-band control code.
const Escape = "\x1b"

// ChunkSeparator joins the fragments of one synthesis call.
const ChunkSeparator = "  "

// IndexCode marks a checkpoint.
func IndexCode(index int) string { return fmt.Sprintf("%s\\mrk=%d\\", Escape, index) }

// SpellCode switches character-by-character rendering on or off.
func SpellCode(on bool) string {
	if on {
		return Escape + `\tn=spell\`
	}
	return Escape + `\tn=normal\`
}

// PitchCode sets the absolute pitch.
func PitchCode(value int) string { return fmt.Sprintf("%s\\pitch=%d\\", Escape, value) }

// RateCode sets the absolute speaking rate.
func RateCode(value int) string { return fmt.Sprintf("%s\\rate=%d\\", Escape, value) }

// VolumeCode sets the absolute volume.
func VolumeCode(value int) string { return fmt.Sprintf("%s\\vol=%d\\", Escape, value) }

// Join builds the markup of one synthesis call. A separator directly
// before a control code is dropped.
func Join(chunks []string) string {
	return strings.ReplaceAll(strings.Join(chunks, ChunkSeparator), ChunkSeparator+Escape, Escape)
}

// Segment is one piece of parsed markup: either text or a control code.
type Segment struct {
	Text  string // set for text tokens
	Key   string // set for control codes
	Value string
}

// IsCode reports whether the segment is a control code.
func (t Segment) IsCode() bool { return t.Key != "" }

// Int returns the control value as an integer.
func (t Segment) Int() (int, error) { return strconv.Atoi(t.Value) }

// Parse splits markup into text and control segments. Malformed codes are
// kept as text without the escape byte.
func Parse(markup string) []Segment {
	var out []Segment
	for {
		i := strings.Index(markup, Escape)
		if i < 0 {
			break
		}
		if i > 0 {
			out = append(out, Segment{Text: markup[:i]})
		}
		rest := markup[i+len(Escape):]

		code, tail, ok := cutCode(rest)
		if !ok {
			markup = rest
			continue
		}
		key, value, _ := strings.Cut(code, "=")
		out = append(out, Segment{Key: key, Value: value})
		markup = tail
	}
	if markup != "" {
		out = append(out, Segment{Text: markup})
	}
	return out
}

// cutCode expects `\key=value\` at the start of s.
func cutCode(s string) (code, tail string, ok bool) {
	if !strings.HasPrefix(s, `\`) {
		return "", s, false
	}
	end := strings.Index(s[1:], `\`)
	if end < 0 {
		return "", s, false
	}
	code = s[1 : end+1]
	if !strings.Contains(code, "=") {
		return "", s, false
	}
	return code, s[end+2:], true
}
