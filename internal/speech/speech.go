// Package speech defines the commands flowing through the polyvoice pipeline.
//
// A speech sequence is an ordered list of commands: literal text interleaved
// with control directives (index checkpoints, language switches, pauses,
// spelling mode, prosody changes and explicit split points). Every rewrite
// pass and the dispatcher consume and produce sequences; none of them mutate
// their input.
package speech

import (
	"math"
	"strings"
)

// Pseudo language tags used by the number coercion pass. They never reach
// the dispatcher: the pass resolves them to real tags before returning.
const (
	StartNumber = "StartNumber"
	EndNumber   = "EndNumber"
)

// Break ceilings. The "bet2" engine variant only accepts 16-bit tenths.
const (
	MaxBreakDefault = 65535
	MaxBreakBet2    = 6553
)

// Command is one unit of a speech sequence. The concrete types below are
// the only implementations.
type Command interface {
	command()
}

// Text is literal content to be spoken.
type Text string

// Index is a checkpoint the caller wants reported once it has been spoken.
type Index int

// CharacterMode toggles spelling (character by character) rendering.
type CharacterMode bool

// LangChange requests a voice change for the given language tag.
// An empty Lang resets to the default voice.
type LangChange struct {
	Lang string
}

// Break requests a silence of the given duration in milliseconds.
type Break int

// Pitch is a relative pitch offset in percent.
type Pitch int

// Rate is a relative speaking rate offset in percent.
type Rate int

// Volume is a relative volume offset in percent.
type Volume int

// Split forces a flush of the accumulated text without a voice change.
type Split struct{}

func (Text) command()          {}
func (Index) command()         {}
func (CharacterMode) command() {}
func (LangChange) command()    {}
func (Break) command()         {}
func (Pitch) command()         {}
func (Rate) command()          {}
func (Volume) command()        {}
func (Split) command()         {}

// IsReset reports whether the change resets to the default voice.
func (c LangChange) IsReset() bool { return c.Lang == "" }

// MaxBreak returns the longest break the given engine variant accepts.
func MaxBreak(variant string) int {
	if variant == "bet2" {
		return MaxBreakBet2
	}
	return MaxBreakDefault
}

// Clamp bounds the break duration to [1, ceiling].
func (b Break) Clamp(ceiling int) int {
	return max(1, min(int(b), ceiling))
}

// Range is the absolute value range of an engine parameter.
type Range struct {
	Min int
	Max int
}

// PercentToRange linearly maps a percentage onto r. 0 maps to Min and 100
// to Max; values outside [0, 100] extrapolate.
func PercentToRange(percent int, r Range) int {
	return int(math.Round(float64(percent)/100*float64(r.Max-r.Min) + float64(r.Min)))
}

// Offset applies a relative percent offset to the current absolute value
// and clamps the result into the range.
func (r Range) Offset(current, percent int) int {
	v := current + (PercentToRange(percent, r) - r.Min)
	return max(r.Min, min(r.Max, v))
}

// Sequence is an ordered list of speech commands.
type Sequence []Command

// Text returns the concatenation of every Text command in the sequence.
func (s Sequence) Text() string {
	var b strings.Builder
	for _, c := range s {
		if t, ok := c.(Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String()
}

// Clone returns a shallow copy of the sequence.
func (s Sequence) Clone() Sequence {
	if s == nil {
		return nil
	}
	out := make(Sequence, len(s))
	copy(out, s)
	return out
}
