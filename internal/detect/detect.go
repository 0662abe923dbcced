// Package detect inserts language changes into speech sequences.
//
// A Detector looks at the text of a sequence and adds LangChange commands
// where the language changes. The Adapter decides at which stage of the
// pipeline the detector runs.
package detect

import (
	"fmt"

	"github.com/nadzzz/polyvoice/internal/speech"
)

// Detector annotates a sequence with language changes.
type Detector interface {
	Detect(seq speech.Sequence) (speech.Sequence, error)
}

// Timing selects the pipeline stage at which detection runs.
type Timing int

const (
	// TimingOff disables detection.
	TimingOff Timing = iota
	// TimingEarly runs detection in the outer speak filter, before the
	// host's own processing of the sequence.
	TimingEarly
	// TimingLate runs detection inside the synth, after symbol processing
	// and before the rewrite passes.
	TimingLate
)

func (t Timing) String() string {
	switch t {
	case TimingOff:
		return "off"
	case TimingEarly:
		return "early"
	case TimingLate:
		return "late"
	default:
		return fmt.Sprintf("Timing(%d)", int(t))
	}
}

// TimingFor derives the detection stage from the settings flags.
func TimingFor(enabled, unicode, afterSymbol bool) Timing {
	switch {
	case !enabled || !unicode:
		return TimingOff
	case afterSymbol:
		return TimingLate
	default:
		return TimingEarly
	}
}

// Adapter runs a Detector at one configured stage.
type Adapter struct {
	Detector Detector
	Timing   Timing
}

// Apply runs the detector if stage is the configured timing, otherwise it
// returns seq unchanged. Detector errors are returned wrapped and no
// partial result is produced.
func (a Adapter) Apply(stage Timing, seq speech.Sequence) (speech.Sequence, error) {
	if a.Detector == nil || stage == TimingOff || stage != a.Timing {
		return seq, nil
	}
	out, err := a.Detector.Detect(seq)
	if err != nil {
		return nil, fmt.Errorf("detecting language: %w", err)
	}
	return out, nil
}
