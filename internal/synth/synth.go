// Package synth is the multi-voice speech driver.
//
// A Synth takes speech sequences from the host, runs the rewrite passes and
// hands the result to the dispatcher, which speaks it through the engine
// with one voice per language. Engine progress is published through a
// Notifier. Install puts a Filter in front of the host's Sink so that
// preprocessing and early language detection happen before the host's own
// handling of the sequence.
package synth

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nadzzz/polyvoice/internal/detect"
	"github.com/nadzzz/polyvoice/internal/dispatch"
	"github.com/nadzzz/polyvoice/internal/engine"
	"github.com/nadzzz/polyvoice/internal/rewrite"
	"github.com/nadzzz/polyvoice/internal/speech"
	"github.com/nadzzz/polyvoice/internal/voice"
)

// Voices is the voice registry as used by the synth.
type Voices interface {
	voice.Registry
	DefaultVoiceName() string
	SetDefaultVoice(name string) error
	SetParameter(tok voice.Token, p voice.Param, value int) error
	SetVariant(tok voice.Token, variant string) error
	Languages() []string
}

// Synth drives an engine with several voices.
type Synth struct {
	engine     engine.Engine
	voices     Voices
	detector   detect.Detector
	settings   *Settings
	notifier   *Notifier
	dispatcher *dispatch.Dispatcher

	mu       sync.Mutex
	sink     *Sink
	original Speaker
}

// Compile-time interface check.
var _ Speaker = (*Synth)(nil)

// New initializes eng and returns a synth using it. Initialization errors
// are returned as the engine reported them.
func New(eng engine.Engine, voices Voices, detector detect.Detector, settings *Settings) (*Synth, error) {
	s := &Synth{
		engine:     eng,
		voices:     voices,
		detector:   detector,
		settings:   settings,
		notifier:   NewNotifier(),
		dispatcher: dispatch.New(eng, voices),
	}
	if err := eng.Initialize(s.notifier.Callback); err != nil {
		return nil, err
	}
	slog.Info("synth initialized", "default_voice", voices.DefaultVoiceName(), "languages", len(voices.Languages()))
	return s, nil
}

// Notifier returns the progress notifier.
func (s *Synth) Notifier() *Notifier { return s.notifier }

// Settings returns the speech settings.
func (s *Synth) Settings() *Settings { return s.settings }

// Voices returns the voice registry.
func (s *Synth) Voices() Voices { return s.voices }

// Speak rewrites seq and dispatches it to the engine.
func (s *Synth) Speak(ctx context.Context, seq speech.Sequence) error {
	vals := s.settings.Snapshot()

	seq, err := detect.Adapter{Detector: s.detector, Timing: vals.Timing()}.Apply(detect.TimingLate, seq)
	if err != nil {
		return err
	}

	pass := rewrite.Chain(
		rewrite.CoerceNumbers(vals.NumberLanguage, vals.NumberMode, s.Language),
		rewrite.SplitChineseSpaces(vals.ChineseSpace),
		rewrite.SplitLength(vals.MaxChunkLength),
	)
	return s.dispatcher.Dispatch(ctx, pass(seq))
}

// Spell speaks text in character mode with the voice for locale. It does
// not split text by script; Speller does.
func (s *Synth) Spell(ctx context.Context, text, locale string) error {
	seq := make(speech.Sequence, 0, 4)
	if locale != "" {
		seq = append(seq, speech.LangChange{Lang: locale})
	}
	seq = append(seq, speech.CharacterMode(true), speech.Text(text), speech.CharacterMode(false))
	return s.Speak(ctx, seq)
}

// Speller returns Spell behind a SpellingFilter.
func (s *Synth) Speller() SpellFunc {
	return NewSpellingFilter(s.Spell, s.settings, s.detector).Spell
}

// Language returns the language of the default voice.
func (s *Synth) Language() string {
	return s.voices.DefaultLanguage()
}

// Cancel stops all speech.
func (s *Synth) Cancel() error {
	if err := s.engine.Stop(); err != nil {
		return fmt.Errorf("stopping engine: %w", err)
	}
	return nil
}

// Pause pauses or resumes speech.
func (s *Synth) Pause(paused bool) error {
	if paused {
		if err := s.engine.Pause(); err != nil {
			return fmt.Errorf("pausing engine: %w", err)
		}
		return nil
	}
	if err := s.engine.Resume(); err != nil {
		return fmt.Errorf("resuming engine: %w", err)
	}
	return nil
}

// SetVoice makes name the default voice. Speech is stopped first so the
// previous voice does not keep talking.
func (s *Synth) SetVoice(name string) error {
	if name == s.voices.DefaultVoiceName() {
		return nil
	}
	if err := s.Cancel(); err != nil {
		return err
	}
	return s.voices.SetDefaultVoice(name)
}

// SetVariant changes the variant of the default voice.
func (s *Synth) SetVariant(variant string) error {
	if err := s.Cancel(); err != nil {
		return err
	}
	return s.voices.SetVariant(s.voices.DefaultVoice(), variant)
}

// Variant returns the variant of the default voice.
func (s *Synth) Variant() string {
	return s.voices.Variant(s.voices.DefaultVoice())
}

// SetParameter changes a parameter of the default voice.
func (s *Synth) SetParameter(p voice.Param, value int) error {
	return s.voices.SetParameter(s.voices.DefaultVoice(), p, value)
}

// Parameter returns a parameter of the default voice.
func (s *Synth) Parameter(p voice.Param) int {
	return s.voices.Parameter(s.voices.DefaultVoice(), p)
}

// Install puts a Filter in front of the sink's current speaker. Terminate
// restores it.
func (s *Synth) Install(sink *Sink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sink != nil {
		return
	}
	s.original = sink.Swap(NewFilter(sink.Speaker(), s.settings, s.detector))
	s.sink = sink
}

// Terminate restores the sink, stops speech and releases the engine.
// Failures are logged; teardown always completes.
func (s *Synth) Terminate() {
	s.mu.Lock()
	if s.sink != nil {
		s.sink.Swap(s.original)
		s.sink, s.original = nil, nil
	}
	s.mu.Unlock()

	if err := s.Cancel(); err != nil {
		slog.Error("synth terminate", "error", err)
	}
	if err := s.engine.Terminate(); err != nil {
		slog.Error("synth terminate", "error", err)
	}
	s.notifier.Close()
}
