package synth

import (
	"context"
	"fmt"
	"sync"

	"github.com/nadzzz/polyvoice/internal/detect"
	"github.com/nadzzz/polyvoice/internal/rewrite"
	"github.com/nadzzz/polyvoice/internal/speech"
)

// Speaker speaks a sequence.
type Speaker interface {
	Speak(ctx context.Context, seq speech.Sequence) error
}

// SpeakerFunc adapts a function to a Speaker.
type SpeakerFunc func(ctx context.Context, seq speech.Sequence) error

// Speak calls f.
func (f SpeakerFunc) Speak(ctx context.Context, seq speech.Sequence) error { return f(ctx, seq) }

// Sink is the host's entry point for speech. It forwards to whichever
// Speaker is currently installed.
type Sink struct {
	mu      sync.RWMutex
	speaker Speaker
}

// NewSink creates a sink that forwards to s.
func NewSink(s Speaker) *Sink {
	return &Sink{speaker: s}
}

// Speak forwards to the installed speaker.
func (k *Sink) Speak(ctx context.Context, seq speech.Sequence) error {
	k.mu.RLock()
	s := k.speaker
	k.mu.RUnlock()
	return s.Speak(ctx, seq)
}

// Speaker returns the installed speaker.
func (k *Sink) Speaker() Speaker {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.speaker
}

// Swap installs s and returns the previously installed speaker.
func (k *Sink) Swap(s Speaker) Speaker {
	k.mu.Lock()
	defer k.mu.Unlock()
	prev := k.speaker
	k.speaker = s
	return prev
}

// Filter preprocesses sequences before handing them to the wrapped
// Speaker: digit commas and document language changes are optionally
// removed, then early language detection runs.
type Filter struct {
	next     Speaker
	settings *Settings
	detector detect.Detector
}

// NewFilter creates a filter in front of next.
func NewFilter(next Speaker, settings *Settings, detector detect.Detector) *Filter {
	return &Filter{next: next, settings: settings, detector: detector}
}

// Speak filters seq and forwards it.
func (f *Filter) Speak(ctx context.Context, seq speech.Sequence) error {
	vals := f.settings.Snapshot()

	if vals.IgnoreCommaBetweenNumbers {
		seq = rewrite.StripNumberCommas(seq)
	}
	if vals.IgnoreDocumentLanguage {
		seq = rewrite.StripLangChanges(seq)
	}
	seq, err := detect.Adapter{Detector: f.detector, Timing: vals.Timing()}.Apply(detect.TimingEarly, seq)
	if err != nil {
		return err
	}
	return f.next.Speak(ctx, seq)
}

// SpellFunc spells text with the voice for locale, "" for the default voice.
type SpellFunc func(ctx context.Context, text, locale string) error

// SpellingFilter splits spelled text into runs of one script and spells
// each run in the language detected for it. Runs in no detected script keep
// the locale given by the caller. It only splits when rules and Unicode
// detection are both enabled.
type SpellingFilter struct {
	next     SpellFunc
	settings *Settings
	detector detect.Detector
}

// NewSpellingFilter creates a spelling filter in front of next.
func NewSpellingFilter(next SpellFunc, settings *Settings, detector detect.Detector) *SpellingFilter {
	return &SpellingFilter{next: next, settings: settings, detector: detector}
}

// Spell spells text, one detected language at a time.
func (f *SpellingFilter) Spell(ctx context.Context, text, locale string) error {
	vals := f.settings.Snapshot()
	if f.detector == nil || !vals.UseRules || !vals.UnicodeDetection {
		return f.next(ctx, text, locale)
	}

	seq, err := f.detector.Detect(speech.Sequence{speech.Text(text)})
	if err != nil {
		return fmt.Errorf("detecting spelling language: %w", err)
	}
	lang := locale
	for _, cmd := range seq {
		switch c := cmd.(type) {
		case speech.LangChange:
			lang = c.Lang
			if c.IsReset() {
				lang = locale
			}
		case speech.Text:
			if err := f.next(ctx, string(c), lang); err != nil {
				return err
			}
		}
	}
	return nil
}
