package synth

import (
	"errors"
	"fmt"
	"sync"

	"github.com/nadzzz/polyvoice/internal/config"
	"github.com/nadzzz/polyvoice/internal/detect"
	"github.com/nadzzz/polyvoice/internal/message"
	"github.com/nadzzz/polyvoice/internal/rewrite"
)

// ErrInvalidSettings is returned for settings that cannot be applied.
var ErrInvalidSettings = errors.New("invalid settings")

// Values is a snapshot of the speech settings.
type Values struct {
	NumberLanguage            string
	NumberMode                rewrite.NumberMode
	ChineseSpace              int
	IgnoreCommaBetweenNumbers bool
	IgnoreDocumentLanguage    bool
	UseRules                  bool
	UnicodeDetection          bool
	AfterSymbolDetection      bool
	MaxChunkLength            int
}

// Timing returns the stage at which language detection runs.
func (v Values) Timing() detect.Timing {
	return detect.TimingFor(v.UseRules, v.UnicodeDetection, v.AfterSymbolDetection)
}

// Settings holds the speech settings. Every field can be changed at
// runtime; readers take a snapshot at the start of each call.
type Settings struct {
	mu sync.RWMutex
	v  Values
}

// NewSettings creates settings initialized from configuration.
func NewSettings(cfg config.SpeechConfig) *Settings {
	return &Settings{v: Values{
		NumberLanguage:            cfg.NumberLanguage,
		NumberMode:                rewrite.NumberMode(cfg.NumberMode),
		ChineseSpace:              cfg.ChineseSpace,
		IgnoreCommaBetweenNumbers: cfg.IgnoreCommaBetweenNumbers,
		IgnoreDocumentLanguage:    cfg.IgnoreDocumentLanguage,
		UseRules:                  cfg.UseRules,
		UnicodeDetection:          cfg.UnicodeDetection,
		AfterSymbolDetection:      cfg.AfterSymbolDetection,
		MaxChunkLength:            cfg.MaxChunkLength,
	}}
}

// Snapshot returns the current values.
func (s *Settings) Snapshot() Values {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v
}

// Apply changes the speech fields set in p. Either every field is applied
// or, on a validation error, none is.
func (s *Settings) Apply(p message.SettingsPatch) error {
	if err := validatePatch(p); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	set(&s.v.NumberLanguage, p.NumberLanguage)
	if p.NumberMode != nil {
		s.v.NumberMode = rewrite.NumberMode(*p.NumberMode)
	}
	set(&s.v.ChineseSpace, p.ChineseSpace)
	set(&s.v.IgnoreCommaBetweenNumbers, p.IgnoreCommaBetweenNumbers)
	set(&s.v.IgnoreDocumentLanguage, p.IgnoreDocumentLanguage)
	set(&s.v.UseRules, p.UseRules)
	set(&s.v.UnicodeDetection, p.UnicodeDetection)
	set(&s.v.AfterSymbolDetection, p.AfterSymbolDetection)
	set(&s.v.MaxChunkLength, p.MaxChunkLength)
	return nil
}

func validatePatch(p message.SettingsPatch) error {
	if p.NumberMode != nil && !rewrite.NumberMode(*p.NumberMode).Valid() {
		return fmt.Errorf("%w: unknown number mode %q", ErrInvalidSettings, *p.NumberMode)
	}
	if p.ChineseSpace != nil && *p.ChineseSpace < 0 {
		return fmt.Errorf("%w: chinese_space must not be negative, got %d", ErrInvalidSettings, *p.ChineseSpace)
	}
	if p.MaxChunkLength != nil && *p.MaxChunkLength < 0 {
		return fmt.Errorf("%w: max_chunk_length must not be negative, got %d", ErrInvalidSettings, *p.MaxChunkLength)
	}
	return nil
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
