package synth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nadzzz/polyvoice/internal/message"
	"github.com/nadzzz/polyvoice/internal/transport"
	"github.com/nadzzz/polyvoice/internal/voice"
)

// Compile-time interface check.
var _ transport.Service = (*Service)(nil)

// Service exposes a Synth to transports. Speak requests go through the
// host sink and are serialized: one sequence is dispatched completely
// before the next one starts.
type Service struct {
	synth *Synth
	sink  *Sink
	spell SpellFunc

	mu sync.Mutex
}

// NewService creates a service speaking through sink.
func NewService(s *Synth, sink *Sink) *Service {
	return &Service{synth: s, sink: sink, spell: s.Speller()}
}

// Speak speaks the request's sequence. Failures are reported in the
// result.
func (s *Service) Speak(ctx context.Context, req *message.SpeakRequest) (*message.SpeakResult, error) {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	if req.Timestamp.IsZero() {
		req.Timestamp = time.Now()
	}
	start := time.Now()
	logger := slog.With("request_id", req.ID, "source", req.Source)

	seq := req.Commands()
	result := &message.SpeakResult{RequestID: req.ID, Commands: len(seq)}
	if len(seq) == 0 {
		result.Error = "request has no sequence and no text"
		return result, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	logger.Debug("speak started", "commands", len(seq))
	if err := s.sink.Speak(ctx, seq); err != nil {
		result.Error = fmt.Sprintf("speak failed: %v", err)
		logger.Error("speak failed", "error", err)
		return result, nil
	}
	logger.Info("speak dispatched", "commands", len(seq), "duration", time.Since(start))
	return result, nil
}

// Spell spells the request's text. Failures are reported in the result.
func (s *Service) Spell(ctx context.Context, req *message.SpellRequest) (*message.SpeakResult, error) {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	if req.Timestamp.IsZero() {
		req.Timestamp = time.Now()
	}
	logger := slog.With("request_id", req.ID, "source", req.Source)

	result := &message.SpeakResult{RequestID: req.ID}
	if req.Text == "" {
		result.Error = "request has no text"
		return result, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.spell(ctx, req.Text, req.Locale); err != nil {
		result.Error = fmt.Sprintf("spell failed: %v", err)
		logger.Error("spell failed", "error", err)
		return result, nil
	}
	logger.Info("spell dispatched", "locale", req.Locale)
	return result, nil
}

// Cancel stops all speech. It does not wait for a running Speak.
func (s *Service) Cancel(ctx context.Context) error {
	slog.Debug("cancel requested")
	return s.synth.Cancel()
}

// Pause pauses or resumes speech.
func (s *Service) Pause(ctx context.Context, paused bool) error {
	slog.Debug("pause requested", "paused", paused)
	return s.synth.Pause(paused)
}

// Settings returns the current settings.
func (s *Service) Settings(ctx context.Context) (*message.Settings, error) {
	return s.snapshot(), nil
}

// UpdateSettings applies patch. Speech settings are validated before
// anything changes; voice changes are applied first so that variant and
// parameters go to the new default voice.
func (s *Service) UpdateSettings(ctx context.Context, patch message.SettingsPatch) (*message.Settings, error) {
	if err := validatePatch(patch); err != nil {
		return nil, fmt.Errorf("%w: %w", transport.ErrInvalidRequest, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if patch.Voice != nil {
		if err := s.synth.SetVoice(*patch.Voice); err != nil {
			return nil, clientError(err)
		}
	}
	if patch.Variant != nil {
		if err := s.synth.SetVariant(*patch.Variant); err != nil {
			return nil, clientError(err)
		}
	}
	params := []struct {
		p     voice.Param
		value *int
	}{
		{voice.ParamRate, patch.Rate},
		{voice.ParamPitch, patch.Pitch},
		{voice.ParamVolume, patch.Volume},
	}
	for _, pv := range params {
		if pv.value == nil {
			continue
		}
		if err := s.synth.SetParameter(pv.p, *pv.value); err != nil {
			return nil, clientError(err)
		}
	}
	if err := s.synth.Settings().Apply(patch); err != nil {
		return nil, clientError(err)
	}

	slog.Info("settings updated")
	return s.snapshot(), nil
}

// Subscribe streams engine progress.
func (s *Service) Subscribe(ctx context.Context) <-chan message.Event {
	return s.synth.Notifier().Subscribe(ctx)
}

func (s *Service) snapshot() *message.Settings {
	v := s.synth.Settings().Snapshot()
	return &message.Settings{
		Voice:   s.synth.Voices().DefaultVoiceName(),
		Variant: s.synth.Variant(),
		Rate:    s.synth.Parameter(voice.ParamRate),
		Pitch:   s.synth.Parameter(voice.ParamPitch),
		Volume:  s.synth.Parameter(voice.ParamVolume),

		NumberLanguage:            v.NumberLanguage,
		NumberMode:                string(v.NumberMode),
		ChineseSpace:              v.ChineseSpace,
		IgnoreCommaBetweenNumbers: v.IgnoreCommaBetweenNumbers,
		IgnoreDocumentLanguage:    v.IgnoreDocumentLanguage,
		UseRules:                  v.UseRules,
		UnicodeDetection:          v.UnicodeDetection,
		AfterSymbolDetection:      v.AfterSymbolDetection,
		MaxChunkLength:            v.MaxChunkLength,

		Languages: s.synth.Voices().Languages(),
	}
}

func clientError(err error) error {
	if errors.Is(err, voice.ErrUnknownVoice) || errors.Is(err, ErrInvalidSettings) {
		return fmt.Errorf("%w: %w", transport.ErrInvalidRequest, err)
	}
	return err
}
