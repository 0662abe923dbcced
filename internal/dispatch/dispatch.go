// Package dispatch turns a fully rewritten speech sequence into ordered
// engine calls.
//
// Text for the current voice is accumulated until something forces a flush:
// a voice boundary, a break, an explicit split or the end of the sequence.
// Each flush is exactly one Speak call and every Speak and InsertBreak call
// is issued in sequence order. Nothing is dispatched concurrently.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/nadzzz/polyvoice/internal/engine"
	"github.com/nadzzz/polyvoice/internal/speech"
	"github.com/nadzzz/polyvoice/internal/voice"
)

// Dispatcher issues engine calls for speech sequences.
type Dispatcher struct {
	engine engine.Engine
	voices voice.Registry
}

// New creates a Dispatcher that speaks through eng with voices from the
// registry.
func New(eng engine.Engine, voices voice.Registry) *Dispatcher {
	return &Dispatcher{engine: eng, voices: voices}
}

// run is the state of one Dispatch call.
type run struct {
	ctx    context.Context
	engine engine.Engine
	voices voice.Registry
	res    *resolver
	logger *slog.Logger

	chunks   []string
	hasText  bool
	spelling bool
	ceiling  int

	speaks, breaks int
}

// Dispatch speaks seq. It returns the first engine error, or the context
// error if ctx is cancelled between commands.
func (d *Dispatcher) Dispatch(ctx context.Context, seq speech.Sequence) error {
	res := newResolver(d.voices)
	r := &run{
		ctx:     ctx,
		engine:  d.engine,
		voices:  d.voices,
		res:     res,
		logger:  slog.With("default_voice", res.defaultVoice),
		ceiling: speech.MaxBreak(d.voices.Variant(res.defaultVoice)),
	}
	if b, ok := d.engine.(engine.Batcher); ok {
		b.BeginBatch()
		defer b.EndBatch()
	}

	for _, cmd := range seq {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.apply(cmd); err != nil {
			return err
		}
	}
	if len(r.chunks) > 0 {
		if err := r.flush(r.res.current); err != nil {
			return err
		}
	}

	r.logger.Debug("sequence dispatched", "commands", len(seq), "speaks", r.speaks, "breaks", r.breaks)
	return nil
}

func (r *run) apply(cmd speech.Command) error {
	switch c := cmd.(type) {
	case speech.Text:
		r.appendText(string(c))

	case speech.Index:
		r.chunks = append(r.chunks, engine.IndexCode(int(c)))

	case speech.CharacterMode:
		r.spelling = bool(c)
		r.chunks = append(r.chunks, engine.SpellCode(r.spelling))

	case speech.Break:
		if len(r.chunks) > 0 {
			if err := r.flush(r.res.current); err != nil {
				return err
			}
		}
		ms := c.Clamp(r.ceiling)
		r.breaks++
		if err := r.engine.InsertBreak(r.ctx, r.res.current, ms); err != nil {
			return fmt.Errorf("inserting %dms break: %w", ms, err)
		}

	case speech.Pitch:
		v := r.voices.Parameter(r.res.current, voice.ParamPitch)
		r.chunks = append(r.chunks, engine.PitchCode(engine.PitchRange.Offset(v, int(c))))

	case speech.Rate:
		v := r.voices.Parameter(r.res.current, voice.ParamRate)
		r.chunks = append(r.chunks, engine.RateCode(engine.RateRange.Offset(v, int(c))))

	case speech.Volume:
		v := r.voices.Parameter(r.res.current, voice.ParamVolume)
		r.chunks = append(r.chunks, engine.VolumeCode(engine.VolumeRange.Offset(v, int(c))))

	case speech.LangChange:
		prev, switched := r.res.change(c.Lang)
		if switched {
			r.logger.Debug("voice switched", "from", prev, "to", r.res.current, "language", r.res.currentLang)
			if r.hasText {
				return r.flush(prev)
			}
		}

	case speech.Split:
		if len(r.chunks) > 0 {
			return r.flush(r.res.current)
		}

	default:
		r.logger.Warn("ignoring unknown speech command", "type", fmt.Sprintf("%T", cmd))
	}
	return nil
}

func (r *run) appendText(s string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return
	}
	if r.spelling || utf8.RuneCountInString(s) == 1 {
		s = strings.ToLower(s)
	}
	s = strings.ReplaceAll(s, engine.Escape, "")
	if s == "" {
		return
	}
	r.chunks = append(r.chunks, s)
	r.hasText = true
}

// flush speaks the accumulated chunks with v and resets the accumulator.
func (r *run) flush(v voice.Token) error {
	markup := engine.Join(r.chunks)
	r.chunks = r.chunks[:0]
	r.hasText = false
	r.speaks++
	if err := r.engine.Speak(r.ctx, v, markup); err != nil {
		return fmt.Errorf("speaking with voice %q: %w", v, err)
	}
	return nil
}
