// Package noop implements an engine that produces no audio.
//
// Every call is logged and index markers are reported as soon as the markup
// carrying them is received. Done is reported after each call, or once at
// the end of a batch. It is the default backend when no speech server is
// configured.
package noop

import (
	"context"
	"log/slog"
	"sync"

	"github.com/nadzzz/polyvoice/internal/engine"
	"github.com/nadzzz/polyvoice/internal/voice"
)

// Compile-time interface check.
var (
	_ engine.Engine  = (*Engine)(nil)
	_ engine.Batcher = (*Engine)(nil)
)

// Engine is a silent engine.
type Engine struct {
	mu     sync.Mutex
	cb     engine.Callback
	paused bool
	batch  int  // open batches
	owed   bool // done is due when the batch ends
}

// New creates a no-op engine.
func New() *Engine {
	return &Engine{}
}

// Initialize registers the progress callback.
func (e *Engine) Initialize(cb engine.Callback) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cb = cb
	slog.Info("noop engine initialized")
	return nil
}

// Terminate drops the callback.
func (e *Engine) Terminate() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cb = nil
	return nil
}

// Stop forgets a pending done: nothing is ever queued.
func (e *Engine) Stop() error {
	e.mu.Lock()
	e.owed = false
	e.mu.Unlock()
	return nil
}

// Pause records the paused state for logging only.
func (e *Engine) Pause() error {
	e.mu.Lock()
	e.paused = true
	e.mu.Unlock()
	return nil
}

// Resume clears the paused state.
func (e *Engine) Resume() error {
	e.mu.Lock()
	e.paused = false
	e.mu.Unlock()
	return nil
}

// Speak logs the markup and reports its index markers.
func (e *Engine) Speak(ctx context.Context, v voice.Token, markup string) error {
	cb, err := e.callback()
	if err != nil {
		return err
	}

	var text int
	for _, seg := range engine.Parse(markup) {
		if !seg.IsCode() {
			text += len(seg.Text)
			continue
		}
		if seg.Key != "mrk" {
			continue
		}
		if n, err := seg.Int(); err == nil {
			cb(n, false)
		}
	}
	slog.Debug("noop speak", "voice", v, "text_length", text, "paused", e.isPaused())
	e.done(cb)
	return nil
}

// InsertBreak logs the break.
func (e *Engine) InsertBreak(ctx context.Context, v voice.Token, ms int) error {
	cb, err := e.callback()
	if err != nil {
		return err
	}
	slog.Debug("noop break", "voice", v, "ms", ms)
	e.done(cb)
	return nil
}

// BeginBatch holds done back until the matching EndBatch.
func (e *Engine) BeginBatch() {
	e.mu.Lock()
	e.batch++
	e.mu.Unlock()
}

// EndBatch reports done if anything was spoken in the batch.
func (e *Engine) EndBatch() {
	e.mu.Lock()
	if e.batch > 0 {
		e.batch--
	}
	fire := e.batch == 0 && e.owed && e.cb != nil
	if fire {
		e.owed = false
	}
	cb := e.cb
	e.mu.Unlock()

	if fire {
		cb(0, true)
	}
}

func (e *Engine) done(cb engine.Callback) {
	e.mu.Lock()
	if e.batch > 0 {
		e.owed = true
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()
	cb(0, true)
}

func (e *Engine) callback() (engine.Callback, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cb == nil {
		return nil, engine.ErrNotInitialized
	}
	return e.cb, nil
}

func (e *Engine) isPaused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}
