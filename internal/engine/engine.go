// Package engine defines the binding to the underlying text-to-speech engine.
//
// The dispatcher talks to an Engine with opaque voice tokens and markup
// strings. Markup is plain text with in-band control codes: an escape byte
// followed by a key=value token terminated by a backslash. The engine reports
// progress asynchronously through the Callback given to Initialize.
package engine

import (
	"context"
	"errors"

	"github.com/nadzzz/polyvoice/internal/speech"
	"github.com/nadzzz/polyvoice/internal/voice"
)

// ErrNotInitialized is returned by engines used before Initialize.
var ErrNotInitialized = errors.New("engine not initialized")

// Parameter ranges understood by the markup codes.
var (
	PitchRange  = speech.Range{Min: 50, Max: 200}
	RateRange   = speech.Range{Min: 50, Max: 400}
	VolumeRange = speech.Range{Min: 0, Max: 100}
)

// Callback receives engine progress. It is called with done=false and the
// checkpoint id when an index marker has been spoken, and with done=true
// once the engine has nothing left to say. It may be called from any
// goroutine.
type Callback func(index int, done bool)

// Engine is the synthesis engine binding.
type Engine interface {
	// Initialize prepares the engine and registers the progress callback.
	// Failures are fatal to startup and are returned as is.
	Initialize(cb Callback) error

	// Terminate releases engine resources.
	Terminate() error

	// Stop cancels all queued and in-progress speech. It is idempotent.
	Stop() error

	// Pause and Resume toggle output globally.
	Pause() error
	Resume() error

	// Speak queues markup to be spoken with the given voice.
	Speak(ctx context.Context, v voice.Token, markup string) error

	// InsertBreak queues a silence of ms milliseconds on the given voice.
	InsertBreak(ctx context.Context, v voice.Token, ms int) error
}

// Batcher is implemented by engines that report done once per dispatched
// sequence instead of whenever their queue runs dry. Between BeginBatch and
// EndBatch the done notification is held back; EndBatch reports it once
// everything queued in the batch has been spoken.
type Batcher interface {
	BeginBatch()
	EndBatch()
}
