// Package transport defines the interface for pluggable request transports.
//
// Each transport (gRPC, HTTP) accepts client requests and forwards them to
// the Service. The service does not care how requests arrive.
package transport

import (
	"context"
	"errors"

	"github.com/nadzzz/polyvoice/internal/message"
)

// ErrInvalidRequest marks service errors caused by the client's input.
// Transports map it to a client error status.
var ErrInvalidRequest = errors.New("invalid request")

// Service is what transports expose to clients.
type Service interface {
	// Speak speaks a sequence. One request is spoken at a time; later
	// requests wait for earlier ones to be dispatched.
	Speak(ctx context.Context, req *message.SpeakRequest) (*message.SpeakResult, error)

	// Spell spells text character by character, switching voices where
	// the script changes.
	Spell(ctx context.Context, req *message.SpellRequest) (*message.SpeakResult, error)

	// Cancel stops all speech.
	Cancel(ctx context.Context) error

	// Pause pauses or resumes speech.
	Pause(ctx context.Context, paused bool) error

	// Settings returns the current settings.
	Settings(ctx context.Context) (*message.Settings, error)

	// UpdateSettings applies a patch and returns the resulting settings.
	UpdateSettings(ctx context.Context, patch message.SettingsPatch) (*message.Settings, error)

	// Subscribe streams engine progress until ctx is done.
	Subscribe(ctx context.Context) <-chan message.Event
}

// Transport is the interface that every transport adapter must implement.
type Transport interface {
	// Name returns the transport identifier (e.g., "grpc", "http").
	Name() string

	// Listen starts accepting requests and forwards them to svc.
	// It blocks until the context is cancelled.
	Listen(ctx context.Context, svc Service) error

	// Close gracefully shuts down the transport, draining in-flight work.
	Close() error
}
