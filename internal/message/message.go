// Package message defines the request and response types exchanged with
// polyvoice clients over every transport.
package message

import (
	"time"

	"github.com/nadzzz/polyvoice/internal/speech"
)

// SpeakRequest asks for a speech sequence to be spoken.
type SpeakRequest struct {
	// ID is a unique identifier for this request (UUID). Assigned by the
	// service when the client leaves it empty.
	ID string `json:"id,omitempty"`

	// Source identifies the sender (e.g., "screen-reader", "kiosk-01").
	Source string `json:"source,omitempty"`

	// Sequence is the command sequence to speak.
	Sequence speech.Sequence `json:"sequence,omitempty"`

	// Text is a plain-text shortcut, appended to Sequence as one Text command.
	Text string `json:"text,omitempty"`

	// Timestamp is when the request was received.
	Timestamp time.Time `json:"timestamp"`
}

// Commands returns the sequence to speak, including Text.
func (r *SpeakRequest) Commands() speech.Sequence {
	seq := r.Sequence.Clone()
	if r.Text != "" {
		seq = append(seq, speech.Text(r.Text))
	}
	return seq
}

// SpeakResult is the outcome of a speak request.
type SpeakResult struct {
	// RequestID is the ID of the request.
	RequestID string `json:"request_id"`

	// Commands is the number of commands accepted for dispatch.
	Commands int `json:"commands"`

	// Error is set if the request failed.
	Error string `json:"error,omitempty"`
}

// SpellRequest asks for text to be spelled character by character.
type SpellRequest struct {
	// ID is a unique identifier for this request (UUID). Assigned by the
	// service when the client leaves it empty.
	ID string `json:"id,omitempty"`

	// Source identifies the sender.
	Source string `json:"source,omitempty"`

	// Text is spelled.
	Text string `json:"text"`

	// Locale is the language the text is declared in, empty for the
	// default voice.
	Locale string `json:"locale,omitempty"`

	// Timestamp is when the request was received.
	Timestamp time.Time `json:"timestamp"`
}

// PauseRequest toggles speech output.
type PauseRequest struct {
	Paused bool `json:"paused"`
}

// Settings is the runtime-settable configuration of the synth.
type Settings struct {
	Voice   string `json:"voice"`
	Variant string `json:"variant"`
	Rate    int    `json:"rate"`
	Pitch   int    `json:"pitch"`
	Volume  int    `json:"volume"`

	NumberLanguage            string `json:"number_language"`
	NumberMode                string `json:"number_mode"`
	ChineseSpace              int    `json:"chinese_space"`
	IgnoreCommaBetweenNumbers bool   `json:"ignore_comma_between_numbers"`
	IgnoreDocumentLanguage    bool   `json:"ignore_document_language"`
	UseRules                  bool   `json:"use_rules"`
	UnicodeDetection          bool   `json:"unicode_detection"`
	AfterSymbolDetection      bool   `json:"after_symbol_detection"`
	MaxChunkLength            int    `json:"max_chunk_length"`

	// Languages lists the languages with at least one voice. Read only.
	Languages []string `json:"languages,omitempty"`
}

// SettingsPatch changes a subset of the settings. Nil fields are left as is.
type SettingsPatch struct {
	Voice   *string `json:"voice,omitempty"`
	Variant *string `json:"variant,omitempty"`
	Rate    *int    `json:"rate,omitempty"`
	Pitch   *int    `json:"pitch,omitempty"`
	Volume  *int    `json:"volume,omitempty"`

	NumberLanguage            *string `json:"number_language,omitempty"`
	NumberMode                *string `json:"number_mode,omitempty"`
	ChineseSpace              *int    `json:"chinese_space,omitempty"`
	IgnoreCommaBetweenNumbers *bool   `json:"ignore_comma_between_numbers,omitempty"`
	IgnoreDocumentLanguage    *bool   `json:"ignore_document_language,omitempty"`
	UseRules                  *bool   `json:"use_rules,omitempty"`
	UnicodeDetection          *bool   `json:"unicode_detection,omitempty"`
	AfterSymbolDetection      *bool   `json:"after_symbol_detection,omitempty"`
	MaxChunkLength            *int    `json:"max_chunk_length,omitempty"`
}

// EventType names an engine progress notification.
type EventType string

const (
	// EventIndex is sent when an index marker has been spoken.
	EventIndex EventType = "index"

	// EventDone is sent when the engine has finished speaking.
	EventDone EventType = "done"
)

// Event is an engine progress notification.
type Event struct {
	Type  EventType `json:"type"`
	Index int       `json:"index,omitempty"`
	Time  time.Time `json:"time"`
}
