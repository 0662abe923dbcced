package wyoming

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// protocolVersion is sent in every event header.
const protocolVersion = "1.5.2"

// Event types used by the client.
const (
	eventSynthesize = "synthesize"
	eventAudioStart = "audio-start"
	eventAudioChunk = "audio-chunk"
	eventAudioStop  = "audio-stop"
	eventError      = "error"
)

// header is the first line of every Wyoming event. Data and payload of the
// given lengths follow it. Older servers put the data inline instead.
type header struct {
	Type          string          `json:"type"`
	Version       string          `json:"version,omitempty"`
	Data          json.RawMessage `json:"data,omitempty"`
	DataLength    int             `json:"data_length,omitempty"`
	PayloadLength int             `json:"payload_length,omitempty"`
}

// event is a decoded Wyoming event.
type event struct {
	Type    string
	Data    json.RawMessage
	Payload []byte
}

type synthesizeVoice struct {
	Name string `json:"name"`
}

type synthesizeData struct {
	Text  string          `json:"text"`
	Voice synthesizeVoice `json:"voice"`
}

// audioFormat is carried by audio-start and audio-chunk events.
type audioFormat struct {
	Rate     int `json:"rate"`
	Width    int `json:"width"`
	Channels int `json:"channels"`
}

type errorData struct {
	Text string `json:"text"`
	Code string `json:"code,omitempty"`
}

// writeEvent sends one event. data is marshalled to JSON; payload may be nil.
func writeEvent(w io.Writer, typ string, data any, payload []byte) error {
	var body []byte
	if data != nil {
		var err error
		if body, err = json.Marshal(data); err != nil {
			return fmt.Errorf("marshalling %s data: %w", typ, err)
		}
	}

	line, err := json.Marshal(header{
		Type:          typ,
		Version:       protocolVersion,
		DataLength:    len(body),
		PayloadLength: len(payload),
	})
	if err != nil {
		return fmt.Errorf("marshalling %s header: %w", typ, err)
	}

	buf := make([]byte, 0, len(line)+1+len(body)+len(payload))
	buf = append(buf, line...)
	buf = append(buf, '\n')
	buf = append(buf, body...)
	buf = append(buf, payload...)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("writing %s event: %w", typ, err)
	}
	return nil
}

// readEvent reads one event.
func readEvent(r *bufio.Reader) (*event, error) {
	line, err := r.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	var h header
	if err := json.Unmarshal(line, &h); err != nil {
		return nil, fmt.Errorf("invalid wyoming header %q: %w", line, err)
	}
	if h.Type == "" {
		return nil, fmt.Errorf("wyoming header without type: %q", line)
	}

	evt := &event{Type: h.Type, Data: h.Data}
	if h.DataLength > 0 {
		data := make([]byte, h.DataLength)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, fmt.Errorf("reading %s data: %w", h.Type, err)
		}
		evt.Data = data
	}
	if h.PayloadLength > 0 {
		evt.Payload = make([]byte, h.PayloadLength)
		if _, err := io.ReadFull(r, evt.Payload); err != nil {
			return nil, fmt.Errorf("reading %s payload: %w", h.Type, err)
		}
	}
	return evt, nil
}

// decode unmarshals the event data into v. Events without data leave v
// untouched.
func (e *event) decode(v any) error {
	if len(e.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("decoding %s data: %w", e.Type, err)
	}
	return nil
}
