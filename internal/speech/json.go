package speech

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownCommand is returned when decoding a command with an unknown type.
var ErrUnknownCommand = errors.New("unknown speech command")

// wireCommand is the JSON shape of a non-text command, e.g.
//
//	{"type": "lang", "lang": "fr-FR"}
//	{"type": "break", "ms": 250}
type wireCommand struct {
	Type   string  `json:"type"`
	Text   *string `json:"text,omitempty"`
	Index  *int    `json:"index,omitempty"`
	On     *bool   `json:"on,omitempty"`
	Lang   *string `json:"lang,omitempty"`
	MS     *int    `json:"ms,omitempty"`
	Offset *int    `json:"offset,omitempty"`
}

// MarshalJSON encodes text as bare JSON strings and every other command as
// a typed object.
func (s Sequence) MarshalJSON() ([]byte, error) {
	out := make([]any, 0, len(s))
	for i, c := range s {
		switch c := c.(type) {
		case Text:
			out = append(out, string(c))
		case Index:
			n := int(c)
			out = append(out, wireCommand{Type: "index", Index: &n})
		case CharacterMode:
			on := bool(c)
			out = append(out, wireCommand{Type: "char_mode", On: &on})
		case LangChange:
			lang := c.Lang
			out = append(out, wireCommand{Type: "lang", Lang: &lang})
		case Break:
			ms := int(c)
			out = append(out, wireCommand{Type: "break", MS: &ms})
		case Pitch:
			n := int(c)
			out = append(out, wireCommand{Type: "pitch", Offset: &n})
		case Rate:
			n := int(c)
			out = append(out, wireCommand{Type: "rate", Offset: &n})
		case Volume:
			n := int(c)
			out = append(out, wireCommand{Type: "volume", Offset: &n})
		case Split:
			out = append(out, wireCommand{Type: "split"})
		default:
			return nil, fmt.Errorf("command %d: %w: %T", i, ErrUnknownCommand, c)
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a sequence. Elements may be bare strings (text) or
// typed objects.
func (s *Sequence) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decoding sequence: %w", err)
	}

	seq := make(Sequence, 0, len(raw))
	for i, elem := range raw {
		elem = bytes.TrimSpace(elem)
		if len(elem) > 0 && elem[0] == '"' {
			var text string
			if err := json.Unmarshal(elem, &text); err != nil {
				return fmt.Errorf("command %d: %w", i, err)
			}
			seq = append(seq, Text(text))
			continue
		}

		var w wireCommand
		if err := json.Unmarshal(elem, &w); err != nil {
			return fmt.Errorf("command %d: %w", i, err)
		}
		cmd, err := w.command()
		if err != nil {
			return fmt.Errorf("command %d: %w", i, err)
		}
		seq = append(seq, cmd)
	}

	*s = seq
	return nil
}

func (w wireCommand) command() (Command, error) {
	switch w.Type {
	case "text":
		return Text(deref(w.Text)), nil
	case "index":
		if w.Index == nil {
			return nil, errors.New("index command without index")
		}
		return Index(*w.Index), nil
	case "char_mode":
		return CharacterMode(deref(w.On)), nil
	case "lang":
		return LangChange{Lang: deref(w.Lang)}, nil
	case "break":
		return Break(deref(w.MS)), nil
	case "pitch":
		return Pitch(deref(w.Offset)), nil
	case "rate":
		return Rate(deref(w.Offset)), nil
	case "volume":
		return Volume(deref(w.Offset)), nil
	case "split":
		return Split{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, w.Type)
	}
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
