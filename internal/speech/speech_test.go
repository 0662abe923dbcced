package speech

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakClamp(t *testing.T) {
	tests := []struct {
		name    string
		ms      Break
		variant string
		want    int
	}{
		{"standard ceiling", 100000, "", 65535},
		{"bet2 ceiling", 100000, "bet2", 6553},
		{"zero floors to one", 0, "", 1},
		{"negative floors to one", -20, "bet2", 1},
		{"in range", 250, "", 250},
		{"in range bet2", 6000, "bet2", 6000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.ms.Clamp(MaxBreak(tt.variant)))
		})
	}
}

func TestPercentToRange(t *testing.T) {
	r := Range{Min: 50, Max: 200}

	assert.Equal(t, 50, PercentToRange(0, r))
	assert.Equal(t, 200, PercentToRange(100, r))
	assert.Equal(t, 125, PercentToRange(50, r))
	assert.Equal(t, -25, PercentToRange(-50, r))
}

func TestRangeOffset(t *testing.T) {
	r := Range{Min: 50, Max: 200}

	tests := []struct {
		name    string
		current int
		percent int
		want    int
	}{
		{"no offset", 100, 0, 100},
		{"raise", 100, 20, 130},
		{"clamped high", 180, 50, 200},
		{"clamped low", 100, -80, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Offset(tt.current, tt.percent))
		})
	}
}

func TestSequenceText(t *testing.T) {
	seq := Sequence{Text("hello "), Index(1), LangChange{Lang: "fr"}, Text("monde")}
	assert.Equal(t, "hello monde", seq.Text())
}

func TestSequenceJSON(t *testing.T) {
	seq := Sequence{
		Text("hi"),
		Index(3),
		CharacterMode(true),
		LangChange{Lang: "fr-FR"},
		LangChange{},
		Break(250),
		Pitch(-10),
		Rate(20),
		Volume(5),
		Split{},
	}

	data, err := json.Marshal(seq)
	require.NoError(t, err)

	var decoded Sequence
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, seq, decoded)
}

func TestSequenceJSONAcceptsTypedText(t *testing.T) {
	var seq Sequence
	err := json.Unmarshal([]byte(`[{"type":"text","text":"a"},"b",{"type":"break","ms":10}]`), &seq)
	require.NoError(t, err)
	assert.Equal(t, Sequence{Text("a"), Text("b"), Break(10)}, seq)
}

func TestSequenceJSONUnknownType(t *testing.T) {
	var seq Sequence
	err := json.Unmarshal([]byte(`[{"type":"shout"}]`), &seq)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownCommand)
}

func TestSequenceJSONIndexRequiresValue(t *testing.T) {
	var seq Sequence
	err := json.Unmarshal([]byte(`[{"type":"index"}]`), &seq)
	assert.Error(t, err)
}
