package dispatch

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/polyvoice/internal/engine"
	"github.com/nadzzz/polyvoice/internal/speech"
	"github.com/nadzzz/polyvoice/internal/voice"
)

// recorder is an engine that records calls as strings.
type recorder struct {
	calls []string
	err   error
}

func (r *recorder) Initialize(engine.Callback) error { return nil }
func (r *recorder) Terminate() error                 { return nil }
func (r *recorder) Stop() error                      { return nil }
func (r *recorder) Pause() error                     { return nil }
func (r *recorder) Resume() error                    { return nil }

func (r *recorder) Speak(_ context.Context, v voice.Token, markup string) error {
	r.calls = append(r.calls, fmt.Sprintf("speak(%s,%q)", v, markup))
	return r.err
}

func (r *recorder) InsertBreak(_ context.Context, v voice.Token, ms int) error {
	r.calls = append(r.calls, fmt.Sprintf("break(%s,%d)", v, ms))
	return r.err
}

// registry is a fixed voice registry that counts lookups.
type registry struct {
	byLang  map[string]voice.Token
	variant map[voice.Token]string
	pitch   map[voice.Token]int
	lookups int
}

func newRegistry() *registry {
	return &registry{
		byLang: map[string]voice.Token{
			"en-US": "ava",
			"fr-FR": "amelie",
			"zh-CN": "mei",
			"en-GB": "ava",
		},
		variant: map[voice.Token]string{"mei": "bet2"},
		pitch:   map[voice.Token]int{"ava": 100, "amelie": 120},
	}
}

func (r *registry) VoiceForLanguage(tag string) (voice.Token, bool) {
	r.lookups++
	tok, ok := r.byLang[tag]
	return tok, ok
}

func (r *registry) DefaultVoice() voice.Token { return "ava" }
func (r *registry) DefaultLanguage() string   { return "en-US" }
func (r *registry) Variant(tok voice.Token) string {
	return r.variant[tok]
}

func (r *registry) Parameter(tok voice.Token, p voice.Param) int {
	if p == voice.ParamPitch {
		if v, ok := r.pitch[tok]; ok {
			return v
		}
	}
	return 100
}

func dispatch(t *testing.T, reg voice.Registry, seq speech.Sequence) []string {
	t.Helper()
	eng := &recorder{}
	require.NoError(t, New(eng, reg).Dispatch(context.Background(), seq))
	return eng.calls
}

func TestFlushOrdering(t *testing.T) {
	seq := speech.Sequence{
		speech.Text("a"),
		speech.LangChange{Lang: "fr-FR"},
		speech.Text("b"),
		speech.Break(50),
		speech.Text("c"),
	}

	want := []string{
		`speak(ava,"a")`,
		`speak(amelie,"b")`,
		`break(amelie,50)`,
		`speak(amelie,"c")`,
	}
	assert.Equal(t, want, dispatch(t, newRegistry(), seq))
}

func TestSameLanguageMarkers(t *testing.T) {
	reg := newRegistry()
	seq := speech.Sequence{
		speech.Text("hello"),
		speech.LangChange{Lang: "fr-FR"},
		speech.LangChange{Lang: "fr-FR"},
		speech.Text("bonjour"),
	}

	want := []string{
		`speak(ava,"hello")`,
		`speak(amelie,"bonjour")`,
	}
	assert.Equal(t, want, dispatch(t, reg, seq))
	assert.Equal(t, 1, reg.lookups)
}

func TestLanguageWithSameVoice(t *testing.T) {
	// en-GB resolves to the default voice, so no flush happens.
	seq := speech.Sequence{
		speech.Text("colour"),
		speech.LangChange{Lang: "en-GB"},
		speech.Text("flavour"),
	}
	assert.Equal(t, []string{`speak(ava,"colour  flavour")`}, dispatch(t, newRegistry(), seq))
}

func TestUnknownLanguageFallsBack(t *testing.T) {
	seq := speech.Sequence{
		speech.LangChange{Lang: "fr-FR"},
		speech.Text("un"),
		speech.LangChange{Lang: "xx-XX"},
		speech.Text("two"),
	}
	want := []string{
		`speak(amelie,"un")`,
		`speak(ava,"two")`,
	}
	assert.Equal(t, want, dispatch(t, newRegistry(), seq))
}

func TestResetIsVoiceBoundary(t *testing.T) {
	seq := speech.Sequence{
		speech.LangChange{Lang: "fr-FR"},
		speech.Text("oui"),
		speech.LangChange{},
		speech.Text("yes"),
	}
	want := []string{
		`speak(amelie,"oui")`,
		`speak(ava,"yes")`,
	}
	assert.Equal(t, want, dispatch(t, newRegistry(), seq))
}

func TestTextHandling(t *testing.T) {
	tests := []struct {
		name string
		seq  speech.Sequence
		want []string
	}{
		{
			name: "blank text is skipped",
			seq:  speech.Sequence{speech.Text("   "), speech.Text("\t")},
			want: nil,
		},
		{
			name: "text is trimmed",
			seq:  speech.Sequence{speech.Text("  Hello  "), speech.Text(" World ")},
			want: []string{`speak(ava,"Hello  World")`},
		},
		{
			name: "single character lowercased",
			seq:  speech.Sequence{speech.Text("A")},
			want: []string{`speak(ava,"a")`},
		},
		{
			name: "spelling lowercases",
			seq:  speech.Sequence{speech.CharacterMode(true), speech.Text("ABC"), speech.CharacterMode(false), speech.Text("DEF")},
			want: []string{`speak(ava,"\x1b\\tn=spell\\  abc\x1b\\tn=normal\\  DEF")`},
		},
		{
			name: "escape stripped from text",
			seq:  speech.Sequence{speech.Text("a\x1b\\pitch=10\\b")},
			want: []string{`speak(ava,"a\\pitch=10\\b")`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, dispatch(t, newRegistry(), tt.seq))
		})
	}
}

func TestIndexCodes(t *testing.T) {
	seq := speech.Sequence{
		speech.Index(1),
		speech.Text("one"),
		speech.Index(2),
		speech.Text("two"),
	}
	want := []string{`speak(ava,"\x1b\\mrk=1\\  one\x1b\\mrk=2\\  two")`}
	assert.Equal(t, want, dispatch(t, newRegistry(), seq))
}

func TestIndexBeforeBreakIsFlushed(t *testing.T) {
	seq := speech.Sequence{
		speech.Index(7),
		speech.Break(0),
	}
	want := []string{
		`speak(ava,"\x1b\\mrk=7\\")`,
		`break(ava,1)`,
	}
	assert.Equal(t, want, dispatch(t, newRegistry(), seq))
}

func TestIndexCarriesAcrossVoiceBoundary(t *testing.T) {
	seq := speech.Sequence{
		speech.Index(3),
		speech.LangChange{Lang: "fr-FR"},
		speech.Text("salut"),
	}
	want := []string{`speak(amelie,"\x1b\\mrk=3\\  salut")`}
	assert.Equal(t, want, dispatch(t, newRegistry(), seq))
}

func TestSplitFlushes(t *testing.T) {
	seq := speech.Sequence{
		speech.Text("first part"),
		speech.Split{},
		speech.Split{},
		speech.Text("second part"),
	}
	want := []string{
		`speak(ava,"first part")`,
		`speak(ava,"second part")`,
	}
	assert.Equal(t, want, dispatch(t, newRegistry(), seq))
}

func TestBreakClamp(t *testing.T) {
	t.Run("standard variant", func(t *testing.T) {
		got := dispatch(t, newRegistry(), speech.Sequence{speech.Break(100000)})
		assert.Equal(t, []string{`break(ava,65535)`}, got)
	})

	t.Run("bet2 default voice", func(t *testing.T) {
		reg := newRegistry()
		reg.variant["ava"] = "bet2"
		got := dispatch(t, reg, speech.Sequence{speech.Break(100000)})
		assert.Equal(t, []string{`break(ava,6553)`}, got)
	})
}

func TestProsodyCodes(t *testing.T) {
	seq := speech.Sequence{
		speech.Pitch(50),
		speech.Text("up"),
		speech.LangChange{Lang: "fr-FR"},
		speech.Text("haut"),
		speech.Pitch(0),
		speech.Rate(10),
		speech.Volume(-100),
	}
	want := []string{
		`speak(ava,"\x1b\\pitch=175\\  up")`,
		`speak(amelie,"haut\x1b\\pitch=120\\\x1b\\rate=135\\\x1b\\vol=0\\")`,
	}
	assert.Equal(t, want, dispatch(t, newRegistry(), seq))
}

func TestEngineError(t *testing.T) {
	boom := errors.New("boom")
	eng := &recorder{err: boom}

	err := New(eng, newRegistry()).Dispatch(context.Background(), speech.Sequence{
		speech.Text("a"),
		speech.Break(10),
		speech.Text("b"),
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{`speak(ava,"a")`}, eng.calls)
}

func TestCancelledContext(t *testing.T) {
	eng := &recorder{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := New(eng, newRegistry()).Dispatch(ctx, speech.Sequence{speech.Text("a")})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, eng.calls)
}

// batchRecorder also records batch boundaries.
type batchRecorder struct{ recorder }

func (b *batchRecorder) BeginBatch() { b.calls = append(b.calls, "begin") }
func (b *batchRecorder) EndBatch()   { b.calls = append(b.calls, "end") }

func TestBatchBracketsSequence(t *testing.T) {
	eng := &batchRecorder{}
	seq := speech.Sequence{
		speech.Text("a"),
		speech.LangChange{Lang: "fr-FR"},
		speech.Text("b"),
	}
	require.NoError(t, New(eng, newRegistry()).Dispatch(context.Background(), seq))
	assert.Equal(t, []string{"begin", `speak(ava,"a")`, `speak(amelie,"b")`, "end"}, eng.calls)

	eng = &batchRecorder{recorder{err: errors.New("boom")}}
	require.Error(t, New(eng, newRegistry()).Dispatch(context.Background(), seq))
	assert.Equal(t, []string{"begin", `speak(ava,"a")`, "end"}, eng.calls)
}
