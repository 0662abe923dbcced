package dispatch

import (
	"github.com/nadzzz/polyvoice/internal/voice"
)

// resolver tracks which voice speaks the text of a sequence. It is seeded
// from the registry at the start of every sequence and discarded afterwards.
type resolver struct {
	voices voice.Registry

	defaultVoice voice.Token
	defaultLang  string

	current     voice.Token
	currentLang string
}

func newResolver(voices voice.Registry) *resolver {
	def := voices.DefaultVoice()
	lang := voices.DefaultLanguage()
	return &resolver{
		voices:       voices,
		defaultVoice: def,
		defaultLang:  lang,
		current:      def,
		currentLang:  lang,
	}
}

// change applies a language change and reports the voice that was active
// before it and whether the active voice is now a different one.
func (r *resolver) change(lang string) (prev voice.Token, switched bool) {
	prev = r.current

	switch {
	case lang == "":
		r.current = r.defaultVoice
		r.currentLang = r.defaultLang
	case lang == r.currentLang:
		return prev, false
	default:
		r.currentLang = lang
		tok, ok := r.voices.VoiceForLanguage(lang)
		if !ok {
			tok = r.defaultVoice
		}
		r.current = tok
	}
	return prev, r.current != prev
}
