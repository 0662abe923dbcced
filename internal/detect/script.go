package detect

import (
	"strings"
	"unicode"

	"golang.org/x/text/language"

	"github.com/nadzzz/polyvoice/internal/speech"
)

// scriptLanguages maps writing systems that identify a language on their
// own to that language.
var scriptLanguages = []struct {
	table *unicode.RangeTable
	lang  language.Base
}{
	{unicode.Han, language.MustParseBase("zh")},
	{unicode.Hiragana, language.MustParseBase("ja")},
	{unicode.Katakana, language.MustParseBase("ja")},
	{unicode.Hangul, language.MustParseBase("ko")},
	{unicode.Cyrillic, language.MustParseBase("ru")},
	{unicode.Greek, language.MustParseBase("el")},
	{unicode.Arabic, language.MustParseBase("ar")},
	{unicode.Hebrew, language.MustParseBase("he")},
	{unicode.Thai, language.MustParseBase("th")},
	{unicode.Devanagari, language.MustParseBase("hi")},
}

// ScriptDetector detects languages from the Unicode script of the text.
// Only languages for which a voice is available are switched to.
type ScriptDetector struct {
	// byBase maps a script language to the available language tag used for
	// it. Scripts without an available language are absent.
	byBase map[language.Base]string
}

// Compile-time interface check.
var _ Detector = (*ScriptDetector)(nil)

// NewScriptDetector creates a detector that switches between the given
// available languages.
func NewScriptDetector(available []string) *ScriptDetector {
	d := &ScriptDetector{byBase: make(map[language.Base]string)}

	var tags []language.Tag
	var names []string
	for _, s := range available {
		tag, err := language.Parse(strings.ReplaceAll(s, "_", "-"))
		if err != nil {
			continue
		}
		tags = append(tags, tag)
		names = append(names, s)
	}
	if len(tags) == 0 {
		return d
	}

	matcher := language.NewMatcher(tags)
	for _, sl := range scriptLanguages {
		if _, ok := d.byBase[sl.lang]; ok {
			continue
		}
		want, err := language.Compose(sl.lang)
		if err != nil {
			continue
		}
		_, idx, conf := matcher.Match(want)
		if conf == language.No {
			continue
		}
		d.byBase[sl.lang] = names[idx]
	}
	return d
}

// Detect splits every Text command at script boundaries. Runs of a mapped
// script are preceded by a LangChange to its language; returning to any
// other script re-emits the last language declared in the sequence.
// Spaces, digits and punctuation stay with the running segment.
func (d *ScriptDetector) Detect(seq speech.Sequence) (speech.Sequence, error) {
	out := make(speech.Sequence, 0, len(seq))
	var declared string // last LangChange seen, "" for the default
	var active string   // detected language in effect, "" for declared

	for _, cmd := range seq {
		switch c := cmd.(type) {
		case speech.LangChange:
			declared = c.Lang
			active = ""
			out = append(out, c)

		case speech.Text:
			var b strings.Builder
			for _, r := range string(c) {
				lang, neutral := d.classify(r)
				if neutral || lang == active {
					b.WriteRune(r)
					continue
				}
				if b.Len() > 0 {
					out = append(out, speech.Text(b.String()))
					b.Reset()
				}
				active = lang
				if lang == "" {
					out = append(out, speech.LangChange{Lang: declared})
				} else {
					out = append(out, speech.LangChange{Lang: lang})
				}
				b.WriteRune(r)
			}
			if b.Len() > 0 {
				out = append(out, speech.Text(b.String()))
			}

		default:
			out = append(out, cmd)
		}
	}
	return out, nil
}

// classify returns the available language for r's script, "" for scripts
// without one, and neutral for runes that belong to no particular script.
func (d *ScriptDetector) classify(r rune) (lang string, neutral bool) {
	if unicode.In(r, unicode.Common, unicode.Inherited) {
		return "", true
	}
	for _, sl := range scriptLanguages {
		if unicode.Is(sl.table, r) {
			return d.byBase[sl.lang], false
		}
	}
	return "", false
}
