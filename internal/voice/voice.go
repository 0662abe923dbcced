// Package voice maps language tags to synthesis voices and keeps their
// per-voice parameters.
//
// The dispatcher only needs the read side (Registry). The Manager also
// exposes the mutating operations the host settings surface uses: switching
// the default voice and adjusting rate, pitch, volume and variant.
package voice

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/language"

	"github.com/nadzzz/polyvoice/internal/config"
)

// ErrUnknownVoice is returned when a voice name is not registered.
var ErrUnknownVoice = errors.New("unknown voice")

// Token is an opaque handle identifying a voice instance on the engine.
type Token string

// Param names a numeric voice parameter.
type Param int

const (
	ParamRate Param = iota
	ParamPitch
	ParamVolume
)

func (p Param) String() string {
	switch p {
	case ParamRate:
		return "rate"
	case ParamPitch:
		return "pitch"
	case ParamVolume:
		return "volume"
	default:
		return fmt.Sprintf("param(%d)", int(p))
	}
}

// Default parameter values for voices that do not configure their own.
const (
	DefaultRate   = 100
	DefaultPitch  = 100
	DefaultVolume = 80
)

// Registry is the read side used while dispatching a sequence.
type Registry interface {
	// VoiceForLanguage returns the voice for a language tag, if any.
	VoiceForLanguage(tag string) (Token, bool)
	// DefaultVoice returns the voice used when no language applies.
	DefaultVoice() Token
	// DefaultLanguage returns the language of the default voice.
	DefaultLanguage() string
	// Parameter returns the current value of a voice parameter.
	Parameter(tok Token, p Param) int
	// Variant returns the engine variant of a voice.
	Variant(tok Token) string
}

// Info describes a registered voice.
type Info struct {
	Name     string `json:"name"`
	Language string `json:"language"`
	Variant  string `json:"variant,omitempty"`
	Rate     int    `json:"rate"`
	Pitch    int    `json:"pitch"`
	Volume   int    `json:"volume"`
}

// defaultVoices maps locales to Piper voice model names. Used when the
// configuration lists no voices.
var defaultVoices = map[string]string{
	"en-US": "en_US-lessac-medium",
	"fr-FR": "fr_FR-siwis-medium",
	"es-ES": "es_ES-mls_10246-low",
	"de-DE": "de_DE-thorsten-medium",
	"it-IT": "it_IT-riccardo-x_low",
	"pt-BR": "pt_BR-faber-medium",
	"nl-NL": "nl_NL-mls-medium",
	"pl-PL": "pl_PL-darkman-medium",
	"ru-RU": "ru_RU-ruslan-medium",
	"ja-JP": "ja_JP-amitaro-medium",
	"ko-KR": "ko_KR-kss-x_low",
	"zh-CN": "zh_CN-huayan-medium",
}

// Manager is the in-process voice registry. It is safe for concurrent use;
// mutations are expected between top-level speak calls.
type Manager struct {
	mu        sync.RWMutex
	voices    map[string]*Info  // name -> voice
	overrides map[string]string // lowercased language tag -> voice name
	def       string            // default voice name

	tags    []language.Tag
	names   []string // voice name for tags[i]
	matcher language.Matcher
}

// NewManager builds a registry from config. An empty voice list falls back
// to the built-in Piper table.
func NewManager(cfg config.VoicesConfig) (*Manager, error) {
	m := &Manager{
		voices:    make(map[string]*Info),
		overrides: make(map[string]string),
	}

	list := cfg.List
	if len(list) == 0 {
		for locale, name := range defaultVoices {
			list = append(list, config.VoiceConfig{Name: name, Language: locale})
		}
		sort.Slice(list, func(i, j int) bool { return list[i].Language < list[j].Language })
	}

	for _, vc := range list {
		if vc.Name == "" {
			return nil, fmt.Errorf("voice without a name (language %q)", vc.Language)
		}
		m.voices[vc.Name] = &Info{
			Name:     vc.Name,
			Language: vc.Language,
			Variant:  vc.Variant,
			Rate:     orDefault(vc.Rate, DefaultRate),
			Pitch:    orDefault(vc.Pitch, DefaultPitch),
			Volume:   orDefault(vc.Volume, DefaultVolume),
		}
	}

	for tag, name := range cfg.Languages {
		if _, ok := m.voices[name]; !ok {
			return nil, fmt.Errorf("language %q: %w: %s", tag, ErrUnknownVoice, name)
		}
		m.overrides[strings.ToLower(tag)] = name
	}

	m.def = cfg.Default
	if m.def == "" {
		m.def = m.pickDefault()
	}
	if _, ok := m.voices[m.def]; !ok {
		return nil, fmt.Errorf("default %w: %s", ErrUnknownVoice, m.def)
	}

	m.buildMatcher()
	slog.Debug("voice registry ready", "voices", len(m.voices), "default", m.def)
	return m, nil
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

// pickDefault prefers an English voice, then the alphabetically first one.
func (m *Manager) pickDefault() string {
	names := m.sortedNames()
	for _, n := range names {
		if strings.HasPrefix(strings.ToLower(m.voices[n].Language), "en") {
			return n
		}
	}
	if len(names) == 0 {
		return ""
	}
	return names[0]
}

func (m *Manager) sortedNames() []string {
	names := make([]string, 0, len(m.voices))
	for n := range m.voices {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (m *Manager) buildMatcher() {
	m.tags = m.tags[:0]
	m.names = m.names[:0]
	for _, n := range m.sortedNames() {
		tag, err := parseTag(m.voices[n].Language)
		if err != nil {
			slog.Warn("voice language is not a valid BCP 47 tag", "voice", n, "language", m.voices[n].Language)
			continue
		}
		m.tags = append(m.tags, tag)
		m.names = append(m.names, n)
	}
	m.matcher = language.NewMatcher(m.tags)
}

// parseTag accepts both "zh-CN" and the POSIX style "zh_CN".
func parseTag(s string) (language.Tag, error) {
	return language.Parse(strings.ReplaceAll(s, "_", "-"))
}

// VoiceForLanguage resolves a language tag: configured override first, then
// a voice whose language equals the tag, then the closest match with at
// least high confidence.
func (m *Manager) VoiceForLanguage(tag string) (Token, bool) {
	if tag == "" {
		return "", false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if name, ok := m.overrides[strings.ToLower(tag)]; ok {
		return Token(name), true
	}
	for _, n := range m.sortedNames() {
		if strings.EqualFold(m.voices[n].Language, tag) {
			return Token(n), true
		}
	}

	want, err := parseTag(tag)
	if err != nil || len(m.tags) == 0 {
		return "", false
	}
	_, idx, conf := m.matcher.Match(want)
	if conf < language.High {
		return "", false
	}
	return Token(m.names[idx]), true
}

// DefaultVoice returns the default voice token.
func (m *Manager) DefaultVoice() Token {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Token(m.def)
}

// DefaultLanguage returns the language of the default voice.
func (m *Manager) DefaultLanguage() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.voices[m.def].Language
}

// DefaultVoiceName returns the name of the default voice.
func (m *Manager) DefaultVoiceName() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.def
}

// SetDefaultVoice makes name the default voice.
func (m *Manager) SetDefaultVoice(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.voices[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownVoice, name)
	}
	m.def = name
	return nil
}

// Parameter returns a voice parameter. Unknown voices report the default.
func (m *Manager) Parameter(tok Token, p Param) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.voices[string(tok)]
	if !ok {
		return paramDefault(p)
	}
	switch p {
	case ParamRate:
		return v.Rate
	case ParamPitch:
		return v.Pitch
	case ParamVolume:
		return v.Volume
	default:
		return 0
	}
}

func paramDefault(p Param) int {
	switch p {
	case ParamRate:
		return DefaultRate
	case ParamPitch:
		return DefaultPitch
	case ParamVolume:
		return DefaultVolume
	default:
		return 0
	}
}

// SetParameter updates a voice parameter.
func (m *Manager) SetParameter(tok Token, p Param, value int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.voices[string(tok)]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownVoice, tok)
	}
	switch p {
	case ParamRate:
		v.Rate = value
	case ParamPitch:
		v.Pitch = value
	case ParamVolume:
		v.Volume = value
	default:
		return fmt.Errorf("unknown voice parameter %s", p)
	}
	return nil
}

// Variant returns the engine variant of a voice.
func (m *Manager) Variant(tok Token) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := m.voices[string(tok)]; ok {
		return v.Variant
	}
	return ""
}

// Language returns the language tag of a voice, "" if it is unknown.
func (m *Manager) Language(tok Token) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := m.voices[string(tok)]; ok {
		return v.Language
	}
	return ""
}

// SetVariant changes the engine variant of a voice.
func (m *Manager) SetVariant(tok Token, variant string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.voices[string(tok)]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownVoice, tok)
	}
	v.Variant = variant
	return nil
}

// Languages returns the sorted set of languages that have a voice.
func (m *Manager) Languages() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]struct{}, len(m.voices))
	for _, v := range m.voices {
		seen[v.Language] = struct{}{}
	}
	langs := make([]string, 0, len(seen))
	for l := range seen {
		langs = append(langs, l)
	}
	sort.Strings(langs)
	return langs
}

// LocaleToVoices maps each language to the sorted names of its voices.
func (m *Manager) LocaleToVoices() map[string][]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string][]string)
	for _, n := range m.sortedNames() {
		lang := m.voices[n].Language
		out[lang] = append(out[lang], n)
	}
	return out
}

// Voices returns a snapshot of every registered voice, sorted by name.
func (m *Manager) Voices() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Info, 0, len(m.voices))
	for _, n := range m.sortedNames() {
		out = append(out, *m.voices[n])
	}
	return out
}
