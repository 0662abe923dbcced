// Package wyoming implements the speech engine on top of Piper servers
// speaking the Wyoming protocol.
//
// Piper is a fast, local neural text-to-speech system. The linuxserver/piper
// container exposes the Wyoming protocol on TCP port 10200. Every voice token
// is a Piper voice model name. Calls are queued and a single worker plays
// them in order: text is synthesized one segment at a time and the raw PCM
// is written to the configured output, breaks are written as silence and
// index markers are reported once the audio before them has been written.
//
// Wyoming protocol format (per event):
//
//	{"type": ..., "data_length": N, "payload_length": M}\n
//	<data_bytes>      (N bytes of JSON)
//	<payload_bytes>   (M bytes)
package wyoming

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nadzzz/polyvoice/internal/config"
	"github.com/nadzzz/polyvoice/internal/engine"
	"github.com/nadzzz/polyvoice/internal/voice"
)

// Compile-time interface check.
var (
	_ engine.Engine  = (*Engine)(nil)
	_ engine.Batcher = (*Engine)(nil)
)

// ErrClosed is returned for calls after Terminate.
var ErrClosed = errors.New("wyoming engine terminated")

// Languages reports the language of a voice. It selects per-language
// endpoints.
type Languages interface {
	Language(tok voice.Token) string
}

// job is one queued Speak or InsertBreak call.
type job struct {
	voice    voice.Token
	segments []engine.Segment
	isBreak  bool
	breakMS  int
	gen      uint64
}

// Engine is a Wyoming client engine.
type Engine struct {
	endpoint  string            // default host:port of the Piper Wyoming server
	endpoints map[string]string // lowercased language or voice name -> host:port
	languages Languages
	out       io.Writer
	dialer    net.Dialer

	mu         sync.Mutex
	cb         engine.Callback
	queue      []job
	gen        uint64 // bumped by Stop; jobs of older generations are dropped
	paused     bool
	busy       bool // a job is being played
	batch      int  // open batches; done is held back while > 0
	owed       bool // the queue drained during a batch
	cancel     context.CancelFunc
	format     audioFormat
	wake       chan struct{}
	quit       chan struct{}
	done       chan struct{}
	terminated bool
}

// New creates an engine that writes PCM audio to out.
func New(cfg config.WyomingConfig, languages Languages, out io.Writer) *Engine {
	cleanEndpoint := func(ep string) string {
		ep = strings.TrimPrefix(ep, "tcp://")
		ep = strings.TrimPrefix(ep, "http://")
		return ep
	}

	endpoints := make(map[string]string, len(cfg.Endpoints))
	for key, ep := range cfg.Endpoints {
		endpoints[normalizeKey(key)] = cleanEndpoint(ep)
	}

	rate := cfg.SampleRate
	if rate <= 0 {
		rate = 22050
	}
	if out == nil {
		out = io.Discard
	}

	return &Engine{
		endpoint:  cleanEndpoint(cfg.Endpoint),
		endpoints: endpoints,
		languages: languages,
		out:       out,
		dialer:    net.Dialer{Timeout: 10 * time.Second},
		format:    audioFormat{Rate: rate, Width: 2, Channels: 1},
		wake:      make(chan struct{}, 1),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, "_", "-"))
}

// Initialize registers the callback and starts the worker.
func (e *Engine) Initialize(cb engine.Callback) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.terminated {
		return ErrClosed
	}
	if e.cb != nil {
		e.cb = cb
		return nil
	}
	if e.endpoint == "" && len(e.endpoints) == 0 {
		return errors.New("no wyoming endpoint configured")
	}
	e.cb = cb
	go e.run()
	slog.Info("wyoming engine initialized", "endpoint", e.endpoint, "language_endpoints", len(e.endpoints))
	return nil
}

// Terminate stops speech and waits for the worker to exit.
func (e *Engine) Terminate() error {
	e.mu.Lock()
	if e.terminated {
		e.mu.Unlock()
		return nil
	}
	e.terminated = true
	started := e.cb != nil
	e.mu.Unlock()

	if err := e.Stop(); err != nil {
		return err
	}
	close(e.quit)
	if started {
		<-e.done
	}
	return nil
}

// Stop drops every queued call and aborts the one being played.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gen++
	e.queue = nil
	e.owed = false
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	return nil
}

// Pause holds playback until Resume.
func (e *Engine) Pause() error {
	e.mu.Lock()
	e.paused = true
	e.mu.Unlock()
	return nil
}

// Resume continues playback.
func (e *Engine) Resume() error {
	e.mu.Lock()
	e.paused = false
	e.mu.Unlock()
	e.signal()
	return nil
}

// Speak queues markup for v.
func (e *Engine) Speak(ctx context.Context, v voice.Token, markup string) error {
	return e.enqueue(job{voice: v, segments: engine.Parse(markup)})
}

// InsertBreak queues ms milliseconds of silence.
func (e *Engine) InsertBreak(ctx context.Context, v voice.Token, ms int) error {
	return e.enqueue(job{voice: v, isBreak: true, breakMS: ms})
}

func (e *Engine) enqueue(j job) error {
	e.mu.Lock()
	switch {
	case e.terminated:
		e.mu.Unlock()
		return ErrClosed
	case e.cb == nil:
		e.mu.Unlock()
		return engine.ErrNotInitialized
	}
	j.gen = e.gen
	e.queue = append(e.queue, j)
	e.mu.Unlock()
	e.signal()
	return nil
}

func (e *Engine) signal() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// run is the worker loop.
func (e *Engine) run() {
	defer close(e.done)
	for {
		j, ctx, ok := e.next()
		if !ok {
			return
		}
		if err := e.play(ctx, j); err != nil && ctx.Err() == nil {
			slog.Error("wyoming playback failed", "voice", j.voice, "error", err)
		}
		e.finish(j)
	}
}

// next waits for a job while playback is not paused.
func (e *Engine) next() (job, context.Context, bool) {
	for {
		e.mu.Lock()
		if len(e.queue) > 0 && !e.paused {
			j := e.queue[0]
			e.queue = e.queue[1:]
			e.busy = true
			ctx, cancel := context.WithCancel(context.Background())
			e.cancel = cancel
			e.mu.Unlock()
			return j, ctx, true
		}
		e.mu.Unlock()

		select {
		case <-e.wake:
		case <-e.quit:
			return job{}, nil, false
		}
	}
}

// finish reports done once the last job of the current generation is over,
// or leaves it to EndBatch while a batch is open.
func (e *Engine) finish(j job) {
	e.mu.Lock()
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.busy = false
	idle := len(e.queue) == 0 && j.gen == e.gen
	if idle && e.batch > 0 {
		e.owed = true
		idle = false
	}
	cb := e.cb
	e.mu.Unlock()

	if idle && cb != nil {
		cb(0, true)
	}
}

// BeginBatch holds done back until the matching EndBatch.
func (e *Engine) BeginBatch() {
	e.mu.Lock()
	e.batch++
	e.mu.Unlock()
}

// EndBatch closes a batch. If the queue already drained during it, done is
// reported now; otherwise the worker reports it when the last job ends.
func (e *Engine) EndBatch() {
	e.mu.Lock()
	if e.batch > 0 {
		e.batch--
	}
	var fire bool
	if e.batch == 0 {
		fire = e.owed && !e.busy && len(e.queue) == 0
		e.owed = false
	}
	cb := e.cb
	e.mu.Unlock()

	if fire && cb != nil {
		cb(0, true)
	}
}

// waitResumed blocks while playback is paused.
func (e *Engine) waitResumed(ctx context.Context) error {
	for {
		e.mu.Lock()
		paused := e.paused
		e.mu.Unlock()
		if !paused {
			return nil
		}
		select {
		case <-e.wake:
		case <-ctx.Done():
			return ctx.Err()
		case <-e.quit:
			return ErrClosed
		}
	}
}

// indexCallback returns the callback unless j was stopped.
func (e *Engine) indexCallback(j job) engine.Callback {
	e.mu.Lock()
	defer e.mu.Unlock()
	if j.gen != e.gen {
		return nil
	}
	return e.cb
}

func (e *Engine) play(ctx context.Context, j job) error {
	if j.isBreak {
		return e.silence(ctx, j.breakMS)
	}

	p := player{engine: e, voice: j.voice, volume: -1}
	for _, seg := range j.segments {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !seg.IsCode() {
			if err := p.say(ctx, seg.Text); err != nil {
				return err
			}
			continue
		}
		switch seg.Key {
		case "mrk":
			n, err := seg.Int()
			if err != nil {
				slog.Warn("ignoring malformed index marker", "value", seg.Value)
				continue
			}
			if cb := e.indexCallback(j); cb != nil {
				cb(n, false)
			}
		case "tn":
			p.spelling = seg.Value == "spell"
		case "vol":
			if n, err := seg.Int(); err == nil {
				p.volume = max(engine.VolumeRange.Min, min(engine.VolumeRange.Max, n))
			}
		default:
			// Piper has no pitch or rate control over Wyoming.
			slog.Debug("ignoring unsupported control code", "key", seg.Key, "value", seg.Value)
		}
	}
	return nil
}

// player is the state of one Speak call.
type player struct {
	engine   *Engine
	voice    voice.Token
	spelling bool
	volume   int // percent gain, -1 for unchanged
}

func (p *player) say(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if p.spelling {
		text = strings.Join(strings.Split(text, ""), " ")
	}
	return p.engine.synthesize(ctx, p.voice, text, p.volume)
}

// endpointFor picks the server for a voice: an endpoint keyed by the voice
// name, then by its language, then by its base language, then the default.
func (e *Engine) endpointFor(v voice.Token) string {
	if ep, ok := e.endpoints[normalizeKey(string(v))]; ok {
		return ep
	}
	if e.languages != nil {
		lang := normalizeKey(e.languages.Language(v))
		if ep, ok := e.endpoints[lang]; ok {
			return ep
		}
		if base, _, found := strings.Cut(lang, "-"); found {
			if ep, ok := e.endpoints[base]; ok {
				return ep
			}
		}
	}
	return e.endpoint
}

// Ping dials every configured server once.
func (e *Engine) Ping(ctx context.Context) error {
	seen := make(map[string]bool)
	var errs []error
	for _, ep := range append([]string{e.endpoint}, sortedValues(e.endpoints)...) {
		if ep == "" || seen[ep] {
			continue
		}
		seen[ep] = true
		conn, err := e.dialer.DialContext(ctx, "tcp", ep)
		if err != nil {
			errs = append(errs, fmt.Errorf("dialing %s: %w", ep, err))
			continue
		}
		_ = conn.Close()
	}
	return errors.Join(errs...)
}

func sortedValues(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// synthesize sends text to the Piper server and streams the audio to the
// output.
func (e *Engine) synthesize(ctx context.Context, v voice.Token, text string, volume int) error {
	endpoint := e.endpointFor(v)
	if endpoint == "" {
		return fmt.Errorf("no wyoming endpoint for voice %q", v)
	}

	slog.Debug("wyoming synthesize", "text_length", len(text), "voice", v, "endpoint", endpoint)

	conn, err := e.dialer.DialContext(ctx, "tcp", endpoint)
	if err != nil {
		return fmt.Errorf("connecting to piper: %w", err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	_ = conn.SetWriteDeadline(time.Now().Add(30 * time.Second))
	data := synthesizeData{Text: text, Voice: synthesizeVoice{Name: string(v)}}
	if err := writeEvent(conn, eventSynthesize, data, nil); err != nil {
		return err
	}

	// Read response events: audio-start → audio-chunk* → audio-stop
	r := bufio.NewReader(conn)
	format := e.audioFormat()
	for {
		evt, err := readEvent(r)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("reading piper event: %w", err)
		}

		switch evt.Type {
		case eventAudioStart:
			if err := evt.decode(&format); err != nil {
				return err
			}
			e.setAudioFormat(format)
			slog.Debug("piper audio-start", "rate", format.Rate, "channels", format.Channels, "width", format.Width)

		case eventAudioChunk:
			if len(evt.Payload) == 0 {
				continue
			}
			if err := e.waitResumed(ctx); err != nil {
				return err
			}
			pcm := evt.Payload
			if volume >= 0 && format.Width == 2 {
				pcm = scale16(pcm, volume)
			}
			if _, err := e.out.Write(pcm); err != nil {
				return fmt.Errorf("writing audio: %w", err)
			}

		case eventAudioStop:
			return nil

		case eventError:
			var ed errorData
			_ = evt.decode(&ed)
			if ed.Text == "" {
				ed.Text = "unknown error"
			}
			return fmt.Errorf("piper error: %s", ed.Text)

		default:
			slog.Debug("piper unknown event", "type", evt.Type)
		}
	}
}

// silence writes ms milliseconds of silence in the last seen audio format.
func (e *Engine) silence(ctx context.Context, ms int) error {
	if err := e.waitResumed(ctx); err != nil {
		return err
	}
	f := e.audioFormat()
	n := f.Rate * ms / 1000 * f.Width * f.Channels
	if n <= 0 {
		return nil
	}
	if _, err := e.out.Write(make([]byte, n)); err != nil {
		return fmt.Errorf("writing silence: %w", err)
	}
	return nil
}

func (e *Engine) audioFormat() audioFormat {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.format
}

func (e *Engine) setAudioFormat(f audioFormat) {
	if f.Rate <= 0 || f.Width <= 0 || f.Channels <= 0 {
		return
	}
	e.mu.Lock()
	e.format = f
	e.mu.Unlock()
}

// scale16 applies a percent gain to signed 16-bit little-endian samples.
func scale16(pcm []byte, percent int) []byte {
	out := make([]byte, len(pcm)-len(pcm)%2)
	for i := 0; i+1 < len(pcm); i += 2 {
		s := int32(int16(binary.LittleEndian.Uint16(pcm[i:]))) * int32(percent) / 100
		s = max(-32768, min(32767, s))
		binary.LittleEndian.PutUint16(out[i:], uint16(int16(s)))
	}
	return out
}
