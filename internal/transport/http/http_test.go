package http

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/polyvoice/internal/message"
	"github.com/nadzzz/polyvoice/internal/speech"
	"github.com/nadzzz/polyvoice/internal/transport"
)

// fakeService records the calls made by the handlers.
type fakeService struct {
	mu       sync.Mutex
	speaks   []*message.SpeakRequest
	spells   []*message.SpellRequest
	paused   []bool
	cancels  int
	patches  []message.SettingsPatch
	events   []message.Event
	speakErr error
	patchErr error
}

func (f *fakeService) Speak(_ context.Context, req *message.SpeakRequest) (*message.SpeakResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.speaks = append(f.speaks, req)
	if f.speakErr != nil {
		return nil, f.speakErr
	}
	return &message.SpeakResult{RequestID: "req-1", Commands: len(req.Commands())}, nil
}

func (f *fakeService) Spell(_ context.Context, req *message.SpellRequest) (*message.SpeakResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.speakErr != nil {
		return nil, f.speakErr
	}
	f.spells = append(f.spells, req)
	return &message.SpeakResult{RequestID: req.ID}, nil
}

func (f *fakeService) Cancel(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels++
	return nil
}

func (f *fakeService) Pause(_ context.Context, paused bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = append(f.paused, paused)
	return nil
}

func (f *fakeService) Settings(context.Context) (*message.Settings, error) {
	return &message.Settings{Voice: "ava", Rate: 100}, nil
}

func (f *fakeService) UpdateSettings(_ context.Context, patch message.SettingsPatch) (*message.Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.patchErr != nil {
		return nil, f.patchErr
	}
	f.patches = append(f.patches, patch)
	s := &message.Settings{Voice: "ava", Rate: 100}
	if patch.Rate != nil {
		s.Rate = *patch.Rate
	}
	return s, nil
}

func (f *fakeService) Subscribe(context.Context) <-chan message.Event {
	ch := make(chan message.Event, len(f.events))
	for _, e := range f.events {
		ch <- e
	}
	close(ch)
	return ch
}

func TestSpeakJSON(t *testing.T) {
	svc := &fakeService{}
	srv := httptest.NewServer(Handler(svc))
	defer srv.Close()

	body := `{"source":"test","sequence":["hello",{"type":"lang","lang":"fr-FR"},"bonjour"],"text":"end"}`
	resp, err := http.Post(srv.URL+"/speak", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var result message.SpeakResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "req-1", result.RequestID)
	assert.Equal(t, 4, result.Commands)

	require.Len(t, svc.speaks, 1)
	req := svc.speaks[0]
	assert.Equal(t, "test", req.Source)
	assert.False(t, req.Timestamp.IsZero())
	assert.Equal(t, speech.Sequence{
		speech.Text("hello"),
		speech.LangChange{Lang: "fr-FR"},
		speech.Text("bonjour"),
		speech.Text("end"),
	}, req.Commands())
}

func TestSpeakPlainText(t *testing.T) {
	svc := &fakeService{}
	srv := httptest.NewServer(Handler(svc))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/speak", strings.NewReader("hello world"))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	req.Header.Set("X-Polyvoice-Source", "kiosk-01")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, svc.speaks, 1)
	assert.Equal(t, "hello world", svc.speaks[0].Text)
	assert.Equal(t, "kiosk-01", svc.speaks[0].Source)
}

func TestSpell(t *testing.T) {
	svc := &fakeService{}
	srv := httptest.NewServer(Handler(svc))
	defer srv.Close()

	body := `{"id":"sp-1","source":"test","text":"ab中文","locale":"en-US"}`
	resp, err := http.Post(srv.URL+"/spell", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var result message.SpeakResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "sp-1", result.RequestID)

	require.Len(t, svc.spells, 1)
	assert.Equal(t, "ab中文", svc.spells[0].Text)
	assert.Equal(t, "en-US", svc.spells[0].Locale)
	assert.False(t, svc.spells[0].Timestamp.IsZero())

	resp, err = http.Post(srv.URL+"/spell", "application/json", strings.NewReader(`{"text":`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSpeakBadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"text":`},
		{"unknown command", `{"sequence":[{"type":"whisper"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{}
			srv := httptest.NewServer(Handler(svc))
			defer srv.Close()

			resp, err := http.Post(srv.URL+"/speak", "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Empty(t, svc.speaks)
		})
	}
}

func TestSpeakServiceError(t *testing.T) {
	svc := &fakeService{speakErr: errors.New("engine gone")}
	srv := httptest.NewServer(Handler(svc))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/speak", "application/json", strings.NewReader(`{"text":"hi"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestCancelAndPause(t *testing.T) {
	svc := &fakeService{}
	srv := httptest.NewServer(Handler(svc))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/cancel", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/pause", "application/json", strings.NewReader(`{"paused":true}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/pause", "application/json", strings.NewReader(`nope`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	assert.Equal(t, 1, svc.cancels)
	assert.Equal(t, []bool{true}, svc.paused)
}

func TestCancelWrongMethod(t *testing.T) {
	srv := httptest.NewServer(Handler(&fakeService{}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/cancel")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestSettings(t *testing.T) {
	svc := &fakeService{}
	srv := httptest.NewServer(Handler(svc))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/settings")
	require.NoError(t, err)
	var got message.Settings
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	resp.Body.Close()
	assert.Equal(t, "ava", got.Voice)

	req, err := http.NewRequest(http.MethodPatch, srv.URL+"/settings", strings.NewReader(`{"rate":150}`))
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 150, got.Rate)
	require.Len(t, svc.patches, 1)
	assert.Nil(t, svc.patches[0].Voice)
}

func TestSettingsInvalid(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"client error", fmt.Errorf("%w: unknown voice", transport.ErrInvalidRequest), http.StatusBadRequest},
		{"server error", errors.New("engine gone"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(Handler(&fakeService{patchErr: tt.err}))
			defer srv.Close()

			req, err := http.NewRequest(http.MethodPatch, srv.URL+"/settings", strings.NewReader(`{"voice":"ghost"}`))
			require.NoError(t, err)
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestEventsStream(t *testing.T) {
	svc := &fakeService{events: []message.Event{
		{Type: message.EventIndex, Index: 3},
		{Type: message.EventDone},
	}}
	srv := httptest.NewServer(Handler(svc))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	var names []string
	var first message.Event
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if name, ok := strings.CutPrefix(line, "event: "); ok {
			names = append(names, name)
		}
		if data, ok := strings.CutPrefix(line, "data: "); ok && first.Type == "" {
			require.NoError(t, json.Unmarshal([]byte(data), &first))
		}
	}
	assert.Equal(t, []string{"index", "done"}, names)
	assert.Equal(t, 3, first.Index)
}

func TestSwaggerDoc(t *testing.T) {
	srv := httptest.NewServer(Handler(&fakeService{}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/swagger/doc.json")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var doc struct {
		Paths map[string]any `json:"paths"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	assert.Contains(t, doc.Paths, "/speak")
	assert.Contains(t, doc.Paths, "/events")
	assert.Contains(t, doc.Paths, "/spell")
}
