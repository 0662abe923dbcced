// Package http implements the HTTP transport for polyvoice.
//
// This transport exposes a REST API for speaking, spelling, cancelling and pausing,
// runtime settings, and a server-sent events stream of engine progress. It
// is best suited for web clients and scripts.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"time"

	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/nadzzz/polyvoice/docs" // registers the OpenAPI document
	"github.com/nadzzz/polyvoice/internal/message"
	"github.com/nadzzz/polyvoice/internal/transport"
)

// maxBodyBytes limits request bodies.
const maxBodyBytes = 1 << 20

// Compile-time interface check.
var _ transport.Transport = (*Transport)(nil)

// Transport implements transport.Transport over HTTP.
type Transport struct {
	port   int
	server *http.Server
}

// New creates a new HTTP transport on the given port.
func New(port int) *Transport {
	return &Transport{port: port}
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "http" }

// Listen starts the HTTP server and routes incoming requests to the service.
func (t *Transport) Listen(ctx context.Context, svc transport.Service) error {
	t.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", t.port),
		Handler:           Handler(svc),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	slog.Info("http transport listening", "port", t.port)

	go func() {
		<-ctx.Done()
		slog.Info("http transport shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = t.server.Shutdown(shutdownCtx)
	}()

	if err := t.server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("http listen: %w", err)
	}
	return nil
}

// Close gracefully shuts down the HTTP server.
func (t *Transport) Close() error {
	if t.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return t.server.Shutdown(ctx)
	}
	return nil
}

// Handler returns the routes of the API.
func Handler(svc transport.Service) http.Handler {
	h := &handler{svc: svc}
	mux := http.NewServeMux()

	mux.HandleFunc("POST /speak", h.speak)
	mux.HandleFunc("POST /spell", h.spell)
	mux.HandleFunc("POST /cancel", h.cancel)
	mux.HandleFunc("POST /pause", h.pause)
	mux.HandleFunc("GET /settings", h.settings)
	mux.HandleFunc("PATCH /settings", h.updateSettings)
	mux.HandleFunc("GET /events", h.events)

	// Swagger UI for the OpenAPI docs.
	mux.Handle("GET /swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	return mux
}

type handler struct {
	svc transport.Service
}

// speak handles POST /speak.
//
// @Summary     Speak a sequence
// @Description Accepts a JSON speak request with a command sequence and/or plain text, or a text/plain body.
// @Description The sequence is rewritten and dispatched to the engine one voice at a time.
// @Tags        speech
// @Accept      json
// @Accept      plain
// @Produce     json
// @Param       request  body      message.SpeakRequest  true   "Speak request"
// @Param       X-Polyvoice-Source  header  string  false  "Sender identifier (used with text/plain bodies)"
// @Success     200  {object}  message.SpeakResult  "Dispatch result"
// @Failure     400  {string}  string  "Invalid request body"
// @Failure     500  {string}  string  "Internal processing error"
// @Router      /speak [post]
func (h *handler) speak(w http.ResponseWriter, r *http.Request) {
	var req message.SpeakRequest
	body := io.LimitReader(r.Body, maxBodyBytes)

	switch mediaType(r) {
	case "text/plain":
		text, err := io.ReadAll(body)
		if err != nil {
			http.Error(w, "reading body: "+err.Error(), http.StatusBadRequest)
			return
		}
		req.Text = string(text)
		req.Source = r.Header.Get("X-Polyvoice-Source")
	default:
		if err := json.NewDecoder(body).Decode(&req); err != nil {
			http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
			return
		}
	}
	req.Timestamp = time.Now()

	result, err := h.svc.Speak(r.Context(), &req)
	if err != nil {
		writeError(w, "speak", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// spell handles POST /spell.
//
// @Summary     Spell text
// @Description Spells text character by character. With detection enabled, each script run is spelled by a voice for its language.
// @Tags        speech
// @Accept      json
// @Produce     json
// @Param       request  body      message.SpellRequest  true  "Spell request"
// @Success     200  {object}  message.SpeakResult  "Dispatch result"
// @Failure     400  {string}  string  "Invalid request body"
// @Failure     500  {string}  string  "Internal processing error"
// @Router      /spell [post]
func (h *handler) spell(w http.ResponseWriter, r *http.Request) {
	var req message.SpellRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}
	req.Timestamp = time.Now()

	result, err := h.svc.Spell(r.Context(), &req)
	if err != nil {
		writeError(w, "spell", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// cancel handles POST /cancel.
//
// @Summary     Stop speaking
// @Tags        speech
// @Success     204
// @Failure     500  {string}  string  "Engine error"
// @Router      /cancel [post]
func (h *handler) cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Cancel(r.Context()); err != nil {
		writeError(w, "cancel", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// pause handles POST /pause.
//
// @Summary     Pause or resume speech
// @Tags        speech
// @Accept      json
// @Param       request  body  message.PauseRequest  true  "Pause state"
// @Success     204
// @Failure     400  {string}  string  "Invalid request body"
// @Failure     500  {string}  string  "Engine error"
// @Router      /pause [post]
func (h *handler) pause(w http.ResponseWriter, r *http.Request) {
	var req message.PauseRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.svc.Pause(r.Context(), req.Paused); err != nil {
		writeError(w, "pause", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// settings handles GET /settings.
//
// @Summary     Current settings
// @Tags        settings
// @Produce     json
// @Success     200  {object}  message.Settings
// @Router      /settings [get]
func (h *handler) settings(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.Settings(r.Context())
	if err != nil {
		writeError(w, "settings", err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// updateSettings handles PATCH /settings.
//
// @Summary     Change settings
// @Description Only the fields present in the body are changed.
// @Tags        settings
// @Accept      json
// @Produce     json
// @Param       patch  body      message.SettingsPatch  true  "Settings to change"
// @Success     200    {object}  message.Settings
// @Failure     400    {string}  string  "Invalid settings"
// @Router      /settings [patch]
func (h *handler) updateSettings(w http.ResponseWriter, r *http.Request) {
	var patch message.SettingsPatch
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&patch); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}
	s, err := h.svc.UpdateSettings(r.Context(), patch)
	if err != nil {
		writeError(w, "update settings", err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// events handles GET /events.
//
// @Summary     Engine progress stream
// @Description Server-sent events: "index" when an index marker has been spoken, "done" when speech has finished.
// @Tags        speech
// @Produce     text/event-stream
// @Success     200  {object}  message.Event
// @Router      /events [get]
func (h *handler) events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	events := h.svc.Subscribe(r.Context())

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for e := range events {
		data, err := json.Marshal(e)
		if err != nil {
			slog.Error("marshalling event", "error", err)
			continue
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Type, data); err != nil {
			return
		}
		flusher.Flush()
	}
}

func mediaType(r *http.Request) string {
	ct := r.Header.Get("Content-Type")
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		return mt
	}
	return ct
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, transport.ErrInvalidRequest) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	slog.Error(op+" failed", "error", err)
	http.Error(w, op+" error: "+err.Error(), http.StatusInternalServerError)
}
