// Package web exposes an interview [interview.Session] to the browser UI.
//
// Every operation of the session is reachable over plain JSON routes; each
// mutating route answers with the resulting snapshot so the UI can re-render
// without a second request. Transitions that are invalid in the current
// state are no-ops and still answer 200 with the unchanged snapshot.
//
// A WebSocket at /api/ws pushes a snapshot after every committed change and
// accepts the capture events produced by the browser's speech recogniser.
package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/mockinterview/internal/health"
	"github.com/MrWong99/mockinterview/internal/interview"
	"github.com/MrWong99/mockinterview/internal/observe"
	"github.com/MrWong99/mockinterview/internal/storage"
)

// maxBodyBytes caps JSON request bodies. Transcripts are short; anything
// larger is a client bug.
const maxBodyBytes = 1 << 20

// Option is a functional option for [New].
type Option func(*Server)

// WithStore sets the artifact store served under /api/audio/. Without one
// every audio request answers 404.
func WithStore(fs storage.FileStore) Option {
	return func(s *Server) { s.store = fs }
}

// WithHealth registers /healthz and /readyz.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) { s.health = h }
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithMetricsHandler replaces the /metrics handler. Defaults to
// [promhttp.Handler], which serves the default Prometheus registry the OTel
// exporter writes to.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metricsHandler = h }
}

// WithOriginPatterns allows cross-origin WebSocket connections from hosts
// matching the given patterns. Same-origin connections are always allowed.
func WithOriginPatterns(patterns ...string) Option {
	return func(s *Server) { s.originPatterns = patterns }
}

// Server routes HTTP and WebSocket traffic to one interview session.
type Server struct {
	session        *interview.Session
	store          storage.FileStore
	health         *health.Handler
	metrics        *observe.Metrics
	metricsHandler http.Handler
	originPatterns []string

	handler http.Handler
}

// New creates a Server for session.
func New(session *interview.Session, opts ...Option) *Server {
	s := &Server{session: session}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	if s.metricsHandler == nil {
		s.metricsHandler = promhttp.Handler()
	}

	mux := http.NewServeMux()
	s.routes(mux)
	instrumented := observe.Middleware(s.metrics)(mux)
	s.handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		instrumented.ServeHTTP(w, r.WithContext(observe.WithSessionID(r.Context(), session.ID())))
	})
	return s
}

// Handler returns the instrumented root handler.
func (s *Server) Handler() http.Handler { return s.handler }

// ServeHTTP implements [http.Handler].
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("POST /api/interview/start", s.handleStart)
	mux.HandleFunc("POST /api/interview/next", s.handleNext)
	mux.HandleFunc("POST /api/interview/prev", s.handlePrev)
	mux.HandleFunc("POST /api/interview/recording", s.handleRecording)
	mux.HandleFunc("PUT /api/interview/transcript", s.handleTranscript)
	mux.HandleFunc("PUT /api/interview/answer", s.handleAnswer)
	mux.HandleFunc("PUT /api/interview/speaking", s.handleSpeaking)
	mux.HandleFunc("POST /api/interview/evaluate", s.handleEvaluate)
	mux.HandleFunc("POST /api/interview/finalize", s.handleFinalize)
	mux.HandleFunc("GET /api/report", s.handleReport)
	mux.HandleFunc("GET /api/audio/{file}", s.handleAudio)
	mux.HandleFunc("GET /api/ws", s.handleWS)
	mux.Handle("GET /metrics", s.metricsHandler)
	if s.health != nil {
		s.health.Register(mux)
	}
}

// ── Session routes ─────────────────────────────────────────────────────────────

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	s.writeSnapshot(w)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.session.Start(r.Context())
	s.writeSnapshot(w)
}

func (s *Server) handleNext(w http.ResponseWriter, _ *http.Request) {
	s.session.Next()
	s.writeSnapshot(w)
}

func (s *Server) handlePrev(w http.ResponseWriter, _ *http.Request) {
	s.session.Prev()
	s.writeSnapshot(w)
}

func (s *Server) handleRecording(w http.ResponseWriter, r *http.Request) {
	s.session.ToggleRecording(r.Context())
	s.writeSnapshot(w)
}

// textBody is the payload of the transcript and answer routes.
type textBody struct {
	Text *string `json:"text"`
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	var body textBody
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if body.Text == nil {
		writeError(w, http.StatusBadRequest, errors.New(`missing field "text"`))
		return
	}
	s.session.SetTranscript(*body.Text)
	s.writeSnapshot(w)
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var body textBody
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if body.Text == nil {
		writeError(w, http.StatusBadRequest, errors.New(`missing field "text"`))
		return
	}
	s.session.SetAnswer(*body.Text)
	s.writeSnapshot(w)
}

type speakingBody struct {
	Speaking *bool `json:"speaking"`
}

func (s *Server) handleSpeaking(w http.ResponseWriter, r *http.Request) {
	var body speakingBody
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if body.Speaking == nil {
		writeError(w, http.StatusBadRequest, errors.New(`missing field "speaking"`))
		return
	}
	s.session.SetAISpeaking(*body.Speaking)
	s.writeSnapshot(w)
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	s.session.EvaluateCurrent(r.Context())
	s.writeSnapshot(w)
}

func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request) {
	s.session.Finalize(r.Context())
	s.writeSnapshot(w)
}

// ── Downloads ──────────────────────────────────────────────────────────────────

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	body, err := s.session.Report()
	if err != nil {
		observe.Logger(r.Context()).Error("encode report", "err", err)
		writeError(w, http.StatusInternalServerError, errors.New("report unavailable"))
		return
	}
	h := w.Header()
	h.Set("Content-Type", "application/json")
	h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", interview.ReportFilename))
	h.Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("file")
	if s.store == nil {
		http.NotFound(w, r)
		return
	}
	rc, err := s.store.Read(r.Context(), name)
	switch {
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, storage.ErrInvalidPath):
		http.NotFound(w, r)
		return
	case err != nil:
		observe.Logger(r.Context()).Error("read audio artifact", "file", name, "err", err)
		writeError(w, http.StatusInternalServerError, errors.New("audio unavailable"))
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", storage.ContentType(name))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		observe.Logger(r.Context()).Debug("audio copy interrupted", "file", name, "err", err)
	}
}

// ── Helpers ────────────────────────────────────────────────────────────────────

func (s *Server) writeSnapshot(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		slog.Error("web: encode response", "err", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

// acceptOptions returns the WebSocket handshake options.
func (s *Server) acceptOptions() *websocket.AcceptOptions {
	return &websocket.AcceptOptions{OriginPatterns: s.originPatterns}
}
