// Package server exposes the adventure over HTTP: a small JSON API for
// sessions, turns, chat, and resolution changes, a WebSocket event stream for
// asynchronous illustration patches, and the embedded single-page client.
//
// Game start is gated on credentials: until the credential gate reports a
// usable provider key, POST /api/sessions returns 403 and the client keeps
// showing its key prompt.
package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/orneryhippo/infinite-adventure/internal/assistant"
	"github.com/orneryhippo/infinite-adventure/internal/credential"
	"github.com/orneryhippo/infinite-adventure/internal/game"
	"github.com/orneryhippo/infinite-adventure/internal/health"
	"github.com/orneryhippo/infinite-adventure/internal/observe"
	"github.com/orneryhippo/infinite-adventure/internal/session"
	"github.com/orneryhippo/infinite-adventure/internal/turn"
	"github.com/orneryhippo/infinite-adventure/pkg/provider/image"
	"github.com/orneryhippo/infinite-adventure/pkg/types"
)

//go:embed web
var webFS embed.FS

// Companion answers out-of-band player questions in character.
type Companion interface {
	Reply(ctx context.Context, transcript []types.Message, message string, state game.State) string
}

// Server holds the HTTP surface of the adventure.
type Server struct {
	manager   *session.Manager
	companion Companion
	gate      credential.Gate
	hub       *Hub
	metrics   *observe.Metrics
	health    *health.Handler
}

// Option is a functional option for Server.
type Option func(*Server)

// WithHealthHandler sets the health handler serving /healthz and /readyz.
// Without it those routes report a bare liveness check.
func WithHealthHandler(h *health.Handler) Option {
	return func(s *Server) { s.health = h }
}

// WithMetrics sets the metrics instance. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// New constructs a Server. The hub must be the same one whose Publish is wired
// into the session manager's image listener.
func New(manager *session.Manager, companion Companion, gate credential.Gate, hub *Hub, opts ...Option) *Server {
	s := &Server{
		manager:   manager,
		companion: companion,
		gate:      gate,
		hub:       hub,
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	if s.health == nil {
		s.health = health.New()
	}
	return s
}

// Handler returns the full route tree wrapped in the observability middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("POST /api/sessions/{id}/turns", s.handleSubmitTurn)
	mux.HandleFunc("POST /api/sessions/{id}/chat", s.handleChat)
	mux.HandleFunc("PUT /api/sessions/{id}/resolution", s.handleSetResolution)
	mux.HandleFunc("GET /api/sessions/{id}/events", s.handleEvents)

	s.health.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	web, err := fs.Sub(webFS, "web")
	if err != nil {
		panic("server: embedded web assets: " + err.Error())
	}
	mux.Handle("GET /", http.FileServerFS(web))

	return observe.Middleware(s.metrics)(mux)
}

// ── Wire types ──────────────────────────────────────────────────────────────

// sessionView is the JSON shape of a session returned to the browser.
type sessionView struct {
	ID         string         `json:"id"`
	State      game.State     `json:"state"`
	Choices    []string       `json:"choices"`
	Log        []game.Segment `json:"log"`
	InFlight   bool           `json:"inFlight"`
	Resolution string         `json:"resolution"`
}

// turnView is the JSON shape of one resolved turn.
type turnView struct {
	UserSegment   game.Segment `json:"userSegment"`
	StorySegment  game.Segment `json:"storySegment"`
	State         game.State   `json:"state"`
	Choices       []string     `json:"choices"`
	ChoiceMatched bool         `json:"choiceMatched"`
	Fallback      bool         `json:"fallback"`
}

type turnRequest struct {
	Action string `json:"action"`
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

type resolutionRequest struct {
	Resolution string `json:"resolution"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func viewOf(sess *session.Session) sessionView {
	c := sess.Controller
	return sessionView{
		ID:         sess.ID,
		State:      c.State(),
		Choices:    c.Choices(),
		Log:        c.Log().Snapshot(),
		InFlight:   c.InFlight(),
		Resolution: string(c.Quality()),
	}
}

// ── Session handlers ────────────────────────────────────────────────────────

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ok, err := s.gate.Selected(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "credential gate check failed", "err", err)
		writeError(w, http.StatusInternalServerError, "credential check failed")
		return
	}
	if !ok {
		writeError(w, http.StatusForbidden, "no provider credential selected")
		return
	}

	sess, err := s.manager.Create(ctx)
	if err != nil {
		if errors.Is(err, session.ErrTooManySessions) {
			writeError(w, http.StatusTooManyRequests, "too many live sessions")
			return
		}
		slog.ErrorContext(ctx, "create session failed", "err", err)
		writeError(w, http.StatusInternalServerError, "could not create session")
		return
	}

	writeJSON(w, http.StatusCreated, viewOf(sess))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.Touch()
	writeJSON(w, http.StatusOK, viewOf(sess))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.manager.Remove(id)
	s.hub.DropSession(id)
	w.WriteHeader(http.StatusNoContent)
}

// ── Turn handler ────────────────────────────────────────────────────────────

func (s *Server) handleSubmitTurn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.Touch()

	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	start := time.Now()
	out, err := sess.Controller.Submit(ctx, req.Action)
	if err != nil {
		switch {
		case errors.Is(err, turn.ErrTurnInFlight):
			writeError(w, http.StatusConflict, "a turn is already in flight")
		case errors.Is(err, turn.ErrEmptyAction):
			writeError(w, http.StatusBadRequest, "action must not be empty")
		default:
			slog.ErrorContext(ctx, "submit turn failed", "session_id", sess.ID, "err", err)
			writeError(w, http.StatusInternalServerError, "turn failed")
		}
		return
	}

	s.metrics.TurnDuration.Record(ctx, time.Since(start).Seconds())
	s.metrics.RecordSegment(ctx, "user")
	s.metrics.RecordSegment(ctx, "story")
	if out.Fallback {
		s.metrics.FallbackTurns.Add(ctx, 1)
	}

	view := turnView{
		UserSegment:   out.UserSegment,
		StorySegment:  out.StorySegment,
		State:         out.State,
		Choices:       out.Choices,
		ChoiceMatched: out.ChoiceMatched,
		Fallback:      out.Fallback,
	}

	// Other tabs watching the same session learn about the turn through the
	// event stream.
	if payload, err := json.Marshal(view); err == nil {
		s.hub.Publish(sess.ID, Event{Type: "turn", Turn: payload})
	}

	writeJSON(w, http.StatusOK, view)
}

// ── Chat handler ────────────────────────────────────────────────────────────

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.Touch()

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		writeError(w, http.StatusBadRequest, "message must not be empty")
		return
	}

	start := time.Now()
	reply := s.companion.Reply(ctx, sess.ChatTranscript(), req.Message, sess.Controller.State())
	s.metrics.ChatDuration.Record(ctx, time.Since(start).Seconds())

	// The fixed in-world error string is still a transcript entry; the spirit
	// losing its voice is part of the conversation.
	sess.AppendChat(req.Message, reply)
	if reply == assistant.ErrorReply {
		s.metrics.ProviderErrors.Add(ctx, 1,
			metric.WithAttributes(attribute.String("provider", "assistant"), attribute.String("kind", "chat")))
	}

	writeJSON(w, http.StatusOK, chatResponse{Reply: reply})
}

// ── Resolution handler ──────────────────────────────────────────────────────

func (s *Server) handleSetResolution(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.Touch()

	var req resolutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	q := image.Quality(req.Resolution)
	if !q.Valid() {
		writeError(w, http.StatusBadRequest, "resolution must be low, medium, or high")
		return
	}

	sess.Controller.SetQuality(q)
	w.WriteHeader(http.StatusNoContent)
}

// ── Event stream ────────────────────────────────────────────────────────────

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.WarnContext(r.Context(), "websocket accept failed", "session_id", sess.ID, "err", err)
		return
	}
	defer conn.CloseNow()

	events, cancel := s.hub.Subscribe(sess.ID)
	defer cancel()

	slog.DebugContext(r.Context(), "event subscriber connected", "session_id", sess.ID)
	serveSubscriber(r.Context(), conn, events)
}

// ── Helpers ─────────────────────────────────────────────────────────────────

// session resolves the {id} path value, writing a 404 on miss.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, ok := s.manager.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return nil, false
	}
	return sess, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("write response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
