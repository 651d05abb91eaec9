// Package session manages the in-memory registry of live adventures. One
// session corresponds to one browser tab: it owns a turn controller, a chat
// transcript, and an activity timestamp the reaper uses to collect abandoned
// games. Nothing is persisted; closing the tab and waiting out the TTL is the
// end of that story.
package session

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/orneryhippo/infinite-adventure/internal/game"
	"github.com/orneryhippo/infinite-adventure/internal/turn"
	"github.com/orneryhippo/infinite-adventure/pkg/provider/image"
	"github.com/orneryhippo/infinite-adventure/pkg/types"
)

// ErrTooManySessions is returned by Create when the session cap is reached.
var ErrTooManySessions = errors.New("session: too many live sessions")

// Session is one live adventure.
type Session struct {
	// ID is the opaque session identifier handed to the browser.
	ID string

	// Controller owns the session's game state, story log, and turn protocol.
	Controller *turn.Controller

	// CreatedAt is when the session was created.
	CreatedAt time.Time

	mu         sync.Mutex
	chat       []types.Message
	lastActive time.Time
}

// Touch marks the session as active now. Called on every API interaction.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActive = time.Now()
	s.mu.Unlock()
}

// LastActive returns the time of the most recent interaction.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// ChatTranscript returns a copy of the companion chat so far.
func (s *Session) ChatTranscript() []types.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.chat)
}

// AppendChat records one completed chat round trip.
func (s *Session) AppendChat(userMessage, reply string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chat = append(s.chat,
		types.Message{Role: types.RoleUser, Content: userMessage},
		types.Message{Role: types.RoleAssistant, Content: reply},
	)
}

// Seed is everything needed to start a fresh adventure. The manager asks for a
// new Seed per session so config hot-reloads shape new games without touching
// running ones.
type Seed struct {
	State              game.State
	OpeningNarrative   string
	OpeningImagePrompt string
	OpeningChoices     []string
	HistoryWindow      int
	Quality            image.Quality
}

// Hook observes session lifecycle events (used for metrics).
type Hook func(s *Session, active int)

// config holds tunables for the Manager.
type managerConfig struct {
	maxSessions int
	onCreate    Hook
	onRemove    Hook
	onImage     func(sessionID string) turn.ImageListener
}

// Option is a functional option for Manager.
type Option func(*managerConfig)

// WithMaxSessions caps concurrently live sessions. Zero means unlimited.
func WithMaxSessions(n int) Option {
	return func(c *managerConfig) {
		c.maxSessions = n
	}
}

// WithCreateHook registers a callback invoked after each session is created.
func WithCreateHook(h Hook) Option {
	return func(c *managerConfig) {
		c.onCreate = h
	}
}

// WithRemoveHook registers a callback invoked after each session is removed,
// whether explicitly or by the reaper.
func WithRemoveHook(h Hook) Option {
	return func(c *managerConfig) {
		c.onRemove = h
	}
}

// WithImageListener provides the per-session illustration listener, typically
// the WebSocket hub's publish function.
func WithImageListener(fn func(sessionID string) turn.ImageListener) Option {
	return func(c *managerConfig) {
		c.onImage = fn
	}
}

// Manager is the registry of live sessions. Safe for concurrent use.
type Manager struct {
	narrator    turn.Narrator
	illustrator turn.Illustrator
	seed        func() Seed
	cfg         managerConfig

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager constructs a Manager. seed is called once per Create.
func NewManager(n turn.Narrator, il turn.Illustrator, seed func() Seed, opts ...Option) *Manager {
	cfg := managerConfig{}
	for _, o := range opts {
		o(&cfg)
	}
	return &Manager{
		narrator:    n,
		illustrator: il,
		seed:        seed,
		cfg:         cfg,
		sessions:    make(map[string]*Session),
	}
}

// Create starts a new adventure: a fresh controller seeded with the opening
// narration, state, and choice set. Returns [ErrTooManySessions] at the cap.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	if m.cfg.maxSessions > 0 && len(m.sessions) >= m.cfg.maxSessions {
		m.mu.Unlock()
		return nil, ErrTooManySessions
	}

	seed := m.seed()
	id := uuid.NewString()

	opts := []turn.Option{
		turn.WithHistoryWindow(seed.HistoryWindow),
		turn.WithQuality(seed.Quality),
	}
	if m.cfg.onImage != nil {
		opts = append(opts, turn.WithImageListener(m.cfg.onImage(id)))
	}

	s := &Session{
		ID:         id,
		Controller: turn.New(m.narrator, m.illustrator, seed.State, opts...),
		CreatedAt:  time.Now(),
		lastActive: time.Now(),
	}
	m.sessions[id] = s
	active := len(m.sessions)
	m.mu.Unlock()

	s.Controller.Open(ctx, seed.OpeningNarrative, seed.OpeningImagePrompt, seed.OpeningChoices)

	slog.InfoContext(ctx, "session created", "session_id", id, "active", active)
	if m.cfg.onCreate != nil {
		m.cfg.onCreate(s, active)
	}
	return s, nil
}

// Get returns the session with the given ID.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Remove deletes the session with the given ID. Unknown IDs are a no-op.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	active := len(m.sessions)
	m.mu.Unlock()

	if ok {
		slog.Info("session removed", "session_id", id, "active", active)
		if m.cfg.onRemove != nil {
			m.cfg.onRemove(s, active)
		}
	}
}

// IDs returns the IDs of all live sessions.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Reap removes every session idle for longer than ttl and returns how many
// were collected.
func (m *Manager) Reap(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)

	m.mu.RLock()
	var stale []string
	for id, s := range m.sessions {
		if s.LastActive().Before(cutoff) {
			stale = append(stale, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range stale {
		m.Remove(id)
	}
	return len(stale)
}

// RunReaper reaps idle sessions every interval until ctx is cancelled.
// A ttl of zero disables reaping and returns immediately.
func (m *Manager) RunReaper(ctx context.Context, ttl, interval time.Duration) {
	if ttl <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Reap(ttl); n > 0 {
				slog.Info("reaped idle sessions", "count", n, "active", m.Count())
			}
		}
	}
}
