// Package app wires all adventure subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves HTTP and the session reaper until the context is
// cancelled, and Shutdown tears everything down in order.
//
// For testing, inject doubles via functional options (WithGate, WithNarrator,
// etc.). When an option is not provided, New builds real implementations from
// the provider registry and the current config. Providers are recreated from
// the live config on every call, so a credential added through a config
// reload takes effect on the next turn without a restart.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/orneryhippo/infinite-adventure/internal/assistant"
	"github.com/orneryhippo/infinite-adventure/internal/config"
	"github.com/orneryhippo/infinite-adventure/internal/credential"
	"github.com/orneryhippo/infinite-adventure/internal/game"
	"github.com/orneryhippo/infinite-adventure/internal/health"
	"github.com/orneryhippo/infinite-adventure/internal/illustrator"
	"github.com/orneryhippo/infinite-adventure/internal/narrator"
	"github.com/orneryhippo/infinite-adventure/internal/observe"
	"github.com/orneryhippo/infinite-adventure/internal/server"
	"github.com/orneryhippo/infinite-adventure/internal/session"
	"github.com/orneryhippo/infinite-adventure/internal/turn"
	"github.com/orneryhippo/infinite-adventure/pkg/provider/image"
	"github.com/orneryhippo/infinite-adventure/pkg/provider/llm"
)

// reapInterval is how often the session reaper scans for idle sessions.
const reapInterval = time.Minute

// App owns all subsystem lifetimes of the adventure server.
type App struct {
	current  func() *config.Config
	registry *config.Registry

	gate        credential.Gate
	narrator    turn.Narrator
	illustrator turn.Illustrator
	companion   server.Companion
	metrics     *observe.Metrics

	hub     *server.Hub
	manager *session.Manager
	httpSrv *http.Server

	// closers are called in order during Shutdown.
	closers []func(context.Context) error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithGate injects a credential gate instead of deriving one from config.
func WithGate(g credential.Gate) Option {
	return func(a *App) { a.gate = g }
}

// WithNarrator injects a narrator instead of building one from the registry.
func WithNarrator(n turn.Narrator) Option {
	return func(a *App) { a.narrator = n }
}

// WithIllustrator injects an illustrator instead of building one from the registry.
func WithIllustrator(il turn.Illustrator) Option {
	return func(a *App) { a.illustrator = il }
}

// WithCompanion injects a chat companion instead of building one from the registry.
func WithCompanion(c server.Companion) Option {
	return func(a *App) { a.companion = c }
}

// WithMetrics injects a metrics instance. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. current must return
// the live configuration (a config watcher's Current, or a closure over a
// static config). The registry supplies provider factories by name.
func New(current func() *config.Config, registry *config.Registry, opts ...Option) (*App, error) {
	a := &App{
		current:  current,
		registry: registry,
	}
	for _, o := range opts {
		o(a)
	}

	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Credential gate ───────────────────────────────────────────────
	if a.gate == nil {
		a.gate = &configGate{current: current}
	}

	// ── 2. Generators ────────────────────────────────────────────────────
	if a.narrator == nil {
		a.narrator = narrator.New(a.llmFactory("narrator", func(c *config.Config) config.ProviderEntry {
			return c.Providers.Narrator
		}), narrator.WithMetrics(a.metrics))
	}
	if a.illustrator == nil {
		a.illustrator = illustrator.New(a.imageFactory(), illustrator.WithMetrics(a.metrics))
	}
	if a.companion == nil {
		a.companion = assistant.New(a.llmFactory("assistant", func(c *config.Config) config.ProviderEntry {
			// The assistant falls back to the narrator's provider.
			if !c.Providers.Assistant.IsZero() {
				return c.Providers.Assistant
			}
			return c.Providers.Narrator
		}))
	}

	// ── 3. Session manager ───────────────────────────────────────────────
	a.hub = server.NewHub()
	a.manager = session.NewManager(a.narrator, a.illustrator, a.seed,
		session.WithMaxSessions(current().Sessions.MaxSessions),
		session.WithCreateHook(func(_ *session.Session, _ int) {
			a.metrics.ActiveSessions.Add(context.Background(), 1)
		}),
		session.WithRemoveHook(func(s *session.Session, _ int) {
			a.metrics.ActiveSessions.Add(context.Background(), -1)
			a.hub.DropSession(s.ID)
		}),
		session.WithImageListener(func(sessionID string) turn.ImageListener {
			return func(segmentID, dataURI string) {
				a.hub.Publish(sessionID, server.Event{
					Type:      "segment_image",
					SegmentID: segmentID,
					ImageURL:  dataURI,
				})
			}
		}),
	)

	// ── 4. HTTP server ───────────────────────────────────────────────────
	checkers := health.New(
		health.CredentialChecker(a.gate),
		health.ProviderChecker(registry, current),
	)
	srv := server.New(a.manager, a.companion, a.gate, a.hub,
		server.WithHealthHandler(checkers),
		server.WithMetrics(a.metrics),
	)

	a.httpSrv = &http.Server{
		Addr:              current().Server.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	a.closers = append(a.closers, a.httpSrv.Shutdown)

	return a, nil
}

// seed derives the per-session seed from the live config.
func (a *App) seed() session.Seed {
	cfg := a.current()
	return session.Seed{
		State: game.State{
			Quest:    cfg.Game.StartingQuest,
			Health:   cfg.Game.StartingHealth,
			Location: cfg.Game.StartingLocation,
		},
		OpeningNarrative:   cfg.Game.OpeningNarrative,
		OpeningImagePrompt: cfg.Game.OpeningImagePrompt,
		OpeningChoices:     cfg.Game.OpeningChoices,
		HistoryWindow:      cfg.Game.HistoryWindow,
		Quality:            image.Quality(cfg.Game.DefaultResolution),
	}
}

// llmFactory returns a narrator/assistant provider factory bound to one
// config slot. The provider is rebuilt per call from the live config.
func (a *App) llmFactory(kind string, slot func(*config.Config) config.ProviderEntry) func() (llm.Provider, error) {
	return func() (llm.Provider, error) {
		entry := slot(a.current())
		if entry.Name == "" {
			return nil, fmt.Errorf("app: no %s provider configured", kind)
		}
		return a.registry.CreateLLM(entry)
	}
}

// imageFactory returns the illustration provider factory.
func (a *App) imageFactory() illustrator.Factory {
	return func() (image.Provider, error) {
		entry := a.current().Providers.Image
		if entry.Name == "" {
			return nil, errors.New("app: no image provider configured")
		}
		return a.registry.CreateImage(entry)
	}
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves HTTP and runs the session reaper until ctx is cancelled, then
// returns the context error. A failed listener surfaces immediately.
func (a *App) Run(ctx context.Context) error {
	cfg := a.current()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("http server listening", "addr", a.httpSrv.Addr, "tls", cfg.Server.TLS != nil)
		var err error
		if tls := cfg.Server.TLS; tls != nil {
			err = a.httpSrv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = a.httpSrv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		a.manager.RunReaper(ctx, cfg.Sessions.IdleTTL, reapInterval)
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		// Unblock ListenAndServe so the group can drain.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return ctx.Err()
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		// Let outstanding illustration goroutines patch their segments.
		for _, id := range a.manager.IDs() {
			if s, ok := a.manager.Get(id); ok {
				s.Controller.WaitImages()
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// Manager exposes the session registry, mainly for tests.
func (a *App) Manager() *session.Manager {
	return a.manager
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.httpSrv.Handler
}

// ─── Credential gate ─────────────────────────────────────────────────────────

// configGate derives the credential gate from the live config on every check,
// so a key added through a config reload unblocks game start without a
// restart.
type configGate struct {
	current func() *config.Config
}

var _ credential.Gate = (*configGate)(nil)

func (g *configGate) Selected(ctx context.Context) (bool, error) {
	cfg := g.current()
	if cfg.Credential.AssumePresent {
		return true, nil
	}
	entry := cfg.Providers.Narrator
	if entry.Name == "" {
		return false, nil
	}
	return credential.NewEnv(entry.Name, entry.APIKey).Selected(ctx)
}
