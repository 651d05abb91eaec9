// Package assistant implements the in-world chat companion: a spirit guide the
// player can talk to alongside the story. The companion knows the current game
// state but never drives the story; its replies are flavor and hints only.
package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/orneryhippo/infinite-adventure/internal/game"
	"github.com/orneryhippo/infinite-adventure/pkg/provider/llm"
	"github.com/orneryhippo/infinite-adventure/pkg/types"
)

// ErrorReply is the fixed in-world string returned when the backend fails.
// The widget renders it like any other companion message.
const ErrorReply = "The spirit's voice fades into a distant murmur, as if " +
	"carried away by a wind you cannot feel. Perhaps it will hear you again " +
	"in a moment."

// Factory creates a fresh LLM provider handle per reply, so a credential
// change takes effect without a restart.
type Factory func() (llm.Provider, error)

// config holds tunables for the Companion.
type config struct {
	temperature float64
	maxTokens   int
}

// Option is a functional option for Companion.
type Option func(*config)

// WithTemperature sets the sampling temperature for companion replies.
func WithTemperature(t float64) Option {
	return func(c *config) {
		c.temperature = t
	}
}

// WithMaxTokens caps the reply length.
func WithMaxTokens(n int) Option {
	return func(c *config) {
		c.maxTokens = n
	}
}

// Companion produces chat replies through an LLM provider.
type Companion struct {
	factory Factory
	cfg     config
}

// New constructs a Companion. factory must not be nil.
func New(factory Factory, opts ...Option) *Companion {
	cfg := config{
		temperature: 0.8,
		maxTokens:   512,
	}
	for _, o := range opts {
		o(&cfg)
	}
	return &Companion{factory: factory, cfg: cfg}
}

// Reply answers message given the prior chat transcript and the current game
// state. The transcript is replayed in full on every call; the companion keeps
// no state of its own. On any backend failure the fixed [ErrorReply] is
// returned instead of an error.
func (c *Companion) Reply(ctx context.Context, transcript []types.Message, message string, state game.State) string {
	provider, err := c.factory()
	if err != nil {
		slog.WarnContext(ctx, "assistant: provider unavailable", "error", err)
		return ErrorReply
	}

	messages := make([]types.Message, 0, len(transcript)+1)
	messages = append(messages, transcript...)
	messages = append(messages, types.Message{Role: types.RoleUser, Content: message})

	resp, err := provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: personaPrompt(state),
		Messages:     messages,
		Temperature:  c.cfg.temperature,
		MaxTokens:    c.cfg.maxTokens,
	})
	if err != nil {
		slog.WarnContext(ctx, "assistant: completion failed", "error", err)
		return ErrorReply
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		slog.WarnContext(ctx, "assistant: empty completion")
		return ErrorReply
	}

	return strings.TrimSpace(resp.Content)
}

// personaPrompt embeds the live game state so the companion can comment on
// what the player actually carries and pursues.
func personaPrompt(state game.State) string {
	var b strings.Builder
	b.WriteString("You are a wry, ancient spirit bound to the adventurer you are speaking with. ")
	b.WriteString("Stay in character at all times. Offer companionship, color, and the ")
	b.WriteString("occasional cryptic hint, but never narrate the story or resolve actions ")
	b.WriteString("for the player. Keep replies short, a sentence or three.\n\n")
	fmt.Fprintf(&b, "The adventurer currently carries: %s\n", orNone(strings.Join(state.Inventory, ", ")))
	fmt.Fprintf(&b, "Their current quest: %s\n", orNone(state.Quest))
	fmt.Fprintf(&b, "Their location: %s\n", orNone(state.Location))
	return b.String()
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
