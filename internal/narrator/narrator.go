// Package narrator turns player actions into the next beat of the story.
//
// The narrator asks an LLM for a strict JSON payload describing the narration,
// the structured state delta, an illustration prompt, and suggested next
// actions. It is deliberately a total function: whatever goes wrong with the
// backend (credentials, transport, malformed output), GenerateSegment returns
// a usable in-world fallback result and never an error. Turn flow must not
// break because a model had a bad day.
package narrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/orneryhippo/infinite-adventure/internal/game"
	"github.com/orneryhippo/infinite-adventure/internal/observe"
	"github.com/orneryhippo/infinite-adventure/pkg/provider/llm"
	"github.com/orneryhippo/infinite-adventure/pkg/types"
)

// Factory creates a fresh LLM provider handle. The narrator calls it once per
// generation so that a credential or endpoint change takes effect on the next
// turn without restarting anything.
type Factory func() (llm.Provider, error)

// Request carries the inputs for one narrative generation.
type Request struct {
	// History is the text of the most recent narration segments, oldest first.
	History []string

	// Action is the player's submitted action.
	Action string

	// Inventory is the player's current inventory.
	Inventory []string

	// Quest is the player's current quest.
	Quest string
}

// Result is one resolved story beat. GenerateSegment always returns a valid
// Result; Fallback marks the canned degradation payload.
type Result struct {
	// Narrative is the prose shown to the player.
	Narrative string

	// Delta is the structured state change to apply.
	Delta game.Delta

	// ImagePrompt describes the scene for the illustrator.
	ImagePrompt string

	// Choices are 3-4 suggested next actions ("Try again" alone on fallback).
	Choices []string

	// Fallback is true when the backend failed and the canned payload was used.
	Fallback bool
}

// Canned degradation payload. Phrased as in-world uncertainty so a backend
// outage reads as a story beat rather than an error page.
const (
	fallbackNarrative = "The world around you shimmers and blurs, as though " +
		"reality itself has lost its place in the telling. You steady your " +
		"breath and wait for the vision to clear."
	fallbackImagePrompt = "A hazy, dreamlike mist swirling over an indistinct " +
		"fantasy landscape, soft muted colors"
	fallbackChoice = "Try again"
)

// Fallback returns the canned degradation result: in-world narrative, empty
// delta, generic image prompt, a single retry choice.
func Fallback() Result {
	return Result{
		Narrative:   fallbackNarrative,
		ImagePrompt: fallbackImagePrompt,
		Choices:     []string{fallbackChoice},
		Fallback:    true,
	}
}

// config holds tunables for the Generator.
type config struct {
	temperature float64
	maxTokens   int
	maxChoices  int
	metrics     *observe.Metrics
}

// Option is a functional option for Generator.
type Option func(*config)

// WithTemperature sets the sampling temperature for narrative completions.
func WithTemperature(t float64) Option {
	return func(c *config) {
		c.temperature = t
	}
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int) Option {
	return func(c *config) {
		c.maxTokens = n
	}
}

// WithMetrics injects a metrics instance. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(c *config) {
		c.metrics = m
	}
}

// Generator produces narrative segments through an LLM provider.
type Generator struct {
	factory Factory
	cfg     config
}

// New constructs a Generator. factory must not be nil.
func New(factory Factory, opts ...Option) *Generator {
	cfg := config{
		temperature: 0.9,
		maxTokens:   1024,
		maxChoices:  4,
	}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.metrics == nil {
		cfg.metrics = observe.DefaultMetrics()
	}
	return &Generator{factory: factory, cfg: cfg}
}

// GenerateSegment resolves one player action into the next story beat. Always
// returns a usable Result; failures are logged and absorbed into Fallback().
func (g *Generator) GenerateSegment(ctx context.Context, req Request) Result {
	provider, err := g.factory()
	if err != nil {
		slog.WarnContext(ctx, "narrator: provider unavailable, using fallback", "error", err)
		g.cfg.metrics.RecordProviderError(ctx, "narrator", "factory")
		return Fallback()
	}

	req = g.trimHistory(req, provider)

	resp, err := provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt(req),
		Messages: []types.Message{
			{Role: types.RoleUser, Content: userPrompt(req)},
		},
		Temperature: g.cfg.temperature,
		MaxTokens:   g.cfg.maxTokens,
	})
	if err != nil {
		slog.WarnContext(ctx, "narrator: completion failed, using fallback", "error", err)
		g.cfg.metrics.RecordProviderRequest(ctx, "narrator", "completion", "error")
		g.cfg.metrics.RecordProviderError(ctx, "narrator", "completion")
		return Fallback()
	}
	g.cfg.metrics.RecordProviderRequest(ctx, "narrator", "completion", "ok")
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		slog.WarnContext(ctx, "narrator: empty completion, using fallback")
		g.cfg.metrics.RecordProviderError(ctx, "narrator", "payload")
		return Fallback()
	}

	result, err := parseResult(resp.Content)
	if err != nil {
		slog.WarnContext(ctx, "narrator: malformed payload, using fallback", "error", err)
		g.cfg.metrics.RecordProviderError(ctx, "narrator", "payload")
		return Fallback()
	}

	if len(result.Choices) > g.cfg.maxChoices {
		result.Choices = result.Choices[:g.cfg.maxChoices]
	}
	return result
}

// trimHistory drops the oldest history entries until the full prompt fits the
// provider's context window, keeping room for the completion itself. A provider
// that reports no window, or cannot count tokens, gets the request unchanged.
func (g *Generator) trimHistory(req Request, provider llm.Provider) Request {
	window := provider.Capabilities().ContextWindow
	if window <= 0 {
		return req
	}
	budget := window - g.cfg.maxTokens
	for len(req.History) > 0 {
		n, err := provider.CountTokens(promptMessages(req))
		if err != nil || n <= budget {
			break
		}
		req.History = req.History[1:]
	}
	return req
}

// promptMessages mirrors the full prompt as a message list for token counting.
func promptMessages(req Request) []types.Message {
	return []types.Message{
		{Role: types.RoleSystem, Content: systemPrompt(req)},
		{Role: types.RoleUser, Content: userPrompt(req)},
	}
}

// systemPrompt embeds the current structured state so the model narrates
// consistently with what the player actually holds and pursues.
func systemPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("You are the narrator of an endless dark-fantasy interactive fiction game. ")
	b.WriteString("Continue the story in vivid second-person prose, one or two short paragraphs. ")
	b.WriteString("Let the player attempt anything; surprising actions deserve surprising outcomes.\n\n")

	fmt.Fprintf(&b, "Player inventory: %s\n", orNone(strings.Join(req.Inventory, ", ")))
	fmt.Fprintf(&b, "Current quest: %s\n\n", orNone(req.Quest))

	b.WriteString("Respond with a single JSON object and nothing else. Keys:\n")
	b.WriteString(`  "narrative": string, the next story beat` + "\n")
	b.WriteString(`  "inventory_add": array of item names the player gained` + "\n")
	b.WriteString(`  "inventory_remove": array of item names the player lost or used up` + "\n")
	b.WriteString(`  "new_quest": string with the updated quest, or null if unchanged` + "\n")
	b.WriteString(`  "image_prompt": string, a visual description of the scene for an illustrator` + "\n")
	b.WriteString(`  "suggested_choices": array of 3 or 4 short next actions` + "\n")
	return b.String()
}

// userPrompt carries the recent story and the action being resolved.
func userPrompt(req Request) string {
	var b strings.Builder
	if len(req.History) > 0 {
		b.WriteString("The story so far:\n")
		for _, h := range req.History {
			b.WriteString(h)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "The player's action: %s", req.Action)
	return b.String()
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
