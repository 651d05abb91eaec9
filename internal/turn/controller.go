// Package turn implements the turn protocol of one adventure session.
//
// A Controller owns the session's game state, story log, and active choice
// set. It enforces the single rule of the protocol: at most one narrative
// generation in flight per session. Submissions while a turn is pending are
// rejected, not queued. Illustration is detached: each narrative segment gets
// its own goroutine that patches the log by segment ID whenever it finishes,
// so several may be outstanding at once and completion order is irrelevant.
package turn

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/orneryhippo/infinite-adventure/internal/game"
	"github.com/orneryhippo/infinite-adventure/internal/narrator"
	"github.com/orneryhippo/infinite-adventure/pkg/provider/image"
)

// ErrTurnInFlight is returned by Submit while a previous turn is still being
// resolved.
var ErrTurnInFlight = errors.New("turn: a turn is already in flight")

// ErrEmptyAction is returned by Submit for blank input.
var ErrEmptyAction = errors.New("turn: action must not be empty")

// Narrator resolves a player action into the next story beat. It is total:
// implementations return a fallback result rather than an error.
type Narrator interface {
	GenerateSegment(ctx context.Context, req narrator.Request) narrator.Result
}

// Illustrator renders a scene prompt into a data URI, or "" on failure.
type Illustrator interface {
	Illustrate(ctx context.Context, prompt string, quality image.Quality) string
}

// ImageListener is notified after a detached illustration patched the log.
// Called from the illustration goroutine; implementations must be safe for
// concurrent use.
type ImageListener func(segmentID, dataURI string)

// Outcome is the result of one resolved turn.
type Outcome struct {
	// UserSegment is the echoed player action appended before generation.
	UserSegment game.Segment

	// StorySegment is the generated narration appended after generation.
	StorySegment game.Segment

	// State is the game state after applying the turn's delta.
	State game.State

	// Choices is the new active choice set.
	Choices []string

	// ChoiceMatched is true when the action matched one of the previous
	// choices instead of being free text.
	ChoiceMatched bool

	// Fallback is true when the narrator degraded to its canned payload.
	Fallback bool
}

// config holds tunables for the Controller.
type config struct {
	historyWindow int
	quality       image.Quality
	onImage       ImageListener
}

// Option is a functional option for Controller.
type Option func(*config)

// WithHistoryWindow sets how many recent narration segments are sent to the
// narrator as story context. Default 5.
func WithHistoryWindow(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.historyWindow = n
		}
	}
}

// WithQuality sets the initial illustration quality tier. Default medium.
func WithQuality(q image.Quality) Option {
	return func(c *config) {
		if q.Valid() {
			c.quality = q
		}
	}
}

// WithImageListener registers a callback for completed illustration patches.
func WithImageListener(fn ImageListener) Option {
	return func(c *config) {
		c.onImage = fn
	}
}

// Controller owns the turn protocol of one session.
type Controller struct {
	narrator    Narrator
	illustrator Illustrator
	log         *game.Log
	cfg         config

	mu       sync.Mutex
	state    game.State
	choices  []string
	awaiting bool
	quality  image.Quality

	images sync.WaitGroup
}

// New constructs a Controller starting from the given state.
func New(n Narrator, il Illustrator, initial game.State, opts ...Option) *Controller {
	cfg := config{
		historyWindow: 5,
		quality:       image.QualityMedium,
	}
	for _, o := range opts {
		o(&cfg)
	}
	return &Controller{
		narrator:    n,
		illustrator: il,
		log:         game.NewLog(),
		cfg:         cfg,
		state:       initial.Clone(),
		quality:     cfg.quality,
	}
}

// Open appends the opening narration, sets the pre-first-turn choice set, and
// kicks off its illustration. Call once, before the first Submit.
func (c *Controller) Open(ctx context.Context, text, imagePrompt string, choices []string) game.Segment {
	seg := c.log.Append(game.Segment{
		Text:        text,
		ImagePrompt: imagePrompt,
		Choices:     slices.Clone(choices),
	})

	c.mu.Lock()
	c.choices = slices.Clone(choices)
	c.mu.Unlock()

	c.illustrate(ctx, seg.ID, imagePrompt)
	return seg
}

// Submit resolves one player action. It blocks until the narrative is
// generated; illustration continues in the background. Returns
// [ErrTurnInFlight] when a turn is already pending and [ErrEmptyAction] for
// blank input, both without touching any state.
func (c *Controller) Submit(ctx context.Context, action string) (*Outcome, error) {
	if normalize(action) == "" {
		return nil, ErrEmptyAction
	}

	c.mu.Lock()
	if c.awaiting {
		c.mu.Unlock()
		return nil, ErrTurnInFlight
	}
	c.awaiting = true
	state := c.state.Clone()
	_, matched := MatchChoice(action, c.choices)
	c.mu.Unlock()

	// Optimistic echo: the player sees their action immediately, even though
	// the turn may still fall back.
	userSeg := c.log.Append(game.Segment{Text: action, UserAction: true})

	result := c.narrator.GenerateSegment(ctx, narrator.Request{
		History:   c.log.RecentNarration(c.cfg.historyWindow),
		Action:    action,
		Inventory: state.Inventory,
		Quest:     state.Quest,
	})

	storySeg := c.log.Append(game.Segment{
		Text:        result.Narrative,
		ImagePrompt: result.ImagePrompt,
		Choices:     slices.Clone(result.Choices),
	})

	c.mu.Lock()
	c.state = c.state.Apply(result.Delta)
	c.choices = slices.Clone(result.Choices)
	c.awaiting = false
	newState := c.state.Clone()
	c.mu.Unlock()

	c.illustrate(ctx, storySeg.ID, result.ImagePrompt)

	return &Outcome{
		UserSegment:   userSeg,
		StorySegment:  storySeg,
		State:         newState,
		Choices:       slices.Clone(result.Choices),
		ChoiceMatched: matched,
		Fallback:      result.Fallback,
	}, nil
}

// illustrate starts the detached image generation for one segment. The patch
// is a no-op if the segment is gone by the time the image arrives.
func (c *Controller) illustrate(ctx context.Context, segmentID, prompt string) {
	if c.illustrator == nil || prompt == "" {
		return
	}

	// Detached from the request lifecycle: the browser request that triggered
	// this turn finishes long before the image does.
	dctx := context.WithoutCancel(ctx)

	c.images.Add(1)
	go func() {
		defer c.images.Done()

		uri := c.illustrator.Illustrate(dctx, prompt, c.Quality())
		if uri == "" {
			return
		}
		if c.log.PatchImage(segmentID, uri) && c.cfg.onImage != nil {
			c.cfg.onImage(segmentID, uri)
		}
	}()
}

// State returns a copy of the current game state.
func (c *Controller) State() game.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// Choices returns a copy of the active choice set.
func (c *Controller) Choices() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.choices)
}

// Log returns the session's story log.
func (c *Controller) Log() *game.Log {
	return c.log
}

// InFlight reports whether a turn is currently being resolved.
func (c *Controller) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.awaiting
}

// Quality returns the current illustration quality tier.
func (c *Controller) Quality() image.Quality {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.quality
}

// SetQuality changes the illustration quality tier for subsequent segments.
// Invalid tiers are ignored.
func (c *Controller) SetQuality(q image.Quality) {
	if !q.Valid() {
		return
	}
	c.mu.Lock()
	c.quality = q
	c.mu.Unlock()
}

// WaitImages blocks until all outstanding illustration goroutines finish.
// Used by shutdown and tests.
func (c *Controller) WaitImages() {
	c.images.Wait()
}
