// Package illustrator renders narrative segments into scene images.
//
// Like the narrator, it never fails loudly: a segment without an illustration
// is a normal outcome, so Illustrate returns an empty string on any error and
// leaves retrying to nobody. The caller patches the story log only when a data
// URI comes back.
package illustrator

import (
	"context"
	"encoding/base64"
	"log/slog"
	"strings"
	"time"

	"github.com/orneryhippo/infinite-adventure/internal/observe"
	"github.com/orneryhippo/infinite-adventure/pkg/provider/image"
)

// defaultStyle is the fixed art direction prepended to every scene prompt so
// illustrations stay visually consistent across a session.
const defaultStyle = "Digital painting, atmospheric dark fantasy book illustration, " +
	"dramatic lighting, rich detail, wide cinematic composition."

// Factory creates a fresh image provider handle per illustration, so a
// credential change takes effect without a restart.
type Factory func() (image.Provider, error)

// config holds tunables for the Illustrator.
type config struct {
	style   string
	metrics *observe.Metrics
}

// Option is a functional option for Illustrator.
type Option func(*config)

// WithStyle replaces the default art-direction preamble.
func WithStyle(style string) Option {
	return func(c *config) {
		c.style = style
	}
}

// WithMetrics injects a metrics instance. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(c *config) {
		c.metrics = m
	}
}

// Illustrator generates scene images through an image provider.
type Illustrator struct {
	factory Factory
	cfg     config
}

// New constructs an Illustrator. factory must not be nil.
func New(factory Factory, opts ...Option) *Illustrator {
	cfg := config{style: defaultStyle}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.metrics == nil {
		cfg.metrics = observe.DefaultMetrics()
	}
	return &Illustrator{factory: factory, cfg: cfg}
}

// Illustrate renders the scene described by prompt at the given quality tier
// and returns it as a data URI, or "" when generation fails for any reason.
func (il *Illustrator) Illustrate(ctx context.Context, prompt string, quality image.Quality) string {
	if strings.TrimSpace(prompt) == "" {
		return ""
	}

	provider, err := il.factory()
	if err != nil {
		slog.WarnContext(ctx, "illustrator: provider unavailable, skipping image", "error", err)
		il.cfg.metrics.RecordProviderError(ctx, "illustrator", "factory")
		return ""
	}

	start := time.Now()
	res, err := provider.Generate(ctx, image.Request{
		Prompt:  il.cfg.style + " " + prompt,
		Quality: quality,
	})
	il.cfg.metrics.ImageDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		slog.WarnContext(ctx, "illustrator: generation failed, skipping image", "error", err)
		il.cfg.metrics.RecordProviderRequest(ctx, "illustrator", "image", "error")
		il.cfg.metrics.RecordProviderError(ctx, "illustrator", "image")
		return ""
	}
	il.cfg.metrics.RecordProviderRequest(ctx, "illustrator", "image", "ok")
	if res == nil || len(res.Data) == 0 {
		slog.WarnContext(ctx, "illustrator: empty image result, skipping image")
		il.cfg.metrics.RecordProviderError(ctx, "illustrator", "payload")
		return ""
	}

	mediaType := res.MediaType
	if mediaType == "" {
		mediaType = "image/png"
	}
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(res.Data)
}
