// Package image defines the Provider interface for text-to-image backends.
//
// An image provider wraps a service that renders a textual scene description into
// a single illustration (e.g., OpenAI gpt-image-1 or DALL·E). The turn controller
// uses it to illustrate narrative segments after a turn resolves.
//
// Implementations must be safe for concurrent use.
package image

import "context"

// Quality selects the rendering quality tier for a generated image. Higher tiers
// cost more and take longer; the player picks the tier per session.
type Quality string

// Supported quality tiers.
const (
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
)

// Valid reports whether q is one of the supported tiers.
func (q Quality) Valid() bool {
	switch q {
	case QualityLow, QualityMedium, QualityHigh:
		return true
	}
	return false
}

// Request describes a single image generation.
type Request struct {
	// Prompt is the full scene description, including any art direction the caller
	// wants applied. Providers pass it through verbatim.
	Prompt string

	// Quality selects the rendering tier. Zero value means provider default.
	Quality Quality
}

// Result is a successfully generated image.
type Result struct {
	// Data is the raw encoded image bytes.
	Data []byte

	// MediaType is the MIME type of Data (e.g., "image/png").
	MediaType string
}

// Provider is the abstraction over any text-to-image backend.
//
// Implementations must be safe for concurrent use and must propagate context
// cancellation promptly.
type Provider interface {
	// Generate renders the requested scene and returns the encoded image.
	// Returns an error if the request fails or ctx is cancelled; callers decide
	// whether a missing image is fatal (for scene illustration it is not).
	Generate(ctx context.Context, req Request) (*Result, error)
}
