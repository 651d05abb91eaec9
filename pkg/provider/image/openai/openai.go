// Package openai provides an image provider backed by the OpenAI Images API.
//
// The default model is gpt-image-1, which maps the three quality tiers directly
// onto the API's low/medium/high rendering quality and renders landscape scenes
// at 1536x1024.
package openai

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/orneryhippo/infinite-adventure/pkg/provider/image"
)

// DefaultModel is used when no model override is configured.
const DefaultModel = "gpt-image-1"

// defaultSize is the landscape output size for scene illustrations. The Images
// API offers no true widescreen output; 1536x1024 (3:2) is the widest size
// gpt-image-1 supports, so it stands in for the intended 16:9 framing.
const defaultSize = "1536x1024"

// Provider implements image.Provider using the OpenAI Images API.
type Provider struct {
	client oai.Client
	model  string
	size   string
}

// config holds optional configuration for the provider.
type config struct {
	baseURL string
	size    string
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithSize overrides the output size (e.g., "1024x1024").
func WithSize(size string) Option {
	return func(c *config) {
		c.size = size
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// New constructs a new OpenAI image Provider. An empty model selects [DefaultModel].
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}
	if model == "" {
		model = DefaultModel
	}

	cfg := &config{size: defaultSize}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	client := oai.NewClient(reqOpts...)
	return &Provider{client: client, model: model, size: cfg.size}, nil
}

// Generate implements image.Provider.
func (p *Provider) Generate(ctx context.Context, req image.Request) (*image.Result, error) {
	if req.Prompt == "" {
		return nil, fmt.Errorf("openai: prompt must not be empty")
	}

	params := oai.ImageGenerateParams{
		Prompt: req.Prompt,
		Model:  oai.ImageModel(p.model),
		Size:   oai.ImageGenerateParamsSize(p.size),
		N:      param.NewOpt(int64(1)),
	}
	if q := quality(req.Quality); q != "" {
		params.Quality = oai.ImageGenerateParamsQuality(q)
	}

	resp, err := p.client.Images.Generate(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai: generate image: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai: empty data in image response")
	}

	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("openai: decode image payload: %w", err)
	}

	return &image.Result{
		Data:      data,
		MediaType: "image/png",
	}, nil
}

// quality maps the tier onto the gpt-image-1 quality values.
func quality(q image.Quality) string {
	switch q {
	case image.QualityLow:
		return "low"
	case image.QualityMedium:
		return "medium"
	case image.QualityHigh:
		return "high"
	}
	return ""
}

// Ensure Provider implements image.Provider at compile time.
var _ image.Provider = (*Provider)(nil)
