// Package config provides the configuration schema, loader, and provider registry
// for the infinite-adventure server.
package config

import "time"

// LogLevel controls log verbosity for the server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Resolution selects the illustration quality tier.
type Resolution string

const (
	ResolutionLow    Resolution = "low"
	ResolutionMedium Resolution = "medium"
	ResolutionHigh   Resolution = "high"
)

// IsValid reports whether r is a recognised resolution tier.
func (r Resolution) IsValid() bool {
	switch r {
	case ResolutionLow, ResolutionMedium, ResolutionHigh:
		return true
	}
	return false
}

// Config is the root configuration structure for the adventure server.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Providers  ProvidersConfig  `yaml:"providers"`
	Game       GameConfig       `yaml:"game"`
	Sessions   SessionsConfig   `yaml:"sessions"`
	Credential CredentialConfig `yaml:"credential"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// ProvidersConfig declares which provider implementation backs each generative
// role. Each field selects a named provider registered in the [Registry].
type ProvidersConfig struct {
	// Narrator drives story generation.
	Narrator ProviderEntry `yaml:"narrator"`

	// Assistant drives the in-world chat companion. When left empty the
	// narrator entry is reused.
	Assistant ProviderEntry `yaml:"assistant"`

	// Image drives scene illustration.
	Image ProviderEntry `yaml:"image"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "openai", "anthropic").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "gpt-4o", "gpt-image-1").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above. Values may be strings, numbers, booleans, or nested maps.
	Options map[string]any `yaml:"options"`
}

// IsZero reports whether the entry is entirely unset.
func (e ProviderEntry) IsZero() bool {
	return e.Name == "" && e.APIKey == "" && e.BaseURL == "" && e.Model == "" && len(e.Options) == 0
}

// GameConfig seeds every new session and tunes the turn protocol.
type GameConfig struct {
	// OpeningNarrative is the first story segment shown before any turn.
	OpeningNarrative string `yaml:"opening_narrative"`

	// OpeningImagePrompt illustrates the opening segment.
	OpeningImagePrompt string `yaml:"opening_image_prompt"`

	// OpeningChoices is the fixed pre-first-turn choice set.
	OpeningChoices []string `yaml:"opening_choices"`

	// StartingQuest, StartingHealth, and StartingLocation seed the game state.
	StartingQuest    string `yaml:"starting_quest"`
	StartingHealth   int    `yaml:"starting_health"`
	StartingLocation string `yaml:"starting_location"`

	// HistoryWindow is how many recent narration segments are sent to the
	// narrator as story context.
	HistoryWindow int `yaml:"history_window"`

	// DefaultResolution is the illustration tier new sessions start with.
	DefaultResolution Resolution `yaml:"default_resolution"`
}

// SessionsConfig tunes the in-memory session registry.
type SessionsConfig struct {
	// IdleTTL is how long an untouched session survives before the reaper
	// removes it. Zero disables reaping.
	IdleTTL time.Duration `yaml:"idle_ttl"`

	// MaxSessions caps concurrently live sessions. Zero means unlimited.
	MaxSessions int `yaml:"max_sessions"`
}

// CredentialConfig controls the game-start credential gate.
type CredentialConfig struct {
	// AssumePresent skips the credential check entirely. Meant for development
	// against local providers; without it the server blocks session creation
	// until a backend credential is detectable.
	AssumePresent bool `yaml:"assume_present"`
}

// Default returns the built-in configuration. Loading a file overrides the
// fields it sets and keeps these values for the rest.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr: ":8080",
			LogLevel:   LogInfo,
		},
		Game: GameConfig{
			OpeningNarrative: "You wake on cold flagstones, the taste of iron in your mouth " +
				"and no memory of how you came to be here. Somewhere above, water drips in " +
				"the dark. A thin line of grey light marks a doorway.",
			OpeningImagePrompt: "A lone figure waking on the stone floor of a dark vaulted " +
				"chamber, a thin line of grey light under a distant door",
			OpeningChoices:    []string{"Feel your way toward the light", "Search your pockets", "Call out into the dark"},
			StartingQuest:     "Discover where you are",
			StartingHealth:    100,
			StartingLocation:  "An unlit chamber",
			HistoryWindow:     5,
			DefaultResolution: ResolutionMedium,
		},
		Sessions: SessionsConfig{
			IdleTTL: 30 * time.Minute,
		},
	}
}
