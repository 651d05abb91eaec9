package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm":   {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"image": {"openai"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r over [Default] values and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("llm", cfg.Providers.Narrator.Name)
	validateProviderName("llm", cfg.Providers.Assistant.Name)
	validateProviderName("image", cfg.Providers.Image.Name)

	// Provider availability warnings
	if cfg.Providers.Narrator.Name == "" {
		slog.Warn("no narrator provider configured; every turn will degrade to the fallback payload")
	}
	if cfg.Providers.Image.Name == "" {
		slog.Warn("no image provider configured; story segments will not be illustrated")
	}

	// Game
	if cfg.Game.OpeningNarrative == "" {
		errs = append(errs, errors.New("game.opening_narrative is required"))
	}
	if len(cfg.Game.OpeningChoices) == 0 {
		errs = append(errs, errors.New("game.opening_choices must list at least one choice"))
	}
	if cfg.Game.StartingHealth < 0 {
		errs = append(errs, fmt.Errorf("game.starting_health %d must not be negative", cfg.Game.StartingHealth))
	}
	if cfg.Game.HistoryWindow <= 0 {
		errs = append(errs, fmt.Errorf("game.history_window %d must be positive", cfg.Game.HistoryWindow))
	}
	if cfg.Game.DefaultResolution != "" && !cfg.Game.DefaultResolution.IsValid() {
		errs = append(errs, fmt.Errorf("game.default_resolution %q is invalid; valid values: low, medium, high", cfg.Game.DefaultResolution))
	}

	// Sessions
	if cfg.Sessions.IdleTTL < 0 {
		errs = append(errs, fmt.Errorf("sessions.idle_ttl %s must not be negative", cfg.Sessions.IdleTTL))
	}
	if cfg.Sessions.MaxSessions < 0 {
		errs = append(errs, fmt.Errorf("sessions.max_sessions %d must not be negative", cfg.Sessions.MaxSessions))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
