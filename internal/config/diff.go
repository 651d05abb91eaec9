package config

import "reflect"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// Provider entry changes. These need no action beyond logging: factories
	// rebuild their provider from the current config on every call.
	NarratorChanged  bool
	AssistantChanged bool
	ImageChanged     bool

	// GameChanged is true when the session-seeding game block changed.
	// Existing sessions keep playing with their old state; only new sessions
	// pick up the change.
	GameChanged bool
}

// Any reports whether the diff contains any change at all.
func (d ConfigDiff) Any() bool {
	return d.LogLevelChanged || d.NarratorChanged || d.AssistantChanged ||
		d.ImageChanged || d.GameChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	d.NarratorChanged = !entryEqual(old.Providers.Narrator, new.Providers.Narrator)
	d.AssistantChanged = !entryEqual(old.Providers.Assistant, new.Providers.Assistant)
	d.ImageChanged = !entryEqual(old.Providers.Image, new.Providers.Image)

	d.GameChanged = !reflect.DeepEqual(old.Game, new.Game)

	return d
}

// entryEqual compares two provider entries including their free-form options.
func entryEqual(a, b ProviderEntry) bool {
	return a.Name == b.Name &&
		a.APIKey == b.APIKey &&
		a.BaseURL == b.BaseURL &&
		a.Model == b.Model &&
		reflect.DeepEqual(a.Options, b.Options)
}
