// Package credential gates game start on the presence of a generative-backend
// credential. The server refuses to create sessions until the gate reports one
// selected; without it every turn would immediately degrade to the fallback
// payload and the player would never know why.
package credential

import (
	"context"
	"os"
	"strings"
)

// Gate reports whether a usable backend credential is currently selected.
// Implementations must be safe for concurrent use.
type Gate interface {
	// Selected returns true when a credential is available. An error means the
	// check itself could not be performed; callers treat that as not selected.
	Selected(ctx context.Context) (bool, error)
}

// Static is a Gate with a fixed answer. Used for local providers that need no
// credential and for the assume_present config escape hatch.
type Static bool

// Selected implements Gate.
func (s Static) Selected(context.Context) (bool, error) {
	return bool(s), nil
}

// envVarsByProvider lists the environment variables each hosted provider
// conventionally reads its API key from.
var envVarsByProvider = map[string][]string{
	"openai":    {"OPENAI_API_KEY"},
	"anthropic": {"ANTHROPIC_API_KEY"},
	"gemini":    {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	"deepseek":  {"DEEPSEEK_API_KEY"},
	"mistral":   {"MISTRAL_API_KEY"},
	"groq":      {"GROQ_API_KEY"},
}

// localProviders run on the player's own machine and need no credential.
var localProviders = map[string]bool{
	"ollama":    true,
	"llamacpp":  true,
	"llamafile": true,
}

// EnvGate is a Gate that checks a configured key first and falls back to the
// provider's conventional environment variables.
type EnvGate struct {
	apiKey  string
	envVars []string
}

// NewEnv builds the Gate for the named provider. Local providers get a gate
// that always passes; hosted providers pass when apiKey is set or one of their
// environment variables is non-empty.
func NewEnv(providerName, apiKey string) Gate {
	name := strings.ToLower(providerName)
	if localProviders[name] {
		return Static(true)
	}
	return &EnvGate{apiKey: apiKey, envVars: envVarsByProvider[name]}
}

// Selected implements Gate.
func (g *EnvGate) Selected(context.Context) (bool, error) {
	if strings.TrimSpace(g.apiKey) != "" {
		return true, nil
	}
	for _, v := range g.envVars {
		if strings.TrimSpace(os.Getenv(v)) != "" {
			return true, nil
		}
	}
	return false, nil
}

var _ Gate = (*EnvGate)(nil)
