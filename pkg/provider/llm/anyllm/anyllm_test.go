package anyllm

import (
	"strings"
	"testing"

	"github.com/orneryhippo/infinite-adventure/pkg/provider/llm"
	"github.com/orneryhippo/infinite-adventure/pkg/types"
)

// ── convertMessage ────────────────────────────────────────────────────────────

// TestConvertMessage_System checks that system-role messages are converted correctly.
func TestConvertMessage_System(t *testing.T) {
	m := types.Message{Role: "system", Content: "You are a narrator."}
	got := convertMessage(m)
	if got.Role != "system" {
		t.Errorf("expected role system, got %q", got.Role)
	}
	if got.ContentString() != "You are a narrator." {
		t.Errorf("expected content %q, got %q", "You are a narrator.", got.ContentString())
	}
}

// TestConvertMessage_User checks that user-role messages are converted correctly.
func TestConvertMessage_User(t *testing.T) {
	m := types.Message{Role: "user", Content: "I open the door."}
	got := convertMessage(m)
	if got.Role != "user" {
		t.Errorf("expected role user, got %q", got.Role)
	}
	if got.ContentString() != "I open the door." {
		t.Errorf("expected content %q, got %q", "I open the door.", got.ContentString())
	}
}

// TestConvertMessage_Assistant checks that assistant-role messages are converted correctly.
func TestConvertMessage_Assistant(t *testing.T) {
	m := types.Message{Role: "assistant", Content: "The door creaks open."}
	got := convertMessage(m)
	if got.Role != "assistant" {
		t.Errorf("expected role assistant, got %q", got.Role)
	}
	if got.ContentString() != "The door creaks open." {
		t.Errorf("expected content %q, got %q", "The door creaks open.", got.ContentString())
	}
}

// ── buildParams ───────────────────────────────────────────────────────────────

// TestBuildParams_SystemPromptPrepended checks that a SystemPrompt becomes the
// first message in the converted parameter list.
func TestBuildParams_SystemPromptPrepended(t *testing.T) {
	p := &Provider{model: "gpt-4o"}
	params := p.buildParams(llm.CompletionRequest{
		SystemPrompt: "Narrate in second person.",
		Messages: []types.Message{
			{Role: "user", Content: "Look around."},
		},
	})

	if len(params.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(params.Messages))
	}
	if params.Messages[0].Role != "system" {
		t.Errorf("expected first message role system, got %q", params.Messages[0].Role)
	}
	if params.Messages[1].Role != "user" {
		t.Errorf("expected second message role user, got %q", params.Messages[1].Role)
	}
}

// TestBuildParams_OptionalFields checks Temperature/MaxTokens pointer handling.
func TestBuildParams_OptionalFields(t *testing.T) {
	p := &Provider{model: "gpt-4o"}

	params := p.buildParams(llm.CompletionRequest{
		Messages:    []types.Message{{Role: "user", Content: "hi"}},
		Temperature: 0.9,
		MaxTokens:   512,
	})
	if params.Temperature == nil || *params.Temperature != 0.9 {
		t.Errorf("expected temperature 0.9, got %v", params.Temperature)
	}
	if params.MaxTokens == nil || *params.MaxTokens != 512 {
		t.Errorf("expected max tokens 512, got %v", params.MaxTokens)
	}

	params = p.buildParams(llm.CompletionRequest{
		Messages: []types.Message{{Role: "user", Content: "hi"}},
	})
	if params.Temperature != nil {
		t.Errorf("expected nil temperature for zero value, got %v", *params.Temperature)
	}
	if params.MaxTokens != nil {
		t.Errorf("expected nil max tokens for zero value, got %v", *params.MaxTokens)
	}
}

// ── New ───────────────────────────────────────────────────────────────────────

// TestNew_Validation checks constructor argument validation.
func TestNew_Validation(t *testing.T) {
	if _, err := New("", "gpt-4o"); err == nil {
		t.Error("expected error for empty provider name")
	}
	if _, err := New("openai", ""); err == nil {
		t.Error("expected error for empty model")
	}
	if _, err := New("does-not-exist", "some-model"); err == nil {
		t.Error("expected error for unsupported provider name")
	} else if !strings.Contains(err.Error(), "does-not-exist") {
		t.Errorf("expected error to name the provider, got %v", err)
	}
}

// ── CountTokens ───────────────────────────────────────────────────────────────

// TestCountTokens_Approximation checks the character-based estimate.
func TestCountTokens_Approximation(t *testing.T) {
	p := &Provider{model: "gpt-4o"}
	got, err := p.CountTokens([]types.Message{
		{Role: "user", Content: strings.Repeat("a", 40)},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 40 chars / 4 + 4 overhead.
	if got != 14 {
		t.Errorf("expected 14 tokens, got %d", got)
	}
}

// ── modelCapabilities ─────────────────────────────────────────────────────────

// TestModelCapabilities checks the model family lookup table.
func TestModelCapabilities(t *testing.T) {
	tests := []struct {
		model      string
		wantCtx    int
		wantVision bool
	}{
		{"gpt-4o", 128_000, true},
		{"gpt-4", 8_192, false},
		{"claude-3-5-sonnet-latest", 200_000, true},
		{"gemini-1.5-pro", 2_097_152, true},
		{"totally-unknown-model", 128_000, false},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			caps := modelCapabilities(tt.model)
			if caps.ContextWindow != tt.wantCtx {
				t.Errorf("ContextWindow: expected %d, got %d", tt.wantCtx, caps.ContextWindow)
			}
			if caps.SupportsVision != tt.wantVision {
				t.Errorf("SupportsVision: expected %v, got %v", tt.wantVision, caps.SupportsVision)
			}
		})
	}
}
