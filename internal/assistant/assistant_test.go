package assistant

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/orneryhippo/infinite-adventure/internal/game"
	"github.com/orneryhippo/infinite-adventure/pkg/provider/llm"
	"github.com/orneryhippo/infinite-adventure/pkg/provider/llm/mock"
	"github.com/orneryhippo/infinite-adventure/pkg/types"
)

func fixedFactory(p llm.Provider) Factory {
	return func() (llm.Provider, error) { return p, nil }
}

// TestReply_ReturnsCompletion checks the happy path.
func TestReply_ReturnsCompletion(t *testing.T) {
	p := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "  Careful with that key, it bites.  "},
	}
	c := New(fixedFactory(p))

	got := c.Reply(context.Background(), nil, "what do you think of this key?", game.State{})

	if got != "Careful with that key, it bites." {
		t.Errorf("expected trimmed completion, got %q", got)
	}
}

// TestReply_ReplaysTranscript checks that prior turns and the new message are
// all sent, in order.
func TestReply_ReplaysTranscript(t *testing.T) {
	p := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "Indeed."},
	}
	c := New(fixedFactory(p))

	transcript := []types.Message{
		{Role: types.RoleUser, Content: "are you real?"},
		{Role: types.RoleAssistant, Content: "As real as your shadow."},
	}
	c.Reply(context.Background(), transcript, "that is not reassuring", game.State{})

	if len(p.CompleteCalls) != 1 {
		t.Fatalf("expected 1 completion call, got %d", len(p.CompleteCalls))
	}
	msgs := p.CompleteCalls[0].Req.Messages
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	if msgs[0].Content != "are you real?" || msgs[1].Content != "As real as your shadow." {
		t.Errorf("transcript not replayed in order: %+v", msgs)
	}
	if msgs[2].Role != types.RoleUser || msgs[2].Content != "that is not reassuring" {
		t.Errorf("new message not appended last: %+v", msgs[2])
	}
}

// TestReply_PersonaCarriesState checks inventory, quest, and location reach the
// system prompt.
func TestReply_PersonaCarriesState(t *testing.T) {
	p := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "Hm."},
	}
	c := New(fixedFactory(p))

	c.Reply(context.Background(), nil, "where am I?", game.State{
		Inventory: []string{"torch", "rope"},
		Quest:     "Find the hidden library",
		Location:  "Collapsed archive",
	})

	sys := p.CompleteCalls[0].Req.SystemPrompt
	for _, want := range []string{"torch", "rope", "Find the hidden library", "Collapsed archive"} {
		if !strings.Contains(sys, want) {
			t.Errorf("persona prompt missing %q", want)
		}
	}
}

// TestReply_ErrorReply checks every failure mode returns the fixed in-world
// string.
func TestReply_ErrorReply(t *testing.T) {
	tests := []struct {
		name    string
		factory Factory
	}{
		{
			name:    "factory error",
			factory: func() (llm.Provider, error) { return nil, errors.New("no credential") },
		},
		{
			name:    "provider error",
			factory: fixedFactory(&mock.Provider{CompleteErr: errors.New("boom")}),
		},
		{
			name:    "empty completion",
			factory: fixedFactory(&mock.Provider{CompleteResponse: &llm.CompletionResponse{Content: " "}}),
		},
		{
			name:    "nil response",
			factory: fixedFactory(&mock.Provider{}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := New(tt.factory).Reply(context.Background(), nil, "hello?", game.State{})
			if got != ErrorReply {
				t.Errorf("expected ErrorReply, got %q", got)
			}
		})
	}
}
