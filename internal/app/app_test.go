package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/orneryhippo/infinite-adventure/internal/config"
	"github.com/orneryhippo/infinite-adventure/internal/credential/credentialtest"
	"github.com/orneryhippo/infinite-adventure/internal/game"
	"github.com/orneryhippo/infinite-adventure/pkg/provider/image"
	imagemock "github.com/orneryhippo/infinite-adventure/pkg/provider/image/mock"
	"github.com/orneryhippo/infinite-adventure/pkg/provider/llm"
	llmmock "github.com/orneryhippo/infinite-adventure/pkg/provider/llm/mock"
)

const narratorPayload = `{
	"narrative": "Under the straw you find a rusty key.",
	"inventory_add": ["rusty key"],
	"inventory_remove": [],
	"new_quest": null,
	"image_prompt": "a rusty key in straw",
	"suggested_choices": ["Try the door", "Pocket the key", "Shout for help"]
}`

// newTestApp wires an App against mock providers registered under the name
// "mock" so no network is touched.
func newTestApp(t *testing.T, cfg *config.Config, opts ...Option) *App {
	t.Helper()

	reg := config.NewRegistry()
	reg.RegisterLLM("mock", func(config.ProviderEntry) (llm.Provider, error) {
		return &llmmock.Provider{
			CompleteResponse: &llm.CompletionResponse{Content: narratorPayload},
		}, nil
	})
	reg.RegisterImage("mock", func(config.ProviderEntry) (image.Provider, error) {
		return &imagemock.Provider{GenerateResult: &image.Result{
			Data:      []byte{0x89, 0x50, 0x4e, 0x47},
			MediaType: "image/png",
		}}, nil
	})

	a, err := New(func() *config.Config { return cfg }, reg, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func mockConfig() *config.Config {
	cfg := config.Default()
	cfg.Providers.Narrator = config.ProviderEntry{Name: "mock", Model: "test"}
	cfg.Providers.Image = config.ProviderEntry{Name: "mock"}
	cfg.Credential.AssumePresent = true
	return cfg
}

func TestApp_FullTurnThroughHTTP(t *testing.T) {
	a := newTestApp(t, mockConfig())
	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	res, err := srv.Client().Post(srv.URL+"/api/sessions", "application/json", nil)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create session status = %d", res.StatusCode)
	}
	var sess struct {
		ID    string     `json:"id"`
		State game.State `json:"state"`
	}
	if err := json.NewDecoder(res.Body).Decode(&sess); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if sess.State.Quest != config.Default().Game.StartingQuest {
		t.Errorf("unexpected opening quest %q", sess.State.Quest)
	}

	res, err = srv.Client().Post(srv.URL+"/api/sessions/"+sess.ID+"/turns",
		"application/json", strings.NewReader(`{"action":"search the straw"}`))
	if err != nil {
		t.Fatalf("submit turn: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("turn status = %d", res.StatusCode)
	}
	var turnRes struct {
		State    game.State `json:"state"`
		Fallback bool       `json:"fallback"`
	}
	if err := json.NewDecoder(res.Body).Decode(&turnRes); err != nil {
		t.Fatalf("decode turn: %v", err)
	}
	if turnRes.Fallback {
		t.Error("expected a real narrated turn, got the fallback")
	}
	if !turnRes.State.HasItem("rusty key") {
		t.Errorf("expected the delta applied, got %v", turnRes.State.Inventory)
	}
}

func TestApp_GateBlocksWithoutCredential(t *testing.T) {
	cfg := mockConfig()
	cfg.Credential.AssumePresent = false
	// The mock provider name carries no conventional env var, so the gate
	// stays closed until a key appears in config.
	a := newTestApp(t, cfg)
	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	res, err := srv.Client().Post(srv.URL+"/api/sessions", "application/json", nil)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want %d", res.StatusCode, http.StatusForbidden)
	}
}

func TestApp_CredentialReloadUnblocksGate(t *testing.T) {
	cfg := mockConfig()
	cfg.Credential.AssumePresent = false
	a := newTestApp(t, cfg)
	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	res, _ := srv.Client().Post(srv.URL+"/api/sessions", "application/json", nil)
	res.Body.Close()
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("pre-reload status = %d, want %d", res.StatusCode, http.StatusForbidden)
	}

	// Simulate a config reload that adds the key.
	cfg.Providers.Narrator.APIKey = "sk-now-present"

	res, _ = srv.Client().Post(srv.URL+"/api/sessions", "application/json", nil)
	res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		t.Errorf("post-reload status = %d, want %d", res.StatusCode, http.StatusCreated)
	}
}

func TestApp_InjectedGate(t *testing.T) {
	gate := credentialtest.New(false)
	a := newTestApp(t, mockConfig(), WithGate(gate))
	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	res, _ := srv.Client().Post(srv.URL+"/api/sessions", "application/json", nil)
	res.Body.Close()
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusForbidden)
	}

	gate.Set(true)
	res, _ = srv.Client().Post(srv.URL+"/api/sessions", "application/json", nil)
	res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		t.Errorf("status after gate opens = %d, want %d", res.StatusCode, http.StatusCreated)
	}
}

func TestApp_NarratorFallbackWithoutProvider(t *testing.T) {
	cfg := mockConfig()
	cfg.Providers.Narrator.Name = "ghost" // not registered
	a := newTestApp(t, cfg)
	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	res, err := srv.Client().Post(srv.URL+"/api/sessions", "application/json", nil)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	var sess struct {
		ID string `json:"id"`
	}
	json.NewDecoder(res.Body).Decode(&sess)
	res.Body.Close()

	res, err = srv.Client().Post(srv.URL+"/api/sessions/"+sess.ID+"/turns",
		"application/json", strings.NewReader(`{"action":"look around"}`))
	if err != nil {
		t.Fatalf("submit turn: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("turn status = %d, want 200 even without a provider", res.StatusCode)
	}
	var turnRes struct {
		Fallback bool `json:"fallback"`
	}
	if err := json.NewDecoder(res.Body).Decode(&turnRes); err != nil {
		t.Fatalf("decode turn: %v", err)
	}
	if !turnRes.Fallback {
		t.Error("expected the fallback turn when the narrator cannot be built")
	}
	// The session survives the failed turn.
	if _, ok := a.Manager().Get(sess.ID); !ok {
		t.Error("expected session to survive a fallback turn")
	}
}

func TestApp_AssistantFallsBackToNarratorEntry(t *testing.T) {
	cfg := mockConfig()
	a := newTestApp(t, cfg)
	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	res, _ := srv.Client().Post(srv.URL+"/api/sessions", "application/json", nil)
	var sess struct {
		ID string `json:"id"`
	}
	json.NewDecoder(res.Body).Decode(&sess)
	res.Body.Close()

	res, err := srv.Client().Post(srv.URL+"/api/sessions/"+sess.ID+"/chat",
		"application/json", strings.NewReader(`{"message":"Who are you?"}`))
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("chat status = %d", res.StatusCode)
	}
	var cr struct {
		Reply string `json:"reply"`
	}
	if err := json.NewDecoder(res.Body).Decode(&cr); err != nil {
		t.Fatalf("decode chat: %v", err)
	}
	// The mock provider always answers with the narrator payload; what matters
	// here is that the reply came from a real completion, not the error string.
	if cr.Reply == "" {
		t.Error("expected a reply from the narrator-backed assistant")
	}
}

func TestApp_ShutdownIdempotent(t *testing.T) {
	a := newTestApp(t, mockConfig())
	ctx := context.Background()

	if err := a.Shutdown(ctx); err != nil {
		t.Fatalf("first shutdown: %v", err)
	}
	if err := a.Shutdown(ctx); err != nil {
		t.Fatalf("second shutdown: %v", err)
	}
}
