package health

import (
	"context"
	"testing"

	"github.com/orneryhippo/infinite-adventure/internal/config"
	"github.com/orneryhippo/infinite-adventure/internal/credential"
	"github.com/orneryhippo/infinite-adventure/internal/credential/credentialtest"
	"github.com/orneryhippo/infinite-adventure/pkg/provider/llm"
	llmmock "github.com/orneryhippo/infinite-adventure/pkg/provider/llm/mock"
)

func TestCredentialChecker(t *testing.T) {
	tests := []struct {
		name    string
		gate    credential.Gate
		wantErr bool
	}{
		{"selected", credentialtest.New(true), false},
		{"not selected", credentialtest.New(false), true},
		{"static pass", credential.Static(true), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := CredentialChecker(tc.gate).Check(context.Background())
			if (err != nil) != tc.wantErr {
				t.Errorf("check error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestProviderChecker(t *testing.T) {
	reg := config.NewRegistry()
	reg.RegisterLLM("mock", func(config.ProviderEntry) (llm.Provider, error) {
		return &llmmock.Provider{}, nil
	})

	registered := config.Default()
	registered.Providers.Narrator = config.ProviderEntry{Name: "mock"}

	unregistered := config.Default()
	unregistered.Providers.Narrator = config.ProviderEntry{Name: "ghost"}

	empty := config.Default()

	tests := []struct {
		name    string
		cfg     *config.Config
		wantErr bool
	}{
		{"registered narrator", registered, false},
		{"unregistered narrator", unregistered, true},
		{"no providers configured", empty, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := ProviderChecker(reg, func() *config.Config { return tc.cfg })
			err := c.Check(context.Background())
			if (err != nil) != tc.wantErr {
				t.Errorf("check error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}
