package health

import (
	"context"
	"errors"
	"fmt"

	"github.com/orneryhippo/infinite-adventure/internal/config"
	"github.com/orneryhippo/infinite-adventure/internal/credential"
)

// CredentialChecker reports readiness of the credential gate: the server is
// not ready to start adventures until a usable provider credential is
// selected.
func CredentialChecker(gate credential.Gate) Checker {
	return Checker{
		Name: "credentials",
		Check: func(ctx context.Context) error {
			ok, err := gate.Selected(ctx)
			if err != nil {
				return err
			}
			if !ok {
				return errors.New("no provider credential selected")
			}
			return nil
		},
	}
}

// ProviderChecker verifies that the configured narrator and image providers
// resolve through the registry. It constructs throwaway providers; no remote
// calls are made.
func ProviderChecker(reg *config.Registry, current func() *config.Config) Checker {
	return Checker{
		Name: "providers",
		Check: func(ctx context.Context) error {
			cfg := current()
			var errs []error
			if !cfg.Providers.Narrator.IsZero() {
				if _, err := reg.CreateLLM(cfg.Providers.Narrator); err != nil {
					errs = append(errs, fmt.Errorf("narrator: %w", err))
				}
			}
			if !cfg.Providers.Image.IsZero() {
				if _, err := reg.CreateImage(cfg.Providers.Image); err != nil {
					errs = append(errs, fmt.Errorf("image: %w", err))
				}
			}
			return errors.Join(errs...)
		},
	}
}
