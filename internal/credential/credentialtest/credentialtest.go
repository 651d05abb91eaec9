// Package credentialtest provides a controllable Gate for tests.
package credentialtest

import (
	"context"
	"sync"
)

// Gate is a credential.Gate whose answer can be flipped mid-test.
type Gate struct {
	mu       sync.Mutex
	selected bool
	err      error

	// Calls counts Selected invocations.
	Calls int
}

// New returns a Gate reporting the given initial state.
func New(selected bool) *Gate {
	return &Gate{selected: selected}
}

// Set changes the reported state.
func (g *Gate) Set(selected bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.selected = selected
}

// SetErr makes subsequent Selected calls return err.
func (g *Gate) SetErr(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.err = err
}

// Selected implements credential.Gate.
func (g *Gate) Selected(context.Context) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Calls++
	return g.selected, g.err
}
