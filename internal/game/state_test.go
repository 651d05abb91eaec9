package game

import (
	"slices"
	"testing"
)

// TestApply_AddItems checks that new items land in the inventory in order and
// duplicates are dropped.
func TestApply_AddItems(t *testing.T) {
	s := State{Inventory: []string{"rope"}}

	got := s.Apply(Delta{AddItems: []string{"torch", "rope", "torch"}})

	want := []string{"rope", "torch"}
	if !slices.Equal(got.Inventory, want) {
		t.Errorf("Apply: expected inventory %v, got %v", want, got.Inventory)
	}
}

// TestApply_RemoveWins checks that an item added and removed in the same delta
// ends up absent.
func TestApply_RemoveWins(t *testing.T) {
	s := State{}

	got := s.Apply(Delta{
		AddItems:    []string{"cursed amulet"},
		RemoveItems: []string{"cursed amulet"},
	})

	if got.HasItem("cursed amulet") {
		t.Errorf("Apply: expected %q to be absent after add+remove, got inventory %v",
			"cursed amulet", got.Inventory)
	}
}

// TestApply_RemoveAbsent checks that removing an item not held is a no-op.
func TestApply_RemoveAbsent(t *testing.T) {
	s := State{Inventory: []string{"torch"}}

	got := s.Apply(Delta{RemoveItems: []string{"lantern"}})

	if !slices.Equal(got.Inventory, []string{"torch"}) {
		t.Errorf("Apply: expected inventory unchanged, got %v", got.Inventory)
	}
}

// TestApply_Quest checks quest replacement semantics: non-nil replaces, nil
// leaves the current quest in place.
func TestApply_Quest(t *testing.T) {
	s := State{Quest: "Escape the dungeon"}

	got := s.Apply(Delta{})
	if got.Quest != "Escape the dungeon" {
		t.Errorf("Apply: nil quest should not change quest, got %q", got.Quest)
	}

	next := "Find the hidden library"
	got = s.Apply(Delta{Quest: &next})
	if got.Quest != next {
		t.Errorf("Apply: expected quest %q, got %q", next, got.Quest)
	}

	empty := ""
	got = s.Apply(Delta{Quest: &empty})
	if got.Quest != "" {
		t.Errorf("Apply: non-nil empty quest should replace, got %q", got.Quest)
	}
}

// TestApply_RustyKeyScenario walks the two-turn sequence: find a rusty key,
// then use it on a locked gate. The key must appear after turn one and be gone
// after turn two.
func TestApply_RustyKeyScenario(t *testing.T) {
	s := State{Quest: "Escape the dungeon", Health: 100, Location: "Cell block"}

	s = s.Apply(Delta{AddItems: []string{"rusty key"}})
	if !s.HasItem("rusty key") {
		t.Fatalf("turn 1: expected rusty key in inventory, got %v", s.Inventory)
	}

	newQuest := "Explore the courtyard"
	s = s.Apply(Delta{RemoveItems: []string{"rusty key"}, Quest: &newQuest})
	if s.HasItem("rusty key") {
		t.Errorf("turn 2: expected rusty key to be consumed, got %v", s.Inventory)
	}
	if s.Quest != newQuest {
		t.Errorf("turn 2: expected quest %q, got %q", newQuest, s.Quest)
	}
}

// TestApply_DoesNotMutateReceiver checks that Apply is a pure function of its
// receiver.
func TestApply_DoesNotMutateReceiver(t *testing.T) {
	s := State{Inventory: []string{"torch"}}

	_ = s.Apply(Delta{AddItems: []string{"rope"}, RemoveItems: []string{"torch"}})

	if !slices.Equal(s.Inventory, []string{"torch"}) {
		t.Errorf("Apply: receiver mutated, inventory now %v", s.Inventory)
	}
}

// TestDelta_IsZero checks zero-delta detection.
func TestDelta_IsZero(t *testing.T) {
	if !(Delta{}).IsZero() {
		t.Error("expected empty delta to be zero")
	}
	q := "quest"
	for name, d := range map[string]Delta{
		"add":    {AddItems: []string{"x"}},
		"remove": {RemoveItems: []string{"x"}},
		"quest":  {Quest: &q},
	} {
		if d.IsZero() {
			t.Errorf("%s: expected non-zero delta", name)
		}
	}
}
