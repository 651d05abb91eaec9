// Package game holds the core play state of a single adventure: the player's
// inventory, quest, health, and location, plus the append-only story log that
// the browser client renders.
//
// State values are plain data; all mutation happens through Apply, which keeps
// the set semantics of the inventory in one place. The Log is safe for
// concurrent use because detached illustration goroutines patch segments while
// new turns are appended.
package game

import "slices"

// State is the complete structured game state of one session.
type State struct {
	// Inventory is an ordered set of item names. Order is insertion order;
	// duplicates never occur.
	Inventory []string `json:"inventory"`

	// Quest is the player's current objective.
	Quest string `json:"quest"`

	// Health is the player's health value.
	Health int `json:"health"`

	// Location is a short description of where the player currently is.
	Location string `json:"location"`
}

// Delta is the structured state change extracted from one narrative response.
type Delta struct {
	// AddItems are item names to insert into the inventory.
	AddItems []string

	// RemoveItems are item names to delete from the inventory. Removal wins over
	// addition within the same delta.
	RemoveItems []string

	// Quest, when non-nil, replaces the current quest. Nil leaves it unchanged;
	// there is no way to clear a quest through a delta.
	Quest *string
}

// IsZero reports whether the delta changes nothing.
func (d Delta) IsZero() bool {
	return len(d.AddItems) == 0 && len(d.RemoveItems) == 0 && d.Quest == nil
}

// Apply returns the state after applying d. The inventory is computed as
// (current ∪ AddItems) minus RemoveItems, so an item listed in both ends up
// absent. Adding an item already held is a no-op, as is removing one not held.
// The receiver is not modified.
func (s State) Apply(d Delta) State {
	out := s.Clone()

	for _, item := range d.AddItems {
		if item == "" || slices.Contains(out.Inventory, item) {
			continue
		}
		out.Inventory = append(out.Inventory, item)
	}
	for _, item := range d.RemoveItems {
		if i := slices.Index(out.Inventory, item); i >= 0 {
			out.Inventory = slices.Delete(out.Inventory, i, i+1)
		}
	}
	if d.Quest != nil {
		out.Quest = *d.Quest
	}

	return out
}

// HasItem reports whether the inventory contains item.
func (s State) HasItem(item string) bool {
	return slices.Contains(s.Inventory, item)
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	out := s
	out.Inventory = slices.Clone(s.Inventory)
	return out
}
