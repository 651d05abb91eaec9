package narrator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/orneryhippo/infinite-adventure/internal/game"
)

// payload is the wire contract with the model. new_quest is the only optional
// field; everything else must be present and well formed or the whole response
// is rejected in favor of the fallback.
type payload struct {
	Narrative        string   `json:"narrative"`
	InventoryAdd     []string `json:"inventory_add"`
	InventoryRemove  []string `json:"inventory_remove"`
	NewQuest         *string  `json:"new_quest"`
	ImagePrompt      string   `json:"image_prompt"`
	SuggestedChoices []string `json:"suggested_choices"`
}

// parseResult extracts and validates the JSON payload from raw model output.
func parseResult(raw string) (Result, error) {
	body, err := extractJSON(raw)
	if err != nil {
		return Result{}, err
	}

	var p payload
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return Result{}, fmt.Errorf("narrator: unmarshal payload: %w", err)
	}

	if strings.TrimSpace(p.Narrative) == "" {
		return Result{}, fmt.Errorf("narrator: payload missing narrative")
	}
	if strings.TrimSpace(p.ImagePrompt) == "" {
		return Result{}, fmt.Errorf("narrator: payload missing image_prompt")
	}
	choices := trimAll(p.SuggestedChoices)
	if len(choices) == 0 {
		return Result{}, fmt.Errorf("narrator: payload missing suggested_choices")
	}

	return Result{
		Narrative: strings.TrimSpace(p.Narrative),
		Delta: game.Delta{
			AddItems:    trimAll(p.InventoryAdd),
			RemoveItems: trimAll(p.InventoryRemove),
			Quest:       p.NewQuest,
		},
		ImagePrompt: strings.TrimSpace(p.ImagePrompt),
		Choices:     choices,
	}, nil
}

// extractJSON returns the JSON object embedded in raw. Models regularly wrap
// the object in markdown fences or lead with prose despite instructions, so
// this cuts from the first '{' to the last '}'.
func extractJSON(raw string) (string, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return "", fmt.Errorf("narrator: no JSON object in model output")
	}
	return raw[start : end+1], nil
}

// trimAll returns the non-empty trimmed elements of items.
func trimAll(items []string) []string {
	var out []string
	for _, item := range items {
		if s := strings.TrimSpace(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}
