package checkpoint

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/relanocode/agentengine/pkg/graph"
)

// NormalizeActionHistory implements the migration leniency of §4.1/§9: the
// source tolerates a flat action_history (a single list of entries) by
// wrapping it into a single conversation, logging a warning. It fails only
// when elements are heterogeneous (neither a uniform list-of-entries nor a
// uniform list-of-lists). Operates on the raw decoded JSON value so it can
// run before RuntimeState's own strict [][]ActionEntry unmarshal.
func NormalizeActionHistory(raw []byte) ([]byte, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return raw, err
	}

	ah, ok := doc["action_history"]
	if !ok || ah == nil {
		doc["action_history"] = [][]any{{}}
		return json.Marshal(doc)
	}

	list, ok := ah.([]any)
	if !ok {
		return raw, fmt.Errorf("%w: action_history is not a list", graph.ErrStateShape)
	}
	if len(list) == 0 {
		doc["action_history"] = [][]any{{}}
		return json.Marshal(doc)
	}

	// Already nested: every element is itself a list.
	allLists := true
	allMaps := true
	for _, el := range list {
		switch el.(type) {
		case []any:
			allMaps = false
		case map[string]any:
			allLists = false
		default:
			allLists = false
			allMaps = false
		}
	}

	switch {
	case allLists:
		doc["action_history"] = list
	case allMaps:
		slog.Warn("checkpoint: action_history was flat, wrapping into a single conversation")
		doc["action_history"] = []any{list}
	default:
		return raw, fmt.Errorf("%w: action_history has heterogeneous elements", graph.ErrStateShape)
	}

	return json.Marshal(doc)
}
