package node

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/relanocode/agentengine/pkg/llm"
	"github.com/relanocode/agentengine/pkg/state"
	"github.com/relanocode/agentengine/pkg/tool"
)

// RunOutputSelector implements the Output Selector handler of §4.5.4.
func RunOutputSelector(ctx context.Context, st *state.RuntimeState, svc Services, guidance *OutputGuidance) OutputToolDecision {
	generators := svc.Tools.List(tool.CategoryGenerator) // already sorted by name

	decision, err := selectViaLLM(ctx, svc, generators, guidance, st.TaskGoal)
	if err != nil || !toolListContains(generators, decision.ToolName) {
		decision = defaultDecision(generators)
	}

	serialized, marshalErr := json.Marshal(st)
	// The generator tools take output_guidance as a string, so the guidance
	// is passed as its JSON text ("" when the plan carried none).
	guidanceText := ""
	if guidance != nil {
		if data, err := json.Marshal(guidance); err == nil {
			guidanceText = string(data)
		}
	}
	input := map[string]any{"output_guidance": guidanceText}
	if marshalErr == nil {
		var stateMap map[string]any
		if json.Unmarshal(serialized, &stateMap) == nil {
			input["state"] = stateMap
		}
	}
	decision.ToolInput = input

	st.OutputToolInput = input
	return decision
}

func selectViaLLM(ctx context.Context, svc Services, generators []tool.Info, guidance *OutputGuidance, goal string) (OutputToolDecision, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Goal: %s\n", goal)
	fmt.Fprintf(&b, "Guidance: %+v\n", guidance)
	b.WriteString("Available output tools:\n")
	for _, g := range generators {
		fmt.Fprintf(&b, "- %s: %s\n", g.Name, g.Description)
	}

	return llm.GenerateWithRetry[OutputToolDecision](ctx, svc.LLM, b.String(), "Choose exactly one output tool by name.")
}

// defaultDecision implements the "on LLM failure or unparseable selection"
// fallback of §4.5.4: TextGenerator when present, else the first generator
// in the (name-sorted, per §9) list.
func defaultDecision(generators []tool.Info) OutputToolDecision {
	for _, g := range generators {
		if g.Name == "TextGenerator" {
			return OutputToolDecision{ToolName: g.Name}
		}
	}
	if len(generators) > 0 {
		return OutputToolDecision{ToolName: generators[0].Name}
	}
	return OutputToolDecision{}
}

func toolListContains(list []tool.Info, name string) bool {
	for _, t := range list {
		if t.Name == name {
			return true
		}
	}
	return false
}
