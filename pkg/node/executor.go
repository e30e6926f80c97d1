package node

import (
	"context"
	"fmt"

	"github.com/relanocode/agentengine/pkg/state"
	"github.com/relanocode/agentengine/pkg/tool"
)

// RunToolExecutor implements the Tool Executor handler of §4.5.2: resolves
// the tool from the registry, instantiates it with its Model-Config-Resolver
// config, injects runtime-state/user-id when requested, invokes it, and
// appends the tool_output action entry. It never returns a Go error for a
// tool-side failure — that is fabricated into a ToolOutput of status=error
// so reflection can decide the next step (§7 tool-exec is non-fatal).
func RunToolExecutor(ctx context.Context, st *state.RuntimeState, svc Services, plan PlannerOutput) tool.Output {
	cfg := svc.ModelCfg.ToolConfig(plan.ToolName)
	t, err := svc.Tools.Get(plan.ToolName, cfg)
	if err != nil {
		out := tool.ErrorOutput(fmt.Sprintf("tool executor: %v", err))
		appendToolOutput(st, plan.ToolName, out)
		return out
	}

	inputs := plan.ToolInput
	if inputs == nil {
		inputs = map[string]any{}
	}
	if t.RequiresStateAccess() {
		inputs[tool.StateInjectionKey] = st
	}
	inputs["__user_id__"] = svc.CurrentUser

	out := tool.ExecuteWithLogging(ctx, t, inputs, st)
	appendToolOutput(st, plan.ToolName, out)
	return out
}

func appendToolOutput(st *state.RuntimeState, toolName string, out tool.Output) {
	st.AppendAction(state.ActionEntry{
		Type:     state.ActionToolOutput,
		ToolName: toolName,
		Data: map[string]any{
			"status":         out.Status,
			"message":        out.Message,
			"output":         out.Output,
			"primary_result": out.PrimaryResult,
			"type":           out.Type,
			"metrics":        out.Metrics,
			"raw_data":       out.RawData,
			"metadata":       out.Metadata,
		},
	})
}
