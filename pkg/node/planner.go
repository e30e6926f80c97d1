package node

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/relanocode/agentengine/pkg/dataref"
	"github.com/relanocode/agentengine/pkg/llm"
	"github.com/relanocode/agentengine/pkg/state"
	"github.com/relanocode/agentengine/pkg/tool"
)

// RunPlanner implements the Planner handler of §4.5.1.
func RunPlanner(ctx context.Context, st *state.RuntimeState, svc Services) (PlannerOutput, error) {
	systemPrompt := buildPlannerSystemPrompt(svc.Tools)
	userPrompt := buildPlannerUserPrompt(st)

	out, err := llm.GenerateWithRetry[PlannerOutput](ctx, svc.LLM, userPrompt, systemPrompt)
	if err != nil {
		return PlannerOutput{}, fmt.Errorf("node: planner structured call: %w", err)
	}

	if out.Action == ActionFinish {
		out.FinalAnswer = ""
		out.Title = ""
	}

	if out.Action == ActionCallTool && out.ToolName == "TodoGenerator" {
		if out.ToolInput == nil {
			out.ToolInput = map[string]any{}
		}
		out.ToolInput["available_tools"] = libsToolNames(svc.Tools)
	}

	if out.ToolInput != nil {
		out.ToolInput = dataref.Resolve(out.ToolInput, st).(map[string]any)
	}

	if out.Action == ActionCallTool {
		promoteMatchingTodo(st, out.ToolName)
	}

	st.AppendAction(state.ActionEntry{
		Type: state.ActionPlan,
		Data: map[string]any{
			"output":     out,
			"action":     out.Action,
			"tool_name":  out.ToolName,
			"tool_input": out.ToolInput,
		},
	})

	return out, nil
}

func buildPlannerSystemPrompt(tools *tool.Registry) string {
	var b strings.Builder
	b.WriteString("You are a task-planning agent. Available tools:\n")
	for _, info := range tools.List(tool.CategoryLibs) {
		fmt.Fprintf(&b, "- %s: %s\n", info.Name, info.Description)
	}
	return b.String()
}

func buildPlannerUserPrompt(st *state.RuntimeState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Goal: %s\n", st.TaskGoal)
	if len(st.UserContext) > 0 {
		fmt.Fprintf(&b, "User context: %v\n", st.UserContext)
	}
	for _, msg := range st.ChatHistory {
		fmt.Fprintf(&b, "[%s] %s\n", msg.Role, msg.Content)
	}
	b.WriteString(formatActionHistory(st.CurrentConversation()))
	b.WriteString(st.DataCatalog())
	b.WriteString(st.TodoSection())
	return b.String()
}

// formatActionHistory renders pairs of plans and reflections, per §4.5.1
// ("a detailed formatted action history (pairs of plans and reflections)").
func formatActionHistory(entries []state.ActionEntry) string {
	var b strings.Builder
	b.WriteString("Action history:\n")
	for _, e := range entries {
		switch e.Type {
		case state.ActionPlan:
			fmt.Fprintf(&b, "  PLAN: %v\n", e.Data["action"])
		case state.ActionReflection:
			fmt.Fprintf(&b, "  REFLECTION: %v\n", e.Data["conclusion"])
		}
	}
	return b.String()
}

func libsToolNames(tools *tool.Registry) []string {
	var names []string
	for _, info := range tools.List(tool.CategoryLibs) {
		if info.Name == "TodoGenerator" {
			continue
		}
		names = append(names, info.Name)
	}
	sort.Strings(names)
	return names
}

// promoteMatchingTodo transitions a pending TODO whose suggested_tools
// includes toolName, and whose dependencies are satisfied, to "processing"
// (§4.5.1).
func promoteMatchingTodo(st *state.RuntimeState, toolName string) {
	for _, item := range st.TodosSnapshot() {
		if item.Status != state.TodoPending {
			continue
		}
		if !containsString(item.SuggestedTools, toolName) {
			continue
		}
		if !state.DependenciesSatisfied(item, st.TodosSnapshot()) {
			continue
		}
		id := item.ID
		st.UpdateTodo(id, func(t *state.TodoItem) {
			t.Status = state.TodoProcessing
			now := time.Now().UTC()
			t.StartedAt = &now
		})
		return
	}
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
