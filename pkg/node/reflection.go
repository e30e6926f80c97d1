package node

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/relanocode/agentengine/pkg/llm"
	"github.com/relanocode/agentengine/pkg/state"
	"github.com/relanocode/agentengine/pkg/tool"
)

// reflectionKeywords is the tool-name -> keyword table used for the TODO
// promotion heuristic match (§4.5.3, §9 open question), carried over
// verbatim from the original source as a package-level table rather than
// hardcoded control flow. It is unexported, so only code in this package
// can change it.
var reflectionKeywords = map[string][]string{
	"TextGenerator":   {"分析", "总结", "生成", "提取", "整合", "评估"},
	"GoogleSearch":    {"搜索", "查找", "检索", "查询"},
	"knowledge_base":  {"知识库", "查询", "检索", "文档"},
}

// RunReflection implements the Reflection handler of §4.5.3.
func RunReflection(ctx context.Context, st *state.RuntimeState, svc Services, plan PlannerOutput, toolOutput tool.Output) (ReflectionOutput, error) {
	userPrompt := buildReflectionPrompt(st, plan, toolOutput)
	refl, err := llm.GenerateWithRetry[ReflectionOutput](ctx, svc.LLM, userPrompt, "Reflect on the tool result and decide whether the task is sufficiently addressed.")
	if err != nil {
		return ReflectionOutput{}, fmt.Errorf("node: reflection structured call: %w", err)
	}

	actionID := st.NextActionID()
	st.StoreFullAction(actionID, state.FullAction{
		Plan: map[string]any{
			"action":     plan.Action,
			"tool_name":  plan.ToolName,
			"tool_input": plan.ToolInput,
		},
		ToolOutput: map[string]any{
			"status":         toolOutput.Status,
			"message":        toolOutput.Message,
			"output":         toolOutput.Output,
			"primary_result": toolOutput.PrimaryResult,
		},
		Reflection: map[string]any{
			"conclusion":    refl.Conclusion,
			"summary":       refl.Summary,
			"impact":        refl.Impact,
			"is_finished":   refl.IsFinished,
			"is_sufficient": refl.IsSufficient,
			"key_findings":  refl.KeyFindings,
		},
	})

	st.AppendAction(state.ActionEntry{
		Type: state.ActionReflection,
		Data: map[string]any{
			"conclusion":    refl.Conclusion,
			"summary":       refl.Summary,
			"impact":        refl.Impact,
			"is_finished":   refl.IsFinished,
			"is_sufficient": refl.IsSufficient,
			"key_findings":  refl.KeyFindings,
			"action_id":     actionID,
		},
	})

	if plan.ToolName == "TodoGenerator" {
		if items, ok := toolOutput.Output.([]state.TodoItem); ok {
			st.ReplaceTodo(items)
		}
	}

	updateMatchingTodos(st, plan, toolOutput, refl)

	return refl, nil
}

func buildReflectionPrompt(st *state.RuntimeState, plan PlannerOutput, toolOutput tool.Output) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Goal: %s\n", st.TaskGoal)
	fmt.Fprintf(&b, "Plan action: %s tool=%s\n", plan.Action, plan.ToolName)
	fmt.Fprintf(&b, "Tool status: %s message: %s\n", toolOutput.Status, toolOutput.Message)
	return b.String()
}

// updateMatchingTodos implements the TODO-promotion/retry-scheduling side
// effect of §4.5.3.
func updateMatchingTodos(st *state.RuntimeState, plan PlannerOutput, toolOutput tool.Output, refl ReflectionOutput) {
	combinedText := strings.ToLower(fmt.Sprintf("%v %v %v %v", plan.ToolInput, toolOutput.Output, toolOutput.Message, refl.Conclusion))

	for _, item := range st.TodosSnapshot() {
		if item.Status != state.TodoProcessing {
			continue
		}
		if !matchesTodo(item, plan.ToolName) {
			continue
		}
		id := item.ID
		success := toolOutput.Status == tool.StatusSuccess

		if success && refl.IsSufficient && keywordsMatch(item, plan.ToolName, combinedText) && state.DependenciesSatisfied(item, st.TodosSnapshot()) {
			st.UpdateTodo(id, func(t *state.TodoItem) {
				t.Status = state.TodoCompleted
				now := time.Now().UTC()
				t.CompletedAt = &now
				if t.StartedAt != nil {
					t.ExecutionTime = now.Sub(*t.StartedAt).Seconds()
				}
			})
			continue
		}

		if !success {
			st.UpdateTodo(id, func(t *state.TodoItem) {
				t.Retry++
				t.ErrorHistory = append(t.ErrorHistory, toolOutput.Message)
				t.RetryAfter = backoffFor(t.Retry, toolOutput.Message)

				maxRetry := t.MaxRetry
				if maxRetry == 0 {
					maxRetry = 3
				}
				timeout := t.Timeout
				if timeout == 0 {
					timeout = 300
				}
				elapsed := 0.0
				if t.StartedAt != nil {
					elapsed = time.Since(*t.StartedAt).Seconds()
				}
				if t.Retry > maxRetry || elapsed > float64(timeout) {
					t.Status = state.TodoFailed
				} else {
					t.Status = state.TodoPending
				}
			})
		}
	}

	st.InvalidateDataCatalog()
}

func matchesTodo(item state.TodoItem, toolName string) bool {
	if containsString(item.SuggestedTools, toolName) {
		return true
	}
	_, declared := reflectionKeywords[toolName]
	return declared
}

func keywordsMatch(item state.TodoItem, toolName, combinedText string) bool {
	keywords, ok := reflectionKeywords[toolName]
	if !ok {
		// No declared keyword table for this tool: suggested_tools match is
		// sufficient on its own (the keyword heuristic is additive, not a
		// universal gate).
		return true
	}
	for _, kw := range keywords {
		if strings.Contains(combinedText, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// backoffFor implements the exponential backoff of §4.5.3: min(2^(retry-1), 8)
// seconds, doubled on rate-limit patterns, fixed at 1s on network patterns.
func backoffFor(retry int, errMessage string) float64 {
	lower := strings.ToLower(errMessage)
	base := math.Min(math.Pow(2, float64(retry-1)), 8)
	switch {
	case strings.Contains(lower, "rate limit") || strings.Contains(lower, "rate-limit") || strings.Contains(lower, "429"):
		return base * 2
	case strings.Contains(lower, "network") || strings.Contains(lower, "connection"):
		return 1
	default:
		return base
	}
}
