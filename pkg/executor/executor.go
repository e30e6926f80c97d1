// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package executor implements the Graph Executor of §4.6: the main loop
// that advances a task node by node, selecting outgoing edges from node
// output, checkpointing and logging every hop, until it reaches "END".
package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/relanocode/agentengine/pkg/checkpoint"
	"github.com/relanocode/agentengine/pkg/graph"
	"github.com/relanocode/agentengine/pkg/logger"
	"github.com/relanocode/agentengine/pkg/metrics"
	"github.com/relanocode/agentengine/pkg/modelconfig"
	"github.com/relanocode/agentengine/pkg/node"
	"github.com/relanocode/agentengine/pkg/retry"
	"github.com/relanocode/agentengine/pkg/state"
	"github.com/relanocode/agentengine/pkg/tool"
)

// Executor runs one Graph for one task (§5: single-task-per-worker,
// cooperative within the worker). It is not internally parallel.
type Executor struct {
	Graph      *graph.Graph
	Checkpoint *checkpoint.Store
	Tasks      TaskStore
	Tools      *tool.Registry
	ModelCfg   *modelconfig.Resolver
	LLM        node.LLMService
	// Metrics is optional; a nil value disables instrumentation.
	Metrics *metrics.Metrics
}

// Submission is the upstream task-submission payload (§6).
type Submission struct {
	TaskID              string
	UserID              string
	SessionID           string
	InitialTaskGoal     string
	Usage               string
	PreprocessedFiles   state.PreprocessedFiles
	OriginImages        []string
	ConversationHistory []state.ChatMessage
	CurrentUser         string
}

// Run implements the §4.6 main loop. It creates or resumes RuntimeState,
// then dispatches node by node until the graph reaches "END" or a fatal
// error/cancellation stops it early.
func (e *Executor) Run(ctx context.Context, sub Submission) (*state.RuntimeState, error) {
	st, step, err := e.prepareState(ctx, sub)
	if err != nil {
		return nil, err
	}

	if _, err := e.Checkpoint.CreateWorkflowDirectory(sub.TaskID, sub.UserID, sub.SessionID); err != nil {
		return st, fmt.Errorf("executor: create workflow directory: %w", err)
	}

	// A task already marked CANCELLED keeps that status so the loop's first
	// status check stops it.
	if status, _ := e.Tasks.Status(ctx, sub.TaskID); status != StatusCancelled {
		if err := e.Tasks.SetStatus(ctx, sub.TaskID, StatusRunning); err != nil {
			logger.GetLogger().WarnContext(ctx, "executor: set status running failed", "task_id", sub.TaskID, "error", err)
		}
	}

	current := graph.NodePlanner
	var currentPlan node.PlannerOutput
	var currentToolOutput tool.Output
	var lastOutput map[string]any

	for current != graph.End {
		status, err := e.Tasks.Status(ctx, sub.TaskID)
		if err != nil {
			logger.GetLogger().WarnContext(ctx, "executor: status check failed", "task_id", sub.TaskID, "error", err)
		}
		if status == StatusCancelled {
			e.saveCheckpoint(ctx, st)
			return st, graph.ErrCancelled
		}

		n, ok := e.Graph.Nodes[current]
		if !ok {
			return e.fail(ctx, st, fmt.Errorf("%w: node %q not found", graph.ErrGraphNavigation, current))
		}

		var nodeType string
		var toolName string
		var output map[string]any

		switch {
		case n.Kind == graph.KindTool && n.IsOutputTool() && st.OutputToolInput != nil:
			nodeType = "output"
			toolName = n.Name
			out, err := e.runOutputTool(ctx, st, n, sub.TaskID)
			if err != nil {
				return e.fail(ctx, st, err)
			}
			output = out
			st.OutputToolInput = nil

		case n.Kind == graph.KindTool:
			nodeType = "call_tool"
			toolName = currentPlan.ToolName
			out := node.RunToolExecutor(ctx, st, e.services(sub.CurrentUser), currentPlan)
			currentToolOutput = out
			output = map[string]any{
				"status":         out.Status,
				"message":        out.Message,
				"output":         out.Output,
				"primary_result": out.PrimaryResult,
			}
			e.emitActionStep(ctx, sub.TaskID, step, "tool_call", map[string]any{"tool_name": toolName, "tool_input": currentPlan.ToolInput})
			step++

		case current == graph.NodePlanner:
			nodeType = "planner"
			plan, err := node.RunPlanner(ctx, st, e.services(sub.CurrentUser))
			if err != nil {
				return e.fail(ctx, st, fmt.Errorf("%w: %v", graph.ErrLLMSchema, err))
			}
			currentPlan = plan
			output = map[string]any{
				"thought":    plan.Thought,
				"action":     plan.Action,
				"tool_name":  plan.ToolName,
				"tool_input": plan.ToolInput,
			}

		case current == graph.NodeReflection:
			nodeType = "reflection"
			todoBefore := st.TodosSnapshot()
			refl, err := node.RunReflection(ctx, st, e.services(sub.CurrentUser), currentPlan, currentToolOutput)
			if err != nil {
				return e.fail(ctx, st, fmt.Errorf("%w: %v", graph.ErrLLMSchema, err))
			}
			output = map[string]any{
				"conclusion":    refl.Conclusion,
				"summary":       refl.Summary,
				"impact":        refl.Impact,
				"is_finished":   refl.IsFinished,
				"is_sufficient": refl.IsSufficient,
				"key_findings":  refl.KeyFindings,
			}
			if todoChanged(todoBefore, st.TodosSnapshot()) {
				e.emitActionStep(ctx, sub.TaskID, step, "todo_update", map[string]any{"todo": st.TodosSnapshot()})
				step++
			}

		case current == graph.NodeOutput:
			nodeType = "output_selector"
			decision := node.RunOutputSelector(ctx, st, e.services(sub.CurrentUser), currentPlan.OutputGuidance)
			toolName = decision.ToolName
			output = map[string]any{
				"tool_name":  decision.ToolName,
				"tool_input": decision.ToolInput,
			}

		default:
			return e.fail(ctx, st, fmt.Errorf("%w: unrecognized node %q of kind %q", graph.ErrGraphValidation, current, n.Kind))
		}

		lastOutput = output
		e.Metrics.RecordNodeHop(nodeType)

		e.saveCheckpoint(ctx, st)
		e.emitActionStep(ctx, sub.TaskID, step, logTypeFor(nodeType), withToolName(output, toolName))
		e.Checkpoint.SaveStep(sub.TaskID, step, nodeType, output, toolName)
		step++

		next, err := e.selectEdge(current, nodeType, currentPlan, output)
		if err != nil {
			return e.fail(ctx, st, err)
		}
		current = next
	}

	e.finalizeTask(ctx, sub.TaskID, st, lastOutput, step)
	return st, nil
}

// services builds the node.Services collaborator bundle for one call.
func (e *Executor) services(currentUser string) node.Services {
	return node.Services{
		LLM:         e.LLM,
		Tools:       e.Tools,
		ModelCfg:    e.ModelCfg,
		CurrentUser: currentUser,
	}
}

// prepareState creates fresh RuntimeState for a new task, or resumes one
// loaded from the Checkpoint Store for this exact task id (§8 S4: crash &
// resume continues the same conversation, it never pushes a new one — that
// is reserved for a brand-new task id that inherits a prior task's state
// from the same session, which the submission layer does by copying
// ConversationHistory into a fresh Submission rather than reusing this
// task id).
func (e *Executor) prepareState(ctx context.Context, sub Submission) (*state.RuntimeState, int, error) {
	existing, err := e.Checkpoint.Load(ctx, sub.TaskID)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", graph.ErrStateShape, err)
	}

	maxStep := e.Checkpoint.MaxStepOrder(ctx, sub.TaskID)

	if existing != nil {
		return existing, maxStep + 1, nil
	}

	st := state.New(sub.TaskID, sub.UserID, sub.SessionID, sub.InitialTaskGoal, sub.Usage)
	st.PreprocessedFiles = sub.PreprocessedFiles
	st.OriginImages = sub.OriginImages
	st.ChatHistory = append(st.ChatHistory, sub.ConversationHistory...)
	return st, maxStep + 1, nil
}

// runOutputTool dispatches an output-tool node through the Retry/Recovery
// executor of §4.7, including alternative-tool fallback, and on success
// stamps final_answer/title onto the node's local output map.
func (e *Executor) runOutputTool(ctx context.Context, st *state.RuntimeState, n *graph.Node, taskID string) (map[string]any, error) {
	cfg := e.ModelCfg.ToolConfig(n.Name)
	primary, err := e.Tools.Get(n.Name, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve output tool %q: %v", graph.ErrOutputToolExhausted, n.Name, err)
	}

	nodeCfg, err := n.DecodeConfig()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", graph.ErrGraphValidation, err)
	}

	alternatives := e.alternativeGenerators(n.Name, st, cfg)

	inputs := st.OutputToolInput
	if inputs == nil {
		inputs = map[string]any{}
	}

	result := retry.Run(ctx, primary, inputs, st, nodeCfg.MaxAttempts, alternatives)

	toolUsed := n.Name
	if result.AlternativeTried != "" {
		toolUsed = result.AlternativeTried
	}

	if !result.Succeeded {
		e.Metrics.RecordOutputRetryOutcome("exhausted")
		st.ErrorDetails = map[string]any{
			"retry_history": result.RetryHistory,
			"message":       result.Output.Message,
		}
		return nil, fmt.Errorf("%w: task %s", graph.ErrOutputToolExhausted, taskID)
	}

	if result.AlternativeTried != "" {
		e.Metrics.RecordOutputRetryOutcome("recovered_via_alternative")
	} else {
		e.Metrics.RecordOutputRetryOutcome("success")
	}

	st.RetryHistory = append(st.RetryHistory, result.RetryHistory...)

	// Fields below are the §4.7 "on eventual success" tool_result log shape:
	// retry_attempt, execution_time_ms, error_recovered, is_output_tool=true.
	output := map[string]any{
		"status":            result.Output.Status,
		"message":           result.Output.Message,
		"output":            result.Output.Output,
		"primary_result":    result.Output.PrimaryResult,
		"final_answer":      extractString(result.Output.Output, "final_answer", result.Output.PrimaryResult),
		"title":             extractString(result.Output.Output, "title", nil),
		"retry_attempt":     len(result.RetryHistory),
		"execution_time_ms": result.ExecutionTimeMs,
		"error_recovered":   result.ErrorRecovered,
		"is_output_tool":    true,
		"tool_name_used":    toolUsed,
	}
	return output, nil
}

// alternativeGenerators lists generator-category tools other than name, for
// the §4.7 alternative-tool fallback.
func (e *Executor) alternativeGenerators(name string, st *state.RuntimeState, cfg map[string]any) []tool.Tool {
	var out []tool.Tool
	for _, info := range e.Tools.List(tool.CategoryGenerator) {
		if info.Name == name {
			continue
		}
		t, err := e.Tools.Get(info.Name, cfg)
		if err != nil {
			continue
		}
		out = append(out, t)
	}
	return out
}

func extractString(output any, key string, fallback any) string {
	if m, ok := output.(map[string]any); ok {
		if v, ok := m[key].(string); ok {
			return v
		}
	}
	if s, ok := fallback.(string); ok {
		return s
	}
	return ""
}

// selectEdge implements the §3/§4.6 edge-navigation rules for the just-run
// node's output.
func (e *Executor) selectEdge(current, nodeType string, plan node.PlannerOutput, output map[string]any) (string, error) {
	edges := e.Graph.OutgoingEdges(current)

	var unconditional *graph.Edge
	for i := range edges {
		edge := &edges[i]
		if edge.ConditionKey == "" {
			unconditional = edge
			continue
		}
		if matchesEdge(edge.ConditionKey, current, nodeType, plan, output) {
			return edge.Target, nil
		}
	}
	if unconditional != nil {
		return unconditional.Target, nil
	}
	return "", fmt.Errorf("%w: no edge matched output of node %q", graph.ErrGraphNavigation, current)
}

func matchesEdge(key, current, nodeType string, plan node.PlannerOutput, output map[string]any) bool {
	switch {
	case current == graph.NodePlanner:
		if strings.HasPrefix(key, "CALL_TOOL:") {
			toolName := strings.TrimPrefix(key, "CALL_TOOL:")
			return plan.Action == node.ActionCallTool && plan.ToolName == toolName
		}
		return key == plan.Action
	case nodeType == "output_selector":
		if strings.HasPrefix(key, "OUTPUT:") {
			toolName := strings.TrimPrefix(key, "OUTPUT:")
			if v, ok := output["tool_name"].(string); ok {
				return v == toolName
			}
		}
		return false
	default:
		v, ok := output[key]
		return ok && v != nil
	}
}

// todoChanged reports whether the TODO list's shape or any item's status
// differs between two snapshots, gating the "todo: 1 if changed" ActionStep
// of §4.6.
func todoChanged(before, after []state.TodoItem) bool {
	if len(before) != len(after) {
		return true
	}
	for i := range before {
		if before[i].ID != after[i].ID || before[i].Status != after[i].Status {
			return true
		}
	}
	return false
}

// logTypeFor maps an internal node-type label to the ActionStep.log_type
// enum of §3. A regular tool node's tool_call row is emitted inline in the
// loop (see the call_tool case above), so its per-hop row here is the
// tool_result, giving §4.6's two rows per tool. The output selector's
// per-hop row is logged as tool_call and the output tool's as tool_result;
// planner and reflection keep their own log types.
func logTypeFor(nodeType string) string {
	switch nodeType {
	case "planner":
		return "planner"
	case "call_tool":
		return "tool_result"
	case "reflection":
		return "reflection"
	case "output_selector":
		return "tool_call"
	case "output":
		return "tool_result"
	default:
		return nodeType
	}
}

func withToolName(output map[string]any, toolName string) map[string]any {
	if toolName == "" {
		return output
	}
	out := make(map[string]any, len(output)+1)
	for k, v := range output {
		out[k] = v
	}
	out["tool_name"] = toolName
	return out
}

func (e *Executor) emitActionStep(ctx context.Context, taskID string, step int, logType string, details map[string]any) {
	e.Checkpoint.InsertActionStep(ctx, taskID, step, logType, details)
}

// saveCheckpoint wraps Checkpoint.Save with the agentengine_checkpoint_save_seconds
// observation (§2 DOMAIN STACK).
func (e *Executor) saveCheckpoint(ctx context.Context, st *state.RuntimeState) {
	start := time.Now()
	e.Checkpoint.Save(ctx, st)
	e.Metrics.ObserveCheckpointSave(time.Since(start))
}

// fail marks the task FAILED, saves a terminal ActionStep carrying the error
// payload (§7), and returns the error to the caller.
func (e *Executor) fail(ctx context.Context, st *state.RuntimeState, cause error) (*state.RuntimeState, error) {
	logger.GetLogger().ErrorContext(ctx, "executor: task failed", "task_id", st.TaskID, "error", cause)
	if err := e.Tasks.SetStatus(ctx, st.TaskID, StatusFailed); err != nil {
		logger.GetLogger().WarnContext(ctx, "executor: set status failed failed", "task_id", st.TaskID, "error", err)
	}
	st.ErrorDetails = map[string]any{"error": cause.Error()}
	e.saveCheckpoint(ctx, st)
	e.Checkpoint.InsertActionStep(ctx, st.TaskID, e.Checkpoint.MaxStepOrder(ctx, st.TaskID)+1, "tool_result", map[string]any{
		"error": cause.Error(),
	})
	if err := e.Tasks.SetOutput(ctx, st.TaskID, map[string]any{"error_details": st.ErrorDetails}); err != nil {
		logger.GetLogger().WarnContext(ctx, "executor: set output failed", "task_id", st.TaskID, "error", err)
	}
	return st, cause
}

// finalizeTask implements §4.6's terminal-state handling: marks the task
// COMPLETED, appends the final_answer action/chat entries when the last
// output carries them, persists output_data, and emits the final_answer
// ActionStep. Re-running finalizeTask on an already-completed task is a
// no-op per §8 (idempotence): guarded explicitly here, not merely assumed
// from single-call discipline in the caller.
func (e *Executor) finalizeTask(ctx context.Context, taskID string, st *state.RuntimeState, lastOutput map[string]any, step int) {
	if status, err := e.Tasks.Status(ctx, taskID); err == nil && status == StatusCompleted {
		return
	}

	finalAnswer, _ := lastOutput["final_answer"].(string)
	title, _ := lastOutput["title"].(string)

	if finalAnswer != "" && title != "" {
		st.AppendAction(state.ActionEntry{
			Type: state.ActionFinalAnswer,
			Data: map[string]any{"output": lastOutput, "title": title},
		})
		st.AppendChat("assistant", finalAnswer)
	}

	outputData := map[string]any{
		"final_conclusion": finalAnswer,
		"task_goal":        st.TaskGoal,
		"title":            title,
		"action_history":   st.ActionHistory(),
	}
	if len(st.RetryHistory) > 0 {
		outputData["retry_history"] = st.RetryHistory
	}
	if len(st.ErrorDetails) > 0 {
		outputData["error_details"] = st.ErrorDetails
	}

	e.Checkpoint.InsertActionStep(ctx, taskID, step, "final_answer", map[string]any{
		"final_conclusion": finalAnswer,
		"title":            title,
	})

	if err := e.Tasks.SetStatus(ctx, taskID, StatusCompleted); err != nil {
		logger.GetLogger().WarnContext(ctx, "executor: set status completed failed", "task_id", taskID, "error", err)
	}
	if err := e.Tasks.SetOutput(ctx, taskID, outputData); err != nil {
		logger.GetLogger().WarnContext(ctx, "executor: set output failed", "task_id", taskID, "error", err)
	}

	e.saveCheckpoint(ctx, st)
}
