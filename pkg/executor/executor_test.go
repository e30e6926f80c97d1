package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relanocode/agentengine/pkg/checkpoint"
	"github.com/relanocode/agentengine/pkg/graph"
	"github.com/relanocode/agentengine/pkg/llm"
	"github.com/relanocode/agentengine/pkg/modelconfig"
	"github.com/relanocode/agentengine/pkg/node"
	"github.com/relanocode/agentengine/pkg/state"
	"github.com/relanocode/agentengine/pkg/tool"
)

// finishFirstGraph is the minimal "planner immediately FINISHes" shape of
// §8's first testable property: one planner step, one output-selector
// step, one output-tool step.
func finishFirstGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g := &graph.Graph{
		Name: "finish-first",
		NodeList: []*graph.Node{
			{Name: graph.NodePlanner, Kind: graph.KindRouter},
			{Name: graph.NodeOutput, Kind: graph.KindRouter},
			{Name: "TextGenerator", Kind: graph.KindTool, Config: map[string]any{"is_output_tool": true}},
		},
		EdgeList: []graph.Edge{
			{Source: graph.NodePlanner, Target: graph.NodeOutput, ConditionKey: "FINISH"},
			{Source: graph.NodeOutput, Target: "TextGenerator", ConditionKey: "OUTPUT:TextGenerator"},
			{Source: "TextGenerator", Target: graph.End},
		},
	}
	require.NoError(t, g.Compile())
	return g
}

// roundTripGraph is the §8 S1 happy-path shape: planner -> {CALL_TOOL:Summarizer}
// -> reflection -> planner -> {FINISH} -> output -> {OUTPUT:TextGenerator} -> END.
func roundTripGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g := &graph.Graph{
		Name: "round-trip",
		NodeList: []*graph.Node{
			{Name: graph.NodePlanner, Kind: graph.KindRouter},
			{Name: "Summarizer", Kind: graph.KindTool},
			{Name: graph.NodeReflection, Kind: graph.KindRouter},
			{Name: graph.NodeOutput, Kind: graph.KindRouter},
			{Name: "TextGenerator", Kind: graph.KindTool, Config: map[string]any{"is_output_tool": true}},
		},
		EdgeList: []graph.Edge{
			{Source: graph.NodePlanner, Target: "Summarizer", ConditionKey: "CALL_TOOL:Summarizer"},
			{Source: graph.NodePlanner, Target: graph.NodeOutput, ConditionKey: "FINISH"},
			{Source: "Summarizer", Target: graph.NodeReflection},
			{Source: graph.NodeReflection, Target: graph.NodePlanner},
			{Source: graph.NodeOutput, Target: "TextGenerator", ConditionKey: "OUTPUT:TextGenerator"},
			{Source: "TextGenerator", Target: graph.End},
		},
	}
	require.NoError(t, g.Compile())
	return g
}

func newTestExecutor(t *testing.T, g *graph.Graph, scripted *llm.ScriptedService) (*Executor, *InMemoryTaskStore) {
	t.Helper()
	tools := tool.NewRegistry()
	require.NoError(t, tool.RegisterReferenceTools(tools))

	modelCfg := modelconfig.New("")
	tasks := NewInMemoryTaskStore()

	e := &Executor{
		Graph:      g,
		Checkpoint: checkpoint.NewStore(t.TempDir(), nil),
		Tasks:      tasks,
		Tools:      tools,
		ModelCfg:   modelCfg,
		LLM:        scripted,
	}
	return e, tasks
}

func TestRun_PlannerImmediatelyFinishes(t *testing.T) {
	scripted := llm.NewScriptedService("test-model")
	scripted.
		ScriptValue(node.PlannerOutput{
			Action:         node.ActionFinish,
			OutputGuidance: &node.OutputGuidance{KeyPoints: []string{"done"}},
		}).
		ScriptValue(node.OutputToolDecision{ToolName: "TextGenerator"})

	g := finishFirstGraph(t)
	e, tasks := newTestExecutor(t, g, scripted)

	st, err := e.Run(context.Background(), Submission{
		TaskID:          "task-1",
		UserID:          "user-1",
		SessionID:       "session-1",
		InitialTaskGoal: "summarize nothing in particular",
	})
	require.NoError(t, err)

	status, err := tasks.Status(context.Background(), "task-1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, status)

	output := tasks.Output("task-1")
	require.NotNil(t, output)
	assert.NotEmpty(t, output["final_conclusion"])

	history := st.ActionHistory()
	require.Len(t, history, 1)
	assert.Equal(t, state.ActionPlan, history[0][0].Type)
	assert.Equal(t, state.ActionFinalAnswer, history[0][len(history[0])-1].Type)
}

func TestRun_ToolCallReflectThenFinish(t *testing.T) {
	scripted := llm.NewScriptedService("test-model")
	scripted.
		ScriptValue(node.PlannerOutput{
			Action:    node.ActionCallTool,
			ToolName:  "Summarizer",
			ToolInput: map[string]any{"source": "a long document body"},
		}).
		ScriptValue(node.ReflectionOutput{
			Conclusion:   "summary captured",
			IsFinished:   true,
			IsSufficient: true,
		}).
		ScriptValue(node.PlannerOutput{
			Action:         node.ActionFinish,
			OutputGuidance: &node.OutputGuidance{KeyPoints: []string{"summary captured"}},
		}).
		ScriptValue(node.OutputToolDecision{ToolName: "TextGenerator"})

	g := roundTripGraph(t)
	e, tasks := newTestExecutor(t, g, scripted)

	_, err := e.Run(context.Background(), Submission{
		TaskID:          "task-2",
		UserID:          "user-1",
		SessionID:       "session-1",
		InitialTaskGoal: "summarize the attached notes",
	})
	require.NoError(t, err)

	status, _ := tasks.Status(context.Background(), "task-2")
	assert.Equal(t, StatusCompleted, status)

	output := tasks.Output("task-2")
	require.NotNil(t, output)
	assert.NotEmpty(t, output["final_conclusion"])
}

func TestRun_CrashAndResumeContinuesSameTask(t *testing.T) {
	tools := tool.NewRegistry()
	require.NoError(t, tool.RegisterReferenceTools(tools))
	modelCfg := modelconfig.New("")
	store := checkpoint.NewStore(t.TempDir(), nil)
	g := finishFirstGraph(t)

	// First "worker": plans, then the process dies before the output step
	// completes. Simulate by persisting state up through the planner hop
	// directly into the task's workflow directory, the way a crash after the
	// planner's checkpoint would leave things for the next worker to find.
	_, err := store.CreateWorkflowDirectory("task-3", "user-1", "session-1")
	require.NoError(t, err)
	st := state.New("task-3", "user-1", "session-1", "goal", "")
	st.AppendAction(state.ActionEntry{Type: state.ActionPlan, Data: map[string]any{"action": "FINISH"}})
	store.Save(context.Background(), st)
	store.SaveStep("task-3", 1, "planner", map[string]any{"action": "FINISH"}, "")

	// The resumed run starts again at the planner, then the output selector.
	scripted := llm.NewScriptedService("test-model")
	scripted.
		ScriptValue(node.PlannerOutput{
			Action:         node.ActionFinish,
			OutputGuidance: &node.OutputGuidance{KeyPoints: []string{"done"}},
		}).
		ScriptValue(node.OutputToolDecision{ToolName: "TextGenerator"})

	tasks := NewInMemoryTaskStore()
	e := &Executor{
		Graph:      g,
		Checkpoint: store,
		Tasks:      tasks,
		Tools:      tools,
		ModelCfg:   modelCfg,
		LLM:        scripted,
	}

	resumed, err := e.Run(context.Background(), Submission{
		TaskID:          "task-3",
		UserID:          "user-1",
		SessionID:       "session-1",
		InitialTaskGoal: "goal",
	})
	require.NoError(t, err)

	// Resume must not push a fresh conversation onto action_history: the
	// single inner list from before the crash is reused.
	require.Len(t, resumed.ActionHistory(), 1)

	status, _ := tasks.Status(context.Background(), "task-3")
	assert.Equal(t, StatusCompleted, status)
}

func TestRun_CancelledBetweenHopsStopsTheLoop(t *testing.T) {
	scripted := llm.NewScriptedService("test-model")
	scripted.ScriptValue(node.PlannerOutput{Action: node.ActionFinish})

	g := finishFirstGraph(t)
	e, tasks := newTestExecutor(t, g, scripted)

	require.NoError(t, tasks.SetStatus(context.Background(), "task-4", StatusCancelled))

	_, err := e.Run(context.Background(), Submission{
		TaskID:          "task-4",
		UserID:          "user-1",
		SessionID:       "session-1",
		InitialTaskGoal: "goal",
	})
	assert.ErrorIs(t, err, graph.ErrCancelled)
}

func TestRun_OutputToolExhaustedFailsTask(t *testing.T) {
	scripted := llm.NewScriptedService("test-model")
	scripted.
		ScriptValue(node.PlannerOutput{Action: node.ActionFinish}).
		// Only used to build the executor; scripted2 below drives the run.
		ScriptValue(node.OutputToolDecision{ToolName: "TextGenerator"})

	// RunOutputSelector rejects "MissingTool" (not a registered generator)
	// and falls back to TextGenerator, whose edge leads to an output node
	// naming a tool the registry does not have, so the output tool cannot
	// be resolved.

	g := &graph.Graph{
		Name: "no-output-tool",
		NodeList: []*graph.Node{
			{Name: graph.NodePlanner, Kind: graph.KindRouter},
			{Name: graph.NodeOutput, Kind: graph.KindRouter},
			{Name: "MissingTool", Kind: graph.KindTool, Config: map[string]any{"is_output_tool": true}},
		},
		EdgeList: []graph.Edge{
			{Source: graph.NodePlanner, Target: graph.NodeOutput, ConditionKey: "FINISH"},
			{Source: graph.NodeOutput, Target: "MissingTool", ConditionKey: "OUTPUT:TextGenerator"},
			{Source: "MissingTool", Target: graph.End},
		},
	}
	require.NoError(t, g.Compile())

	e, tasks := newTestExecutor(t, g, scripted)
	scripted2 := llm.NewScriptedService("test-model")
	scripted2.
		ScriptValue(node.PlannerOutput{Action: node.ActionFinish}).
		ScriptValue(node.OutputToolDecision{ToolName: "MissingTool"})
	e.LLM = scripted2

	_, err := e.Run(context.Background(), Submission{
		TaskID:          "task-5",
		UserID:          "user-1",
		SessionID:       "session-1",
		InitialTaskGoal: "goal",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, graph.ErrOutputToolExhausted)

	status, _ := tasks.Status(context.Background(), "task-5")
	assert.Equal(t, StatusFailed, status)
}
