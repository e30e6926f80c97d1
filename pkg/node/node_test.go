package node

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relanocode/agentengine/pkg/llm"
	"github.com/relanocode/agentengine/pkg/modelconfig"
	"github.com/relanocode/agentengine/pkg/state"
	"github.com/relanocode/agentengine/pkg/tool"
)

func newTestServices(t *testing.T) (Services, *llm.ScriptedService) {
	t.Helper()
	r := tool.NewRegistry()
	require.NoError(t, tool.RegisterReferenceTools(r))
	svc := llm.NewScriptedService("gpt-4o-test")
	return Services{
		LLM:         svc,
		Tools:       r,
		ModelCfg:    modelconfig.New(""),
		CurrentUser: "user-1",
	}, svc
}

func TestRunPlanner_CallToolAppendsPlanEntry(t *testing.T) {
	svc, scripted := newTestServices(t)
	st := state.New("t1", "u1", "s1", "summarize the report", "")

	scripted.ScriptValue(PlannerOutput{
		Thought:  "need a summary",
		Action:   ActionCallTool,
		ToolName: "Summarizer",
		ToolInput: map[string]any{
			"source": "raw text",
		},
	})

	out, err := RunPlanner(context.Background(), st, svc)
	require.NoError(t, err)
	assert.Equal(t, ActionCallTool, out.Action)

	conv := st.CurrentConversation()
	require.Len(t, conv, 1)
	assert.Equal(t, state.ActionPlan, conv[0].Type)
}

func TestRunPlanner_TodoGeneratorAutoFillsAvailableTools(t *testing.T) {
	svc, scripted := newTestServices(t)
	st := state.New("t1", "u1", "s1", "goal", "")

	scripted.ScriptValue(PlannerOutput{
		Action:   ActionCallTool,
		ToolName: "TodoGenerator",
	})

	out, err := RunPlanner(context.Background(), st, svc)
	require.NoError(t, err)
	tools, ok := out.ToolInput["available_tools"].([]string)
	require.True(t, ok)
	assert.NotContains(t, tools, "TodoGenerator")
}

func TestRunToolExecutor_AppendsToolOutputEntry(t *testing.T) {
	svc, _ := newTestServices(t)
	st := state.New("t1", "u1", "s1", "goal", "")

	plan := PlannerOutput{Action: ActionCallTool, ToolName: "Summarizer", ToolInput: map[string]any{"source": "hello world"}}
	out := RunToolExecutor(context.Background(), st, svc, plan)
	assert.Equal(t, tool.StatusSuccess, out.Status)

	conv := st.CurrentConversation()
	require.Len(t, conv, 1)
	assert.Equal(t, state.ActionToolOutput, conv[0].Type)
	assert.Equal(t, "Summarizer", conv[0].ToolName)
}

func TestRunToolExecutor_UnknownTool_NeverRaises(t *testing.T) {
	svc, _ := newTestServices(t)
	st := state.New("t1", "u1", "s1", "goal", "")

	plan := PlannerOutput{Action: ActionCallTool, ToolName: "DoesNotExist"}
	out := RunToolExecutor(context.Background(), st, svc, plan)
	assert.Equal(t, tool.StatusError, out.Status)
}

func TestRunReflection_StoresFullActionAndAppendsEntry(t *testing.T) {
	svc, scripted := newTestServices(t)
	st := state.New("t1", "u1", "s1", "goal", "")

	plan := PlannerOutput{Action: ActionCallTool, ToolName: "Summarizer"}
	toolOutput := tool.Output{Status: tool.StatusSuccess, Message: "ok"}

	scripted.ScriptValue(ReflectionOutput{
		Conclusion:   "done",
		IsFinished:   true,
		IsSufficient: true,
	})

	refl, err := RunReflection(context.Background(), st, svc, plan, toolOutput)
	require.NoError(t, err)
	assert.True(t, refl.IsSufficient)

	conv := st.CurrentConversation()
	require.Len(t, conv, 1)
	assert.Equal(t, state.ActionReflection, conv[0].Type)
	actionID, _ := conv[0].Data["action_id"].(string)
	assert.NotEmpty(t, actionID)

	fa, ok := st.LookupFullAction(actionID)
	require.True(t, ok)
	assert.Equal(t, "Summarizer", fa.Plan["tool_name"])
}

func TestRunReflection_PromotesTodoOnSuccess(t *testing.T) {
	svc, scripted := newTestServices(t)
	st := state.New("t1", "u1", "s1", "goal", "")
	st.ReplaceTodo([]state.TodoItem{
		{ID: "1", Task: "find facts", Status: state.TodoProcessing, SuggestedTools: []string{"Summarizer"}},
	})

	plan := PlannerOutput{Action: ActionCallTool, ToolName: "Summarizer"}
	toolOutput := tool.Output{Status: tool.StatusSuccess}
	scripted.ScriptValue(ReflectionOutput{IsSufficient: true, Conclusion: "got it"})

	_, err := RunReflection(context.Background(), st, svc, plan, toolOutput)
	require.NoError(t, err)

	snap := st.TodosSnapshot()
	assert.Equal(t, state.TodoCompleted, snap[0].Status)
}

func TestRunReflection_SchedulesRetryOnFailure(t *testing.T) {
	svc, scripted := newTestServices(t)
	st := state.New("t1", "u1", "s1", "goal", "")
	st.ReplaceTodo([]state.TodoItem{
		{ID: "1", Task: "find facts", Status: state.TodoProcessing, SuggestedTools: []string{"Summarizer"}},
	})

	plan := PlannerOutput{Action: ActionCallTool, ToolName: "Summarizer"}
	toolOutput := tool.Output{Status: tool.StatusError, Message: "network timeout"}
	scripted.ScriptValue(ReflectionOutput{IsSufficient: false, Conclusion: "failed"})

	_, err := RunReflection(context.Background(), st, svc, plan, toolOutput)
	require.NoError(t, err)

	snap := st.TodosSnapshot()
	assert.Equal(t, state.TodoPending, snap[0].Status)
	assert.Equal(t, 1, snap[0].Retry)
	assert.Equal(t, 1.0, snap[0].RetryAfter)
}

func TestRunOutputSelector_DefaultsToTextGeneratorOnUnparseableSelection(t *testing.T) {
	svc, scripted := newTestServices(t)
	st := state.New("t1", "u1", "s1", "goal", "")
	scripted.ScriptRaw([]byte("garbage"))
	scripted.ScriptRaw([]byte("still garbage"))

	decision := RunOutputSelector(context.Background(), st, svc, &OutputGuidance{})
	assert.Equal(t, "TextGenerator", decision.ToolName)
	assert.NotNil(t, st.OutputToolInput)
}

func TestRunOutputSelector_UsesLLMChoiceWhenValid(t *testing.T) {
	svc, scripted := newTestServices(t)
	st := state.New("t1", "u1", "s1", "goal", "")
	scripted.ScriptValue(OutputToolDecision{ToolName: "ReportGenerator"})

	decision := RunOutputSelector(context.Background(), st, svc, &OutputGuidance{})
	assert.Equal(t, "ReportGenerator", decision.ToolName)
}
