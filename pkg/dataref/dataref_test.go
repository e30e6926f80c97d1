package dataref

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/relanocode/agentengine/pkg/state"
)

func TestResolve_ActionReference(t *testing.T) {
	st := state.New("t1", "u1", "s1", "goal", "")
	st.StoreFullAction("action_1700000000", state.FullAction{
		ToolOutput: map[string]any{"result": "42"},
	})

	out := Resolve("value is ${action_1700000000}", st)
	assert.Contains(t, out, `"result":"42"`)
}

func TestResolve_MissingActionReference(t *testing.T) {
	st := state.New("t1", "u1", "s1", "goal", "")
	out := Resolve("${action_9999999999}", st)
	assert.Contains(t, out, "数据提取失败")
}

func TestResolve_PreprocessedFilesDottedPath(t *testing.T) {
	st := state.New("t1", "u1", "s1", "goal", "")
	st.PreprocessedFiles.Documents["report.v2.pdf"] = "parsed contents"

	out := Resolve("${preprocessed_files.documents.report.v2.pdf}", st)
	assert.Equal(t, "parsed contents", out)
}

func TestResolve_RecursesThroughMapsAndLists(t *testing.T) {
	st := state.New("t1", "u1", "s1", "goal", "")
	st.UserContext["name"] = "Ada"

	input := map[string]any{
		"greeting": "hello ${user_context.name}",
		"tags":     []any{"a", "b ${user_context.name}"},
	}
	out := Resolve(input, st).(map[string]any)
	assert.Equal(t, "hello Ada", out["greeting"])
	assert.Equal(t, "b Ada", out["tags"].([]any)[1])
}

func TestResolve_ArbitraryStateFieldPaths(t *testing.T) {
	st := state.New("t1", "u1", "s1", "goal", "urgent")
	st.ReplaceTodo([]state.TodoItem{{ID: "1", Task: "draft outline", Status: state.TodoPending}})
	st.AppendChat("user", "please hurry")

	assert.Contains(t, Resolve("${usage}", st), "urgent")
	assert.Contains(t, Resolve("${todo.0.status}", st), "pending")
	assert.Contains(t, Resolve("${chat_history.0.role}", st), "user")
}

func TestResolve_MissingArbitraryPathYieldsMarker(t *testing.T) {
	st := state.New("t1", "u1", "s1", "goal", "")
	out := Resolve("${does_not_exist.nested}", st)
	assert.Contains(t, out, "数据提取失败")
}

func TestResolve_NonStringScalarsPassThrough(t *testing.T) {
	st := state.New("t1", "u1", "s1", "goal", "")
	assert.Equal(t, 42, Resolve(42, st))
	assert.Equal(t, true, Resolve(true, st))
	assert.Nil(t, Resolve(nil, st))
}
