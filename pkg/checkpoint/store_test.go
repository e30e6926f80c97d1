package checkpoint

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relanocode/agentengine/pkg/state"
)

func TestStore_SaveLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, nil)

	_, err := store.CreateWorkflowDirectory("task-1", "user-1", "session-1")
	require.NoError(t, err)

	st := state.New("task-1", "user-1", "session-1", "do the thing", "")
	st.AppendAction(state.ActionEntry{Type: state.ActionPlan, Data: map[string]any{"step": 1}})

	ctx := context.Background()
	store.Save(ctx, st)

	loaded, err := store.Load(ctx, "task-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "task-1", loaded.TaskID)
	assert.Equal(t, "do the thing", loaded.OriginalTaskGoal())
	assert.Len(t, loaded.ActionHistory(), 1)
	assert.Len(t, loaded.ActionHistory()[0], 1)
}

func TestStore_Save_RotatesVersions(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, nil)
	ctx := context.Background()

	_, err := store.CreateWorkflowDirectory("task-2", "user-1", "session-1")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		st := state.New("task-2", "user-1", "session-1", "goal", "")
		st.AppendAction(state.ActionEntry{Type: state.ActionPlan, Data: map[string]any{"i": i}})
		store.Save(ctx, st)
	}

	wfDir, ok := store.workflowDir("task-2")
	require.True(t, ok)

	for _, suffix := range []string{"", ".1", ".2", ".3"} {
		_, err := os.Stat(filepath.Join(wfDir, "state.json"+suffix))
		assert.NoError(t, err, "expected state.json%s to exist", suffix)
	}
	_, err = os.Stat(filepath.Join(wfDir, "state.json.4"))
	assert.True(t, os.IsNotExist(err), "expected no fifth rotation file")
}

func TestStore_SaveStep_WritesArtifactAndMetadata(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, nil)

	wfDir, err := store.CreateWorkflowDirectory("task-3", "user-1", "session-1")
	require.NoError(t, err)

	ok := store.SaveStep("task-3", 1, "call_tool", map[string]any{"result": "ok"}, "Web Search!!")
	assert.True(t, ok)

	entries, err := os.ReadDir(wfDir)
	require.NoError(t, err)
	var found bool
	for _, e := range entries {
		if e.Name() == "1_call_tool_Web_Search_.json" {
			found = true
		}
	}
	assert.True(t, found, "expected sanitized tool-name artifact file, got %v", entries)

	var meta Metadata
	data, err := atomicRead(filepath.Join(wfDir, "metadata.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &meta))
	assert.Equal(t, 1, meta.TotalSteps)
	assert.Contains(t, meta.NodeTypesExecuted, "call_tool")
}

func TestStore_Load_MissingTask_ReturnsNil(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, nil)
	loaded, err := store.Load(context.Background(), "nonexistent")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}
