package modelconfig

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestModelForNode_CascadePriority(t *testing.T) {
	os.Setenv("TEST_DEFAULT_MODEL", "env-model")
	defer os.Unsetenv("TEST_DEFAULT_MODEL")

	r := New("TEST_DEFAULT_MODEL")
	assert.Equal(t, "env-model", r.ModelForNode("planner", ""))

	r.SetPersistedConfig("planner", map[string]any{"model_name": "persisted-model"})
	assert.Equal(t, "persisted-model", r.ModelForNode("planner", ""))

	r.SetRuntimeOverride("planner", map[string]any{"model_name": "runtime-model"})
	assert.Equal(t, "runtime-model", r.ModelForNode("planner", ""))

	assert.Equal(t, "explicit-override", r.ModelForNode("planner", "explicit-override"))
}

func TestToolConfig_MergesRuntimeOverPersisted(t *testing.T) {
	r := New("")
	r.SetPersistedConfig("Summarizer", map[string]any{"model_name": "base", "timeout": 30})
	r.SetRuntimeOverride("Summarizer", map[string]any{"model_name": "override"})

	cfg := r.ToolConfig("Summarizer")
	assert.Equal(t, "override", cfg["model_name"])
	assert.Equal(t, 30, cfg["timeout"])
}

func TestToolConfig_EnsuresModelNameKeyExists(t *testing.T) {
	r := New("")
	cfg := r.ToolConfig("Unknown")
	_, ok := cfg["model_name"]
	assert.True(t, ok)
}

func TestValidateModel(t *testing.T) {
	r := New("")
	assert.False(t, r.ValidateModel("gpt-4o"))
	r.RegisterModel("gpt-4o")
	assert.True(t, r.ValidateModel("gpt-4o"))
	assert.False(t, r.ValidateModel(""))
}
