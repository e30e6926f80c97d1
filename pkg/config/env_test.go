package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultModel_EmptyWhenUnset(t *testing.T) {
	os.Unsetenv(DefaultModelEnvVar)
	assert.Equal(t, "", DefaultModel())
}

func TestDefaultModel_ReadsEnvVar(t *testing.T) {
	t.Setenv(DefaultModelEnvVar, "gpt-test")
	assert.Equal(t, "gpt-test", DefaultModel())
}

func TestCheckpointDBPath_DefaultsWhenUnset(t *testing.T) {
	os.Unsetenv(CheckpointDBEnvVar)
	assert.Equal(t, "agentengine.db", CheckpointDBPath())
}

func TestCheckpointDBPath_ReadsEnvVar(t *testing.T) {
	t.Setenv(CheckpointDBEnvVar, "/tmp/custom.db")
	assert.Equal(t, "/tmp/custom.db", CheckpointDBPath())
}

func TestWorkflowDir_DefaultsWhenUnset(t *testing.T) {
	os.Unsetenv(WorkflowDirEnvVar)
	assert.Equal(t, "workflows", WorkflowDir())
}

func TestLoadEnvFiles_MissingFilesAreNotAnError(t *testing.T) {
	dir := t.TempDir()
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(cwd)
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	assert.NoError(t, LoadEnvFiles())
}
