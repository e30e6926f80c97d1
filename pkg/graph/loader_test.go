package graph

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validGraphYAML = `
name: demo
nodes:
  - name: planner
    kind: router
  - name: search
    kind: tool
  - name: output
    kind: tool
    config:
      is_output_tool: true
edges:
  - source: planner
    target: search
    condition_key: "CALL_TOOL:search"
  - source: planner
    target: output
    condition_key: FINISH
  - source: search
    target: planner
  - source: output
    target: END
`

func TestLoadBytes_ValidGraph(t *testing.T) {
	g, err := LoadBytes([]byte(validGraphYAML))
	require.NoError(t, err)
	assert.Equal(t, "demo", g.Name)
	assert.Len(t, g.OutgoingEdges(NodePlanner), 2)
}

func TestLoadBytes_MalformedYAML(t *testing.T) {
	_, err := LoadBytes([]byte("not: [valid: yaml"))
	require.Error(t, err)
}

func TestLoadBytes_FailsCompileValidation(t *testing.T) {
	_, err := LoadBytes([]byte("name: no-planner\nnodes:\n  - name: search\n    kind: tool\nedges:\n  - source: search\n    target: END\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGraphValidation)
}

func TestLoadFile_ReadsFromDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "graph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validGraphYAML), 0644))

	g, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "demo", g.Name)
}

func TestLoadFile_MissingFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
