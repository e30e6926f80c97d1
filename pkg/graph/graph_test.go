package graph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validGraph() *Graph {
	return &Graph{
		Name: "demo",
		NodeList: []*Node{
			{Name: NodePlanner, Kind: KindRouter},
			{Name: "search", Kind: KindTool},
			{Name: NodeOutput, Kind: KindTool, Config: map[string]any{"is_output_tool": true}},
		},
		EdgeList: []Edge{
			{Source: NodePlanner, Target: "search", ConditionKey: "CALL_TOOL:search"},
			{Source: NodePlanner, Target: NodeOutput, ConditionKey: "OUTPUT:output"},
			{Source: "search", Target: NodePlanner},
			{Source: NodeOutput, Target: End},
		},
	}
}

func TestCompile_ValidGraph(t *testing.T) {
	g := validGraph()
	require.NoError(t, g.Compile())
	assert.Len(t, g.OutgoingEdges(NodePlanner), 2)
	assert.Len(t, g.OutgoingEdges("search"), 1)
}

func TestCompile_RequiresPlannerNode(t *testing.T) {
	g := &Graph{
		Name:     "no-planner",
		NodeList: []*Node{{Name: "search", Kind: KindTool}},
		EdgeList: []Edge{{Source: "search", Target: End}},
	}
	err := g.Compile()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrGraphValidation))
}

func TestCompile_RejectsDuplicateNodeNames(t *testing.T) {
	g := &Graph{
		Name: "dup",
		NodeList: []*Node{
			{Name: NodePlanner},
			{Name: NodePlanner},
		},
	}
	err := g.Compile()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrGraphValidation))
}

func TestCompile_RejectsAmbiguousUnconditionalEdges(t *testing.T) {
	g := &Graph{
		Name: "ambiguous",
		NodeList: []*Node{
			{Name: NodePlanner},
			{Name: "a"},
			{Name: "b"},
		},
		EdgeList: []Edge{
			{Source: NodePlanner, Target: "a"},
			{Source: NodePlanner, Target: "b"},
			{Source: "a", Target: End},
			{Source: "b", Target: End},
		},
	}
	err := g.Compile()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrGraphValidation))
}

func TestCompile_RejectsDeadEndNode(t *testing.T) {
	g := &Graph{
		Name: "deadend",
		NodeList: []*Node{
			{Name: NodePlanner},
			{Name: "orphan"},
		},
		EdgeList: []Edge{
			{Source: NodePlanner, Target: End},
		},
	}
	err := g.Compile()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrGraphValidation))
}

func TestNode_DecodeConfig_AppliesDefaults(t *testing.T) {
	n := &Node{Name: "search", Config: map[string]any{"model_name": "gpt-4o", "retry_count": "2"}}
	cfg, err := n.DecodeConfig()
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", cfg.ModelName)
	assert.Equal(t, 2, cfg.RetryCount)
	assert.Equal(t, 3, cfg.MaxRetry)
	assert.Equal(t, 300, cfg.Timeout)
	assert.Equal(t, 3, cfg.MaxAttempts)
}

func TestNode_IsOutputTool(t *testing.T) {
	assert.True(t, (&Node{Config: map[string]any{"is_output_tool": true}}).IsOutputTool())
	assert.False(t, (&Node{Config: map[string]any{"is_output_tool": false}}).IsOutputTool())
	assert.False(t, (&Node{}).IsOutputTool())
}
