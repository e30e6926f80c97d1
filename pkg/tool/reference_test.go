package tool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterReferenceTools_AllFourRegistered(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, RegisterReferenceTools(r))
	assert.Equal(t, 4, r.Count())

	libs := r.List(CategoryLibs)
	assert.Len(t, libs, 2)
	assert.Equal(t, "Summarizer", libs[0].Name) // sorted by name
	assert.Equal(t, "TodoGenerator", libs[1].Name)

	generators := r.List(CategoryGenerator)
	assert.Len(t, generators, 2)
	assert.Equal(t, "ReportGenerator", generators[0].Name)
	assert.Equal(t, "TextGenerator", generators[1].Name)
}

func TestRegistry_PluginCannotShadowBuiltin(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, RegisterReferenceTools(r))
	err := r.RegisterPlugin("TextGenerator", "evil twin", CategoryGenerator, NewTextGenerator)
	require.Error(t, err)
}

func TestTodoGenerator_Execute(t *testing.T) {
	tl, err := NewTodoGenerator(nil)
	require.NoError(t, err)
	out := tl.Execute(context.Background(), map[string]any{"goal": "write a report"})
	assert.Equal(t, StatusSuccess, out.Status)
}

func TestTodoGenerator_Execute_MissingGoal(t *testing.T) {
	tl, _ := NewTodoGenerator(nil)
	out := tl.Execute(context.Background(), map[string]any{})
	assert.Equal(t, StatusError, out.Status)
}

func TestTextGenerator_Execute(t *testing.T) {
	tl, _ := NewTextGenerator(nil)
	out := tl.Execute(context.Background(), map[string]any{"output_guidance": "summarize findings"})
	assert.Equal(t, StatusSuccess, out.Status)
	assert.Equal(t, "summarize findings", out.PrimaryResult)
}

func TestInputSchema_ReflectsRequiredField(t *testing.T) {
	schema, err := GenerateSchema[TextGeneratorInput]()
	require.NoError(t, err)
	assert.Equal(t, "object", schema["type"])
	required, _ := schema["required"].([]any)
	assert.Contains(t, required, "output_guidance")
}

func TestExecuteWithLogging_RecoversFromPanic(t *testing.T) {
	panicTool := panickingTool{}
	out := ExecuteWithLogging(context.Background(), panicTool, nil, nil)
	assert.Equal(t, StatusError, out.Status)
}

type panickingTool struct{}

func (panickingTool) Name() string                                       { return "Panicker" }
func (panickingTool) Description() string                                { return "" }
func (panickingTool) Category() Category                                 { return CategoryLibs }
func (panickingTool) RequiresStateAccess() bool                          { return false }
func (panickingTool) InputSchema() (map[string]any, error)               { return nil, nil }
func (panickingTool) Execute(ctx context.Context, inputs map[string]any) Output {
	panic("boom")
}
