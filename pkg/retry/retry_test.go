package retry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relanocode/agentengine/pkg/state"
	"github.com/relanocode/agentengine/pkg/tool"
)

type scriptedTool struct {
	name      string
	outputs   []tool.Output
	callCount int
}

func (t *scriptedTool) Name() string             { return t.name }
func (t *scriptedTool) Description() string       { return "" }
func (t *scriptedTool) Category() tool.Category   { return tool.CategoryGenerator }
func (t *scriptedTool) RequiresStateAccess() bool { return false }
func (t *scriptedTool) InputSchema() (map[string]any, error) { return nil, nil }
func (t *scriptedTool) Execute(ctx context.Context, inputs map[string]any) tool.Output {
	out := t.outputs[t.callCount]
	if t.callCount < len(t.outputs)-1 {
		t.callCount++
	}
	return out
}

func TestRun_SucceedsOnFirstAttempt(t *testing.T) {
	primary := &scriptedTool{name: "TextGenerator", outputs: []tool.Output{{Status: tool.StatusSuccess}}}
	st := state.New("t1", "u1", "s1", "goal", "")

	result := Run(context.Background(), primary, nil, st, 3, nil)
	assert.True(t, result.Succeeded)
	assert.Empty(t, result.RetryHistory)
}

func TestRun_NetworkFailureThenSuccessWithinAttempts(t *testing.T) {
	primary := &scriptedTool{name: "TextGenerator", outputs: []tool.Output{
		{Status: tool.StatusError, Message: "network timeout"},
		{Status: tool.StatusSuccess},
	}}
	st := state.New("t1", "u1", "s1", "goal", "")

	result := Run(context.Background(), primary, nil, st, 3, nil)
	assert.True(t, result.Succeeded)
	assert.True(t, result.ErrorRecovered)
	require.Len(t, result.RetryHistory, 1)
	assert.Equal(t, string(ErrorNetwork), result.RetryHistory[0].ErrorType)
}

func TestRun_ExhaustsThenFallsBackToAlternative(t *testing.T) {
	primary := &scriptedTool{name: "TextGenerator", outputs: []tool.Output{
		{Status: tool.StatusError, Message: "network timeout"},
		{Status: tool.StatusError, Message: "network timeout"},
		{Status: tool.StatusError, Message: "network timeout"},
	}}
	alt := &scriptedTool{name: "ReportGenerator", outputs: []tool.Output{{Status: tool.StatusSuccess}}}
	st := state.New("t1", "u1", "s1", "goal", "")

	result := Run(context.Background(), primary, nil, st, 3, []tool.Tool{alt})
	require.Len(t, result.RetryHistory, 3)
	assert.True(t, result.Succeeded)
	assert.Equal(t, "ReportGenerator", result.AlternativeTried)
	// Run itself does not mutate st.RetryHistory; the caller (executor)
	// is the sole writer, appending exactly once from result.RetryHistory.
	assert.Empty(t, st.RetryHistory)
}

func TestRun_AuthErrorAbortsImmediately(t *testing.T) {
	primary := &scriptedTool{name: "TextGenerator", outputs: []tool.Output{
		{Status: tool.StatusError, Message: "unauthorized: invalid api key"},
	}}
	st := state.New("t1", "u1", "s1", "goal", "")

	result := Run(context.Background(), primary, nil, st, 3, nil)
	assert.False(t, result.Succeeded)
	assert.Len(t, result.RetryHistory, 1)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ErrorAuth, Classify("401 unauthorized"))
	assert.Equal(t, ErrorValidation, Classify("invalid input schema"))
	assert.Equal(t, ErrorRateLimit, Classify("429 rate limit exceeded"))
	assert.Equal(t, ErrorNetwork, Classify("connection reset by peer"))
	assert.Equal(t, ErrorServer, Classify("500 internal server error"))
	assert.True(t, ErrorNetwork.Retryable())
	assert.False(t, ErrorAuth.Retryable())
}
