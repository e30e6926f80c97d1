package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type samplePlan struct {
	Action   string `json:"action"`
	ToolName string `json:"tool_name"`
}

func TestGenerate_UnmarshalsScriptedValue(t *testing.T) {
	svc := NewScriptedService("gpt-4o")
	svc.ScriptValue(samplePlan{Action: "CALL_TOOL", ToolName: "Summarizer"})

	out, err := Generate[samplePlan](context.Background(), svc, "user", "system")
	require.NoError(t, err)
	assert.Equal(t, "CALL_TOOL", out.Action)
	assert.Equal(t, "Summarizer", out.ToolName)
}

func TestGenerate_TransportError(t *testing.T) {
	svc := NewScriptedService("gpt-4o")
	svc.ScriptError(assert.AnError)

	_, err := Generate[samplePlan](context.Background(), svc, "u", "s")
	assert.Error(t, err)
}

func TestGenerateWithRetry_RetriesOnceOnSchemaFailure(t *testing.T) {
	svc := NewScriptedService("gpt-4o")
	svc.ScriptRaw([]byte(`not-json`))
	svc.ScriptValue(samplePlan{Action: "FINISH"})

	out, err := GenerateWithRetry[samplePlan](context.Background(), svc, "u", "s")
	require.NoError(t, err)
	assert.Equal(t, "FINISH", out.Action)
	assert.Len(t, svc.Calls(), 2)
}

func TestGenerateWithRetry_FailsAfterSecondSchemaFailure(t *testing.T) {
	svc := NewScriptedService("gpt-4o")
	svc.ScriptRaw([]byte(`not-json`))
	svc.ScriptRaw([]byte(`still-not-json`))

	_, err := GenerateWithRetry[samplePlan](context.Background(), svc, "u", "s")
	assert.Error(t, err)
	assert.Len(t, svc.Calls(), 2)
}

func TestGenerateWithRetry_DoesNotRetryTransportError(t *testing.T) {
	svc := NewScriptedService("gpt-4o")
	svc.ScriptError(assert.AnError)
	svc.ScriptValue(samplePlan{Action: "FINISH"})

	_, err := GenerateWithRetry[samplePlan](context.Background(), svc, "u", "s")
	assert.Error(t, err)
	var schemaErr *SchemaError
	assert.NotErrorAs(t, err, &schemaErr)
	// Only the single failed attempt was made; the second scripted response
	// (a valid value) is never consumed because a transport error is fatal
	// for the node immediately, not retried.
	assert.Len(t, svc.Calls(), 1)
}
