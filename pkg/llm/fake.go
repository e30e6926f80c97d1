package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// ScriptedService is an in-memory fake RawGenerator: each call to
// GenerateRaw pops the next scripted response (or error) in FIFO order,
// letting node-handler tests script planner/reflection/output-selector
// decisions without a real vendor transport (§9).
type ScriptedService struct {
	model string

	mu        sync.Mutex
	responses []scriptedResponse
	calls     []Call
}

type scriptedResponse struct {
	value any
	raw   []byte
	err   error
}

// Call records one GenerateRaw invocation for test assertions.
type Call struct {
	UserPrompt   string
	SystemPrompt string
}

// NewScriptedService creates a fake bound to modelID (surfaced via ModelID).
func NewScriptedService(modelID string) *ScriptedService {
	return &ScriptedService{model: modelID}
}

func (s *ScriptedService) ModelID() string { return s.model }

// ScriptValue enqueues a value to be JSON-marshaled and returned on the next
// GenerateRaw call.
func (s *ScriptedService) ScriptValue(v any) *ScriptedService {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, scriptedResponse{value: v})
	return s
}

// ScriptRaw enqueues raw bytes (e.g. deliberately malformed JSON, to exercise
// the retry-once-on-schema-failure path) to be returned verbatim.
func (s *ScriptedService) ScriptRaw(raw []byte) *ScriptedService {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, scriptedResponse{raw: raw})
	return s
}

// ScriptError enqueues a transport error for the next GenerateRaw call.
func (s *ScriptedService) ScriptError(err error) *ScriptedService {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, scriptedResponse{err: err})
	return s
}

// Calls returns every recorded invocation, in order.
func (s *ScriptedService) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

func (s *ScriptedService) GenerateRaw(ctx context.Context, userPrompt, systemPrompt string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, Call{UserPrompt: userPrompt, SystemPrompt: systemPrompt})

	if len(s.responses) == 0 {
		return nil, fmt.Errorf("llm: scripted service has no more responses queued")
	}
	next := s.responses[0]
	s.responses = s.responses[1:]

	if next.err != nil {
		return nil, next.err
	}
	if next.raw != nil {
		return next.raw, nil
	}
	return json.Marshal(next.value)
}
