// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package tool implements the Tool Registry and invocation contract of
// §4.2/§9: a name->factory resolver with static in-process registration plus
// an optional go-plugin-hosted extension point, and the ToolOutput/Status
// contract every tool (built-in or reference) must satisfy.
package tool

import (
	"context"
	"time"

	"github.com/relanocode/agentengine/pkg/logger"
	"github.com/relanocode/agentengine/pkg/state"
)

// Category classifies a registered tool for the planner/output-selector.
type Category string

const (
	// CategoryLibs are ordinary callable tools offered to the planner.
	CategoryLibs Category = "libs"
	// CategoryGenerator tools render the final answer; never offered to the
	// planner, only to the output-selector.
	CategoryGenerator Category = "generator"
	// CategoryPreprocessors are out of scope for this module's core loop but
	// kept as a recognized category per §1/§9 (files arrive pre-parsed).
	CategoryPreprocessors Category = "preprocessors"
)

// Status is the outcome of a tool execution.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusPartial Status = "partial"
	StatusError   Status = "error"
)

// Output is the standardized result every tool returns (§4.2).
type Output struct {
	Status        Status         `json:"status"`
	Message       string         `json:"message,omitempty"`
	Output        any            `json:"output,omitempty"`
	PrimaryResult any            `json:"primary_result,omitempty"`
	Type          string         `json:"type,omitempty"`
	Metrics       map[string]any `json:"metrics,omitempty"`
	RawData       any            `json:"raw_data,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// ErrorOutput fabricates the error Output the Tool Executor uses when a
// tool's Execute panics or returns a Go error (§4.5.2: "it does not raise").
func ErrorOutput(message string) Output {
	return Output{Status: StatusError, Message: message}
}

// StateInjectionKey is the reserved input-map key the executor uses to pass
// the current RuntimeState to tools declaring RequiresStateAccess() == true.
const StateInjectionKey = "__runtime_state__"

// Tool is the per-tool contract (§4.2/§9). Implementations are constructed
// fresh per call by a Factory so they can close over per-node config.
type Tool interface {
	// Name is the registry key and the value the planner/tool_name field uses.
	Name() string
	Description() string
	Category() Category
	// InputSchema is a JSON-schema fragment generated via reflection over the
	// tool's typed input struct (see GenerateSchema).
	InputSchema() (map[string]any, error)
	// RequiresStateAccess reports whether the executor must inject the
	// current RuntimeState under StateInjectionKey before calling Execute.
	RequiresStateAccess() bool
	Execute(ctx context.Context, inputs map[string]any) Output
}

// ExecuteWithLogging wraps Execute for log emission (§9), matching the
// teacher's pattern of thin logging wrappers around the core call.
func ExecuteWithLogging(ctx context.Context, t Tool, inputs map[string]any, st *state.RuntimeState) Output {
	taskID := ""
	if st != nil {
		taskID = st.TaskID
	}
	start := time.Now()
	logger.LogToolCall(ctx, taskID, t.Name())
	out := safeExecute(ctx, t, inputs)
	logger.LogToolResult(ctx, taskID, t.Name(), string(out.Status), "duration_ms", time.Since(start).Milliseconds())
	return out
}

// safeExecute recovers from a panicking tool implementation and turns it
// into an error Output, since handlers (and the tools they call) must not
// raise across a node boundary (§7 propagation policy).
func safeExecute(ctx context.Context, t Tool, inputs map[string]any) (out Output) {
	defer func() {
		if r := recover(); r != nil {
			out = ErrorOutput(formatPanic(r))
		}
	}()
	return t.Execute(ctx, inputs)
}

func formatPanic(r any) string {
	if err, ok := r.(error); ok {
		return err.Error()
	}
	return "tool panicked: " + toString(r)
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return "non-string panic value"
}
