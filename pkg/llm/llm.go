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

// Package llm ships only the structured-output LLM interface of §9 and an
// in-memory scripted fake for tests; real vendor transport is out of scope
// (§1). The core treats "structured output" as "a value of a declared
// schema, validated on the way back" regardless of how a real implementation
// produces it (JSON mode, function-calling, constrained decoding).
package llm

import (
	"context"
	"encoding/json"
	"fmt"
)

// Service is the collaborator node handlers call for structured-output
// generation, mirroring the source's GetStructuredLLM(schema, model_config,
// logging_context) factory collapsed into a single generic method per model.
type Service interface {
	// ModelID reports which model this Service instance talks to, for logging.
	ModelID() string
}

// SchemaError marks a failure to validate a raw LLM response against the
// requested schema (the json.Unmarshal in Generate), as distinct from a
// transport-level failure from RawGenerator.GenerateRaw. Only SchemaError is
// eligible for GenerateWithRetry's single retry (§4.5.1/§4.5.3); a transport
// error is fatal for the current node immediately (§7 llm-schema vs the
// node's own fatal path).
type SchemaError struct {
	Err error
}

func (e *SchemaError) Error() string { return fmt.Sprintf("llm: schema validation failed: %v", e.Err) }
func (e *SchemaError) Unwrap() error { return e.Err }

// Generate performs a structured-output call: it fetches the raw JSON
// response from svc.GenerateRaw and validates it by unmarshaling into T
// (a package-level function, since Go methods cannot take type parameters).
// Any RawGenerator works, e.g. ScriptedService in fake.go.
func Generate[T any](ctx context.Context, svc RawGenerator, userPrompt, systemPrompt string) (T, error) {
	var zero T
	raw, err := svc.GenerateRaw(ctx, userPrompt, systemPrompt)
	if err != nil {
		return zero, fmt.Errorf("llm: generate: %w", err)
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, &SchemaError{Err: fmt.Errorf("llm: unmarshal structured output: %w", err)}
	}
	return out, nil
}

// RawGenerator is the minimal transport boundary: produce the raw JSON bytes
// for a schema-constrained response. Generate[T] validates the schema by
// unmarshaling into T; a real vendor adapter would additionally pass T's
// JSON schema to the model as a function/tool definition or JSON-mode
// constraint, which is out of scope here (§1).
type RawGenerator interface {
	Service
	GenerateRaw(ctx context.Context, userPrompt, systemPrompt string) ([]byte, error)
}
