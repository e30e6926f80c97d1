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

// Package node implements the Planner, Tool Executor, Reflection, and
// Output-Selector handlers of §4.5: pure functions over (state, Services).
package node

import (
	"github.com/relanocode/agentengine/pkg/llm"
	"github.com/relanocode/agentengine/pkg/modelconfig"
	"github.com/relanocode/agentengine/pkg/tool"
)

// Services is the explicit collaborator bundle every handler receives,
// mirroring the teacher's pkg/reasoning.AgentServices aggregate of focused
// service interfaces (LLMService, ToolService, ContextService, ...).
type Services struct {
	LLM        LLMService
	Tools      *tool.Registry
	ModelCfg   *modelconfig.Resolver
	CurrentUser string
}

// LLMService is the narrow structured-output surface handlers depend on,
// separated from the concrete llm.RawGenerator so tests can script per-model
// fakes without wiring the full Service.
type LLMService interface {
	llm.RawGenerator
}

// ToolInstance is an alias for tool.Tool, the surface the Tool Executor
// calls on the instance it gets from Registry.Get.
type ToolInstance = tool.Tool
