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

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/relanocode/agentengine/pkg/checkpoint"
	engineconfig "github.com/relanocode/agentengine/pkg/config"
	"github.com/relanocode/agentengine/pkg/executor"
	"github.com/relanocode/agentengine/pkg/graph"
	"github.com/relanocode/agentengine/pkg/llm"
	"github.com/relanocode/agentengine/pkg/modelconfig"
	"github.com/relanocode/agentengine/pkg/node"
	"github.com/relanocode/agentengine/pkg/tool"
)

// RunCmd drives one task through the graph executor with a scripted LLM and
// the built-in reference tools, for local smoke-testing of a graph
// definition without a vendor API key.
type RunCmd struct {
	Graph   string `arg:"" name:"graph" help:"Path to the graph definition YAML file." type:"path"`
	Goal    string `help:"The task goal to hand the planner." required:""`
	TaskID  string `name:"task-id" help:"Task id to run under (random uuid if omitted)."`
	UserID  string `name:"user-id" default:"smoke-test-user"`
	Session string `name:"session-id" default:"smoke-test-session"`

	WorkflowDir string `name:"workflow-dir" help:"Workflow directory root (defaults to AGENTENGINE_WORKFLOW_DIR or ./workflows)." type:"path"`
}

func (c *RunCmd) Run(cli *CLI) error {
	ctx := context.Background()

	g, err := graph.LoadFile(c.Graph)
	if err != nil {
		return fmt.Errorf("load graph: %w", err)
	}

	taskID := c.TaskID
	if taskID == "" {
		taskID = uuid.NewString()
	}

	workflowDir := c.WorkflowDir
	if workflowDir == "" {
		workflowDir = engineconfig.WorkflowDir()
	}

	tools := tool.NewRegistry()
	if err := tool.RegisterReferenceTools(tools); err != nil {
		return fmt.Errorf("register reference tools: %w", err)
	}

	modelCfg := modelconfig.New(engineconfig.DefaultModelEnvVar)
	modelCfg.RegisterModel("smoke-test-model")

	scripted := llm.NewScriptedService("smoke-test-model")
	scripted.
		ScriptValue(node.PlannerOutput{
			Thought: "Answering directly from the supplied goal.",
			Action:  node.ActionFinish,
			OutputGuidance: &node.OutputGuidance{
				KeyPoints: []string{c.Goal},
			},
		}).
		ScriptValue(node.OutputToolDecision{
			ToolName:  "TextGenerator",
			ToolInput: map[string]any{"text": c.Goal},
		})

	tasks := executor.NewInMemoryTaskStore()
	e := &executor.Executor{
		Graph:      g,
		Checkpoint: checkpoint.NewStore(workflowDir, nil),
		Tasks:      tasks,
		Tools:      tools,
		ModelCfg:   modelCfg,
		LLM:        scripted,
	}

	if _, err := e.Run(ctx, executor.Submission{
		TaskID:          taskID,
		UserID:          c.UserID,
		SessionID:       c.Session,
		InitialTaskGoal: c.Goal,
		CurrentUser:     c.UserID,
	}); err != nil {
		return fmt.Errorf("executor run: %w", err)
	}

	status, _ := tasks.Status(ctx, taskID)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"task_id":      taskID,
		"status":       status,
		"output":       tasks.Output(taskID),
		"workflow_dir": workflowDir,
	})
}
