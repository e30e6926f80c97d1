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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// InspectCmd lists the step artifact files a workflow directory has
// accumulated for one task, mirroring the §4.1 `{step}_{node_type}[_{tool}].json`
// naming the Checkpoint Store writes on every node hop.
type InspectCmd struct {
	WorkflowDir string `arg:"" name:"workflow-dir" help:"Workflow directory root." type:"path"`
	Task        string `help:"Task id to inspect." required:""`
}

func (c *InspectCmd) Run(cli *CLI) error {
	matches, err := filepath.Glob(filepath.Join(c.WorkflowDir, "*", "sessions", "*_"+c.Task))
	if err != nil {
		return fmt.Errorf("glob workflow dir: %w", err)
	}
	legacy := filepath.Join(c.WorkflowDir, c.Task)
	if info, statErr := os.Stat(legacy); statErr == nil && info.IsDir() {
		matches = append(matches, legacy)
	}
	if len(matches) == 0 {
		return fmt.Errorf("no workflow directory found for task %q under %q", c.Task, c.WorkflowDir)
	}
	sort.Strings(matches)
	dir := matches[len(matches)-1]

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read workflow dir %q: %w", dir, err)
	}

	fmt.Printf("%s\n", dir)
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		if entry.Name() == "metadata.json" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Printf("  %-40s <read error: %v>\n", entry.Name(), err)
			continue
		}
		var artifact struct {
			StepNumber int    `json:"step_number"`
			NodeType   string `json:"node_type"`
			ToolName   string `json:"tool_name,omitempty"`
			Timestamp  string `json:"timestamp"`
		}
		if err := json.Unmarshal(data, &artifact); err != nil {
			fmt.Printf("  %-40s <unparseable: %v>\n", entry.Name(), err)
			continue
		}
		if artifact.ToolName != "" {
			fmt.Printf("  %-40s step=%-4d type=%-16s tool=%-20s at=%s\n", entry.Name(), artifact.StepNumber, artifact.NodeType, artifact.ToolName, artifact.Timestamp)
		} else {
			fmt.Printf("  %-40s step=%-4d type=%-16s at=%s\n", entry.Name(), artifact.StepNumber, artifact.NodeType, artifact.Timestamp)
		}
	}
	return nil
}
