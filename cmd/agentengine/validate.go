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
	"fmt"
	"os"

	"github.com/relanocode/agentengine/pkg/graph"
)

// ValidateCmd loads and compiles a graph definition, reporting the first
// §7 graph-validation failure found in the file.
type ValidateCmd struct {
	Graph string `arg:"" name:"graph" help:"Path to the graph definition YAML file." type:"path"`
}

func (c *ValidateCmd) Run(cli *CLI) error {
	g, err := graph.LoadFile(c.Graph)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: invalid: %v\n", c.Graph, err)
		return fmt.Errorf("graph validation failed")
	}

	fmt.Printf("%s: valid\n", c.Graph)
	fmt.Printf("  name:  %s\n", g.Name)
	fmt.Printf("  nodes: %d\n", len(g.Nodes))
	names := make([]string, 0, len(g.Nodes))
	for name := range g.Nodes {
		names = append(names, name)
	}
	fmt.Printf("  %v\n", names)
	return nil
}
