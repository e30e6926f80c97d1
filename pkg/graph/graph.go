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

// Package graph defines the node/edge model the executor walks: a named,
// immutable-per-execution directed graph with a single "planner" entry point
// and the reserved terminal target "END".
package graph

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// End is the reserved target name that terminates execution.
const End = "END"

// Kind identifies what a Node does when visited.
type Kind string

const (
	KindLLM    Kind = "llm"
	KindTool   Kind = "tool"
	KindRouter Kind = "router"
)

// Router node names with fixed meaning to the executor.
const (
	NodePlanner    = "planner"
	NodeReflection = "reflection"
	NodeOutput     = "output"
)

// NodeConfig holds the recognized keys of a Node's free-form config map,
// decoded via mapstructure so handlers never hand-roll type assertions.
type NodeConfig struct {
	ModelName    string `mapstructure:"model_name"`
	IsOutputTool bool   `mapstructure:"is_output_tool"`
	RetryCount   int    `mapstructure:"retry_count"`
	Timeout      int    `mapstructure:"timeout"`    // seconds, TODO retry timeout default 300
	MaxRetry     int    `mapstructure:"max_retry"`  // default 3
	MaxAttempts  int    `mapstructure:"max_attempts"` // output-tool retry attempts, default 3
}

// Node is one vertex of the graph.
type Node struct {
	Name         string         `yaml:"name" json:"name"`
	DisplayName  string         `yaml:"display_name" json:"display_name"`
	Kind         Kind           `yaml:"kind" json:"kind"`
	CallablePath string         `yaml:"callable_path" json:"callable_path"`
	Config       map[string]any `yaml:"config" json:"config"`
}

// DecodeConfig decodes Node.Config into a typed NodeConfig, applying defaults
// for the retry-related fields the Reflection and Retry/Recovery components need.
func (n *Node) DecodeConfig() (NodeConfig, error) {
	cfg := NodeConfig{MaxRetry: 3, Timeout: 300, MaxAttempts: 3}
	if n.Config == nil {
		return cfg, nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &cfg,
	})
	if err != nil {
		return cfg, fmt.Errorf("graph: new config decoder for node %q: %w", n.Name, err)
	}
	if err := decoder.Decode(n.Config); err != nil {
		return cfg, fmt.Errorf("graph: decode config for node %q: %w", n.Name, err)
	}
	if cfg.MaxRetry == 0 {
		cfg.MaxRetry = 3
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 300
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 3
	}
	return cfg, nil
}

// IsOutputTool reports whether this tool node renders the final answer.
func (n *Node) IsOutputTool() bool {
	if n.Config == nil {
		return false
	}
	v, ok := n.Config["is_output_tool"]
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Edge is a directed connection between two nodes.
// An edge with an empty ConditionKey is unconditional.
type Edge struct {
	Source       string `yaml:"source" json:"source"`
	Target       string `yaml:"target" json:"target"`
	ConditionKey string `yaml:"condition_key,omitempty" json:"condition_key,omitempty"`
}

// Graph is a named, immutable-per-execution set of nodes and edges.
type Graph struct {
	Name  string           `yaml:"name" json:"name"`
	Nodes map[string]*Node `yaml:"-" json:"-"`
	Edges []Edge           `yaml:"-" json:"-"`

	// NodeList/EdgeList are the YAML-friendly representations; Compile()
	// turns them into Nodes/Edges for fast lookup.
	NodeList []*Node `yaml:"nodes" json:"nodes"`
	EdgeList []Edge  `yaml:"edges" json:"edges"`

	outgoing map[string][]Edge
}

// Compile builds the lookup indexes and validates the graph per §7
// (graph-validation errors are fatal at executor construction).
func (g *Graph) Compile() error {
	g.Nodes = make(map[string]*Node, len(g.NodeList))
	for _, n := range g.NodeList {
		if n.Name == "" {
			return fmt.Errorf("%w: node with empty name", ErrGraphValidation)
		}
		if _, dup := g.Nodes[n.Name]; dup {
			return fmt.Errorf("%w: duplicate node name %q", ErrGraphValidation, n.Name)
		}
		g.Nodes[n.Name] = n
	}

	if _, ok := g.Nodes[NodePlanner]; !ok {
		return fmt.Errorf("%w: graph %q has no %q node", ErrGraphValidation, g.Name, NodePlanner)
	}

	g.Edges = g.EdgeList
	g.outgoing = make(map[string][]Edge, len(g.Nodes))
	unconditional := make(map[string]bool, len(g.Nodes))
	for _, e := range g.Edges {
		if e.Source == "" || e.Target == "" {
			return fmt.Errorf("%w: edge with empty source/target", ErrGraphValidation)
		}
		if e.ConditionKey == "" {
			if unconditional[e.Source] {
				return fmt.Errorf("%w: node %q has more than one unconditional outgoing edge", ErrGraphValidation, e.Source)
			}
			unconditional[e.Source] = true
		}
		g.outgoing[e.Source] = append(g.outgoing[e.Source], e)
	}

	for name := range g.Nodes {
		if len(g.outgoing[name]) == 0 {
			return fmt.Errorf("%w: node %q has no outgoing edges", ErrGraphValidation, name)
		}
	}

	return nil
}

// OutgoingEdges returns the edges leaving the named node.
func (g *Graph) OutgoingEdges(node string) []Edge {
	return g.outgoing[node]
}
