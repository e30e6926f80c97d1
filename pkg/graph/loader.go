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

package graph

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile reads a graph definition from a YAML file and compiles it,
// mirroring the teacher's config loader pattern of parse-then-validate
// (pkg/config/loader.go): read bytes, unmarshal into the YAML-friendly
// NodeList/EdgeList shape, then Compile() to build lookup indexes and run
// the §7 graph-validation checks.
func LoadFile(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("graph: read %q: %w", path, err)
	}
	return LoadBytes(data)
}

// LoadBytes parses and compiles a graph definition from raw YAML.
func LoadBytes(data []byte) (*Graph, error) {
	var g Graph
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("%w: parse graph yaml: %v", ErrGraphValidation, err)
	}
	if err := g.Compile(); err != nil {
		return nil, err
	}
	return &g, nil
}
