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

// Package modelconfig implements the Model-Config Resolver (§4.3): a
// layered lookup for which LLM model a node/tool should use, and the merged
// config map a tool's factory receives.
package modelconfig

import (
	"log/slog"
	"os"
	"sync"
)

// RuntimeNodeConfig is the in-memory override layer (layer 2 of the
// cascade): graph-author overrides that live only for this process.
type RuntimeNodeConfig struct {
	Config map[string]any
}

// Resolver resolves model ids and merged tool config through the cascade
// described in §4.3. It is read-mostly and safe for concurrent use.
type Resolver struct {
	mu             sync.RWMutex
	runtimeMap     map[string]RuntimeNodeConfig
	persisted      map[string]map[string]any // node/tool name -> persisted config
	defaultModelEnv string
	registeredModels map[string]bool
}

// New creates a Resolver. defaultModelEnv names the environment variable
// consulted as the cascade's layer-4 fallback (e.g. "DEFAULT_MODEL").
func New(defaultModelEnv string) *Resolver {
	return &Resolver{
		runtimeMap:       make(map[string]RuntimeNodeConfig),
		persisted:        make(map[string]map[string]any),
		defaultModelEnv:  defaultModelEnv,
		registeredModels: make(map[string]bool),
	}
}

// SetRuntimeOverride installs an in-memory override for name (layer 2).
func (r *Resolver) SetRuntimeOverride(name string, cfg map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runtimeMap[name] = RuntimeNodeConfig{Config: cfg}
}

// SetPersistedConfig installs the persisted node config for name (layer 3),
// e.g. loaded once from the graph definition file at startup.
func (r *Resolver) SetPersistedConfig(name string, cfg map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.persisted[name] = cfg
}

// RegisterModel marks id as a known/valid model, used by ValidateModel.
func (r *Resolver) RegisterModel(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registeredModels[id] = true
}

// ModelForNode cascades: override -> runtime_map[name].config.model_name ->
// persisted node config -> process default env var -> nil (§4.3).
func (r *Resolver) ModelForNode(name string, override string) string {
	if override != "" {
		return override
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if rt, ok := r.runtimeMap[name]; ok {
		if m, ok := rt.Config["model_name"].(string); ok && m != "" {
			return m
		}
	}
	if cfg, ok := r.persisted[name]; ok {
		if m, ok := cfg["model_name"].(string); ok && m != "" {
			return m
		}
	}
	if r.defaultModelEnv != "" {
		if m := os.Getenv(r.defaultModelEnv); m != "" {
			return m
		}
	}
	return ""
}

// ToolConfig merges the runtime map's config over the persisted config for
// name, ensuring a "model_name" key is present (possibly empty) in the
// result (§4.3).
func (r *Resolver) ToolConfig(name string) map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	merged := make(map[string]any)
	for k, v := range r.persisted[name] {
		merged[k] = v
	}
	if rt, ok := r.runtimeMap[name]; ok {
		for k, v := range rt.Config {
			merged[k] = v
		}
	}
	if _, ok := merged["model_name"]; !ok {
		merged["model_name"] = r.ModelForNode(name, "")
	}
	return merged
}

// ValidateModel confirms id is registered. All operations on Resolver must
// survive intermittent datastore errors by logging and returning a safe
// default (§4.3); since the registered-model set here is in-memory, the only
// failure mode is an unknown id, which simply returns false.
func (r *Resolver) ValidateModel(id string) bool {
	if id == "" {
		slog.Warn("modelconfig: validating empty model id")
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.registeredModels[id]
}
