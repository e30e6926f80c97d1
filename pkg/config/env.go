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

// Package config loads the engine's process-level environment, the §4.3
// "process default env var" layer of the Model-Config Resolver's cascade
// and the Checkpoint Store's database DSN, following the teacher's
// pkg/config/env.go pattern of best-effort local .env loading.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// DefaultModelEnvVar is the environment variable the Model-Config Resolver
// consults as its layer-4 fallback (§4.3).
const DefaultModelEnvVar = "AGENTENGINE_DEFAULT_MODEL"

// CheckpointDBEnvVar names the SQLite DSN for the Checkpoint Store's
// database-secondary backing (§4.1).
const CheckpointDBEnvVar = "AGENTENGINE_CHECKPOINT_DB"

// WorkflowDirEnvVar names the root directory for per-task workflow
// directories (§3 "Checkpoint artifact on disk").
const WorkflowDirEnvVar = "AGENTENGINE_WORKFLOW_DIR"

// LoadEnvFiles best-effort loads ".env.local" then ".env" from the current
// directory, matching the teacher's layered local/override precedence. A
// missing file is not an error; any other read failure is.
func LoadEnvFiles() error {
	for _, file := range []string{".env.local", ".env"} {
		if err := godotenv.Load(file); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("config: load %s: %w", file, err)
		}
	}
	return nil
}

// DefaultModel returns the process-wide default model id, or "" when unset.
func DefaultModel() string {
	return os.Getenv(DefaultModelEnvVar)
}

// CheckpointDBPath returns the configured SQLite DSN, or a local default.
func CheckpointDBPath() string {
	if v := os.Getenv(CheckpointDBEnvVar); v != "" {
		return v
	}
	return "agentengine.db"
}

// WorkflowDir returns the configured workflow-directory root, or a local default.
func WorkflowDir() string {
	if v := os.Getenv(WorkflowDirEnvVar); v != "" {
		return v
	}
	return "workflows"
}
