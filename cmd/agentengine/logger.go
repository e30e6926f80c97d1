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

	"github.com/relanocode/agentengine/pkg/logger"
)

// initLogger wires the CLI's --log-level flag into the shared slog handler,
// falling back to warn on an unrecognized level rather than failing startup.
func initLogger(levelStr string) {
	level, err := logger.ParseLevel(levelStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "agentengine: invalid log level %q, defaulting to warn\n", levelStr)
	}
	logger.Init(level, os.Stderr, "simple")
}
