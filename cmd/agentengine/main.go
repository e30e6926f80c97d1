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

// Command agentengine is a small operator CLI around the Graph Executor: it
// can validate a graph definition file, run one task against a scripted
// LLM and the built-in reference tools for local smoke-testing, list the
// step files a workflow directory has accumulated for a task, and load or
// hot-reload the Tool Registry's go-plugin extension point.
//
// Usage:
//
//	agentengine validate graph.yaml
//	agentengine run graph.yaml --goal "summarize the attached report"
//	agentengine inspect ./workflows --task <task-id>
//	agentengine plugins watch ./plugins
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	engineconfig "github.com/relanocode/agentengine/pkg/config"
)

// CLI defines the command-line interface.
type CLI struct {
	Validate ValidateCmd `cmd:"" help:"Validate a graph definition file."`
	Run      RunCmd      `cmd:"" help:"Run one task through the graph executor."`
	Inspect  InspectCmd  `cmd:"" help:"Inspect a workflow directory's step files."`
	Plugins  PluginsCmd  `cmd:"" help:"Load or hot-reload Tool Registry plugin binaries."`

	LogLevel string `help:"Log level (debug, info, warn, error)." default:"info"`
}

func main() {
	_ = engineconfig.LoadEnvFiles()

	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("agentengine"),
		kong.Description("agentengine - graph executor operator CLI"),
		kong.UsageOnError(),
	)

	initLogger(cli.LogLevel)

	if err := ctx.Run(&cli); err != nil {
		fmt.Fprintf(os.Stderr, "agentengine: %v\n", err)
		os.Exit(1)
	}
}
