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
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/relanocode/agentengine/pkg/logger"
	"github.com/relanocode/agentengine/pkg/tool"
)

// PluginsCmd hosts the Tool Registry's optional go-plugin extension point
// (§4.2/§9): it loads every plugin binary already present in a directory,
// then watches it for hot-reload, so a deployment can drop or remove tool
// plugins without restarting the engine.
type PluginsCmd struct {
	Watch PluginsWatchCmd `cmd:"" help:"Load plugin binaries from a directory and hot-reload on change."`
	Load  PluginsLoadCmd  `cmd:"" help:"Load a single plugin binary and report what it registers."`
}

// PluginsWatchCmd runs PluginLoader.Watch until interrupted.
type PluginsWatchCmd struct {
	Dir string `arg:"" name:"dir" help:"Directory to load plugin binaries from and watch for changes." type:"path"`
}

func (c *PluginsWatchCmd) Run(cli *CLI) error {
	registry := tool.NewRegistry()
	if err := tool.RegisterReferenceTools(registry); err != nil {
		return fmt.Errorf("register reference tools: %w", err)
	}
	loader := tool.NewPluginLoader(registry)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.GetLogger().Info("plugins: watching directory", "dir", c.Dir)
	if err := loader.Watch(ctx, c.Dir); err != nil {
		return fmt.Errorf("watch plugin dir %q: %w", c.Dir, err)
	}
	return nil
}

// PluginsLoadCmd loads one plugin binary, prints what it registered, then
// exits (no watch loop), useful for verifying a freshly built plugin binary.
type PluginsLoadCmd struct {
	Path string `arg:"" name:"path" help:"Path to a plugin binary." type:"path"`
}

func (c *PluginsLoadCmd) Run(cli *CLI) error {
	registry := tool.NewRegistry()
	loader := tool.NewPluginLoader(registry)
	if err := loader.LoadPath(c.Path); err != nil {
		return fmt.Errorf("load plugin %q: %w", c.Path, err)
	}
	for _, info := range registry.List("") {
		fmt.Printf("%s\t%s\t%s\n", info.Name, info.Category, info.Description)
	}
	return nil
}
