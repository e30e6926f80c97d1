// Command pluginfixture is a minimal go-plugin binary used only by
// pkg/tool's plugin_test.go to exercise PluginLoader.LoadPath/Watch against
// a real plugin process rather than an in-process fake.
package main

import "github.com/relanocode/agentengine/pkg/tool"

type fixtureTool struct{}

func (fixtureTool) Describe() (tool.ToolDescriptor, error) {
	return tool.ToolDescriptor{
		Name:        "FixtureTool",
		Description: "test-only fixture tool for plugin loader tests",
		Category:    tool.CategoryLibs,
		Schema:      map[string]any{"type": "object"},
	}, nil
}

func (fixtureTool) Execute(inputs map[string]any) (tool.Output, error) {
	return tool.Output{Status: tool.StatusSuccess, Message: "fixture executed"}, nil
}

func main() {
	tool.ServePlugin(fixtureTool{})
}
