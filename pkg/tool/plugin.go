package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"net/rpc"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-plugin"

	"github.com/relanocode/agentengine/pkg/logger"
)

// handshakeConfig is the out-of-process tool extension point's handshake,
// grounded on the teacher's pkg/plugins/grpc.handshakeConfig pattern (a
// fixed magic cookie identifies a compatible binary before any RPC occurs).
var handshakeConfig = plugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "AGENTENGINE_TOOL_PLUGIN",
	MagicCookieValue: "agentengine_tool_plugin_v1",
}

// ToolRPC is the net/rpc surface a plugin binary exposes. Using go-plugin's
// simpler net/rpc transport (rather than the teacher's gRPC transport) keeps
// the reference implementation self-contained for a single Execute call.
type ToolRPC interface {
	Describe() (ToolDescriptor, error)
	Execute(inputs map[string]any) (Output, error)
}

// ToolDescriptor is what a plugin reports about itself on load.
type ToolDescriptor struct {
	Name        string
	Description string
	Category    Category
	Schema      map[string]any
}

// pluginGoPlugin adapts ToolRPC to go-plugin's plugin.Plugin interface.
type pluginGoPlugin struct {
	Impl ToolRPC
}

func (p *pluginGoPlugin) Server(*plugin.MuxBroker) (any, error) { return &rpcServer{impl: p.Impl}, nil }
func (p *pluginGoPlugin) Client(b *plugin.MuxBroker, c *rpc.Client) (any, error) {
	return &rpcClient{client: c}, nil
}

type rpcServer struct{ impl ToolRPC }

func (s *rpcServer) Describe(_ any, resp *ToolDescriptor) error {
	d, err := s.impl.Describe()
	*resp = d
	return err
}

func (s *rpcServer) Execute(args map[string]any, resp *Output) error {
	out, err := s.impl.Execute(args)
	*resp = out
	return err
}

type rpcClient struct{ client *rpc.Client }

func (c *rpcClient) Describe() (ToolDescriptor, error) {
	var resp ToolDescriptor
	err := c.client.Call("Plugin.Describe", new(any), &resp)
	return resp, err
}

func (c *rpcClient) Execute(inputs map[string]any) (Output, error) {
	var resp Output
	err := c.client.Call("Plugin.Execute", inputs, &resp)
	return resp, err
}

// pluginTool adapts a running plugin client to the in-process Tool interface.
type pluginTool struct {
	descriptor ToolDescriptor
	rpc        ToolRPC
	client     *plugin.Client
}

func (t *pluginTool) Name() string                          { return t.descriptor.Name }
func (t *pluginTool) Description() string                   { return t.descriptor.Description }
func (t *pluginTool) Category() Category                    { return t.descriptor.Category }
func (t *pluginTool) RequiresStateAccess() bool              { return false }
func (t *pluginTool) InputSchema() (map[string]any, error)   { return t.descriptor.Schema, nil }
func (t *pluginTool) Execute(ctx context.Context, inputs map[string]any) Output {
	out, err := t.rpc.Execute(inputs)
	if err != nil {
		return ErrorOutput(fmt.Sprintf("plugin tool %q: %v", t.descriptor.Name, err))
	}
	return out
}

// ServePlugin is the entry point a plugin binary's own main() calls to host
// a ToolRPC implementation over go-plugin, handshaking with the same magic
// cookie PluginLoader.LoadPath expects. Plugin authors depend on this
// package only for the ToolRPC/ToolDescriptor/Output types and this
// function; everything else in this file is the host side.
func ServePlugin(impl ToolRPC) {
	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: handshakeConfig,
		Plugins: map[string]plugin.Plugin{
			"tool": &pluginGoPlugin{Impl: impl},
		},
	})
}

// PluginLoader launches a plugin binary and registers the tool(s) it
// exposes into a Registry, then watches its directory with fsnotify so new
// or removed binaries take effect without a process restart (§4.2/§9).
type PluginLoader struct {
	registry *Registry
	hclogger hclog.Logger

	mu        sync.Mutex
	clients   map[string]*plugin.Client // path -> live client, for Close/reload
	toolNames map[string]string         // path -> registered tool name, for Unload(path)
}

// NewPluginLoader creates a loader that registers discovered tools into r.
func NewPluginLoader(r *Registry) *PluginLoader {
	return &PluginLoader{
		registry: r,
		hclogger: hclog.New(&hclog.LoggerOptions{
			Name:  "agentengine-tool-plugin",
			Level: hclog.Info,
		}),
		clients:   make(map[string]*plugin.Client),
		toolNames: make(map[string]string),
	}
}

// LoadPath launches the binary at path and registers its tool.
func (l *PluginLoader) LoadPath(path string) error {
	client := plugin.NewClient(&plugin.ClientConfig{
		HandshakeConfig: handshakeConfig,
		Plugins: map[string]plugin.Plugin{
			"tool": &pluginGoPlugin{},
		},
		Cmd:              exec.Command(path),
		Logger:           l.hclogger,
		AllowedProtocols: []plugin.Protocol{plugin.ProtocolNetRPC},
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return fmt.Errorf("tool: connect to plugin %q: %w", path, err)
	}
	raw, err := rpcClient.Dispense("tool")
	if err != nil {
		client.Kill()
		return fmt.Errorf("tool: dispense plugin %q: %w", path, err)
	}
	impl, ok := raw.(ToolRPC)
	if !ok {
		client.Kill()
		return fmt.Errorf("tool: plugin %q does not implement ToolRPC", path)
	}
	descriptor, err := impl.Describe()
	if err != nil {
		client.Kill()
		return fmt.Errorf("tool: describe plugin %q: %w", path, err)
	}

	t := &pluginTool{descriptor: descriptor, rpc: impl, client: client}
	factory := func(map[string]any) (Tool, error) { return t, nil }
	if err := l.registry.RegisterPlugin(descriptor.Name, descriptor.Description, descriptor.Category, factory); err != nil {
		client.Kill()
		return err
	}

	l.mu.Lock()
	l.clients[path] = client
	l.toolNames[path] = descriptor.Name
	l.mu.Unlock()
	return nil
}

// Unload kills the plugin client backing path and removes the tool it
// registered, keyed by path alone: the loader remembers which tool name
// LoadPath registered for this path, so callers (including Watch's remove
// handler) never need to carry that name separately.
func (l *PluginLoader) Unload(path string) {
	l.mu.Lock()
	client, ok := l.clients[path]
	toolName := l.toolNames[path]
	delete(l.clients, path)
	delete(l.toolNames, path)
	l.mu.Unlock()
	if ok {
		client.Kill()
	}
	if toolName != "" {
		l.registry.UnregisterPlugin(toolName)
	}
}

// Watch discovers plugin binaries already present in dir, loads them, then
// watches dir with fsnotify for new/removed binaries, hot-reloading the
// registry without a restart (§4.2 "reload is idempotent", scenario S7).
// It runs until ctx is cancelled.
func (l *PluginLoader) Watch(ctx context.Context, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			entries = nil
		} else {
			return fmt.Errorf("tool: read plugin dir %q: %w", dir, err)
		}
	}
	for _, e := range entries {
		if e.IsDir() || !isExecutableCandidate(e.Name()) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if err := l.LoadPath(path); err != nil {
			logger.GetLogger().Warn("tool: failed to load plugin", "path", path, "error", err)
			continue
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("tool: create plugin watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("tool: watch plugin dir %q: %w", dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isExecutableCandidate(filepath.Base(ev.Name)) {
				continue
			}
			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				if err := l.LoadPath(ev.Name); err != nil {
					logger.GetLogger().Warn("tool: failed to hot-load plugin", "path", ev.Name, "error", err)
					continue
				}
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				l.Unload(ev.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.GetLogger().Warn("tool: plugin watcher error", "error", err)
		}
	}
}

func isExecutableCandidate(name string) bool {
	return !strings.HasPrefix(name, ".") && !strings.HasSuffix(name, ".json")
}

// marshalArgs is an unexported JSON-encoding helper for the RPC surface
// above; nothing in this package calls it.
func marshalArgs(v any) ([]byte, error) { return json.Marshal(v) }
