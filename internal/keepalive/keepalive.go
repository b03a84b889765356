// Package keepalive is the client-side Runtime wrapper of spec.md §4.F: it
// routes keep-alive servers through a daemon, auto-launches the daemon on
// demand, and retries a failed call exactly once after classifying the
// failure as fatal.
package keepalive

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mcporter/mcporter/internal/applog"
	"github.com/mcporter/mcporter/internal/catalog"
	"github.com/mcporter/mcporter/internal/daemonproto"
	"github.com/mcporter/mcporter/internal/mcpclient"
	"github.com/mcporter/mcporter/internal/runtime"
	"github.com/mcporter/mcporter/pkg/mcporter"
)

// LaunchConfig carries what the auto-launch probe needs to re-exec the
// daemon in the background.
type LaunchConfig struct {
	Executable string
	ConfigPath string
	SocketPath string
	MetaPath   string
}

// Runtime wraps a base runtime.Runtime, routing keep-alive servers through
// the daemon and falling back to the base Runtime for everything else.
type Runtime struct {
	base   *runtime.Runtime
	client *daemonClient
	launch LaunchConfig
	logger *slog.Logger

	mu         sync.RWMutex
	keepAlive  map[string]bool
}

// New builds a keep-alive Runtime. socketPath is where the daemon is
// expected to listen (spec.md §6.1); defs seeds the initial keep-alive set.
func New(base *runtime.Runtime, socketPath string, launch LaunchConfig, defs []catalog.ServerDefinition) *Runtime {
	r := &Runtime{
		base:      base,
		client:    newDaemonClient(socketPath),
		launch:    launch,
		logger:    applog.Default(),
		keepAlive: make(map[string]bool),
	}
	for _, d := range defs {
		r.keepAlive[d.Name] = d.Lifecycle.KeepAlive
	}
	return r
}

// RegisterDefinition rebalances the keepAliveServers set as spec.md §4.F
// requires, then delegates to the base Runtime.
func (r *Runtime) RegisterDefinition(def catalog.ServerDefinition) error {
	r.mu.Lock()
	r.keepAlive[def.Name] = def.Lifecycle.KeepAlive
	r.mu.Unlock()
	return r.base.RegisterDefinition(def)
}

func (r *Runtime) isKeepAlive(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.keepAlive[name]
}

// EnsureDaemon probes the daemon's status; if unreachable it spawns a
// detached `daemon start --foreground` child and polls status at 100ms
// intervals up to a 10s deadline.
func (r *Runtime) EnsureDaemon(ctx context.Context) error {
	if _, err := r.client.status(ctx); err == nil {
		return nil
	}

	if os.Getenv("MCPORTER_DAEMON_CHILD") == "1" {
		// Already inside a daemon-launched child: never recurse.
		return mcporter.ErrDaemonStartTimeout
	}

	if err := r.spawnDaemon(); err != nil {
		return fmt.Errorf("spawn daemon: %w", err)
	}

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := r.client.status(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
	return mcporter.ErrDaemonStartTimeout
}

func (r *Runtime) spawnDaemon() error {
	exe := r.launch.Executable
	if exe == "" {
		var err error
		exe, err = os.Executable()
		if err != nil {
			return err
		}
	}

	cmd := exec.Command(exe, "daemon", "start", "--foreground")
	cmd.Env = append(os.Environ(), "MCPORTER_DAEMON_CHILD=1")
	if r.launch.ConfigPath != "" {
		cmd.Env = append(cmd.Env, "MCPORTER_CONFIG="+r.launch.ConfigPath)
	}
	setDetached(cmd)

	return cmd.Start()
}

// ListTools routes through the daemon when name is keep-alive managed.
func (r *Runtime) ListTools(ctx context.Context, name string, includeSchema bool) ([]*mcp.Tool, error) {
	if !r.isKeepAlive(name) {
		return r.base.ListTools(ctx, name, includeSchema)
	}
	if err := r.EnsureDaemon(ctx); err != nil {
		return nil, err
	}

	result, err := r.withRetry(ctx, name, "listTools", func() (daemonproto.Response, error) {
		params := daemonproto.ListToolsParams{Server: name, IncludeSchema: includeSchema}
		return r.client.call(ctx, daemonproto.MethodListTools, params, uuid.NewString())
	})
	if err != nil {
		return nil, err
	}
	var tools []*mcp.Tool
	if err := json.Unmarshal(result.Result, &tools); err != nil {
		return nil, err
	}
	return tools, nil
}

// ListResources routes through the daemon when name is keep-alive managed.
func (r *Runtime) ListResources(ctx context.Context, name string, params *mcp.ListResourcesParams) (*mcp.ListResourcesResult, error) {
	if !r.isKeepAlive(name) {
		return r.base.ListResources(ctx, name, params)
	}
	if err := r.EnsureDaemon(ctx); err != nil {
		return nil, err
	}

	resp, err := r.withRetry(ctx, name, "listResources", func() (daemonproto.Response, error) {
		return r.client.call(ctx, daemonproto.MethodListResources, daemonproto.ListResourcesParams{Server: name}, uuid.NewString())
	})
	if err != nil {
		return nil, err
	}
	var result mcp.ListResourcesResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CallTool routes through the daemon when name is keep-alive managed.
func (r *Runtime) CallTool(ctx context.Context, name, tool string, args map[string]any, timeout time.Duration) (*mcporter.CallResult, error) {
	if !r.isKeepAlive(name) {
		return r.base.CallTool(ctx, name, tool, args, timeout)
	}
	if err := r.EnsureDaemon(ctx); err != nil {
		return nil, err
	}

	resp, err := r.withRetry(ctx, name, "callTool", func() (daemonproto.Response, error) {
		params := daemonproto.CallToolParams{Server: name, Tool: tool, Arguments: args, TimeoutMs: timeout.Milliseconds()}
		return r.client.call(ctx, daemonproto.MethodCallTool, params, uuid.NewString())
	})
	if err != nil {
		return nil, err
	}
	var flat daemonproto.CallToolResult
	if err := json.Unmarshal(resp.Result, &flat); err != nil {
		return nil, err
	}
	return callResultFromFlat(flat), nil
}

func callResultFromFlat(flat daemonproto.CallToolResult) *mcporter.CallResult {
	var content []mcp.Content
	if flat.HasText {
		content = append(content, &mcp.TextContent{Text: flat.Text})
	}
	raw := &mcp.CallToolResult{
		Content:           content,
		IsError:           flat.IsError,
		StructuredContent: flat.Structured,
	}
	return mcporter.NewCallResult(raw)
}

// CloseServer routes through the daemon when name is keep-alive managed.
func (r *Runtime) CloseServer(ctx context.Context, name string) error {
	if !r.isKeepAlive(name) {
		return r.base.CloseServer(name)
	}
	resp, err := r.client.call(ctx, daemonproto.MethodCloseServer, daemonproto.ServerParams{Server: name}, uuid.NewString())
	if err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("closeServer %s: %s", name, resp.Error.Message)
	}
	return nil
}

// withRetry implements the restart-on-fatal retry of spec.md §4.F: a fatal
// failure logs a one-line notice, issues closeServer, and reissues the call
// exactly once. A non-fatal protocol error or a second failure surfaces
// unchanged.
func (r *Runtime) withRetry(ctx context.Context, name, op string, fn func() (daemonproto.Response, error)) (daemonproto.Response, error) {
	resp, err := fn()
	if err == nil && resp.OK {
		return resp, nil
	}
	if err == nil && !resp.OK && isNonFatal(resp.Error.Code) {
		return resp, fmt.Errorf("%s %s: %s", op, name, resp.Error.Message)
	}

	r.logger.Warn("keep-alive retry", "server", name, "op", op)
	_ = r.CloseServer(ctx, name)

	resp2, err2 := fn()
	if err2 != nil {
		return daemonproto.Response{}, err2
	}
	if !resp2.OK {
		return resp2, fmt.Errorf("%s %s: %s", op, name, resp2.Error.Message)
	}
	return resp2, nil
}

func isNonFatal(code string) bool {
	n, err := strconv.Atoi(code)
	if err != nil {
		return false
	}
	return mcpclient.IsNonFatalProtocolCode(n)
}
