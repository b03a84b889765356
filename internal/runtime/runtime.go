// Package runtime is the connection registry and pool of spec.md §4.C: it
// owns one live mcpclient.Client per connected ServerDefinition, dedupes
// concurrent connect attempts, and exposes the list/call/close surface the
// CLI and the daemon host both sit on top of.
package runtime

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/sync/singleflight"

	"github.com/mcporter/mcporter/internal/catalog"
	"github.com/mcporter/mcporter/internal/envsubst"
	"github.com/mcporter/mcporter/internal/mcpclient"
	"github.com/mcporter/mcporter/internal/stdiosupervisor"
	"github.com/mcporter/mcporter/pkg/mcporter"
)

// entry is the per-server bookkeeping the registry holds once connected.
type entry struct {
	mu         sync.Mutex
	def        catalog.ServerDefinition
	client     mcpclient.Client
	supervisor *stdiosupervisor.Supervisor // nil for HTTP servers
}

// Runtime is the registry + connection pool. It is safe for concurrent use.
type Runtime struct {
	homeDir string

	mu      sync.RWMutex
	byName  map[string]*entry
	group   singleflight.Group
	onExit  func(name string)
}

// New constructs an empty Runtime. homeDir is used to resolve default token
// cache directories the same way catalog.Validate does.
func New(homeDir string) *Runtime {
	return &Runtime{
		homeDir: homeDir,
		byName:  make(map[string]*entry),
	}
}

// OnServerExit registers a callback fired with the server's name whenever
// its stdio child exits, including an exit caused by Close. Nothing in this
// module registers one; keep-alive restart-on-fatal works from call errors.
func (r *Runtime) OnServerExit(fn func(name string)) {
	r.onExit = fn
}

// RegisterDefinition adds or replaces a server's normalized definition.
// Replacing an already-connected server's definition does not affect the
// live connection; Close it first if a fresh connection is required.
func (r *Runtime) RegisterDefinition(def catalog.ServerDefinition) error {
	normalized, err := def.Validate(r.homeDir)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.byName[normalized.Name]; ok {
		e.mu.Lock()
		e.def = normalized
		e.mu.Unlock()
		return nil
	}
	r.byName[normalized.Name] = &entry{def: normalized}
	return nil
}

// ListServers returns every registered definition in no particular order
// (map iteration order, not registration order).
func (r *Runtime) ListServers() []catalog.ServerDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]catalog.ServerDefinition, 0, len(r.byName))
	for _, e := range r.byName {
		e.mu.Lock()
		out = append(out, e.def)
		e.mu.Unlock()
	}
	return out
}

// GetDefinition returns the named server's normalized definition.
func (r *Runtime) GetDefinition(name string) (catalog.ServerDefinition, error) {
	r.mu.RLock()
	e, ok := r.byName[name]
	r.mu.RUnlock()
	if !ok {
		return catalog.ServerDefinition{}, mcporter.NewOpError("getDefinition", name, mcporter.ErrUnknownServer)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.def, nil
}

// Connect establishes (or reuses) the live session for name. Concurrent
// callers for the same name collapse onto a single in-flight connect via
// singleflight.
func (r *Runtime) Connect(ctx context.Context, name string) (mcpclient.Client, error) {
	r.mu.RLock()
	e, ok := r.byName[name]
	r.mu.RUnlock()
	if !ok {
		return nil, mcporter.NewOpError("connect", name, mcporter.ErrUnknownServer)
	}

	e.mu.Lock()
	if e.client != nil && e.client.State() == mcpclient.StateReady {
		c := e.client
		e.mu.Unlock()
		return c, nil
	}
	e.mu.Unlock()

	v, err, _ := r.group.Do(name, func() (any, error) {
		return r.connectLocked(ctx, e)
	})
	if err != nil {
		return nil, mcporter.NewOpError("connect", name, err)
	}
	return v.(mcpclient.Client), nil
}

func (r *Runtime) connectLocked(ctx context.Context, e *entry) (mcpclient.Client, error) {
	e.mu.Lock()
	def := e.def
	e.mu.Unlock()

	var client mcpclient.Client
	var sup *stdiosupervisor.Supervisor

	switch {
	case def.HTTP != nil:
		client = mcpclient.NewHTTPClient(def.Name, def.HTTP)
	case def.Stdio != nil:
		resolvedEnv, err := envsubst.ResolveAll(def.Env, envsubst.OSLookup)
		if err != nil {
			return nil, err
		}
		env := mergeEnv(resolvedEnv)

		sup = stdiosupervisor.New(stdiosupervisor.StartOptions{
			Executable: def.Stdio.Executable,
			Args:       def.Stdio.Args,
			Cwd:        def.Stdio.Cwd,
			Env:        env,
		})
		sup.OnExit(func(meta stdiosupervisor.ProcessStreamMeta) {
			if stdiosupervisor.Evaluate(stdiosupervisor.CurrentMode(), len(meta.StderrChunks) > 0, meta.ExitCode) {
				stdiosupervisor.Surface(os.Stderr, meta.Command, meta.StderrChunks)
			}
			if r.onExit != nil {
				r.onExit(def.Name)
			}
		})
		if err := sup.Start(ctx); err != nil {
			return nil, err
		}
		client = mcpclient.NewStdioClient(def.Name, sup)
	default:
		return nil, mcporter.ErrMissingCommandOrURL
	}

	if err := client.Initialize(ctx); err != nil {
		if sup != nil {
			_ = sup.Close(context.Background())
		}
		return nil, err
	}

	e.mu.Lock()
	e.client = client
	e.supervisor = sup
	e.mu.Unlock()

	return client, nil
}

// mergeEnv appends the resolved overlay on top of a copy of the ambient
// environment, without ever mutating os.Environ() itself (spec.md §9
// re-architecture (a)).
func mergeEnv(overlay map[string]string) []string {
	base := os.Environ()
	out := make([]string, 0, len(base)+len(overlay))
	out = append(out, base...)
	for k, v := range overlay {
		out = append(out, fmt.Sprintf("%s=%s", k, v))
	}
	return out
}

// ListTools lists tools for a connected (or newly connected) server. When
// includeSchema is true and the definition has a token cache directory, the
// fetched schemas are persisted to disk (§6.4) so a later schema-less
// listing has somewhere to recover full input schemas from without a round
// trip to the server.
func (r *Runtime) ListTools(ctx context.Context, name string, includeSchema bool) ([]*mcp.Tool, error) {
	client, err := r.Connect(ctx, name)
	if err != nil {
		return nil, err
	}
	tools, err := client.ListTools(ctx, includeSchema)
	if err != nil {
		return nil, mcporter.NewOpError("listTools", name, err)
	}

	if includeSchema {
		def, derr := r.GetDefinition(name)
		if derr == nil && def.TokenCacheDir != "" {
			_ = SaveSchemaCache(def.TokenCacheDir, tools)
		}
	}

	return tools, nil
}

// ListResources lists resources for a connected (or newly connected) server.
func (r *Runtime) ListResources(ctx context.Context, name string, params *mcp.ListResourcesParams) (*mcp.ListResourcesResult, error) {
	client, err := r.Connect(ctx, name)
	if err != nil {
		return nil, err
	}
	result, err := client.ListResources(ctx, params)
	if err != nil {
		return nil, mcporter.NewOpError("listResources", name, err)
	}
	return result, nil
}

// CallTool invokes a tool on a connected (or newly connected) server. A
// timeout (or any other failure that leaves the client StateFailed) evicts
// the cached connection so the next call reconnects instead of racing the
// abandoned in-flight request on a client already given up on (spec.md §5:
// the abort must trigger the close path of §4.A, not a silently stuck
// cache entry).
func (r *Runtime) CallTool(ctx context.Context, name, tool string, args map[string]any, timeout time.Duration) (*mcporter.CallResult, error) {
	client, err := r.Connect(ctx, name)
	if err != nil {
		return nil, err
	}
	result, err := client.CallTool(ctx, tool, args, timeout)
	if err != nil {
		if client.State() == mcpclient.StateFailed {
			_ = r.CloseServer(name)
		}
		return nil, mcporter.NewOpError("callTool", name, err)
	}
	return result, nil
}

// CloseServer tears down a server's live connection, if any. It is a no-op
// for a server that was never connected.
func (r *Runtime) CloseServer(name string) error {
	r.mu.RLock()
	e, ok := r.byName[name]
	r.mu.RUnlock()
	if !ok {
		return mcporter.NewOpError("closeServer", name, mcporter.ErrUnknownServer)
	}

	e.mu.Lock()
	client := e.client
	e.client = nil
	e.supervisor = nil
	e.mu.Unlock()

	if client == nil {
		return nil
	}
	if err := client.Close(); err != nil {
		return mcporter.NewOpError("closeServer", name, err)
	}
	return nil
}

// Close tears down every live connection.
func (r *Runtime) Close() error {
	r.mu.RLock()
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	r.mu.RUnlock()

	var firstErr error
	for _, name := range names {
		if err := r.CloseServer(name); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// IsConnected reports whether name currently has a ready session.
func (r *Runtime) IsConnected(name string) bool {
	r.mu.RLock()
	e, ok := r.byName[name]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.client != nil && e.client.State() == mcpclient.StateReady
}
