// Package mcpclient is the thin MCP protocol adapter of spec.md §4.B: it
// turns a transport (stdio child or streaming HTTP) into initialize /
// listTools / listResources / callTool / close.
package mcpclient

import (
	"context"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mcporter/mcporter/pkg/mcporter"
)

// State is the client session lifecycle of spec.md §3.
type State int

const (
	StateUnstarted State = iota
	StateStarting
	StateReady
	StateClosing
	StateClosed
	StateFailed
)

// Client is the McpClient abstraction: one live connection bound to a
// single ServerDefinition. Implementations do not serialize internally —
// at most one outstanding request per client is the caller's invariant
// (spec.md §4.B Concurrency).
type Client interface {
	Initialize(ctx context.Context) error
	ListTools(ctx context.Context, includeSchema bool) ([]*mcp.Tool, error)
	ListResources(ctx context.Context, params *mcp.ListResourcesParams) (*mcp.ListResourcesResult, error)
	CallTool(ctx context.Context, name string, args map[string]any, timeout time.Duration) (*mcporter.CallResult, error)
	Close() error
	State() State
}

// stateBox is the shared state-machine bookkeeping embedded by both
// transport-specific client implementations.
type stateBox struct {
	mu    sync.Mutex
	state State
}

func (s *stateBox) get() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *stateBox) set(v State) {
	s.mu.Lock()
	s.state = v
	s.mu.Unlock()
}

// transition moves unconditionally unless already in a terminal state
// (closed/failed), in which case it is a no-op — this keeps Close()
// idempotent across implementations.
func (s *stateBox) transition(v State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed || s.state == StateFailed {
		return
	}
	s.state = v
}

// withTimeout runs fn under a deadline derived from timeout (zero means no
// deadline), returning mcporter.ErrTimeout if it expires. On expiry the
// goroutine running fn is abandoned — its write/read may still be in
// flight against the underlying transport — so the caller must pass
// onAbort to close that transport and fail the session (spec.md §5: "for
// stdio — the abort triggers the close path of §4.A to ensure the child
// is either reused or terminated," never left half-answered and cached).
func withTimeout(ctx context.Context, timeout time.Duration, fn func(context.Context) error, onAbort func()) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(ctx) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		onAbort()
		return mcporter.ErrTimeout
	}
}
