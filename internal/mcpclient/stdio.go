package mcpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mcporter/mcporter/internal/stdiosupervisor"
	"github.com/mcporter/mcporter/pkg/mcporter"
)

// clientProtocolVersion is the MCP wire version this aggregator speaks when
// initializing a stdio session.
const clientProtocolVersion = "2025-06-18"

// StdioClient is the McpClient adapter for a child process speaking
// line-delimited JSON-RPC 2.0 over stdio. It owns no process lifecycle
// itself — that is stdiosupervisor.Supervisor's job (spec.md §4.A/§4.B
// split) — it only frames requests/responses on top of it.
type StdioClient struct {
	stateBox

	sup  *stdiosupervisor.Supervisor
	name string

	nextID int64

	mu      sync.Mutex
	pending map[int64]chan *jsonrpcResponse

	readOnce sync.Once
	readErr  error
}

// NewStdioClient builds a client bound to an already-started supervisor.
// name is used only for diagnostics (OpError.Server).
func NewStdioClient(name string, sup *stdiosupervisor.Supervisor) *StdioClient {
	return &StdioClient{
		sup:     sup,
		name:    name,
		pending: make(map[int64]chan *jsonrpcResponse),
	}
}

func (c *StdioClient) State() State { return c.get() }

func (c *StdioClient) startReader() {
	c.readOnce.Do(func() {
		go c.readLoop()
	})
}

func (c *StdioClient) readLoop() {
	for {
		line, err := c.sup.ReadLine()
		if err != nil {
			c.mu.Lock()
			c.readErr = err
			pending := c.pending
			c.pending = nil
			c.mu.Unlock()
			for _, ch := range pending {
				close(ch)
			}
			c.transition(StateFailed)
			return
		}

		var resp jsonrpcResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			continue // malformed line from a misbehaving server: drop and keep reading
		}
		if resp.Method != "" {
			continue // server->client notification; no subscriber in this adapter
		}

		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		if ok {
			delete(c.pending, resp.ID)
		}
		c.mu.Unlock()
		if ok {
			ch <- &resp
		}
	}
}

func (c *StdioClient) call(ctx context.Context, method string, params any, out any) error {
	id := atomic.AddInt64(&c.nextID, 1)

	var raw json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("marshal params: %w", err)
		}
		raw = b
	}

	ch := make(chan *jsonrpcResponse, 1)
	c.mu.Lock()
	if c.pending == nil {
		c.mu.Unlock()
		return mcporter.ErrTransportClosed
	}
	c.pending[id] = ch
	c.mu.Unlock()

	req := jsonrpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: raw}
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	if err := c.sup.Send(payload); err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return err
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return mcporter.ErrTransportClosed
		}
		if resp.Error != nil {
			return &RPCError{Code: resp.Error.Code, Message: resp.Error.Message, Data: resp.Error.Data}
		}
		if out == nil || len(resp.Result) == 0 {
			return nil
		}
		return json.Unmarshal(resp.Result, out)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *StdioClient) notify(method string, params any) error {
	var raw json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return err
		}
		raw = b
	}
	payload, err := json.Marshal(jsonrpcRequest{JSONRPC: "2.0", Method: method, Params: raw})
	if err != nil {
		return err
	}
	return c.sup.Send(payload)
}

// Initialize performs the MCP handshake: initialize request followed by the
// notifications/initialized notification.
func (c *StdioClient) Initialize(ctx context.Context) error {
	c.transition(StateStarting)
	c.startReader()

	params := map[string]any{
		"protocolVersion": clientProtocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo":      map[string]any{"name": "mcporter", "version": "0.1.0"},
	}

	var result map[string]json.RawMessage
	if err := c.call(ctx, "initialize", params, &result); err != nil {
		c.transition(StateFailed)
		return mcporter.NewOpError("initialize", c.name, err)
	}
	if err := c.notify("notifications/initialized", nil); err != nil {
		c.transition(StateFailed)
		return mcporter.NewOpError("initialize", c.name, err)
	}

	c.transition(StateReady)
	return nil
}

func (c *StdioClient) ListTools(ctx context.Context, includeSchema bool) ([]*mcp.Tool, error) {
	var result mcp.ListToolsResult
	if err := c.call(ctx, "tools/list", map[string]any{}, &result); err != nil {
		return nil, mcporter.NewOpError("listTools", c.name, err)
	}
	if !includeSchema {
		for _, t := range result.Tools {
			t.InputSchema = nil
		}
	}
	return result.Tools, nil
}

func (c *StdioClient) ListResources(ctx context.Context, params *mcp.ListResourcesParams) (*mcp.ListResourcesResult, error) {
	if params == nil {
		params = &mcp.ListResourcesParams{}
	}
	var result mcp.ListResourcesResult
	if err := c.call(ctx, "resources/list", params, &result); err != nil {
		return nil, mcporter.NewOpError("listResources", c.name, err)
	}
	return &result, nil
}

func (c *StdioClient) CallTool(ctx context.Context, name string, args map[string]any, timeout time.Duration) (*mcporter.CallResult, error) {
	var result mcp.CallToolResult
	err := withTimeout(ctx, timeout, func(ctx context.Context) error {
		return c.call(ctx, "tools/call", &mcp.CallToolParams{Name: name, Arguments: args}, &result)
	}, func() {
		// The abandoned goroutine above may still be writing to or reading
		// from sup's pipes; the child is no longer trustworthy, so fail it
		// outright rather than leave it cached as StateReady.
		c.transition(StateFailed)
		_ = c.sup.Close(context.Background())
	})
	if err != nil {
		return nil, mcporter.NewOpError("callTool", c.name, err)
	}
	return mcporter.NewCallResult(&result), nil
}

func (c *StdioClient) Close() error {
	c.transition(StateClosing)
	c.mu.Lock()
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()
	for _, ch := range pending {
		close(ch)
	}
	c.transition(StateClosed)
	return c.sup.Close(context.Background())
}
