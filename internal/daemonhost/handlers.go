package daemonhost

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/mcporter/mcporter/internal/daemonproto"
	"github.com/mcporter/mcporter/internal/mcpclient"
)

// asProtocolCoded rewrites an error wrapping an *mcpclient.RPCError into a
// *daemonproto.CodedError carrying the raw JSON-RPC code as a string, so
// the keep-alive client on the other end of the socket can classify
// fatal/non-fatal without losing the distinction to a flat runtime_error.
func asProtocolCoded(err error) error {
	if err == nil {
		return nil
	}
	var rpcErr *mcpclient.RPCError
	if errors.As(err, &rpcErr) {
		return &daemonproto.CodedError{Code: strconv.Itoa(rpcErr.Code), Message: rpcErr.Message}
	}
	return err
}

func (h *Host) table() daemonproto.Table {
	return daemonproto.Table{
		daemonproto.MethodStatus:       h.handleStatus,
		daemonproto.MethodCallTool:     h.handleCallTool,
		daemonproto.MethodListTools:    h.handleListTools,
		daemonproto.MethodListResources: h.handleListResources,
		daemonproto.MethodCloseServer:  h.handleCloseServer,
		daemonproto.MethodStop:         h.handleStop,
	}
}

func (h *Host) requireManaged(name string) (*activity, error) {
	h.mu.Lock()
	act, ok := h.managed[name]
	h.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("not managed by the daemon")
	}
	return act, nil
}

func (h *Host) handleStatus(ctx context.Context, params json.RawMessage) (any, error) {
	h.mu.Lock()
	servers := make([]string, 0, len(h.managed))
	for name := range h.managed {
		servers = append(servers, name)
	}
	h.mu.Unlock()
	status := daemonproto.StatusResult{PID: os.Getpid(), Servers: servers}
	if meta, ok, err := ReadMetadata(h.opts.MetaPath); err == nil && ok {
		status.StartedAt = meta.StartedAt
	}
	return status, nil
}

func (h *Host) handleCallTool(ctx context.Context, params json.RawMessage) (any, error) {
	var p daemonproto.CallToolParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	act, err := h.requireManaged(p.Server)
	if err != nil {
		return nil, err
	}

	timeout := time.Duration(p.TimeoutMs) * time.Millisecond
	result, err := h.rt.CallTool(ctx, p.Server, p.Tool, p.Arguments, timeout)
	if err != nil {
		return nil, asProtocolCoded(err)
	}
	act.markUsed()
	h.logCall("callTool", p.Server)

	out := daemonproto.CallToolResult{IsError: result.IsError(), Structured: result.Structured()}
	if text := result.Text(); text != nil {
		out.Text = *text
		out.HasText = true
	}
	return out, nil
}

func (h *Host) handleListTools(ctx context.Context, params json.RawMessage) (any, error) {
	var p daemonproto.ListToolsParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	act, err := h.requireManaged(p.Server)
	if err != nil {
		return nil, err
	}

	tools, err := h.rt.ListTools(ctx, p.Server, p.IncludeSchema)
	if err != nil {
		return nil, asProtocolCoded(err)
	}
	act.markUsed()
	h.logCall("listTools", p.Server)
	return tools, nil
}

func (h *Host) handleListResources(ctx context.Context, params json.RawMessage) (any, error) {
	var p daemonproto.ListResourcesParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	act, err := h.requireManaged(p.Server)
	if err != nil {
		return nil, err
	}

	result, err := h.rt.ListResources(ctx, p.Server, nil)
	if err != nil {
		return nil, asProtocolCoded(err)
	}
	act.markUsed()
	h.logCall("listResources", p.Server)
	return result, nil
}

func (h *Host) handleCloseServer(ctx context.Context, params json.RawMessage) (any, error) {
	var p daemonproto.ServerParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	act, err := h.requireManaged(p.Server)
	if err != nil {
		return nil, err
	}

	if err := h.rt.CloseServer(p.Server); err != nil {
		return nil, err
	}
	act.reset()
	h.logCall("closeServer", p.Server)
	return nil, nil
}

func (h *Host) handleStop(ctx context.Context, params json.RawMessage) (any, error) {
	return nil, nil
}
