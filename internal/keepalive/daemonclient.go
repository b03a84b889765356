package keepalive

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/mcporter/mcporter/internal/daemonproto"
)

// daemonClient is the thin framed-request sender over a unix socket
// connection to the daemon host (spec.md §4.F). One connection per call:
// write the full request, half-close, read until EOF.
type daemonClient struct {
	socketPath string
	dialTimeout time.Duration
}

func newDaemonClient(socketPath string) *daemonClient {
	return &daemonClient{socketPath: socketPath, dialTimeout: 2 * time.Second}
}

func (c *daemonClient) call(ctx context.Context, method string, params any, id string) (daemonproto.Response, error) {
	dialer := net.Dialer{Timeout: c.dialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return daemonproto.Response{}, err
	}
	defer conn.Close()

	var raw json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return daemonproto.Response{}, err
		}
		raw = b
	}

	reqBytes, err := json.Marshal(daemonproto.Request{ID: id, Method: method, Params: raw})
	if err != nil {
		return daemonproto.Response{}, err
	}

	if _, err := conn.Write(reqBytes); err != nil {
		return daemonproto.Response{}, err
	}
	if uc, ok := conn.(*net.UnixConn); ok {
		if err := uc.CloseWrite(); err != nil {
			return daemonproto.Response{}, err
		}
	}

	respBytes, err := daemonproto.ReadFramedRequest(conn)
	if err != nil {
		return daemonproto.Response{}, err
	}

	var resp daemonproto.Response
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		return daemonproto.Response{}, fmt.Errorf("decode daemon response: %w", err)
	}
	return resp, nil
}

// status probes the daemon, returning an error if it cannot be reached —
// callers treat any error as "no daemon present".
func (c *daemonClient) status(ctx context.Context) (daemonproto.StatusResult, error) {
	resp, err := c.call(ctx, daemonproto.MethodStatus, daemonproto.StatusParams{}, "status")
	if err != nil {
		return daemonproto.StatusResult{}, err
	}
	if !resp.OK {
		return daemonproto.StatusResult{}, fmt.Errorf("daemon status error: %s", resp.Error.Message)
	}
	var result daemonproto.StatusResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return daemonproto.StatusResult{}, err
	}
	return result, nil
}
