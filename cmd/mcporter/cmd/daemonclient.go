package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/mcporter/mcporter/internal/daemonproto"
)

// rawDialDaemon is the CLI-side one-shot sibling of keepalive's internal
// daemonClient: dial, write the framed request, half-close, read until EOF.
func rawDialDaemon(ctx context.Context, socketPath, method string, params any, id string) (daemonproto.Response, error) {
	dialer := net.Dialer{Timeout: 3 * time.Second}
	conn, err := dialer.DialContext(ctx, "unix", socketPath)
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
