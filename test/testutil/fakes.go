// Package testutil holds the fakes shared across this module's tests: a
// fake stdio MCP server (a small /bin/sh state machine that answers the
// handful of JSON-RPC methods the aggregator actually issues) and a dialer
// for the daemon's framed unix-socket protocol.
package testutil

import (
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mcporter/mcporter/internal/daemonproto"
)

// StdioEchoServerScript returns a /bin/sh script suitable for
// StdioCommand.Args that answers initialize, tools/list, and tools/call
// with fixed JSON-RPC results. It matches on substrings of the incoming
// line and echoes back each request's id, so it answers calls in any order
// (initialize is id=1; the first tools/call is id=2 when ListTools is
// skipped, or id=3 when it is called first). It keeps no state.
func StdioEchoServerScript(toolResultText string) string {
	return `
while IFS= read -r line; do
  id=$(printf '%s' "$line" | sed -n 's/.*"id":\([0-9]*\).*/\1/p')
  case "$line" in
    *'"method":"initialize"'*)
      echo '{"jsonrpc":"2.0","id":'"$id"',"result":{"protocolVersion":"2025-06-18","capabilities":{},"serverInfo":{"name":"fake","version":"0"}}}'
      ;;
    *'"method":"notifications/initialized"'*)
      ;;
    *'"method":"tools/list"'*)
      echo '{"jsonrpc":"2.0","id":'"$id"',"result":{"tools":[{"name":"echo","description":"echoes input","inputSchema":{"type":"object"}}]}}'
      ;;
    *'"method":"tools/call"'*)
      echo '{"jsonrpc":"2.0","id":'"$id"',"result":{"content":[{"type":"text","text":"` + toolResultText + `"}]}}'
      ;;
  esac
done
`
}

// StatefulStdioServerScript returns a /bin/sh script exposing one tool,
// next_value, whose JSON result is {"instanceId":<this process's pid>,
// "count":<calls handled by this process so far>}. Unlike
// StdioEchoServerScript it counts the calls each process has handled, so
// a test can tell repeated tools/call invocations against the same process
// from calls answered by a new one — the property spec.md §8 Scenario
// 1 (keep-alive reuse) and Scenario 2 (idle eviction, which proves a *new*
// process by its different instanceId) both need.
func StatefulStdioServerScript() string {
	return `
count=0
while IFS= read -r line; do
  id=$(printf '%s' "$line" | sed -n 's/.*"id":\([0-9]*\).*/\1/p')
  case "$line" in
    *'"method":"initialize"'*)
      echo '{"jsonrpc":"2.0","id":'"$id"',"result":{"protocolVersion":"2025-06-18","capabilities":{},"serverInfo":{"name":"fake","version":"0"}}}'
      ;;
    *'"method":"notifications/initialized"'*)
      ;;
    *'"method":"tools/list"'*)
      echo '{"jsonrpc":"2.0","id":'"$id"',"result":{"tools":[{"name":"next_value","description":"returns a counter scoped to this process","inputSchema":{"type":"object"}}]}}'
      ;;
    *'"method":"tools/call"'*)
      count=$((count + 1))
      echo '{"jsonrpc":"2.0","id":'"$id"',"result":{"content":[{"type":"text","text":"{\"instanceId\":'"$$"',\"count\":'"$count"'}"}]}}'
      ;;
  esac
done
`
}

// FlakyStdioServerScript returns a /bin/sh script whose first tools/call
// fails with a fatal JSON-RPC error (code -32000, outside the non-fatal set)
// and whose every subsequent call succeeds. statefile records "this process
// has already failed once" on disk rather than in a shell variable, because
// spec.md §8 Scenario 3's retry is only observable across a process restart
// (withRetry's closeServer kills this process and the daemon spawns a new
// one for the reissued call), so in-memory state would not survive to the
// retry.
func FlakyStdioServerScript() string {
	return `
statefile="$1"
while IFS= read -r line; do
  id=$(printf '%s' "$line" | sed -n 's/.*"id":\([0-9]*\).*/\1/p')
  case "$line" in
    *'"method":"initialize"'*)
      echo '{"jsonrpc":"2.0","id":'"$id"',"result":{"protocolVersion":"2025-06-18","capabilities":{},"serverInfo":{"name":"fake","version":"0"}}}'
      ;;
    *'"method":"notifications/initialized"'*)
      ;;
    *'"method":"tools/list"'*)
      echo '{"jsonrpc":"2.0","id":'"$id"',"result":{"tools":[{"name":"flaky","description":"fails once then succeeds","inputSchema":{"type":"object"}}]}}'
      ;;
    *'"method":"tools/call"'*)
      if [ -f "$statefile" ]; then
        echo '{"jsonrpc":"2.0","id":'"$id"',"result":{"content":[{"type":"text","text":"recovered"}]}}'
      else
        touch "$statefile"
        echo '{"jsonrpc":"2.0","id":'"$id"',"error":{"code":-32000,"message":"simulated fatal failure"}}'
      fi
      ;;
  esac
done
`
}

// AlwaysFatalStdioServerScript returns a /bin/sh script whose every
// tools/call fails with the same fatal JSON-RPC error, for asserting that
// withRetry's single retry still surfaces an error when the restart doesn't
// help (spec.md §8 Scenario 3's "a second fatal error MUST surface").
func AlwaysFatalStdioServerScript() string {
	return `
while IFS= read -r line; do
  id=$(printf '%s' "$line" | sed -n 's/.*"id":\([0-9]*\).*/\1/p')
  case "$line" in
    *'"method":"initialize"'*)
      echo '{"jsonrpc":"2.0","id":'"$id"',"result":{"protocolVersion":"2025-06-18","capabilities":{},"serverInfo":{"name":"fake","version":"0"}}}'
      ;;
    *'"method":"notifications/initialized"'*)
      ;;
    *'"method":"tools/list"'*)
      echo '{"jsonrpc":"2.0","id":'"$id"',"result":{"tools":[]}}'
      ;;
    *'"method":"tools/call"'*)
      echo '{"jsonrpc":"2.0","id":'"$id"',"error":{"code":-32000,"message":"simulated persistent fatal failure"}}'
      ;;
  esac
done
`
}

// DialDaemon opens a unix-socket connection to a daemon host, writes req as
// a framed request, half-closes, and decodes the framed response.
func DialDaemon(t *testing.T, socketPath string, req daemonproto.Request) daemonproto.Response {
	t.Helper()

	conn, err := net.DialTimeout("unix", socketPath, 2*time.Second)
	require.NoError(t, err)
	defer conn.Close()

	b, err := json.Marshal(req)
	require.NoError(t, err)
	_, err = conn.Write(b)
	require.NoError(t, err)
	require.NoError(t, conn.(*net.UnixConn).CloseWrite())

	raw, err := daemonproto.ReadFramedRequest(conn)
	require.NoError(t, err)

	var resp daemonproto.Response
	require.NoError(t, json.Unmarshal(raw, &resp))
	return resp
}

// WaitForSocket polls until a unix socket accepts a connection or the
// timeout elapses.
func WaitForSocket(t *testing.T, socketPath string, timeout time.Duration) {
	t.Helper()
	require.Eventually(t, func() bool {
		conn, err := net.Dial("unix", socketPath)
		if err != nil {
			return false
		}
		conn.Close()
		return true
	}, timeout, 10*time.Millisecond)
}
