package mcpclient

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcporter/mcporter/internal/stdiosupervisor"
)

// fakeServerScript is a minimal stateful responder: it keys its canned
// response off the method name present on each line, hardcoding the request
// ids our sequential Initialize -> ListTools -> CallTool flow will produce.
const fakeServerScript = `
while IFS= read -r line; do
  case "$line" in
    *'"method":"initialize"'*)
      echo '{"jsonrpc":"2.0","id":1,"result":{"protocolVersion":"2025-06-18","capabilities":{},"serverInfo":{"name":"fake","version":"0"}}}'
      ;;
    *'"method":"tools/list"'*)
      echo '{"jsonrpc":"2.0","id":2,"result":{"tools":[{"name":"echo","description":"echoes input","inputSchema":{"type":"object"}}]}}'
      ;;
    *'"method":"tools/call"'*)
      echo '{"jsonrpc":"2.0","id":3,"result":{"content":[{"type":"text","text":"hi"}]}}'
      ;;
    *'"method":"notifications/initialized"'*)
      ;;
  esac
done
`

func newFakeStdioClient(t *testing.T) *StdioClient {
	t.Helper()
	sup := stdiosupervisor.New(stdiosupervisor.StartOptions{
		Executable: "/bin/sh",
		Args:       []string{"-c", fakeServerScript},
		Env:        os.Environ(),
	})
	sup.SetShutdownTimings(stdiosupervisor.ShutdownTimings{
		StreamsWait: 50 * time.Millisecond,
		TermWait:    50 * time.Millisecond,
		KillWait:    50 * time.Millisecond,
	})
	require.NoError(t, sup.Start(context.Background()))
	return NewStdioClient("fake", sup)
}

func TestStdioClient_InitializeListCall(t *testing.T) {
	c := newFakeStdioClient(t)
	defer c.Close()

	ctx := context.Background()
	require.NoError(t, c.Initialize(ctx))
	assert.Equal(t, StateReady, c.State())

	tools, err := c.ListTools(ctx, true)
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "echo", tools[0].Name)

	result, err := c.CallTool(ctx, "echo", map[string]any{"x": 1}, time.Second)
	require.NoError(t, err)
	require.NotNil(t, result.Text())
	assert.Equal(t, "hi", *result.Text())
}

func TestStdioClient_CloseIsIdempotentAndStopsReader(t *testing.T) {
	c := newFakeStdioClient(t)
	require.NoError(t, c.Initialize(context.Background()))

	require.NoError(t, c.Close())
	assert.Equal(t, StateClosed, c.State())
	require.NoError(t, c.Close())
}

func TestIsNonFatalProtocolError(t *testing.T) {
	assert.True(t, IsNonFatalProtocolError(&RPCError{Code: codeMethodNotFound}))
	assert.True(t, IsNonFatalProtocolError(&RPCError{Code: codeInvalidParams}))
	assert.False(t, IsNonFatalProtocolError(&RPCError{Code: -32000}))
	assert.False(t, IsNonFatalProtocolError(context.DeadlineExceeded))
}
